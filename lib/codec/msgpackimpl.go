package codec

import (
	"github.com/hashicorp/go-msgpack/codec"
)

// Msgpack returns a codec using the msgpack binary format
func Msgpack() Codec {
	return msgpackCodec{}
}

// the handle is read-only after init and shared by all encoders
var msgpackHandle = &codec.MsgpackHandle{}

type msgpackCodec struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.Codec)
// --------------------------------------------------------------------------

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Encode(v any) ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, msgpackHandle).Encode(v); err != nil {
		return nil, wrap(err, "msgpack", "encode")
	}
	return b, nil
}

func (msgpackCodec) Decode(b []byte, v any) error {
	return wrap(codec.NewDecoderBytes(b, msgpackHandle).Decode(v), "msgpack", "decode")
}
