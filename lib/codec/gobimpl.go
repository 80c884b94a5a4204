package codec

import (
	"bytes"
	"encoding/gob"
)

// Gob returns a codec using Go's binary gob format
func Gob() Codec {
	return gobCodec{}
}

type gobCodec struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.Codec)
// --------------------------------------------------------------------------

func (gobCodec) Name() string { return "gob" }

func (gobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, wrap(err, "gob", "encode")
	}
	return buf.Bytes(), nil
}

func (gobCodec) Decode(b []byte, v any) error {
	return wrap(gob.NewDecoder(bytes.NewReader(b)).Decode(v), "gob", "decode")
}
