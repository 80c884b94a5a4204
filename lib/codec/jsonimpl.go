package codec

import "encoding/json"

// JSON returns a codec using json encoding
func JSON() Codec {
	return jsonCodec{}
}

type jsonCodec struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.Codec)
// --------------------------------------------------------------------------

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	return b, wrap(err, "json", "encode")
}

func (jsonCodec) Decode(b []byte, v any) error {
	return wrap(json.Unmarshal(b, v), "json", "decode")
}
