package codec

import "github.com/cockroachdb/errors"

// Raw returns a codec that passes byte slices through unchanged.
// It accepts []byte (and *[]byte) for Encode and *[]byte for Decode.
func Raw() Codec {
	return rawCodec{}
}

type rawCodec struct{}

func (rawCodec) Name() string { return "raw" }

func (rawCodec) Encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, errors.Wrapf(ErrCodec, "raw encode: unsupported type %T", v)
	}
}

func (rawCodec) Decode(b []byte, v any) error {
	switch dst := v.(type) {
	case *[]byte:
		*dst = append((*dst)[:0], b...)
		return nil
	case *string:
		*dst = string(b)
		return nil
	default:
		return errors.Wrapf(ErrCodec, "raw decode: unsupported type %T", v)
	}
}
