package codec

import (
	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/cockroachdb/errors"
)

// Codec is the interface for all value codecs
type Codec interface {
	// Name returns a short identifier of the format
	Name() string
	// Encode serializes v
	Encode(v any) ([]byte, error)
	// Decode deserializes b into the value v points to
	Decode(b []byte, v any) error
}

// ErrCodec marks encode and decode failures
var ErrCodec = errors.New("codec error")

// ByName returns the codec with the given name.
func ByName(name string) (Codec, error) {
	switch name {
	case "json":
		return JSON(), nil
	case "gob":
		return Gob(), nil
	case "msgpack", "":
		return Msgpack(), nil
	case "raw":
		return Raw(), nil
	default:
		return nil, errors.Wrapf(ErrCodec, "unknown codec %q", name)
	}
}

func wrap(err error, name, op string) error {
	if err == nil {
		return nil
	}
	return common.Wrap(ErrCodec, err, "%s %s", name, op)
}
