package codec

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// testCodecs is a map of codec name to factory function
var testCodecs = map[string]func() Codec{
	"JSON":    JSON,
	"GOB":     Gob,
	"Msgpack": Msgpack,
}

type account struct {
	Owner   string
	Balance int64
	Tags    []string
	Blob    []byte
}

func testValues() []account {
	return []account{
		{Owner: "alice", Balance: 100},
		{Owner: "bob", Balance: -90, Tags: []string{"a", "b"}},
		{Owner: "", Balance: math.MaxInt64, Blob: []byte{0, 1, 2, 0xff}},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()
			for _, v := range testValues() {
				b, err := c.Encode(v)
				require.NoError(t, err)

				var got account
				require.NoError(t, c.Decode(b, &got))
				require.Equal(t, v.Owner, got.Owner)
				require.Equal(t, v.Balance, got.Balance)
				require.Equal(t, len(v.Tags), len(got.Tags))
				require.True(t, bytes.Equal(v.Blob, got.Blob))
			}
		})
	}
}

func TestCodecDecodeError(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			var got account
			err := factory().Decode([]byte{0xc1, 0xc1, 0xc1}, &got)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrCodec)
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob", "msgpack", "raw"} {
		c, err := ByName(name)
		require.NoError(t, err)
		require.Equal(t, name, c.Name())
	}
	_, err := ByName("xml")
	require.ErrorIs(t, err, ErrCodec)
}

func TestRaw(t *testing.T) {
	c := Raw()
	b, err := c.Encode([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), b)

	var out []byte
	require.NoError(t, c.Decode(b, &out))
	require.Equal(t, []byte("abc"), out)

	var s string
	require.NoError(t, c.Decode(b, &s))
	require.Equal(t, "abc", s)

	_, err = c.Encode(42)
	require.ErrorIs(t, err, ErrCodec)
}

func TestKeyCodecsPreserveOrder(t *testing.T) {
	ints := []int64{math.MinInt64, -1000, -1, 0, 1, 42, math.MaxInt64}
	var ic Int64Key
	encoded := make([][]byte, len(ints))
	for i, v := range ints {
		encoded[i] = ic.EncodeKey(v)
		back, err := ic.DecodeKey(encoded[i])
		require.NoError(t, err)
		require.Equal(t, v, back)
	}
	require.True(t, sort.SliceIsSorted(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	}))

	uints := []uint64{0, 1, 255, 256, math.MaxUint64}
	var uc Uint64Key
	for i := 1; i < len(uints); i++ {
		require.Equal(t, -1, bytes.Compare(uc.EncodeKey(uints[i-1]), uc.EncodeKey(uints[i])))
	}
	_, err := uc.DecodeKey([]byte{1})
	require.ErrorIs(t, err, ErrCodec)

	var sc StringKey
	k, err := sc.DecodeKey(sc.EncodeKey("héllo"))
	require.NoError(t, err)
	require.Equal(t, "héllo", k)
}
