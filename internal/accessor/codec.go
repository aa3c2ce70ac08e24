package accessor

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Codec converts values to and from the bytes kept in a kv.Store. Decode
// must fail when the bytes do not hold a value of type T.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// ErrNullValue is returned by JSONCodec.Decode for a stored JSON null.
var ErrNullValue = errors.New("accessor: stored value is null")

// JSONCodec encodes values as JSON. A stored null decodes as no value.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return v, ErrNullValue
	}
	err := json.Unmarshal(data, &v)
	return v, err
}
