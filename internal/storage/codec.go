// internal/storage/codec.go
package storage

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// Codec serializes records for the key-value backends
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes with encoding/json and decodes with sonic
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}
