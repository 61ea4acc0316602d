package cache

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes a value for storage. Cached values are always stored as
// encoded snapshots so a hit hands every caller its own copy.
func Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode restores a snapshot produced by Encode into dest, which must be a
// non-nil pointer.
func Decode(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}
