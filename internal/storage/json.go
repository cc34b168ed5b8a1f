package storage

import (
	"encoding/json"
	"fmt"
)

// GetJSON loads key and decodes it into dst
func GetJSON(txn Txn, key string, dst any) error {
	raw, err := txn.Get(key)
	if err != nil {
		return err
	}
	return DecodeJSON(key, raw, dst)
}

// DecodeJSON decodes a raw value read from key
func DecodeJSON(key string, raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key
func SetJSON(txn Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return txn.Set(key, raw)
}
