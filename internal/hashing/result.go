package hashing

import (
	"encoding/json"
	"fmt"
)

// Encode packs a HashResult for single-column storage.
func (r *HashResult) Encode() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode hash result: %w", err)
	}
	return string(raw), nil
}

// DecodeResult unpacks a stored hash column back into a HashResult.
func DecodeResult(s string) (*HashResult, error) {
	var r HashResult
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("failed to decode hash result: %w", err)
	}
	return &r, nil
}
