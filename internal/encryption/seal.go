package encryption

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// SealField envelope-encrypts a value and packs the result into a single
// opaque string for column storage (device fingerprints, PAN at rest).
func (em *EncryptionManager) SealField(ctx context.Context, plaintext, keyPurpose string) (string, error) {
	enc, err := em.EncryptField(ctx, plaintext, keyPurpose)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(enc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// OpenField reverses SealField.
func (em *EncryptionManager) OpenField(ctx context.Context, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	var enc EncryptedData
	if err := json.Unmarshal(raw, &enc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return em.DecryptField(ctx, &enc)
}
