package crypto

import (
	"context"
	"strings"
)

const mockPrefix = "mock:"

// MockEncryptor implements Encryptor for local development (no KMS required).
// Ciphertexts are the plaintext with a recognizable prefix; a value that
// never went through Encrypt passes through unchanged.
type MockEncryptor struct{}

func NewMockEncryptor() *MockEncryptor {
	return &MockEncryptor{}
}

func (m *MockEncryptor) Encrypt(ctx context.Context, plaintext string) (string, error) {
	return mockPrefix + plaintext, nil
}

func (m *MockEncryptor) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if strings.HasPrefix(ciphertext, mockPrefix) {
		return strings.TrimPrefix(ciphertext, mockPrefix), nil
	}
	return ciphertext, nil
}
