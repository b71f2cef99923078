// Package mnemonic wraps BIP-39 mnemonic generation and validation.
package mnemonic

import (
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/fd1az/nightfall-sdk/internal/apperror"
)

const entropyBits = 128

// Generate returns a fresh 12-word English mnemonic.
func Generate() (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err),
			apperror.WithContext("mnemonic entropy"))
	}

	m, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err),
			apperror.WithContext("mnemonic encoding"))
	}
	return m, nil
}

// Normalize collapses whitespace so that equivalent phrases compare equal.
func Normalize(m string) string {
	return strings.Join(strings.Fields(m), " ")
}

// Validate checks words and checksum.
func Validate(m string) error {
	if !bip39.IsMnemonicValid(Normalize(m)) {
		return apperror.Validation(apperror.CodeInvalidMnemonic, "checksum or word list mismatch")
	}
	return nil
}

// Resolve validates m when given, or generates a new phrase when empty.
// The second return value reports whether the phrase was generated.
func Resolve(m string) (string, bool, error) {
	if strings.TrimSpace(m) == "" {
		generated, err := Generate()
		return generated, true, err
	}
	if err := Validate(m); err != nil {
		return "", false, err
	}
	return Normalize(m), false, nil
}
