// Package units converts human-readable token amounts to and from the
// integer base units used on chain.
package units

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/nightfall-sdk/internal/apperror"
)

// MaxDecimals bounds the precision accepted for a token.
const MaxDecimals = 77

// A non-negative decimal with at least one digit and at most one dot.
// A trailing dot ("2.") is rejected.
var decimalPattern = regexp.MustCompile(`^(\d+|\d*\.\d+)$`)

// StringValueToWei converts value, expressed in whole token units, into base
// units for a token with the given decimals. It is strict: empty, negative,
// malformed or over-precise inputs fail with a validation error.
func StringValueToWei(value string, decimals uint8) (*big.Int, error) {
	if decimals > MaxDecimals {
		return nil, apperror.Validation(apperror.CodeInvalidValue,
			fmt.Sprintf("decimals %d exceeds %d", decimals, MaxDecimals))
	}
	if !decimalPattern.MatchString(value) {
		return nil, apperror.Validation(apperror.CodeInvalidValue,
			fmt.Sprintf("%q is not a non-negative decimal number", value))
	}

	if dot := strings.IndexByte(value, '.'); dot >= 0 {
		if frac := len(value) - dot - 1; frac > int(decimals) {
			return nil, apperror.Validation(apperror.CodeInvalidValue,
				fmt.Sprintf("%q has %d fractional digits, token allows %d", value, frac, decimals))
		}
	}

	normalized := value
	if strings.HasPrefix(normalized, ".") {
		normalized = "0" + normalized
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidValue,
			apperror.WithCause(err),
			apperror.WithContext(value))
	}

	return d.Shift(int32(decimals)).BigInt(), nil
}

// ToBaseUnit is the permissive conversion kept for NFT amounts and callers
// of earlier clients. It keeps two compatibility behaviours:
// an empty value converts to "0", and decimals == 0 returns value unchanged
// without validation. Every other input goes through StringValueToWei.
func ToBaseUnit(value string, decimals uint8) (string, error) {
	if value == "" {
		return "0", nil
	}
	if decimals == 0 {
		return value, nil
	}

	wei, err := StringValueToWei(value, decimals)
	if err != nil {
		return "", err
	}
	return wei.String(), nil
}

// FromBaseUnit renders a base-unit integer as a decimal string in whole
// token units, without trailing zeros.
func FromBaseUnit(raw string, decimals uint8) (string, error) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() < 0 {
		return "", apperror.Validation(apperror.CodeInvalidValue,
			fmt.Sprintf("%q is not a non-negative integer", raw))
	}
	return decimal.NewFromBigInt(n, -int32(decimals)).String(), nil
}
