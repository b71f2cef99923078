// Package domain contains the core domain types for the transfer orchestration context.
package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErcStandard is the token standard a contract implements.
type ErcStandard string

const (
	ERC20   ErcStandard = "ERC20"
	ERC721  ErcStandard = "ERC721"
	ERC1155 ErcStandard = "ERC1155"
)

// IsNFT reports whether approval is by operator flag rather than allowance.
func (s ErcStandard) IsNFT() bool {
	return s == ERC721 || s == ERC1155
}

// Valid reports whether s is a supported standard.
func (s ErcStandard) Valid() bool {
	return s == ERC20 || s.IsNFT()
}

// ParseErcStandard accepts the standard name in any case.
func ParseErcStandard(s string) (ErcStandard, bool) {
	std := ErcStandard(strings.ToUpper(strings.TrimSpace(s)))
	return std, std.Valid()
}

// Token is a resolved token contract. Decimals is 0 for ERC721 and ERC1155.
type Token struct {
	Address  common.Address
	Standard ErcStandard
	Decimals uint8
}

// DefaultTokenID is sent for fungible tokens.
const DefaultTokenID = "0x00"
