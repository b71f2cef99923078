package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TokenBalance is the balance of one token id held under an L2 key.
type TokenBalance struct {
	Balance decimal.Decimal `json:"balance"`
	TokenID string          `json:"tokenId"`
}

// Balances maps an ERC contract address to its per-token-id balances.
type Balances map[string][]TokenBalance

// Total sums every token id held for ercAddress.
func (b Balances) Total(ercAddress string) decimal.Decimal {
	total := decimal.Zero
	for addr, entries := range b {
		if !strings.EqualFold(addr, ercAddress) {
			continue
		}
		for _, e := range entries {
			total = total.Add(e.Balance)
		}
	}
	return total
}
