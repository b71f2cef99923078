package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fd1az/nightfall-sdk/internal/apperror"
)

// Commitment is an L2 value record as stored by the protocol service.
type Commitment struct {
	ID                     string   `json:"_id"`
	CompressedZkpPublicKey string   `json:"compressedZkpPublicKey"`
	Preimage               Preimage `json:"preimage"`
	IsDeposited            bool     `json:"isDeposited"`
	IsOnChain              Marker   `json:"isOnChain"`
	IsPendingNullification bool     `json:"isPendingNullification"`
	IsNullified            bool     `json:"isNullified"`
	IsNullifiedOnChain     Marker   `json:"isNullifiedOnChain"`
	Nullifier              string   `json:"nullifier"`
	BlockNumber            Marker   `json:"blockNumber"`
}

// Preimage holds the committed values.
type Preimage struct {
	ErcAddress   string   `json:"ercAddress"`
	TokenID      string   `json:"tokenId"`
	Value        string   `json:"value"`
	ZkpPublicKey []string `json:"zkpPublicKey"`
	Salt         string   `json:"salt"`
}

// Marker is an on-chain marker the service encodes either as a boolean or
// as a block number, with -1 meaning unset. The original encoding is kept
// so backups round-trip verbatim.
type Marker struct {
	raw json.RawMessage
}

// Bool reports whether the flag is set.
func (f Marker) Bool() bool {
	s := string(bytes.TrimSpace(f.raw))
	switch s {
	case "", "null", "false":
		return false
	case "true":
		return true
	}
	n, err := strconv.ParseFloat(s, 64)
	return err == nil && n >= 0
}

// Block returns the marker as a block number when it holds one.
func (f Marker) Block() (int64, bool) {
	s := strings.Trim(string(bytes.TrimSpace(f.raw)), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (f Marker) MarshalJSON() ([]byte, error) {
	if len(f.raw) == 0 {
		return []byte("null"), nil
	}
	return f.raw, nil
}

func (f *Marker) UnmarshalJSON(data []byte) error {
	f.raw = append(f.raw[:0], data...)
	return nil
}

// VerifyOwnership fails on the first commitment not owned by compressedKey.
// An empty list verifies trivially.
func VerifyOwnership(commitments []Commitment, compressedKey string) error {
	want := strings.ToLower(compressedKey)
	for i, c := range commitments {
		if strings.ToLower(c.CompressedZkpPublicKey) != want {
			return apperror.Validation(apperror.CodeCommitmentOwnershipMismatch,
				fmt.Sprintf("commitment %d (%s) belongs to %s", i, c.ID, c.CompressedZkpPublicKey))
		}
	}
	return nil
}

// OwnedBy reports whether every commitment is owned by compressedKey.
func OwnedBy(commitments []Commitment, compressedKey string) bool {
	return VerifyOwnership(commitments, compressedKey) == nil
}
