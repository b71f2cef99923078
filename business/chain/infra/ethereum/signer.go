package ethereum

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/nightfall-sdk/business/chain/app"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
)

// LocalSigner signs with a private key held in memory.
type LocalSigner struct {
	key  *ecdsa.PrivateKey
	from common.Address
}

var _ app.Signer = (*LocalSigner)(nil)

// NewLocalSigner parses a hex private key, with or without 0x prefix.
func NewLocalSigner(hexKey string) (*LocalSigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, apperror.Validation(apperror.CodeInvalidPrivateKey, "empty private key")
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidPrivateKey, apperror.WithCause(err))
	}

	return &LocalSigner{
		key:  key,
		from: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (s *LocalSigner) From() common.Address {
	return s.from
}

// SignTx signs tx with the latest signer for chainID.
func (s *LocalSigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
