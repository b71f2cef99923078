package app

import "github.com/ethereum/go-ethereum/common"

// Account is the L1 credential of a session: either a held signing key or
// an external wallet, never both.
type Account struct {
	signer Signer
	wallet ExternalWallet
}

// NewKeyAccount returns an account that signs locally.
func NewKeyAccount(s Signer) Account {
	return Account{signer: s}
}

// NewWalletAccount returns an account that delegates to w.
func NewWalletAccount(w ExternalWallet) Account {
	return Account{wallet: w}
}

// Address returns the L1 address of the account.
func (a Account) Address() common.Address {
	switch {
	case a.signer != nil:
		return a.signer.From()
	case a.wallet != nil:
		return a.wallet.From()
	default:
		return common.Address{}
	}
}

// Signer returns the held key, if any.
func (a Account) Signer() (Signer, bool) {
	return a.signer, a.signer != nil
}

// Wallet returns the external wallet, if any.
func (a Account) Wallet() (ExternalWallet, bool) {
	return a.wallet, a.wallet != nil
}

// Valid reports whether the account can authorize transactions.
func (a Account) Valid() bool {
	return a.signer != nil || a.wallet != nil
}
