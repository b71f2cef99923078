// Package domain contains the core domain types for the protocol service context.
package domain

// ZkpKeySet is the L2 identity derived from a mnemonic and address index.
// It is immutable once derived.
type ZkpKeySet struct {
	RootKey                string    `json:"rootKey"`
	NullifierKey           string    `json:"nullifierKey"`
	ZkpPrivateKey          string    `json:"zkpPrivateKey"`
	ZkpPublicKey           [2]string `json:"zkpPublicKey"`
	CompressedZkpPublicKey string    `json:"compressedZkpPublicKey"`
}

// Complete reports whether every key the service needs is present.
func (k *ZkpKeySet) Complete() bool {
	return k != nil &&
		k.RootKey != "" &&
		k.NullifierKey != "" &&
		k.ZkpPrivateKey != "" &&
		k.CompressedZkpPublicKey != ""
}
