package domain

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/nightfall-sdk/internal/apperror"
)

// Endpoint names the protocol service route that built an intent.
type Endpoint string

const (
	EndpointDeposit            Endpoint = "deposit"
	EndpointTransfer           Endpoint = "transfer"
	EndpointWithdraw           Endpoint = "withdraw"
	EndpointFinaliseWithdrawal Endpoint = "finalise-withdrawal"
)

// L2Transaction is the protocol-level transaction returned with an intent.
// The full service payload is kept in Raw.
type L2Transaction struct {
	TransactionHash string          `json:"transactionHash"`
	Fee             string          `json:"fee,omitempty"`
	Raw             json.RawMessage `json:"-"`
}

func (t *L2Transaction) UnmarshalJSON(data []byte) error {
	type alias L2Transaction
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = L2Transaction(a)
	t.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (t L2Transaction) MarshalJSON() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}
	type alias L2Transaction
	return json.Marshal(alias(t))
}

// UnsignedTransactionIntent is what the service builds for one operation.
// TxDataToSign is empty for off-chain transfers and withdrawals.
type UnsignedTransactionIntent struct {
	Endpoint     Endpoint       `json:"-"`
	TxDataToSign string         `json:"txDataToSign,omitempty"`
	Transaction  *L2Transaction `json:"transaction,omitempty"`
}

// HasCallData reports whether the intent carries L1 call data.
func (i *UnsignedTransactionIntent) HasCallData() bool {
	return i != nil && strings.TrimPrefix(i.TxDataToSign, "0x") != ""
}

// CallData decodes TxDataToSign.
func (i *UnsignedTransactionIntent) CallData() ([]byte, error) {
	if !i.HasCallData() {
		return nil, apperror.New(apperror.CodeMalformedResponse,
			apperror.WithContext(string(i.Endpoint)+": missing txDataToSign"))
	}
	data := i.TxDataToSign
	if !strings.HasPrefix(data, "0x") {
		data = "0x" + data
	}
	b, err := hexutil.Decode(data)
	if err != nil {
		return nil, apperror.New(apperror.CodeMalformedResponse,
			apperror.WithCause(err),
			apperror.WithContext(string(i.Endpoint)+": txDataToSign is not hex"))
	}
	return b, nil
}

// L2Hash returns the protocol transaction hash, if any.
func (i *UnsignedTransactionIntent) L2Hash() string {
	if i == nil || i.Transaction == nil {
		return ""
	}
	return i.Transaction.TransactionHash
}
