package domain

import (
	"math/big"
	"time"
)

// GasPrice represents gas price information.
type GasPrice struct {
	Wei       *big.Int
	Gwei      float64
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	gwei := new(big.Float).SetInt(wei)
	gwei.Quo(gwei, big.NewFloat(1e9))
	gweiFloat, _ := gwei.Float64()

	return &GasPrice{
		Wei:       new(big.Int).Set(wei),
		Gwei:      gweiFloat,
		Timestamp: time.Now(),
	}
}

// GasEstimate is the gas limit and price a transaction will be sent with.
type GasEstimate struct {
	GasLimit uint64
	GasPrice *GasPrice
	MaxCost  *big.Int // GasLimit * GasPrice, in wei
}

// NewGasEstimate computes the maximum cost of a transaction.
func NewGasEstimate(gasLimit uint64, gasPrice *GasPrice) *GasEstimate {
	maxCost := new(big.Int).Mul(gasPrice.Wei, new(big.Int).SetUint64(gasLimit))

	return &GasEstimate{
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		MaxCost:  maxCost,
	}
}
