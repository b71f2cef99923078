// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/nightfall-sdk/business/chain/app"
	"github.com/fd1az/nightfall-sdk/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Connection   = di.NewToken[app.Connection]("chain.Connection")
	GasEstimator = di.NewToken[app.GasEstimator]("chain.GasEstimator")
	Submitter    = di.NewToken[app.TransactionSubmitter]("chain.Submitter")
)

// Helper functions for type-safe access
func GetConnection(c di.ServiceRegistry) app.Connection {
	return di.GetToken(c, Connection)
}

func GetGasEstimator(c di.ServiceRegistry) app.GasEstimator {
	return di.GetToken(c, GasEstimator)
}

func GetSubmitter(c di.ServiceRegistry) app.TransactionSubmitter {
	return di.GetToken(c, Submitter)
}
