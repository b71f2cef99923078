// Package di contains dependency injection tokens for the protocol service context.
package di

import (
	"github.com/fd1az/nightfall-sdk/business/protocol/app"
	"github.com/fd1az/nightfall-sdk/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gateway           = di.NewToken[app.Gateway]("protocol.Gateway")
	CommitmentService = di.NewToken[*app.CommitmentService]("protocol.CommitmentService")
)

// Helper functions for type-safe access
func GetGateway(c di.ServiceRegistry) app.Gateway {
	return di.GetToken(c, Gateway)
}

func GetCommitmentService(c di.ServiceRegistry) *app.CommitmentService {
	return di.GetToken(c, CommitmentService)
}
