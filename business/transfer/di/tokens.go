// Package di contains dependency injection tokens for the transfer orchestration context.
package di

import (
	"github.com/fd1az/nightfall-sdk/business/transfer/app"
	"github.com/fd1az/nightfall-sdk/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Orchestrator = di.NewToken[*app.Orchestrator]("transfer.Orchestrator")
	ApprovalGate = di.NewToken[*app.ApprovalGate]("transfer.ApprovalGate")
)

// Internal service tokens - used within the transfer module
var (
	TokenInspector = di.NewToken[app.TokenInspector]("transfer.TokenInspector")
	TokenResolver  = di.NewToken[*app.TokenResolver]("transfer.TokenResolver")
)

// ObserverKey is the registry name under which a session may register an
// app.TransitionObserver before the module is started.
const ObserverKey = "transfer.observer"

// Helper functions for type-safe access
func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetApprovalGate(c di.ServiceRegistry) *app.ApprovalGate {
	return di.GetToken(c, ApprovalGate)
}

func GetTokenInspector(c di.ServiceRegistry) app.TokenInspector {
	return di.GetToken(c, TokenInspector)
}

func GetTokenResolver(c di.ServiceRegistry) *app.TokenResolver {
	return di.GetToken(c, TokenResolver)
}
