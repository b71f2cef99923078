// Package transfer implements the transfer orchestration bounded context.
package transfer

import (
	"context"

	chainDI "github.com/fd1az/nightfall-sdk/business/chain/di"
	protocolDI "github.com/fd1az/nightfall-sdk/business/protocol/di"
	"github.com/fd1az/nightfall-sdk/business/transfer/app"
	transferDI "github.com/fd1az/nightfall-sdk/business/transfer/di"
	"github.com/fd1az/nightfall-sdk/business/transfer/infra/erc"
	"github.com/fd1az/nightfall-sdk/internal/config"
	"github.com/fd1az/nightfall-sdk/internal/di"
	"github.com/fd1az/nightfall-sdk/internal/logger"
	"github.com/fd1az/nightfall-sdk/internal/monolith"
)

// Module implements the transfer orchestration bounded context.
type Module struct{}

// RegisterServices registers all transfer services with the DI container.
// It depends on the chain and protocol modules being registered too.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, transferDI.TokenInspector, func(sr di.ServiceRegistry) app.TokenInspector {
		log := sr.Get("logger").(logger.LoggerInterface)

		insp, err := erc.NewInspector(chainDI.GetConnection(sr), log)
		if err != nil {
			panic("failed to create token inspector: " + err.Error())
		}
		return insp
	})

	di.RegisterToken(c, transferDI.TokenResolver, func(sr di.ServiceRegistry) *app.TokenResolver {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewTokenResolver(transferDI.GetTokenInspector(sr), log)
	})

	di.RegisterToken(c, transferDI.ApprovalGate, func(sr di.ServiceRegistry) *app.ApprovalGate {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewApprovalGate(transferDI.GetTokenInspector(sr), chainDI.GetSubmitter(sr), log)
	})

	di.RegisterToken(c, transferDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var opts []app.OrchestratorOption
		if reg, ok := sr.(interface{ Has(string) bool }); ok && reg.Has(transferDI.ObserverKey) {
			opts = append(opts, app.WithTransitionObserver(sr.Get(transferDI.ObserverKey).(app.TransitionObserver)))
		}

		orch, err := app.NewOrchestrator(
			app.OrchestratorConfig{ShieldContractName: cfg.Protocol.ShieldContractName},
			protocolDI.GetGateway(sr),
			chainDI.GetSubmitter(sr),
			transferDI.GetApprovalGate(sr),
			transferDI.GetTokenResolver(sr),
			log,
			opts...,
		)
		if err != nil {
			panic("failed to create orchestrator: " + err.Error())
		}
		return orch
	})

	return nil
}

// Startup resolves the shield contract so a misconfigured name fails the
// session before any operation.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	name := mono.Config().Protocol.ShieldContractName

	shield, err := protocolDI.GetGateway(mono.Services()).ResolveContractAddress(ctx, name)
	if err != nil {
		return err
	}

	// Build the orchestrator eagerly so wiring errors surface here.
	transferDI.GetOrchestrator(mono.Services())

	log.Info(ctx, "transfer module started", "shield", shield.Hex(), "contract", name)
	return nil
}
