// Package protocol implements the protocol service bounded context.
package protocol

import (
	"context"

	"github.com/fd1az/nightfall-sdk/business/protocol/app"
	protocolDI "github.com/fd1az/nightfall-sdk/business/protocol/di"
	"github.com/fd1az/nightfall-sdk/business/protocol/infra/gateway"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/config"
	"github.com/fd1az/nightfall-sdk/internal/di"
	"github.com/fd1az/nightfall-sdk/internal/logger"
	"github.com/fd1az/nightfall-sdk/internal/monolith"
)

// Module implements the protocol service bounded context.
type Module struct{}

// RegisterServices registers all protocol services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, protocolDI.Gateway, func(sr di.ServiceRegistry) app.Gateway {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		gwCfg := gateway.Config{
			BaseURL:           cfg.Protocol.BaseURL,
			Timeout:           cfg.Protocol.RequestTimeout,
			RequestsPerMinute: cfg.Protocol.RequestsPerMinute,
			AddressCacheTTL:   cfg.Protocol.AddressCacheTTL,
		}
		gw, err := gateway.New(gwCfg, log)
		if err != nil {
			panic("failed to create protocol gateway: " + err.Error())
		}
		return gw
	})

	di.RegisterToken(c, protocolDI.CommitmentService, func(sr di.ServiceRegistry) *app.CommitmentService {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewCommitmentService(protocolDI.GetGateway(sr), log)
	})

	return nil
}

// Startup fails unless the protocol service reports healthy.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	healthy, err := protocolDI.GetGateway(mono.Services()).HealthCheck(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return apperror.New(apperror.CodeProtocolServiceUnavailable,
			apperror.WithContext(mono.Config().Protocol.BaseURL))
	}

	log.Info(ctx, "protocol module started", "url", mono.Config().Protocol.BaseURL)
	return nil
}
