// Package chain implements the L1 chain bounded context.
package chain

import (
	"context"
	"math/big"

	"github.com/fd1az/nightfall-sdk/business/chain/app"
	chainDI "github.com/fd1az/nightfall-sdk/business/chain/di"
	"github.com/fd1az/nightfall-sdk/business/chain/infra/ethereum"
	"github.com/fd1az/nightfall-sdk/internal/config"
	"github.com/fd1az/nightfall-sdk/internal/di"
	"github.com/fd1az/nightfall-sdk/internal/logger"
	"github.com/fd1az/nightfall-sdk/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// The connection itself is dialled by the session container.
	di.RegisterToken(c, chainDI.Connection, func(sr di.ServiceRegistry) app.Connection {
		return sr.Get("connection").(app.Connection)
	})

	di.RegisterToken(c, chainDI.GasEstimator, func(sr di.ServiceRegistry) app.GasEstimator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		capWei, err := cfg.Gas.MaxGasPrice()
		if err != nil {
			panic("failed to create gas estimator: " + err.Error())
		}
		gasCfg := ethereum.GasEstimatorConfig{
			LimitFactor: cfg.Gas.LimitFactor(),
			PriceFactor: cfg.Gas.PriceFactor(),
			MaxGasPrice: capWei,
		}

		est, err := ethereum.NewGasEstimator(gasCfg, chainDI.GetConnection(sr), log)
		if err != nil {
			panic("failed to create gas estimator: " + err.Error())
		}
		return est
	})

	di.RegisterToken(c, chainDI.Submitter, func(sr di.ServiceRegistry) app.TransactionSubmitter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.SubmitterConfig{
			ChainID:            new(big.Int).SetUint64(cfg.Ethereum.ChainID),
			ConfirmationBlocks: cfg.Ethereum.ConfirmationBlocks,
			BlockTimeout:       cfg.Ethereum.BlockTimeout,
			PollInterval:       cfg.Ethereum.ReceiptPollInterval,
		}

		sub, err := ethereum.NewSubmitter(subCfg, chainDI.GetConnection(sr), chainDI.GetGasEstimator(sr), log)
		if err != nil {
			panic("failed to create submitter: " + err.Error())
		}
		return sub
	})

	return nil
}

// Startup checks that the session connection answers.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	block, err := mono.Connection().CurrentBlockNumber(ctx)
	if err != nil {
		return err
	}

	log.Info(ctx, "chain module started", "chain_id", mono.Config().Ethereum.ChainID, "block", block)
	return nil
}
