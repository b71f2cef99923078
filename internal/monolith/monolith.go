// Package monolith provides the per-session application container and module interface.
package monolith

import (
	"context"
	"fmt"

	chainapp "github.com/fd1az/nightfall-sdk/business/chain/app"
	"github.com/fd1az/nightfall-sdk/business/chain/infra/ethereum"
	"github.com/fd1az/nightfall-sdk/internal/config"
	"github.com/fd1az/nightfall-sdk/internal/di"
	"github.com/fd1az/nightfall-sdk/internal/logger"
)

// Monolith is the session container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Connection() chainapp.Connection
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// Option customises a session container.
type Option func(*options)

type options struct {
	connOpts []ethereum.ConnectionOption
}

// WithConnectionOptions passes options to the L1 connection manager.
func WithConnectionOptions(opts ...ethereum.ConnectionOption) Option {
	return func(o *options) {
		o.connOpts = append(o.connOpts, opts...)
	}
}

// app implements the Monolith interface.
type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	conn      *ethereum.ConnectionManager
	container di.Container
}

// New connects to the L1 node and creates a session container. Each session
// owns its connection; nothing is shared between sessions.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, opts ...Option) (*app, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	connCfg := ethereum.ConnectionConfig{
		URL:                  cfg.Ethereum.WebSocketURL,
		LivenessInterval:     cfg.Ethereum.LivenessInterval,
		BlockRefreshInterval: cfg.Ethereum.BlockRefreshInterval,
		RequestTimeout:       cfg.Ethereum.RequestTimeout,
	}

	conn, err := ethereum.Connect(ctx, connCfg, log, o.connOpts...)
	if err != nil {
		return nil, err
	}

	// The session works on its own copy so a detected chain id never leaks
	// into the caller's config.
	sessionCfg := *cfg
	if sessionCfg.Ethereum.ChainID == 0 {
		id, err := conn.ChainID(ctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("detect chain id: %w", err)
		}
		sessionCfg.Ethereum.ChainID = id.Uint64()
	}
	cfg = &sessionCfg

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("connection", chainapp.Connection(conn))

	return &app{
		config:    cfg,
		logger:    log,
		conn:      conn,
		container: container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) Connection() chainapp.Connection {
	return a.conn
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the connection probes and releases the node connection.
func (a *app) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
