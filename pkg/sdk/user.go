// Package sdk is the public entry point: a User session that holds an L1
// account and an L2 key set and runs deposits, transfers and withdrawals.
package sdk

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/nightfall-sdk/business/chain"
	chainapp "github.com/fd1az/nightfall-sdk/business/chain/app"
	chaindomain "github.com/fd1az/nightfall-sdk/business/chain/domain"
	"github.com/fd1az/nightfall-sdk/business/chain/infra/ethereum"
	"github.com/fd1az/nightfall-sdk/business/protocol"
	protocolapp "github.com/fd1az/nightfall-sdk/business/protocol/app"
	protocolDI "github.com/fd1az/nightfall-sdk/business/protocol/di"
	protocoldomain "github.com/fd1az/nightfall-sdk/business/protocol/domain"
	"github.com/fd1az/nightfall-sdk/business/transfer"
	transferapp "github.com/fd1az/nightfall-sdk/business/transfer/app"
	transferDI "github.com/fd1az/nightfall-sdk/business/transfer/di"
	transferdomain "github.com/fd1az/nightfall-sdk/business/transfer/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/config"
	"github.com/fd1az/nightfall-sdk/internal/di"
	"github.com/fd1az/nightfall-sdk/internal/logger"
	"github.com/fd1az/nightfall-sdk/internal/mnemonic"
	"github.com/fd1az/nightfall-sdk/internal/monolith"
)

// Operation inputs and results.
type (
	DepositInput  = transferapp.DepositInput
	TransferInput = transferapp.TransferInput
	WithdrawInput = transferapp.WithdrawInput
	Recipient     = transferapp.Recipient
	ReceiptPair   = transferdomain.ReceiptPair
	Balances      = protocoldomain.Balances
	Commitment    = protocoldomain.Commitment
	ZkpKeySet     = protocoldomain.ZkpKeySet
)

// session is the per-user application container.
type session interface {
	monolith.Monolith
	Container() di.Container
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close() error
}

// Option customises NewUser.
type Option func(*options)

type options struct {
	log      logger.LoggerInterface
	wallet   chainapp.ExternalWallet
	dialer   ethereum.Dialer
	observer transferapp.TransitionObserver
}

// WithLogger replaces the default stderr JSON logger.
func WithLogger(log logger.LoggerInterface) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithWallet delegates signing to w when no private key is configured.
func WithWallet(w chainapp.ExternalWallet) Option {
	return func(o *options) {
		o.wallet = w
	}
}

// WithDialer replaces the go-ethereum node dialer.
func WithDialer(d ethereum.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithTransitionObserver reports every operation state change to obs.
func WithTransitionObserver(obs transferapp.TransitionObserver) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// User is one session. Each User owns its own node connection, protocol
// client and caches; nothing is shared between users.
type User struct {
	session     session
	logger      logger.LoggerInterface
	account     chainapp.Account
	keys        *protocoldomain.ZkpKeySet
	mnemonic    string
	generated   bool
	gateway     protocolapp.Gateway
	commitments *protocolapp.CommitmentService
	orch        *transferapp.Orchestrator
	closed      atomic.Bool
}

// NewUser validates credentials, connects to the node and the protocol
// service, derives the L2 keys and subscribes their viewing key. A missing
// mnemonic is generated.
func NewUser(ctx context.Context, cfg *config.Config, opts ...Option) (*User, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	}
	log := o.log

	account, err := resolveAccount(cfg.Signer.PrivateKey, o.wallet)
	if err != nil {
		return nil, err
	}
	if !account.Valid() {
		log.Warn(ctx, "no signing key or wallet configured, only off-chain operations are available")
	}

	phrase, generated, err := mnemonic.Resolve(cfg.Signer.Mnemonic)
	if err != nil {
		return nil, err
	}

	var monoOpts []monolith.Option
	if o.dialer != nil {
		monoOpts = append(monoOpts, monolith.WithConnectionOptions(ethereum.WithDialer(o.dialer)))
	}

	mono, err := monolith.New(ctx, cfg, log, monoOpts...)
	if err != nil {
		return nil, err
	}

	u := &User{
		session:   mono,
		logger:    log,
		account:   account,
		mnemonic:  phrase,
		generated: generated,
	}

	if err := u.start(ctx, cfg, o); err != nil {
		u.release()
		return nil, err
	}

	log.Info(ctx, "user session ready",
		"address", account.Address().Hex(),
		"compressed_zkp_public_key", u.keys.CompressedZkpPublicKey,
		"generated_mnemonic", generated)

	return u, nil
}

func (u *User) start(ctx context.Context, cfg *config.Config, o *options) error {
	c := u.session.Container()
	if o.observer != nil {
		c.Register(transferDI.ObserverKey, o.observer)
	}

	modules := []monolith.Module{
		&chain.Module{},
		&protocol.Module{},
		&transfer.Module{},
	}
	if err := u.session.RegisterModules(modules...); err != nil {
		return fmt.Errorf("register modules: %w", err)
	}

	// Resolve the gateway first so a failed startup can still close it.
	u.gateway = protocolDI.GetGateway(c)

	if err := u.session.StartModules(ctx, modules...); err != nil {
		return err
	}

	keys, err := u.gateway.DeriveKeys(ctx, u.mnemonic, cfg.Signer.AddressIndex)
	if err != nil {
		return err
	}
	if err := u.gateway.SubscribeIncomingViewingKeys(ctx, keys); err != nil {
		return err
	}

	u.keys = keys
	u.commitments = protocolDI.GetCommitmentService(c)
	u.orch = transferDI.GetOrchestrator(c)
	return nil
}

func resolveAccount(privateKey string, wallet chainapp.ExternalWallet) (chainapp.Account, error) {
	if privateKey != "" {
		signer, err := ethereum.NewLocalSigner(privateKey)
		if err != nil {
			return chainapp.Account{}, err
		}
		return chainapp.NewKeyAccount(signer), nil
	}
	if wallet != nil {
		return chainapp.NewWalletAccount(wallet), nil
	}
	return chainapp.Account{}, nil
}

// Address is the L1 address of the session account, zero when none.
func (u *User) Address() common.Address {
	return u.account.Address()
}

// ZkpKeys returns a copy of the derived L2 key set.
func (u *User) ZkpKeys() ZkpKeySet {
	return *u.keys
}

// Mnemonic returns the phrase the keys were derived from.
func (u *User) Mnemonic() string {
	return u.mnemonic
}

// MnemonicGenerated reports whether the phrase was created for this session.
func (u *User) MnemonicGenerated() bool {
	return u.generated
}

func (u *User) creds() transferapp.Credentials {
	return transferapp.Credentials{Account: u.account, Keys: u.keys}
}

func (u *User) guard(op string) error {
	if u.closed.Load() {
		return apperror.State(apperror.CodeSessionClosed, op)
	}
	return nil
}

// Deposit moves tokens from L1 into L2.
func (u *User) Deposit(ctx context.Context, in DepositInput) (*ReceiptPair, error) {
	if err := u.guard("deposit"); err != nil {
		return nil, err
	}
	return u.orch.Deposit(ctx, u.creds(), in)
}

// Transfer sends tokens to other L2 users.
func (u *User) Transfer(ctx context.Context, in TransferInput) (*ReceiptPair, error) {
	if err := u.guard("transfer"); err != nil {
		return nil, err
	}
	return u.orch.Transfer(ctx, u.creds(), in)
}

// Withdraw starts moving tokens from L2 back to L1.
func (u *User) Withdraw(ctx context.Context, in WithdrawInput) (*ReceiptPair, error) {
	if err := u.guard("withdraw"); err != nil {
		return nil, err
	}
	return u.orch.Withdraw(ctx, u.creds(), in)
}

// FinaliseWithdrawal completes a withdrawal. An empty hash finalises the
// most recent withdrawal of this session.
func (u *User) FinaliseWithdrawal(ctx context.Context, l2TxHash string) (*ReceiptPair, error) {
	if err := u.guard("finalise withdrawal"); err != nil {
		return nil, err
	}
	return u.orch.FinaliseWithdrawal(ctx, u.creds(), l2TxHash)
}

// WithdrawalHistory lists the L2 hashes of this session's withdrawals.
func (u *User) WithdrawalHistory() []string {
	if u.orch == nil {
		return nil
	}
	return u.orch.WithdrawalHistory()
}

// Balances returns settled L2 balances by token address.
func (u *User) Balances(ctx context.Context) (Balances, error) {
	if err := u.guard("balances"); err != nil {
		return nil, err
	}
	return u.gateway.FetchBalances(ctx, u.keys.CompressedZkpPublicKey)
}

// PendingDeposits returns deposits not yet in an L2 block.
func (u *User) PendingDeposits(ctx context.Context) (Balances, error) {
	if err := u.guard("pending deposits"); err != nil {
		return nil, err
	}
	return u.gateway.FetchPendingDeposits(ctx, u.keys.CompressedZkpPublicKey)
}

// PendingSpent returns commitments being nullified.
func (u *User) PendingSpent(ctx context.Context) (Balances, error) {
	if err := u.guard("pending spent"); err != nil {
		return nil, err
	}
	return u.gateway.FetchPendingSpent(ctx, u.keys.CompressedZkpPublicKey)
}

// Commitments lists the commitments owned by this session's key.
func (u *User) Commitments(ctx context.Context) ([]Commitment, error) {
	if err := u.guard("commitments"); err != nil {
		return nil, err
	}
	return u.commitments.List(ctx, u.keys)
}

// ExportCommitments writes the owned commitments to dir/filename.
func (u *User) ExportCommitments(ctx context.Context, dir, filename string) (int, error) {
	if err := u.guard("export commitments"); err != nil {
		return 0, err
	}
	return u.commitments.Export(ctx, u.keys, dir, filename)
}

// ImportCommitments restores commitments from dir/filename. Every entry
// must belong to this session's key.
func (u *User) ImportCommitments(ctx context.Context, dir, filename string) (int, error) {
	if err := u.guard("import commitments"); err != nil {
		return 0, err
	}
	return u.commitments.Import(ctx, dir, filename, u.keys.CompressedZkpPublicKey)
}

// ServiceHealthy asks the protocol service for its health.
func (u *User) ServiceHealthy(ctx context.Context) (bool, error) {
	if err := u.guard("health check"); err != nil {
		return false, err
	}
	return u.gateway.HealthCheck(ctx)
}

// ChainStatus reports the node connection state and last known block.
func (u *User) ChainStatus() chaindomain.ConnectionStatus {
	return u.session.Connection().Status()
}

// CurrentBlock returns the latest block number, from cache when fresh.
func (u *User) CurrentBlock(ctx context.Context) (uint64, error) {
	return u.session.Connection().CurrentBlockNumber(ctx)
}

// Close stops the connection probes and releases every session resource.
// It is safe to call more than once.
func (u *User) Close() error {
	if !u.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := u.release()
	u.logger.Info(context.Background(), "user session closed", "address", u.Address().Hex())
	return err
}

func (u *User) release() error {
	if c, ok := u.gateway.(interface{ Close() }); ok {
		c.Close()
	}
	return u.session.Close()
}
