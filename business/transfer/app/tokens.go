package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/nightfall-sdk/business/transfer/domain"
	"github.com/fd1az/nightfall-sdk/internal/cache"
	"github.com/fd1az/nightfall-sdk/internal/logger"
)

// TokenResolver resolves token contracts once per session. Only fully
// resolved tokens are cached; a failed resolution leaves no trace.
type TokenResolver struct {
	inspector TokenInspector
	cache     *cache.Cache[common.Address, domain.Token]
	logger    logger.LoggerInterface

	// resolveMu is the single writer path into the cache.
	resolveMu sync.Mutex
}

// NewTokenResolver creates a new token resolver.
func NewTokenResolver(inspector TokenInspector, log logger.LoggerInterface) *TokenResolver {
	return &TokenResolver{
		inspector: inspector,
		cache:     cache.New[common.Address, domain.Token](0),
		logger:    log,
	}
}

// Resolve returns the cached token or detects its standard and decimals.
func (r *TokenResolver) Resolve(ctx context.Context, addr common.Address) (domain.Token, error) {
	if tok, ok := r.cache.Get(ctx, addr); ok {
		return tok, nil
	}

	r.resolveMu.Lock()
	defer r.resolveMu.Unlock()

	if tok, ok := r.cache.Get(ctx, addr); ok {
		return tok, nil
	}

	std, err := r.inspector.DetectStandard(ctx, addr)
	if err != nil {
		return domain.Token{}, err
	}

	tok := domain.Token{Address: addr, Standard: std}
	if std == domain.ERC20 {
		d, err := r.inspector.Decimals(ctx, addr)
		if err != nil {
			return domain.Token{}, err
		}
		tok.Decimals = d
	}

	r.cache.Set(ctx, addr, tok, 0)
	r.logger.Debug(ctx, "token resolved", "token", addr.Hex(), "standard", std, "decimals", tok.Decimals)
	return tok, nil
}

// Cached reports whether addr has been resolved.
func (r *TokenResolver) Cached(ctx context.Context, addr common.Address) bool {
	_, ok := r.cache.Get(ctx, addr)
	return ok
}
