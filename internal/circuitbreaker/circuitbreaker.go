// Package circuitbreaker wraps sony/gobreaker with typed results and
// conversion of breaker rejections into application errors.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/nightfall-sdk/internal/apperror"
)

// Config holds breaker settings.
type Config struct {
	Name string

	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval is the cyclic period of the closed state after which counts reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker when reached.
	ConsecutiveFailures uint32

	// IsSuccessful classifies errors that must not count as failures.
	// A nil error always counts as a success.
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns settings tuned for remote calls made from a user session.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// CircuitBreaker guards calls returning T.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New constructs a breaker from cfg.
func New[T any](cfg Config) *CircuitBreaker[T] {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	var isSuccessful func(error) bool
	if cfg.IsSuccessful != nil {
		isSuccessful = func(err error) bool {
			return err == nil || cfg.IsSuccessful(err)
		}
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  isSuccessful,
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn unless the breaker rejects it. Rejections surface as
// CodeCircuitOpen errors; errors returned by fn pass through untouched.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := c.cb.Execute(fn)
	if err != nil && (errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)) {
		var zero T
		return zero, apperror.New(apperror.CodeCircuitOpen,
			apperror.WithCause(err),
			apperror.WithContext(c.cb.Name()))
	}
	return result, err
}

// State reports the current breaker state.
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}

// Name returns the breaker name.
func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}

// IsBusinessError reports errors that reflect the caller's input rather than
// the health of the remote side. Breakers use it as IsSuccessful.
func IsBusinessError(err error) bool {
	if err == nil {
		return true
	}
	kind := apperror.KindOf(err)
	return kind == apperror.KindValidation || kind == apperror.KindState ||
		apperror.GetCode(err) == apperror.CodeNoSuitableCommitments
}
