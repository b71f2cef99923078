package circuitbreaker_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/circuitbreaker"
)

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("test")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour
	cb := circuitbreaker.New[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected underlying error, got %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Errorf("expected CIRCUIT_OPEN, got %v", err)
	}
}

func TestCircuitBreaker_BusinessErrorsDoNotTrip(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("test")
	cfg.ConsecutiveFailures = 1
	cfg.IsSuccessful = circuitbreaker.IsBusinessError
	cb := circuitbreaker.New[string](cfg)

	invalid := apperror.New(apperror.CodeInvalidValue)
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (string, error) { return "", invalid }); apperror.GetCode(err) != apperror.CodeInvalidValue {
			t.Fatalf("expected validation error to pass through, got %v", err)
		}
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_ReturnsResult(t *testing.T) {
	cb := circuitbreaker.New[string](circuitbreaker.DefaultConfig("ok"))

	got, err := cb.Execute(func() (string, error) { return "value", nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "value" {
		t.Errorf("expected value, got %q", got)
	}
	if cb.Name() != "ok" {
		t.Errorf("expected name ok, got %q", cb.Name())
	}
}

func TestCircuitBreaker_SuccessesNeverTrip(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("reads")
	cfg.ConsecutiveFailures = 2
	// A classifier that only looks at non-nil errors.
	cfg.IsSuccessful = func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "reverted")
	}
	cb := circuitbreaker.New[int](cfg)

	for i := 0; i < 10; i++ {
		if _, err := cb.Execute(func() (int, error) { return i, nil }); err != nil {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected closed state after successes, got %s", cb.State())
	}
}
