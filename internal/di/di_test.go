package di_test

import (
	"testing"

	"github.com/fd1az/nightfall-sdk/internal/di"
)

type greeter struct{ name string }

func TestContainer_FactoryIsSingleton(t *testing.T) {
	c := di.NewContainer()
	c.Register("name", "alice")

	token := di.NewToken[*greeter]("greeter")
	calls := 0
	di.RegisterToken(c, token, func(sr di.ServiceRegistry) *greeter {
		calls++
		return &greeter{name: sr.Get("name").(string)}
	})

	first := di.GetToken(c, token)
	second := di.GetToken(c, token)

	if first != second {
		t.Error("expected the same instance on every resolution")
	}
	if calls != 1 {
		t.Errorf("expected factory to run once, ran %d times", calls)
	}
	if first.name != "alice" {
		t.Errorf("expected dependency to be injected, got %q", first.name)
	}
}

func TestContainer_UnknownServicePanics(t *testing.T) {
	c := di.NewContainer()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unregistered service")
		}
	}()
	c.Get("missing")
}

func TestContainer_Has(t *testing.T) {
	c := di.NewContainer()
	c.Register("config", struct{}{})

	if !c.Has("config") {
		t.Error("expected registered service to be reported")
	}
	if c.Has("logger") {
		t.Error("expected unknown service to be absent")
	}
}
