// Package di is a minimal dependency injection container with lazily built,
// per-container singletons and typed tokens.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves services by name.
type ServiceRegistry interface {
	Get(name string) any
}

// Container registers services and resolves them.
type Container interface {
	ServiceRegistry
	Register(name string, service any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
	Has(name string) bool
}

type registration struct {
	factory  func(ServiceRegistry) any
	once     sync.Once
	instance any
}

type container struct {
	mu    sync.RWMutex
	items map[string]*registration
}

// NewContainer returns an empty container.
func NewContainer() Container {
	return &container{items: make(map[string]*registration)}
}

func (c *container) Register(name string, service any) {
	reg := &registration{instance: service}
	reg.once.Do(func() {})

	c.mu.Lock()
	c.items[name] = reg
	c.mu.Unlock()
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	c.items[name] = &registration{factory: factory}
	c.mu.Unlock()
}

func (c *container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[name]
	return ok
}

// Get panics on unknown names; registration happens at startup so a miss is a wiring bug.
func (c *container) Get(name string) any {
	c.mu.RLock()
	reg, ok := c.items[name]
	c.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("di: service %q not registered", name))
	}

	reg.once.Do(func() {
		reg.instance = reg.factory(c)
	})
	return reg.instance
}

// Token names a service of type T.
type Token[T any] struct {
	name string
}

// NewToken declares a typed token.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the registration key.
func (t Token[T]) Name() string {
	return t.name
}

// RegisterToken registers a typed factory.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a typed service.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	v, ok := sr.Get(token.name).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type", token.name))
	}
	return v
}
