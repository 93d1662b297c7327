// Package di is a minimal dependency-injection container: services are
// registered under string tokens as lazy factories and resolved (and cached)
// on first access. It exists to support the reference repo's monolith/module
// wiring pattern (business/*/module.go calling di.RegisterToken against a
// shared di.Container) whose container implementation was not itself part
// of the reference retrieval — only call sites and per-context token files
// were available, so this package is authored from that inferred shape
// rather than adapted from a teacher file (see DESIGN.md).
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container: resolve an
// already-registered token to its (possibly lazily built) instance.
type ServiceRegistry interface {
	Get(token string) any
}

// Container is the read/write side used during module registration.
type Container interface {
	ServiceRegistry
	// Register installs a factory for token. The factory runs at most once,
	// the first time the token is resolved via Get.
	Register(token string, factory func(ServiceRegistry) any)
	// Set installs an already-built value under token, bypassing lazy
	// construction — used for values available before any module registers
	// (config, logger).
	Set(token string, value any)
}

type container struct {
	mu        sync.Mutex
	factories map[string]func(ServiceRegistry) any
	instances map[string]any
	building  map[string]bool
}

// NewContainer returns an empty container.
func NewContainer() Container {
	return &container{
		factories: make(map[string]func(ServiceRegistry) any),
		instances: make(map[string]any),
		building:  make(map[string]bool),
	}
}

func (c *container) Register(token string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[token] = factory
}

func (c *container) Set(token string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[token] = value
}

func (c *container) Get(token string) any {
	c.mu.Lock()
	if v, ok := c.instances[token]; ok {
		c.mu.Unlock()
		return v
	}
	factory, ok := c.factories[token]
	if !ok {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: unregistered token %q", token))
	}
	if c.building[token] {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: cyclic dependency resolving token %q", token))
	}
	c.building[token] = true
	c.mu.Unlock()

	v := factory(c)

	c.mu.Lock()
	c.instances[token] = v
	c.building[token] = false
	c.mu.Unlock()
	return v
}

// RegisterToken registers a typed factory under token. It exists so call
// sites can write `di.RegisterToken(c, token, func(sr di.ServiceRegistry) T
// {...})` instead of hand-writing the `any` type erasure every time.
func RegisterToken[T any](c Container, token string, factory func(sr ServiceRegistry) T) {
	c.Register(token, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// Get resolves token and asserts it to T, matching the shape of the
// per-context GetX(sr) accessors built on top of this package.
func Get[T any](sr ServiceRegistry, token string) T {
	return sr.Get(token).(T)
}
