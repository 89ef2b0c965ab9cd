package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// Registration errors.
var (
	ErrSealed          = errors.New("server: registry is sealed")
	ErrDuplicateMethod = errors.New("server: method already registered")
	ErrEmptyMethodName = errors.New("server: method name is empty")
	ErrNilFactory      = errors.New("server: factory is nil")
)

// Resolver maps a method name to the factory that builds its handler.
// A failed lookup must report protocol.ErrMethodNotFound.
type Resolver interface {
	Resolve(name string) (Factory, error)
}

// Server is the handler registry. Names are matched exactly and
// case-sensitively. Once sealed the registry is immutable and safe for
// concurrent lookups.
type Server struct {
	mu sync.RWMutex

	methods map[string]Factory
	sealed  bool
}

// New creates an empty registry.
func New() *Server {
	return &Server{
		methods: make(map[string]Factory),
	}
}

// Register adds a method. It fails if the registry is sealed, the name is
// empty or already taken, or the factory is nil.
func (s *Server) Register(name string, factory Factory) error {
	if name == "" {
		return ErrEmptyMethodName
	}
	if factory == nil {
		return fmt.Errorf("%w: %q", ErrNilFactory, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrSealed, name)
	}
	if _, exists := s.methods[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateMethod, name)
	}
	s.methods[name] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (s *Server) MustRegister(name string, factory Factory) {
	if err := s.Register(name, factory); err != nil {
		panic(err)
	}
}

// Method starts building a registration for the given name.
func (s *Server) Method(name string) *MethodBuilder {
	return &MethodBuilder{name: name, server: s}
}

// Resolve returns the factory registered under name.
func (s *Server) Resolve(name string) (Factory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	factory, ok := s.methods[name]
	if !ok {
		return nil, protocol.NewMethodNotFound(name)
	}
	return factory, nil
}

// Seal makes the registry immutable. Sealing twice is a no-op.
func (s *Server) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
}

// Sealed reports whether the registry has been sealed.
func (s *Server) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// Methods returns the registered method names in sorted order.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MethodBuilder provides a fluent API for registering methods.
type MethodBuilder struct {
	name   string
	server *Server
	err    error
}

// Handler registers the factory under the builder's name.
func (b *MethodBuilder) Handler(factory Factory) *MethodBuilder {
	if b.err != nil {
		return b
	}
	b.err = b.server.Register(b.name, factory)
	return b
}

// Func registers a single-stage handler. The params are passed through
// unchanged, so any failure fn returns is an execution failure.
func (b *MethodBuilder) Func(fn func(ctx context.Context, params Params) (any, error)) *MethodBuilder {
	return b.Handler(func(params Params) (Handler, error) {
		return ExecuteFunc(func(ctx context.Context) (any, error) {
			return fn(ctx, params)
		}), nil
	})
}

// Err returns the registration error, if any.
func (b *MethodBuilder) Err() error {
	return b.err
}
