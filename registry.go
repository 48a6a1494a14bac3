package lcm

import (
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/Pluviolithic/lcm-go/internal/core"
	"github.com/Pluviolithic/lcm-go/internal/tcpq"
	"github.com/Pluviolithic/lcm-go/internal/udpm"
)

// Registry maps a URL scheme to the Provider that handles it and
// dispatches Connect calls to the matching provider. A zero Registry is
// not usable; construct one with NewRegistry.
type Registry struct {
	mu        sync.Mutex
	providers map[string]core.Provider
}

// NewRegistry returns a Registry with the tcpq and udpm providers
// already registered under their canonical scheme names. Pass Option
// values to override process-wide tunables (subscription queue
// capacity, udpm poll interval, udpm fragment-buffer expiry); with no
// options every provider uses its package defaults.
func NewRegistry(opts ...Option) *Registry {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{providers: make(map[string]core.Provider)}
	_ = r.RegisterProvider("tcpq", func() Provider {
		return tcpq.NewProviderWithConfig(tcpq.Config{
			QueueCapacity: o.subscriptionQueueCapacity,
		})
	}, false)
	_ = r.RegisterProvider("udpm", func() Provider {
		return udpm.NewProviderWithConfig(udpm.Config{
			QueueCapacity:  o.subscriptionQueueCapacity,
			PollInterval:   o.udpmPollInterval,
			FragmentExpiry: o.udpmFragmentExpiry,
		})
	}, false)
	return r
}

// RegisterProvider associates name with a new Provider produced by
// factory. It fails with ErrInvalidArgument if name is already
// registered and override is false.
func (r *Registry) RegisterProvider(name string, factory ProviderFactory, override bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists && !override {
		return fmt.Errorf("%w: provider %q already registered", ErrInvalidArgument, name)
	}

	r.providers[name] = factory()
	return nil
}

// Connect parses rawURL, looks up the provider for its scheme, and
// forwards to it.
//
// Returns ErrInvalidArgument if rawURL has no scheme, ErrNotRegistered
// if the scheme is unknown. If the provider's Connect attempt fails with
// a recoverable error (ErrInvalidArgument or ErrHandshakeFailure),
// Connect returns (nil, nil): the caller sees an absent connection
// rather than an error, so "could not connect right now" is uniform
// across providers. Any other error from the provider propagates.
func (r *Registry) Connect(rawURL string) (Connection, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("%w: no scheme in %q", ErrInvalidArgument, rawURL)
	}

	r.mu.Lock()
	provider, ok := r.providers[parsed.Scheme]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, parsed.Scheme)
	}

	conn, err := provider.Connect(rawURL)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrHandshakeFailure) {
			return nil, nil
		}
		return nil, err
	}

	return conn, nil
}
