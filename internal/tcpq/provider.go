// Package tcpq implements the tcpq provider: a TCP "queue relay"
// protocol where publish, subscribe, unsubscribe and inbound delivery
// all share one framed stream, bootstrapped by an 8-byte magic+version
// handshake.
package tcpq

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/Pluviolithic/lcm-go/internal/core"
	"github.com/Pluviolithic/lcm-go/internal/logging"
	"github.com/Pluviolithic/lcm-go/internal/metrics"
	"github.com/Pluviolithic/lcm-go/internal/subscription"
)

const (
	schemeName     = "tcpq"
	defaultAddress = "127.0.0.1"
	defaultPort    = 7700
)

// Config holds the tunables a Provider threads into every Connection it
// creates.
type Config struct {
	// QueueCapacity is the bounded size of each Subscription's delivery
	// queue. A value <= 0 falls back to subscription.DefaultQueueCapacity.
	QueueCapacity int
}

// Provider is the tcpq core.Provider implementation.
type Provider struct {
	metrics       *metrics.Set
	queueCapacity int
}

// NewProvider constructs a tcpq Provider using the process-wide metrics
// set and package defaults.
func NewProvider() *Provider {
	return NewProviderWithConfig(Config{})
}

// NewProviderWithConfig constructs a tcpq Provider with an explicit
// Config.
func NewProviderWithConfig(cfg Config) *Provider {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = subscription.DefaultQueueCapacity
	}
	return &Provider{metrics: metrics.Default(), queueCapacity: capacity}
}

// Connect parses a tcpq://[host][:port] URL, establishes a TCP
// connection to (host, port), and performs the client/server handshake.
func (p *Provider) Connect(rawURL string) (core.Connection, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}

	if parsed.Scheme != schemeName {
		return nil, fmt.Errorf("%w: expected scheme %q, got %q", core.ErrInvalidArgument, schemeName, parsed.Scheme)
	}

	address := parsed.Hostname()
	if address == "" {
		address = defaultAddress
	}

	port := defaultPort
	if portStr := parsed.Port(); portStr != "" {
		parsedPort, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid port %q", core.ErrInvalidArgument, portStr)
		}
		port = parsedPort
	}

	log := logging.New(logging.Config{Component: "tcpq"})

	return dial(address, port, p.queueCapacity, p.metrics, log)
}
