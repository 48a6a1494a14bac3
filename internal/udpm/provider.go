// Package udpm implements the udpm provider: an unreliable UDP
// multicast protocol where every participant joins the same multicast
// group and both publishes and receives on one socket.
package udpm

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/Pluviolithic/lcm-go/internal/core"
	"github.com/Pluviolithic/lcm-go/internal/logging"
	"github.com/Pluviolithic/lcm-go/internal/metrics"
)

const (
	schemeName     = "udpm"
	defaultAddress = "239.255.76.76"
	defaultPort    = 7667
	defaultTTL     = 1
)

// ttlQuery matches a leading "ttl=<digits>" in the raw query string.
// This is a match-at-start, not a query-parameter lookup: "ttl=2&x=1"
// parses but "x=1&ttl=2" does not, since ttl must be the first thing in
// the query string.
var ttlQuery = regexp.MustCompile(`^ttl=(\d+)`)

// Config holds the tunables a Provider threads into every Connection it
// creates. A zero field falls back to the corresponding package default.
type Config struct {
	// QueueCapacity is the bounded size of each Subscription's delivery
	// queue. Falls back to subscription.DefaultQueueCapacity.
	QueueCapacity int
	// PollInterval is how often the receiver wakes to re-check for
	// teardown between datagrams. Falls back to DefaultPollInterval.
	PollInterval time.Duration
	// FragmentExpiry is how long an incomplete fragment reassembly
	// buffer is kept before being dropped. Falls back to
	// DefaultFragmentExpiry.
	FragmentExpiry time.Duration
}

// Provider is the udpm core.Provider implementation.
type Provider struct {
	metrics *metrics.Set
	cfg     Config
}

// NewProvider constructs a udpm Provider using the process-wide metrics
// set and package defaults.
func NewProvider() *Provider {
	return NewProviderWithConfig(Config{})
}

// NewProviderWithConfig constructs a udpm Provider with an explicit
// Config.
func NewProviderWithConfig(cfg Config) *Provider {
	return &Provider{metrics: metrics.Default(), cfg: cfg}
}

// Connect parses a udpm://[multicast-address][:port][?ttl=<n>] URL,
// joins the multicast group, and returns a live Connection.
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

	ip := net.ParseIP(address)
	if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("%w: %q is not a valid IPv4 multicast address", core.ErrInvalidArgument, address)
	}

	port := defaultPort
	if portStr := parsed.Port(); portStr != "" {
		parsedPort, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid port %q", core.ErrInvalidArgument, portStr)
		}
		port = parsedPort
	}

	ttl := defaultTTL
	if m := ttlQuery.FindStringSubmatch(parsed.RawQuery); m != nil {
		parsedTTL, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ttl %q", core.ErrInvalidArgument, m[1])
		}
		ttl = parsedTTL
	}

	log := logging.New(logging.Config{Component: "udpm"})

	return open(ip, port, ttl, p.cfg.QueueCapacity, p.cfg.PollInterval, p.cfg.FragmentExpiry, p.metrics, log)
}
