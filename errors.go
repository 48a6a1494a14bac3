package lcm

import "github.com/Pluviolithic/lcm-go/internal/core"

// Error kinds, per spec: construction-time and argument-validation
// errors surface to the caller; runtime transport errors never
// propagate past a Connection's boundary.
var (
	// ErrInvalidArgument covers a URL with no scheme, a scheme/provider
	// mismatch, a malformed multicast address, a udpm payload too large
	// to fragment (more than 65,535 fragments), or registering a
	// provider name that already exists without override.
	ErrInvalidArgument = core.ErrInvalidArgument

	// ErrNotRegistered means the registry has no provider for the
	// scheme in the URL passed to Connect.
	ErrNotRegistered = core.ErrNotRegistered

	// ErrNotConnected is returned by Publish once a Connection has torn
	// down.
	ErrNotConnected = core.ErrNotConnected

	// ErrHandshakeFailure means a connection could not be established:
	// the tcpq dial or client/server handshake exchange failed or the
	// magic/version reply did not match, or the udpm socket could not be
	// bound, joined to its multicast group, or configured.
	ErrHandshakeFailure = core.ErrHandshakeFailure
)
