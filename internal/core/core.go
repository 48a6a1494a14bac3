// Package core defines the interfaces and errors shared between the
// root lcm package (the public front door) and the protocol provider
// packages (internal/tcpq, internal/udpm). It exists only to break the
// import cycle that would otherwise arise from the providers needing
// the Connection/Subscription/Provider interfaces while the root
// package needs to import the providers to register them by default;
// the root package re-exports everything here as type aliases, so to
// callers of the module it is exactly as if these types were defined at
// the root.
package core

import "errors"

// Message is an opaque payload tagged with the channel it was published
// on.
type Message struct {
	Channel string
	Data    []byte
}

// Callback is invoked with the channel and payload of a message
// matching a Subscription's pattern.
type Callback func(channel string, data []byte)

// Connection is a live transport handle bound to one provider.
type Connection interface {
	IsConnected() bool
	Publish(channel string, data []byte) error
	Subscribe(channel string, callback Callback) (Subscription, error)
	Disconnect()
}

// Subscription is a channel pattern plus delivery pipeline registered
// with a Connection.
type Subscription interface {
	IsActive() bool
	Channel() string
	Unsubscribe()
}

// Provider implements one wire protocol, selected by URL scheme.
type Provider interface {
	Connect(url string) (Connection, error)
}

// ProviderFactory constructs a fresh Provider instance.
type ProviderFactory func() Provider

// Error kinds, per spec: construction-time and argument-validation
// errors surface to the caller; runtime transport errors never
// propagate past a Connection's boundary.
var (
	ErrInvalidArgument  = errors.New("lcm: invalid argument")
	ErrNotRegistered    = errors.New("lcm: no such provider registered")
	ErrNotConnected     = errors.New("lcm: not connected")
	ErrHandshakeFailure = errors.New("lcm: handshake failure")
)
