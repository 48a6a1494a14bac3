// Package lcm is a pluggable publish/subscribe client compatible with two
// wire protocols from a lightweight-communications-and-marshalling
// ecosystem: a TCP queue relay (tcpq) and a UDP multicast transport
// (udpm). Peers exchange opaque byte payloads tagged with ASCII channel
// names; subscribers receive messages on channels whose name matches a
// regular expression they supplied.
//
// Wire protocols live in internal packages and register themselves with
// a Registry via their Provider implementations; this package is the
// front door plus the shared types every provider implements.
package lcm

import "github.com/Pluviolithic/lcm-go/internal/core"

// Message is an opaque payload tagged with the channel it was published
// on. It flows from a Connection's receiver, through matching
// Subscriptions' delivery queues, to user callbacks.
type Message = core.Message

// Callback is invoked with the channel and payload of a message
// matching a Subscription's pattern. Callbacks are expected to be
// non-blocking; while a slow callback runs, its own Subscription's
// bounded queue fills, and once it is full further messages for that
// Subscription are dropped (and counted). A callback is never called
// concurrently with itself.
type Callback = core.Callback
