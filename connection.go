package lcm

import "github.com/Pluviolithic/lcm-go/internal/core"

// Connection is a live transport handle bound to one provider. It owns
// the underlying socket, the set of live Subscriptions, and a
// background receiver goroutine. A Connection transitions from live to
// torn-down exactly once, never back.
//
//   - IsConnected reports whether the connection is still live.
//   - Publish sends data on the named channel. On a torn-down
//     connection it returns ErrNotConnected. A transient I/O error
//     during the send tears the connection down and returns nil:
//     publish is best-effort.
//   - Subscribe registers callback for every published message whose
//     channel matches the channel pattern (compiled with regexp.Compile,
//     matched from the start of the string — a partial match is
//     sufficient). It returns (nil, nil) if the connection is already
//     torn down. It returns a non-nil error only if the pattern fails to
//     compile; an I/O error while registering the subscription tears the
//     connection down and also returns (nil, nil).
//   - Disconnect tears the connection down: idempotent, it marks every
//     live Subscription inactive, releases the transport, and waits for
//     the receiver goroutine and every subscription worker to exit
//     before returning.
type Connection = core.Connection
