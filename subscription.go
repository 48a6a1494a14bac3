package lcm

import "github.com/Pluviolithic/lcm-go/internal/core"

// Subscription is a channel pattern plus delivery pipeline registered
// with a Connection. Messages whose channel matches the pattern are
// delivered to the callback, in enqueue order, on a dedicated worker
// goroutine isolated from the Connection's receiver.
//
//   - IsActive reports whether the subscription still delivers messages.
//   - Channel returns the original pattern string the subscription was
//     created with (not the compiled regular expression).
//   - Unsubscribe idempotently deactivates the subscription, notifies
//     the owning Connection, and waits for the delivery worker to drain
//     any already-queued messages and exit.
type Subscription = core.Subscription
