// Package subscription implements the Subscription machinery shared by
// every protocol provider: a compiled channel regex, a bounded delivery
// queue, and a dedicated worker goroutine that isolates user callbacks
// from the network receiver. Both tcpq and udpm connections construct
// their Subscriptions from here instead of duplicating the logic.
package subscription

import (
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/Pluviolithic/lcm-go/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultQueueCapacity is the bounded size of a Subscription's delivery
// queue: large enough to absorb a burst without dropping under normal
// scheduling, small enough to bound memory under a stalled callback.
const DefaultQueueCapacity = 8192

// Subscription is the concrete, protocol-agnostic implementation backing
// both internal/tcpq's and internal/udpm's public Subscription value.
// It is safe for concurrent use.
type Subscription struct {
	channel  string
	regex    *regexp.Regexp
	callback func(channel string, data []byte)
	onRemove func(*Subscription)
	provider string
	metrics  *metrics.Set
	log      zerolog.Logger

	queue    chan *queuedMessage
	inactive atomic.Bool
	done     chan struct{}
	once     sync.Once
}

type queuedMessage struct {
	channel string
	data    []byte
}

// New compiles pattern and starts the subscription's worker goroutine.
// onRemove is called exactly once, from Unsubscribe, to let the owning
// Connection drop its reference (and, for tcpq, write the UNSUBSCRIBE
// frame).
// queueCapacity sizes the delivery queue; a value <= 0 falls back to
// DefaultQueueCapacity.
func New(
	pattern string,
	callback func(channel string, data []byte),
	onRemove func(*Subscription),
	provider string,
	queueCapacity int,
	ms *metrics.Set,
	log zerolog.Logger,
) (*Subscription, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}

	s := &Subscription{
		channel:  pattern,
		regex:    regex,
		callback: callback,
		onRemove: onRemove,
		provider: provider,
		metrics:  ms,
		log:      log,
		queue:    make(chan *queuedMessage, queueCapacity),
		done:     make(chan struct{}),
	}

	if ms != nil {
		ms.SubscriptionsActive.WithLabelValues(provider).Inc()
	}

	go s.worker()

	return s, nil
}

// Receive filters an inbound message by channel pattern and, on a
// match, enqueues it for delivery. A match only has to start at
// position 0 of the channel name, not cover the whole string, so
// FindStringIndex is used instead of MatchString. Dropped silently if
// inactive or non-matching; dropped (and counted) if the queue is full.
func (s *Subscription) Receive(channel string, data []byte) {
	if !s.IsActive() {
		return
	}

	loc := s.regex.FindStringIndex(channel)
	if loc == nil || loc[0] != 0 {
		return
	}

	select {
	case s.queue <- &queuedMessage{channel: channel, data: data}:
	default:
		if s.metrics != nil {
			s.metrics.QueueDropped.WithLabelValues(s.provider).Inc()
		}
		s.log.Warn().Str("channel", channel).Msg("subscription queue full, dropping message")
	}
}

// IsActive reports whether Unsubscribe has not yet run.
func (s *Subscription) IsActive() bool {
	return !s.inactive.Load()
}

// Channel returns the original pattern string.
func (s *Subscription) Channel() string {
	return s.channel
}

// Unsubscribe idempotently deactivates the subscription, invokes
// onRemove, enqueues the worker's sentinel, and waits for the worker to
// exit.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.inactive.Store(true)

		if s.metrics != nil {
			s.metrics.SubscriptionsActive.WithLabelValues(s.provider).Dec()
		}

		if s.onRemove != nil {
			s.onRemove(s)
		}

		s.queue <- nil // sentinel
		<-s.done
	})
}

func (s *Subscription) worker() {
	defer close(s.done)

	for msg := range s.queue {
		if msg == nil {
			return
		}

		s.callback(msg.channel, msg.data)

		if s.metrics != nil {
			s.metrics.MessagesDelivered.WithLabelValues(s.provider).Inc()
		}
	}
}
