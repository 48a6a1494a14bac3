package tcpq

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Pluviolithic/lcm-go/internal/core"
	"github.com/Pluviolithic/lcm-go/internal/metrics"
	"github.com/Pluviolithic/lcm-go/internal/subscription"
	"github.com/rs/zerolog"
)

// Connection is the tcpq core.Connection implementation. Outbound
// writes are serialized through writeMu; the subscriptions set is
// guarded by subsMu; exactly one receiver goroutine reads inbound
// frames.
type Connection struct {
	conn    net.Conn
	reader  *bufio.Reader
	metrics *metrics.Set
	log     zerolog.Logger

	queueCapacity int

	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   map[*subscription.Subscription]struct{}

	disconnected atomic.Bool
	receiverDone chan struct{}
}

func dial(address string, port, queueCapacity int, ms *metrics.Set, log zerolog.Logger) (*Connection, error) {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", address, port), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s:%d: %v", core.ErrHandshakeFailure, address, port, err)
	}

	if err := performHandshake(conn); err != nil {
		conn.Close()
		if ms != nil {
			ms.HandshakeFailures.Inc()
		}
		return nil, fmt.Errorf("%w: %v", core.ErrHandshakeFailure, err)
	}

	c := &Connection{
		conn:          conn,
		reader:        bufio.NewReader(conn),
		metrics:       ms,
		log:           log,
		queueCapacity: queueCapacity,
		subs:          make(map[*subscription.Subscription]struct{}),
		receiverDone:  make(chan struct{}),
	}

	if ms != nil {
		ms.ConnectionsActive.WithLabelValues(schemeName).Inc()
	}

	go c.receiveLoop()

	log.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("tcpq connected")

	return c, nil
}

func performHandshake(conn net.Conn) error {
	if _, err := conn.Write(handshakeClientBytes()); err != nil {
		return fmt.Errorf("sending client handshake: %w", err)
	}

	return readHandshakeReply(conn)
}

// IsConnected reports whether the connection has not torn down.
func (c *Connection) IsConnected() bool {
	return !c.disconnected.Load()
}

// Publish writes one PUBLISH frame. Best-effort: an I/O error tears the
// connection down and returns nil.
func (c *Connection) Publish(channel string, data []byte) error {
	if !c.IsConnected() {
		return core.ErrNotConnected
	}

	frame := encodeFrame(msgPublish, channel, data)

	c.writeMu.Lock()
	_, err := c.conn.Write(frame)
	c.writeMu.Unlock()

	if err != nil {
		c.recordTransportError(err)
		c.tearDown()
	} else if c.metrics != nil {
		c.metrics.MessagesPublished.WithLabelValues(schemeName).Inc()
	}

	return nil
}

// Subscribe registers a new Subscription, adds it to the live set, then
// writes a SUBSCRIBE frame.
func (c *Connection) Subscribe(channel string, callback core.Callback) (core.Subscription, error) {
	if !c.IsConnected() {
		return nil, nil
	}

	sub, err := subscription.New(channel, callback, c.removeSubscription, schemeName, c.queueCapacity, c.metrics, c.log)
	if err != nil {
		return nil, err
	}

	c.subsMu.Lock()
	c.subs[sub] = struct{}{}
	c.subsMu.Unlock()

	frame := encodeFrame(msgSubscribe, channel, nil)

	c.writeMu.Lock()
	_, err = c.conn.Write(frame)
	c.writeMu.Unlock()

	if err != nil {
		c.recordTransportError(err)
		c.tearDown()
		return nil, nil
	}

	return sub, nil
}

// Disconnect idempotently tears the connection down: flips the live
// flag, shuts down and closes the socket, snapshots and clears the
// subscription set, unsubscribes each snapshotted subscription, and
// waits for the receiver goroutine to exit before returning.
func (c *Connection) Disconnect() {
	c.tearDown()
	<-c.receiverDone
}

// tearDown performs the teardown side effects exactly once; it never
// blocks on the receiver goroutine, so it is safe to call from the
// receiver goroutine itself (on read error) as well as from Disconnect.
func (c *Connection) tearDown() {
	if !c.disconnected.CompareAndSwap(false, true) {
		return
	}

	// Shut down both directions before closing: this is what unblocks a
	// read currently in progress on the receiver goroutine.
	if tc, ok := c.conn.(*net.TCPConn); ok {
		_ = tc.CloseRead()
		_ = tc.CloseWrite()
	}
	_ = c.conn.Close()

	c.subsMu.Lock()
	subs := make([]*subscription.Subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.subs = make(map[*subscription.Subscription]struct{})
	c.subsMu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}

	if c.metrics != nil {
		c.metrics.ConnectionsActive.WithLabelValues(schemeName).Dec()
	}

	c.log.Debug().Msg("tcpq disconnected")
}

// receiveLoop reads inbound delivery frames and fans them out to every
// live subscription until an I/O error occurs, then tears the
// connection down.
func (c *Connection) receiveLoop() {
	defer close(c.receiverDone)

	for c.IsConnected() {
		channel, data, err := readInboundFrame(c.reader)
		if err != nil {
			if c.IsConnected() {
				c.recordTransportError(err)
			}
			break
		}

		c.subsMu.Lock()
		for s := range c.subs {
			s.Receive(channel, data)
		}
		c.subsMu.Unlock()
	}

	c.tearDown()
}

// removeSubscription is the Subscription's unsubscribe hook: it removes
// the subscription from the live set, then writes an UNSUBSCRIBE frame.
func (c *Connection) removeSubscription(s *subscription.Subscription) {
	c.subsMu.Lock()
	delete(c.subs, s)
	c.subsMu.Unlock()

	if !c.IsConnected() {
		return
	}

	frame := encodeFrame(msgUnsubscribe, s.Channel(), nil)

	c.writeMu.Lock()
	_, err := c.conn.Write(frame)
	c.writeMu.Unlock()

	if err != nil {
		c.recordTransportError(err)
		c.tearDown()
	}
}

func (c *Connection) recordTransportError(err error) {
	if c.metrics != nil {
		c.metrics.TransportErrors.WithLabelValues(schemeName).Inc()
	}
	c.log.Warn().Err(err).Msg("tcpq transport error")
}
