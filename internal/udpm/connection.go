package udpm

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Pluviolithic/lcm-go/internal/core"
	"github.com/Pluviolithic/lcm-go/internal/metrics"
	"github.com/Pluviolithic/lcm-go/internal/subscription"
	"github.com/Pluviolithic/lcm-go/internal/wire"
	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// DefaultPollInterval is how often the receiver wakes to re-check for
// teardown between datagrams, absent an explicit Config.PollInterval.
const DefaultPollInterval = time.Second

// DefaultFragmentExpiry is how long an incomplete fragment reassembly
// buffer is kept before being dropped, absent an explicit
// Config.FragmentExpiry.
const DefaultFragmentExpiry = 30 * time.Second

// Connection is the udpm core.Connection implementation. One socket
// serves both publish and receive; outbound writes (and the sequence
// counter) are serialized through writeMu; the subscriptions set is
// guarded by subsMu; the fragments map is touched only by the single
// receiver goroutine and needs no lock of its own.
type Connection struct {
	pc   net.PacketConn
	mc   *ipv4.PacketConn
	dest *net.UDPAddr

	metrics *metrics.Set
	log     zerolog.Logger

	queueCapacity  int
	pollInterval   time.Duration
	fragmentExpiry time.Duration

	writeMu  sync.Mutex
	sequence uint32

	subsMu sync.Mutex
	subs   map[*subscription.Subscription]struct{}

	fragments map[fragmentBufferKey]*fragmentBuffer

	disconnected atomic.Bool
	receiverDone chan struct{}
}

func open(
	group net.IP,
	port, ttl, queueCapacity int,
	pollInterval, fragmentExpiry time.Duration,
	ms *metrics.Set,
	log zerolog.Logger,
) (*Connection, error) {
	if queueCapacity <= 0 {
		queueCapacity = subscription.DefaultQueueCapacity
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if fragmentExpiry <= 0 {
		fragmentExpiry = DefaultFragmentExpiry
	}

	lc := net.ListenConfig{Control: setReuseAddrPort}

	addr := fmt.Sprintf("%s:%d", group.String(), port)
	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: binding %s: %v", core.ErrHandshakeFailure, addr, err)
	}

	mc := ipv4.NewPacketConn(pc)

	if err := mc.JoinGroup(nil, &net.UDPAddr{IP: group}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: joining multicast group %s: %v", core.ErrHandshakeFailure, group, err)
	}

	if err := mc.SetMulticastTTL(ttl); err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: setting multicast TTL: %v", core.ErrHandshakeFailure, err)
	}

	if err := mc.SetMulticastLoopback(true); err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: enabling multicast loopback: %v", core.ErrHandshakeFailure, err)
	}

	c := &Connection{
		pc:             pc,
		mc:             mc,
		dest:           &net.UDPAddr{IP: group, Port: port},
		metrics:        ms,
		log:            log,
		queueCapacity:  queueCapacity,
		pollInterval:   pollInterval,
		fragmentExpiry: fragmentExpiry,
		subs:           make(map[*subscription.Subscription]struct{}),
		fragments:      make(map[fragmentBufferKey]*fragmentBuffer),
		receiverDone:   make(chan struct{}),
	}

	if ms != nil {
		ms.ConnectionsActive.WithLabelValues(schemeName).Inc()
	}

	go c.receiveLoop()

	log.Debug().Str("group", group.String()).Int("port", port).Msg("udpm joined")

	return c, nil
}

// setReuseAddrPort sets SO_REUSEADDR and SO_REUSEPORT before bind, so
// that multiple local processes can join the same multicast group on
// the same port.
func setReuseAddrPort(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// IsConnected reports whether the connection has not torn down.
func (c *Connection) IsConnected() bool {
	return !c.disconnected.Load()
}

// Publish sends channel/data as a short datagram, or as a sequence of
// long fragments when the encoded payload meets the fragmentation
// threshold. Best-effort: an I/O error tears the connection down and
// returns nil.
func (c *Connection) Publish(channel string, data []byte) error {
	if !c.IsConnected() {
		return core.ErrNotConnected
	}

	payloadLength := len(channel) + 1 + len(data)

	if payloadLength >= fragmentationThreshold {
		if count := fragmentCount(payloadLength); count > 65535 {
			return fmt.Errorf("%w: payload requires %d fragments, more than the 65535 maximum", core.ErrInvalidArgument, count)
		}
	}

	c.writeMu.Lock()
	seq := c.sequence
	c.sequence++

	var err error
	if payloadLength < fragmentationThreshold {
		err = c.publishShortLocked(seq, channel, data)
	} else {
		err = c.publishLongLocked(seq, channel, data, payloadLength)
	}
	c.writeMu.Unlock()

	if err != nil {
		c.recordTransportError(err)
		c.tearDown()
	} else if c.metrics != nil {
		c.metrics.MessagesPublished.WithLabelValues(schemeName).Inc()
	}

	return nil
}

// publishShortLocked must be called with writeMu held.
func (c *Connection) publishShortLocked(seq uint32, channel string, data []byte) error {
	buf := make([]byte, 0, 8+len(channel)+1+len(data))
	buf = append(buf, magicShort[:]...)
	buf = wire.PutUint32(buf, seq)
	buf = append(buf, []byte(channel)...)
	buf = append(buf, 0)
	buf = append(buf, data...)

	_, err := c.pc.WriteTo(buf, c.dest)
	return err
}

// publishLongLocked must be called with writeMu held. It splits
// channel\x00data into fragmentationThreshold-sized chunks, each
// wrapped in its own long-fragment header. The header's
// total_data_length is len(data) and its fragment_offset is the offset
// into data: the channel and its NUL are counted in neither.
func (c *Connection) publishLongLocked(seq uint32, channel string, data []byte, payloadLength int) error {
	full := make([]byte, 0, payloadLength)
	full = append(full, []byte(channel)...)
	full = append(full, 0)
	full = append(full, data...)

	count := fragmentCount(payloadLength)

	offset := 0
	for i := 0; i < count; i++ {
		end := offset + fragmentationThreshold
		if end > len(full) {
			end = len(full)
		}
		chunk := full[offset:end]

		fragmentOffset := 0
		if offset > 0 {
			fragmentOffset = offset - (len(channel) + 1)
		}

		buf := make([]byte, 0, 4+16+len(chunk))
		buf = append(buf, magicLong[:]...)
		buf = append(buf, encodeLongFragmentHeader(seq, uint32(len(data)), uint32(fragmentOffset), uint16(i), uint16(count))...)
		buf = append(buf, chunk...)

		if _, err := c.pc.WriteTo(buf, c.dest); err != nil {
			return err
		}
		offset = end
	}

	return nil
}

// Subscribe registers a new Subscription against the live set. There is
// no wire message: the socket already receives every datagram sent to
// the joined group, so subscribing is purely a local filter change.
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

	return sub, nil
}

// Disconnect idempotently tears the connection down and waits for the
// receiver goroutine to exit before returning.
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

	_ = c.pc.Close()

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

	c.log.Debug().Msg("udpm disconnected")
}

// receiveLoop polls the socket with a short read deadline so that
// tearDown (called from another goroutine) is noticed promptly, since
// UDP sockets have no equivalent of tcpq's shutdown-both-directions
// unblock signal.
func (c *Connection) receiveLoop() {
	defer close(c.receiverDone)

	buf := make([]byte, 65536)
	lastExpiry := time.Now()

	for c.IsConnected() {
		if time.Since(lastExpiry) >= c.pollInterval {
			c.expireFragments()
			lastExpiry = time.Now()
		}

		_ = c.pc.SetReadDeadline(time.Now().Add(c.pollInterval))

		n, addr, err := c.pc.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if c.IsConnected() {
				c.recordTransportError(err)
			}
			break
		}

		channel, data, ok := c.handleDatagram(addr.String(), buf[:n])
		if !ok {
			continue
		}

		c.subsMu.Lock()
		for s := range c.subs {
			s.Receive(channel, data)
		}
		c.subsMu.Unlock()
	}

	c.tearDown()
}

// handleDatagram dispatches on the 4-byte magic prefix. Unrecognized
// magics are dropped silently: the multicast group may carry traffic
// from senders speaking an incompatible or newer framing.
func (c *Connection) handleDatagram(source string, datagram []byte) (channel string, data []byte, ok bool) {
	if len(datagram) < 4 {
		return "", nil, false
	}

	var magic [4]byte
	copy(magic[:], datagram[:4])

	switch magic {
	case magicShort:
		if len(datagram) < 8 {
			return "", nil, false
		}
		channel, data := splitNullTerminated(datagram[8:])
		return channel, data, true

	case magicLong:
		return c.handleFragment(source, datagram[4:])

	default:
		return "", nil, false
	}
}

// handleFragment reassembles one long-format fragment into its buffer,
// keyed by (sequence, source). Only the receiver goroutine calls this,
// so c.fragments needs no lock.
func (c *Connection) handleFragment(source string, rest []byte) (channel string, data []byte, ok bool) {
	if len(rest) < 16 {
		return "", nil, false
	}

	sequence := wire.Uint32(rest[0:4])
	fragmentIndex := wire.Uint16(rest[12:14])
	fragmentCountField := wire.Uint16(rest[14:16])
	payload := rest[16:]

	key := fragmentBufferKey{sequence: sequence, source: source}

	if fragmentIndex == 0 {
		if _, exists := c.fragments[key]; exists {
			delete(c.fragments, key)
			if c.metrics != nil {
				c.metrics.FragmentBuffersOpen.Dec()
			}
		}

		ch, body := splitNullTerminated(payload)
		buf := &fragmentBuffer{channel: ch, sequence: sequence, nextExpected: 1, remaining: fragmentCountField - 1, lastTouched: time.Now()}
		buf.data.Write(body)

		if fragmentCountField <= 1 {
			return buf.channel, buf.data.Bytes(), true
		}

		c.fragments[key] = buf
		if c.metrics != nil {
			c.metrics.FragmentBuffersOpen.Inc()
		}
		return "", nil, false
	}

	buf, exists := c.fragments[key]
	if !exists || fragmentIndex != buf.nextExpected {
		// No open buffer for this key, or an out-of-order/duplicate
		// fragment index: drop it and any partial buffer rather than
		// risk reassembling a corrupt message.
		if exists {
			delete(c.fragments, key)
			if c.metrics != nil {
				c.metrics.FragmentBuffersOpen.Dec()
			}
		}
		if c.metrics != nil {
			c.metrics.FragmentsDropped.Inc()
		}
		return "", nil, false
	}

	buf.data.Write(payload)
	buf.nextExpected++
	buf.remaining--
	buf.lastTouched = time.Now()

	if buf.remaining == 0 {
		delete(c.fragments, key)
		if c.metrics != nil {
			c.metrics.FragmentBuffersOpen.Dec()
		}
		return buf.channel, buf.data.Bytes(), true
	}

	return "", nil, false
}

// expireFragments drops any fragment buffer that has not received a
// fragment within fragmentExpiry. receiveLoop calls it once per
// pollInterval, whether or not datagrams keep arriving, so an
// incomplete reassembly is reaped within roughly
// pollInterval+fragmentExpiry of its last fragment rather than held
// forever.
func (c *Connection) expireFragments() {
	cutoff := time.Now().Add(-c.fragmentExpiry)
	for key, buf := range c.fragments {
		if buf.lastTouched.Before(cutoff) {
			delete(c.fragments, key)
			if c.metrics != nil {
				c.metrics.FragmentBuffersOpen.Dec()
				c.metrics.FragmentsDropped.Inc()
			}
		}
	}
}

func (c *Connection) removeSubscription(s *subscription.Subscription) {
	c.subsMu.Lock()
	delete(c.subs, s)
	c.subsMu.Unlock()
}

func (c *Connection) recordTransportError(err error) {
	if c.metrics != nil {
		c.metrics.TransportErrors.WithLabelValues(schemeName).Inc()
	}
	c.log.Warn().Err(err).Msg("udpm transport error")
}
