package udpm

import (
	"net"
	"testing"
	"time"

	"github.com/Pluviolithic/lcm-go/internal/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestConnection joins a loopback-reachable multicast group. Some
// sandboxed environments have no multicast-capable interface at all; in
// that case the join itself fails and the test skips rather than fails.
func openTestConnection(t *testing.T, group string, port int) *Connection {
	t.Helper()

	ip := net.ParseIP(group)
	require.NotNil(t, ip)

	conn, err := open(ip, port, 1, 0, 0, 0, nil, zerolog.Nop())
	if err != nil {
		t.Skipf("multicast not available in this environment: %v", err)
	}
	return conn
}

func TestPublishAndSubscribeRoundTripShortDatagram(t *testing.T) {
	conn := openTestConnection(t, "239.255.76.90", 17801)
	defer conn.Disconnect()

	delivered := make(chan string, 1)
	sub, err := conn.Subscribe("EXAMPLE.*", func(channel string, data []byte) {
		delivered <- channel + ":" + string(data)
	})
	require.NoError(t, err)
	require.NotNil(t, sub)

	// Give the join time to settle before the first send.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, conn.Publish("EXAMPLE.FOO", []byte("hello")))

	select {
	case got := <-delivered:
		assert.Equal(t, "EXAMPLE.FOO:hello", got)
	case <-time.After(3 * time.Second):
		t.Fatal("did not receive published message on loopback multicast")
	}
}

// TestPublishAndSubscribeRoundTripLongFragmentedDatagram drives a
// payload above the fragmentation threshold through a real Publish, over
// loopback multicast, through receiveLoop's fragment reassembly, and
// out to a live Subscription callback, asserting the reassembled bytes
// match exactly.
func TestPublishAndSubscribeRoundTripLongFragmentedDatagram(t *testing.T) {
	conn := openTestConnection(t, "239.255.76.95", 17806)
	defer conn.Disconnect()

	delivered := make(chan []byte, 1)
	sub, err := conn.Subscribe("EXAMPLE.*", func(channel string, data []byte) {
		delivered <- append([]byte(nil), data...)
	})
	require.NoError(t, err)
	require.NotNil(t, sub)

	time.Sleep(50 * time.Millisecond)

	payload := make([]byte, fragmentationThreshold+5000)
	for i := range payload {
		payload[i] = byte(i % 256)
	}

	require.NoError(t, conn.Publish("EXAMPLE.BIG", payload))

	select {
	case got := <-delivered:
		assert.Equal(t, payload, got)
	case <-time.After(5 * time.Second):
		t.Fatal("did not receive fragmented published message on loopback multicast")
	}
}

func TestPublishRejectsOversizedFragmentCount(t *testing.T) {
	conn := openTestConnection(t, "239.255.76.91", 17802)
	defer conn.Disconnect()

	huge := make([]byte, (65536*fragmentationThreshold)+1)
	err := conn.Publish("X", huge)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	conn := openTestConnection(t, "239.255.76.92", 17803)

	done := make(chan struct{})
	go func() {
		conn.Disconnect()
		conn.Disconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not return")
	}

	assert.False(t, conn.IsConnected())
}
