package subscription

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveDeliversMatchingChannel(t *testing.T) {
	var mu sync.Mutex
	var got []string

	s, err := New("EXAMPLE.*", func(channel string, data []byte) {
		mu.Lock()
		got = append(got, channel+":"+string(data))
		mu.Unlock()
	}, nil, "tcpq", 0, nil, zerolog.Nop())
	require.NoError(t, err)
	defer s.Unsubscribe()

	s.Receive("EXAMPLE.FOO", []byte("hello"))
	s.Receive("OTHER.CHANNEL", []byte("ignored"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"EXAMPLE.FOO:hello"}, got)
	mu.Unlock()
}

func TestReceiveMatchesAtStartOnly(t *testing.T) {
	delivered := make(chan string, 1)

	s, err := New("FOO", func(channel string, data []byte) {
		delivered <- channel
	}, nil, "tcpq", 0, nil, zerolog.Nop())
	require.NoError(t, err)
	defer s.Unsubscribe()

	// "FOO" matches at the start of "FOOBAR" (re.match semantics) but not
	// when it appears only in the middle of the channel name.
	s.Receive("FOOBAR", []byte("x"))
	select {
	case channel := <-delivered:
		assert.Equal(t, "FOOBAR", channel)
	case <-time.After(time.Second):
		t.Fatal("expected delivery for FOOBAR")
	}

	s.Receive("BARFOO", []byte("x"))
	select {
	case channel := <-delivered:
		t.Fatalf("unexpected delivery for %q", channel)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeIsIdempotentAndStopsDelivery(t *testing.T) {
	var calls int32
	s, err := New(".*", func(channel string, data []byte) {
		calls++
	}, nil, "tcpq", 0, nil, zerolog.Nop())
	require.NoError(t, err)

	s.Unsubscribe()
	s.Unsubscribe() // must not panic or double-close

	assert.False(t, s.IsActive())
	s.Receive("ANYTHING", []byte("x"))
	assert.Equal(t, int32(0), calls)
}

func TestOnRemoveCalledExactlyOnce(t *testing.T) {
	var removeCalls int

	s, err := New("X", func(string, []byte) {}, func(*Subscription) {
		removeCalls++
	}, "tcpq", 0, nil, zerolog.Nop())
	require.NoError(t, err)

	s.Unsubscribe()
	s.Unsubscribe()

	assert.Equal(t, 1, removeCalls)
}

func TestNewRejectsInvalidPattern(t *testing.T) {
	_, err := New("(unterminated", func(string, []byte) {}, nil, "tcpq", 0, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestQueueOverflowDropsWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	s, err := New(".*", func(channel string, data []byte) {
		<-release
	}, nil, "tcpq", 0, nil, zerolog.Nop())
	require.NoError(t, err)
	defer func() {
		close(release)
		s.Unsubscribe()
	}()

	for i := 0; i < DefaultQueueCapacity+10; i++ {
		s.Receive("X", []byte("y"))
	}
	// Must not have blocked above; reaching this line is the assertion.
}
