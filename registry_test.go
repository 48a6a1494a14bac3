package lcm

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/Pluviolithic/lcm-go/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersBothSchemes(t *testing.T) {
	r := NewRegistry()

	err := r.RegisterProvider("tcpq", func() Provider { return nil }, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = r.RegisterProvider("udpm", func() Provider { return nil }, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRegisterProviderOverrideReplaces(t *testing.T) {
	r := NewRegistry()
	called := false

	err := r.RegisterProvider("tcpq", func() Provider {
		called = true
		return &stubProvider{}
	}, true)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestConnectWithUnknownSchemeFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Connect("nope://somewhere")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestConnectWithNoSchemeFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Connect("not-a-url")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestConnectSwallowsRecoverableProviderErrors(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterProvider("stub", func() Provider {
		return &stubProvider{err: fmt.Errorf("%w: nope", ErrInvalidArgument)}
	}, false)
	require.NoError(t, err)

	conn, err := r.Connect("stub://x")
	assert.NoError(t, err)
	assert.Nil(t, conn)
}

func TestConnectPropagatesOtherProviderErrors(t *testing.T) {
	r := NewRegistry()
	boom := fmt.Errorf("boom")
	err := r.RegisterProvider("stub", func() Provider {
		return &stubProvider{err: boom}
	}, false)
	require.NoError(t, err)

	_, err = r.Connect("stub://x")
	assert.ErrorIs(t, err, boom)
}

func TestConnectDispatchesToTcpqProvider(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 8)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		conn.Write([]byte{0x28, 0x76, 0x17, 0xFA, 0x00, 0x00, 0x01, 0x00})
		time.Sleep(time.Second)
	}()

	r := NewRegistry()
	addr := listener.Addr().(*net.TCPAddr)
	conn, err := r.Connect(fmt.Sprintf("tcpq://%s:%d", addr.IP.String(), addr.Port))
	require.NoError(t, err)
	require.NotNil(t, conn)
	defer conn.Disconnect()

	assert.True(t, conn.IsConnected())
}

type stubProvider struct {
	err error
}

func (s *stubProvider) Connect(rawURL string) (core.Connection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}
