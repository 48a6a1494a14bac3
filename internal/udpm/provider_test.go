package udpm

import (
	"testing"

	"github.com/Pluviolithic/lcm-go/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderConnectRejectsWrongScheme(t *testing.T) {
	p := NewProvider()
	_, err := p.Connect("tcpq://127.0.0.1")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestProviderConnectRejectsNonMulticastAddress(t *testing.T) {
	p := NewProvider()
	_, err := p.Connect("udpm://10.0.0.1:7667")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestProviderConnectRejectsMalformedPort(t *testing.T) {
	p := NewProvider()
	_, err := p.Connect("udpm://239.255.76.76:notaport")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestProviderConnectParsesLeadingTTLQueryOnly(t *testing.T) {
	p := NewProvider()

	conn, err := p.Connect("udpm://239.255.76.93:17804?ttl=4")
	if err != nil {
		t.Skipf("multicast not available in this environment: %v", err)
	}
	require.NotNil(t, conn)
	defer conn.Disconnect()
}

func TestProviderConnectIgnoresNonLeadingTTLQuery(t *testing.T) {
	p := NewProvider()

	// "x=1&ttl=4" does not match ^ttl=(\d+): the leading key is "x", not
	// "ttl", so this must fall back to the default TTL rather than error.
	conn, err := p.Connect("udpm://239.255.76.94:17805?x=1&ttl=4")
	if err != nil {
		t.Skipf("multicast not available in this environment: %v", err)
	}
	require.NotNil(t, conn)
	defer conn.Disconnect()
}
