package tcpq

import (
	"bufio"
	"fmt"
	"io"

	"github.com/Pluviolithic/lcm-go/internal/wire"
)

// Wire constants for the tcpq handshake: must match the relay's
// expected magic and version bytes exactly.
var (
	magicClient = [4]byte{0x28, 0x76, 0x17, 0xFB}
	magicServer = [4]byte{0x28, 0x76, 0x17, 0xFA}
)

var protocolVersion = [4]byte{0x00, 0x00, 0x01, 0x00}

type messageType uint32

const (
	msgPublish     messageType = 1
	msgSubscribe   messageType = 2
	msgUnsubscribe messageType = 3
)

func handshakeClientBytes() []byte {
	b := make([]byte, 0, 8)
	b = append(b, magicClient[:]...)
	b = append(b, protocolVersion[:]...)
	return b
}

func handshakeServerBytes() []byte {
	b := make([]byte, 0, 8)
	b = append(b, magicServer[:]...)
	b = append(b, protocolVersion[:]...)
	return b
}

// encodeFrame builds a type‖channel_len‖channel[‖data_len‖data] frame.
// data is nil for SUBSCRIBE/UNSUBSCRIBE, which carry no payload.
func encodeFrame(mt messageType, channel string, data []byte) []byte {
	encodedChannel := []byte(channel)

	buf := make([]byte, 0, 8+len(encodedChannel)+8+len(data))
	buf = wire.PutUint32(buf, uint32(mt))
	buf = wire.PutUint32(buf, uint32(len(encodedChannel)))
	buf = append(buf, encodedChannel...)

	if mt == msgPublish {
		buf = wire.PutUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}

	return buf
}

// readInboundFrame reads one delivery frame from r: a 4-byte type field
// (parsed but ignored, since the relay only ever sends delivery frames
// on this connection) followed by channel and data.
func readInboundFrame(r *bufio.Reader) (channel string, data []byte, err error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", nil, err
	}

	channelLen, err := readUint32(r)
	if err != nil {
		return "", nil, err
	}

	channelBytes := make([]byte, channelLen)
	if _, err := io.ReadFull(r, channelBytes); err != nil {
		return "", nil, err
	}

	dataLen, err := readUint32(r)
	if err != nil {
		return "", nil, err
	}

	dataBytes := make([]byte, dataLen)
	if _, err := io.ReadFull(r, dataBytes); err != nil {
		return "", nil, err
	}

	return string(channelBytes), dataBytes, nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return wire.Uint32(b[:]), nil
}

func readHandshakeReply(r io.Reader) error {
	var reply [8]byte
	if _, err := io.ReadFull(r, reply[:]); err != nil {
		return fmt.Errorf("reading handshake reply: %w", err)
	}

	want := handshakeServerBytes()
	for i := range want {
		if reply[i] != want[i] {
			return fmt.Errorf("handshake reply mismatch")
		}
	}

	return nil
}
