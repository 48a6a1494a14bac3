package udpm

import (
	"bytes"
	"time"

	"github.com/Pluviolithic/lcm-go/internal/wire"
)

// Magic values and the fragmentation threshold for the udpm wire
// format: must match what every other participant on the multicast
// group sends and expects.
var (
	magicShort = [4]byte{'L', 'C', '0', '2'}
	magicLong  = [4]byte{'L', 'C', '0', '3'}
)

const fragmentationThreshold = 64_000

// fragmentBufferKey identifies one in-flight reassembly: at most one
// fragment buffer exists per (sequence, source) pair at a time.
type fragmentBufferKey struct {
	sequence uint32
	source   string
}

// fragmentBuffer accumulates one logical message's fragments.
//
// lastTouched is bumped on every fragment accepted into the buffer;
// Connection.expireFragments reaps any buffer whose lastTouched falls
// outside fragmentExpiry, bounding how long an adversarial or merely
// incomplete sender can hold a reassembly open.
type fragmentBuffer struct {
	channel      string
	sequence     uint32
	nextExpected uint16
	remaining    uint16
	data         bytes.Buffer
	lastTouched  time.Time
}

// splitNullTerminated splits payload at the first NUL byte into
// (channel, rest). Used by both the short-datagram path and fragment
// index 0 of the long-datagram path.
func splitNullTerminated(payload []byte) (channel string, rest []byte) {
	idx := bytes.IndexByte(payload, 0)
	if idx < 0 {
		return string(payload), nil
	}
	return string(payload[:idx]), payload[idx+1:]
}

// fragmentCount computes ceil(payloadLength / fragmentationThreshold)
// using integer arithmetic.
func fragmentCount(payloadLength int) int {
	return (payloadLength + fragmentationThreshold - 1) / fragmentationThreshold
}

// encodeLongFragmentHeader builds the 16-byte header preceding a long
// fragment's payload: sequence_number, total_data_length,
// fragment_offset, fragment_index, fragment_count.
func encodeLongFragmentHeader(sequence uint32, totalDataLength, fragmentOffset uint32, fragmentIndex, fragmentCount uint16) []byte {
	buf := make([]byte, 0, 16)
	buf = wire.PutUint32(buf, sequence)
	buf = wire.PutUint32(buf, totalDataLength)
	buf = wire.PutUint32(buf, fragmentOffset)
	buf = wire.PutUint16(buf, fragmentIndex)
	buf = wire.PutUint16(buf, fragmentCount)
	return buf
}
