package wire

import (
	"math"

	"github.com/cshekharsharma/cascade/internal/wireutil"
)

// appendColumn wraps an already-compressed column's bytes with a
// varint length prefix so the decoder can extract exactly that many
// bytes before handing them to the matching Decode* function.
func appendColumn(buf []byte, column []byte) []byte {
	buf = wireutil.AppendUvarint(buf, uint64(len(column)))
	return append(buf, column...)
}

// extractColumn reads a length-prefixed column's bytes from the front
// of buf, returning the column slice and the offset just past it.
func extractColumn(buf []byte, offset int) ([]byte, int, error) {
	length, n, err := wireutil.ReadUvarint(buf[offset:])
	if err != nil {
		return nil, 0, malformedf("truncated column length: %s", err)
	}
	start := offset + n
	end := start + int(length)
	if end > len(buf) {
		return nil, 0, malformedf("truncated column: want %d bytes, have %d", length, len(buf)-start)
	}
	return buf[start:end], end, nil
}

func readRunLengthColumn(buf []byte, offset, count int) ([]uint64, int, error) {
	column, next, err := extractColumn(buf, offset)
	if err != nil {
		return nil, 0, err
	}
	values, _, err := DecodeRunLength(column, count)
	if err != nil {
		return nil, 0, err
	}
	return values, next, nil
}

func readMonotonicColumn(buf []byte, offset, count int) ([]uint64, int, error) {
	column, next, err := extractColumn(buf, offset)
	if err != nil {
		return nil, 0, err
	}
	values, _, err := DecodeMonotonicRun(column, count)
	if err != nil {
		return nil, 0, err
	}
	return values, next, nil
}

func readTwoWayColumn(buf []byte, offset, count int) ([]uint64, int, error) {
	column, next, err := extractColumn(buf, offset)
	if err != nil {
		return nil, 0, err
	}
	values, _, err := DecodeTwoWayMonotonicRun(column, count)
	if err != nil {
		return nil, 0, err
	}
	return values, next, nil
}

func readDeltaColumn(buf []byte, offset int) ([]uint64, int, error) {
	column, next, err := extractColumn(buf, offset)
	if err != nil {
		return nil, 0, err
	}
	values, _, err := DecodeDelta(column)
	if err != nil {
		return nil, 0, err
	}
	return values, next, nil
}

// appendCountedU64/readCountedU64 frame a single varint count used to
// size a column that is not itself one of the compressed strategies
// (e.g. how many selector-bearing or value-bearing ops exist).
func appendCountedU64(buf []byte, v uint64) []byte {
	return wireutil.AppendUvarint(buf, v)
}

func readCountedU64(buf []byte, offset int) (uint64, int, error) {
	v, n, err := wireutil.ReadUvarint(buf[offset:])
	if err != nil {
		return 0, 0, malformedf("truncated count: %s", err)
	}
	return v, offset + n, nil
}

// appendStringArena/readStringArena hold the uncompressed,
// varint-length-prefixed string payloads the compression table
// reserves for text content: selector keys, insert text content, and
// string-valued map fields.
func appendStringArena(buf []byte, values []string) []byte {
	buf = wireutil.AppendUvarint(buf, uint64(len(values)))
	for _, s := range values {
		buf = wireutil.AppendString(buf, s)
	}
	return buf
}

func readStringArena(buf []byte, offset, expectedCount int) ([]string, int, error) {
	count, n, err := wireutil.ReadUvarint(buf[offset:])
	if err != nil {
		return nil, 0, malformedf("truncated string arena count: %s", err)
	}
	offset += n
	if int(count) != expectedCount {
		return nil, 0, malformedf("string arena has %d entries, want %d", count, expectedCount)
	}

	values := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		s, n, err := wireutil.ReadString(buf[offset:])
		if err != nil {
			return nil, 0, malformedf("truncated string arena entry: %s", err)
		}
		offset += n
		values = append(values, s)
	}
	return values, offset, nil
}

// appendPlainVarints/readPlainVarints hold columns not covered by any
// of the five named compression strategies (Parents counts, index
// selectors, integer values): plain unsigned varints, one per value.
// Signed inputs are zigzag-encoded by the caller before they get here.
func appendPlainVarints(buf []byte, values []uint64) []byte {
	buf = wireutil.AppendUvarint(buf, uint64(len(values)))
	for _, v := range values {
		buf = wireutil.AppendUvarint(buf, v)
	}
	return buf
}

func readPlainVarints(buf []byte, offset, expectedCount int) ([]uint64, int, error) {
	count, n, err := wireutil.ReadUvarint(buf[offset:])
	if err != nil {
		return nil, 0, malformedf("truncated varint column count: %s", err)
	}
	offset += n
	if int(count) != expectedCount {
		return nil, 0, malformedf("varint column has %d entries, want %d", count, expectedCount)
	}

	values := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		v, n, err := wireutil.ReadUvarint(buf[offset:])
		if err != nil {
			return nil, 0, malformedf("truncated varint column entry: %s", err)
		}
		offset += n
		values = append(values, v)
	}
	return values, offset, nil
}

// appendPlainU64s/readPlainU64s hold raw 64-bit values that must
// survive round-tripping bit-for-bit: IEEE-754 double payloads, stored
// as their bit pattern rather than a lossy varint of the float value.
func appendPlainU64s(buf []byte, values []uint64) []byte {
	buf = wireutil.AppendUvarint(buf, uint64(len(values)))
	for _, v := range values {
		buf = wireutil.AppendUvarint(buf, v)
	}
	return buf
}

func readPlainU64s(buf []byte, offset, expectedCount int) ([]uint64, int, error) {
	return readPlainVarints(buf, offset, expectedCount)
}

func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func doubleBits(f float64) uint64 {
	return math.Float64bits(f)
}

func doubleFromBits(bits uint64) float64 {
	return math.Float64frombits(bits)
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
