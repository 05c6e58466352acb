// Package wireutil holds the small varint and length-prefixed framing
// primitives shared by every serde in this module (client registry,
// view cache, operation log columns, and the top-level document
// buffer), so the wire format's primitive encoding is written once.
package wireutil

import (
	"encoding/binary"
	"fmt"
)

// AppendUvarint appends v to buf as an unsigned LEB128 varint.
func AppendUvarint(buf []byte, v uint64) []byte {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], v)
	return append(buf, scratch[:n]...)
}

// ReadUvarint decodes a varint from the front of buf, returning the
// value and the number of bytes consumed.
func ReadUvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, 0, fmt.Errorf("wireutil: truncated or invalid varint")
	}
	return v, n, nil
}

// AppendVarint zigzag-encodes a signed value, for columns (like the
// timestamp delta column) that can legitimately go negative.
func AppendVarint(buf []byte, v int64) []byte {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutVarint(scratch[:], v)
	return append(buf, scratch[:n]...)
}

// ReadVarint decodes a zigzag-encoded signed varint.
func ReadVarint(buf []byte) (int64, int, error) {
	v, n := binary.Varint(buf)
	if n <= 0 {
		return 0, 0, fmt.Errorf("wireutil: truncated or invalid signed varint")
	}
	return v, n, nil
}

// AppendBytes appends a varint length prefix followed by b.
func AppendBytes(buf []byte, b []byte) []byte {
	buf = AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// AppendString appends a varint length prefix followed by s's UTF-8
// bytes.
func AppendString(buf []byte, s string) []byte {
	return AppendBytes(buf, []byte(s))
}

// ReadBytes decodes a varint-length-prefixed byte slice, returning a
// fresh copy (never aliasing buf) and the total bytes consumed.
func ReadBytes(buf []byte) ([]byte, int, error) {
	length, n, err := ReadUvarint(buf)
	if err != nil {
		return nil, 0, fmt.Errorf("wireutil: truncated length prefix: %w", err)
	}
	if uint64(len(buf)-n) < length {
		return nil, 0, fmt.Errorf("wireutil: truncated payload: want %d bytes, have %d", length, len(buf)-n)
	}
	out := make([]byte, length)
	copy(out, buf[n:n+int(length)])
	return out, n + int(length), nil
}

// ReadString decodes a varint-length-prefixed UTF-8 string.
func ReadString(buf []byte) (string, int, error) {
	b, n, err := ReadBytes(buf)
	if err != nil {
		return "", 0, err
	}
	return string(b), n, nil
}
