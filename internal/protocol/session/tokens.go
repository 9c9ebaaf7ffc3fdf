package session

import (
	"encoding/binary"
	"fmt"
)

// Wire tokens. All are case-sensitive literals.
const (
	TokenReady = "READY?"
	TokenYes   = "YES!"
	TokenPull  = "RD?"
	TokenAck   = "ACK!"
)

// pullFrameLen is RD? plus its delimiter.
const pullFrameLen = len(TokenPull) + 1

// Chunk-length header layouts.
const (
	// HeaderWidthLegacy is the 2-byte big-endian count the device firmware reads.
	HeaderWidthLegacy = 2
	// HeaderWidthReserved appends two reserved zero bytes after the count.
	HeaderWidthReserved = 4

	MaxChunkLength = 0xFFFF
)

// EncodeChunkHeader encodes n as a big-endian count in a width-byte header.
func EncodeChunkHeader(n, width int) ([]byte, error) {
	if width != HeaderWidthLegacy && width != HeaderWidthReserved {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHeaderWidth, width)
	}
	if n < 0 || n > MaxChunkLength {
		return nil, fmt.Errorf("%w: %d", ErrChunkTooLarge, n)
	}
	buf := make([]byte, width)
	binary.BigEndian.PutUint16(buf[0:2], uint16(n))
	return buf, nil
}

// DecodeChunkHeader reads the count from a header produced by EncodeChunkHeader.
func DecodeChunkHeader(b []byte) (int, error) {
	if len(b) != HeaderWidthLegacy && len(b) != HeaderWidthReserved {
		return 0, fmt.Errorf("%w: %d", ErrInvalidHeaderWidth, len(b))
	}
	return int(binary.BigEndian.Uint16(b[0:2])), nil
}
