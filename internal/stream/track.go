package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultHeaderLen is the container header region that is never transmitted.
const DefaultHeaderLen = 44

var (
	ErrTrackOpen       = errors.New("stream: track open failed")
	ErrTrackRead       = errors.New("stream: track read failed")
	ErrTrackTooSmall   = errors.New("stream: track not larger than header")
	ErrTrackAllocation = errors.New("stream: track buffer allocation failed")
)

// Track is one audio file held in memory while it streams.
type Track struct {
	Index  int
	Path   string
	data   []byte
	cursor int
}

// LoadTrack reads the whole file at path. Files not larger than headerLen fail
// with ErrTrackTooSmall; files above maxBytes fail with ErrTrackAllocation.
// A non-positive maxBytes means DefaultMaxTrackBytes. The cursor starts just past the header.
func LoadTrack(index int, path string, headerLen int, maxBytes int64) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrackOpen, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrackOpen, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrTrackOpen, path)
	}

	size := info.Size()
	if size <= int64(headerLen) {
		return nil, fmt.Errorf("%w: size=%d header=%d", ErrTrackTooSmall, size, headerLen)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTrackBytes
	}
	if size > maxBytes {
		return nil, fmt.Errorf("%w: size=%d limit=%d", ErrTrackAllocation, size, maxBytes)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrackRead, err)
	}
	return &Track{
		Index:  index,
		Path:   path,
		data:   data,
		cursor: headerLen,
	}, nil
}

func (t *Track) Size() int {
	return len(t.data)
}

func (t *Track) Cursor() int {
	return t.cursor
}

// Remaining counts raw file bytes from the cursor to the end.
func (t *Track) Remaining() int {
	return len(t.data) - t.cursor
}

func (t *Track) Done() bool {
	return t.cursor >= len(t.data)
}

// Release drops the track buffer.
func (t *Track) Release() {
	t.data = nil
	t.cursor = 0
}

// skippable reports whether err only disqualifies the current playlist entry.
func skippable(err error) bool {
	return errors.Is(err, ErrTrackOpen) ||
		errors.Is(err, ErrTrackRead) ||
		errors.Is(err, ErrTrackTooSmall)
}
