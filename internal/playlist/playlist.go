// Package playlist reads the ordered list of tracks to stream.
//
// A playlist is a text file with one path per line. Blank lines are ignored,
// a trailing CR is stripped, and relative paths resolve against the directory
// holding the playlist.
package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/audifi/internal/logging"
)

const (
	DefaultFilename      = "Playlist-001.txt"
	DefaultMaxEntries    = 10
	DefaultMaxPathLength = 256

	maxLineBytes = 1 << 20
)

var (
	ErrOpen  = errors.New("playlist: open failed")
	ErrParse = errors.New("playlist: parse failed")
)

// Limits caps the playlist size. Zero fields take the defaults.
type Limits struct {
	MaxEntries    int
	MaxPathLength int
}

func DefaultLimits() Limits {
	return Limits{
		MaxEntries:    DefaultMaxEntries,
		MaxPathLength: DefaultMaxPathLength,
	}
}

func (l Limits) WithDefaults() Limits {
	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultMaxEntries
	}
	if l.MaxPathLength <= 0 {
		l.MaxPathLength = DefaultMaxPathLength
	}
	return l
}

// Load parses the playlist file at path and resolves relative entries against
// its directory.
func Load(path string, limits Limits) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %v", ErrOpen, path, err)
	}
	defer f.Close()

	entries, err := Parse(f, limits)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i, entry := range entries {
		if !filepath.IsAbs(entry) {
			entries[i] = filepath.Join(dir, entry)
		}
	}
	return entries, nil
}

// Parse returns the entries of r in order. Entries past MaxEntries and entries
// longer than MaxPathLength are dropped with a warning.
func Parse(r io.Reader, limits Limits) ([]string, error) {
	limits = limits.WithDefaults()
	log := logging.Component("playlist")

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	entries := make([]string, 0, limits.MaxEntries)
	line, dropped := 0, 0
	for sc.Scan() {
		line++
		entry := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(entry) == "" {
			continue
		}
		if len(entry) > limits.MaxPathLength {
			log.Warn().Int("line", line).Int("len", len(entry)).Int("max", limits.MaxPathLength).Msg("playlist entry too long; dropped")
			continue
		}
		if len(entries) >= limits.MaxEntries {
			dropped++
			continue
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", ErrParse, line+1, err)
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Int("max", limits.MaxEntries).Msg("playlist has more entries than allowed; extra entries ignored")
	}
	return entries, nil
}
