package stream

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/audifi/internal/testutil/serialtest"
	"github.com/danmuck/audifi/internal/testutil/testlog"
)

func TestLoadTrackStartsPastHeader(t *testing.T) {
	testlog.Start(t)
	path, _ := serialtest.WriteTrack(t, t.TempDir(), "a.wav", 100)

	track, err := LoadTrack(3, path, DefaultHeaderLen, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if track.Index != 3 || track.Size() != 100 || track.Cursor() != DefaultHeaderLen {
		t.Fatalf("unexpected track index=%d size=%d cursor=%d", track.Index, track.Size(), track.Cursor())
	}
	if track.Remaining() != 56 || track.Done() {
		t.Fatalf("remaining=%d done=%v", track.Remaining(), track.Done())
	}
	track.Release()
	if track.Size() != 0 || !track.Done() {
		t.Fatalf("release should drop the buffer")
	}
}

func TestLoadTrackErrors(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	exact, _ := serialtest.WriteTrack(t, dir, "exact.wav", DefaultHeaderLen)
	big, _ := serialtest.WriteTrack(t, dir, "big.wav", 2048)

	cases := []struct {
		name     string
		path     string
		maxBytes int64
		want     error
		skip     bool
	}{
		{name: "missing", path: filepath.Join(dir, "nope.wav"), want: ErrTrackOpen, skip: true},
		{name: "directory", path: dir, want: ErrTrackOpen, skip: true},
		{name: "header only", path: exact, want: ErrTrackTooSmall, skip: true},
		{name: "over limit", path: big, maxBytes: 1024, want: ErrTrackAllocation, skip: false},
	}
	for _, tc := range cases {
		_, err := LoadTrack(0, tc.path, DefaultHeaderLen, tc.maxBytes)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if got := skippable(err); got != tc.skip {
			t.Fatalf("%s: skippable=%v want=%v", tc.name, got, tc.skip)
		}
	}
}

func TestLoadTrackLimitIsInclusive(t *testing.T) {
	testlog.Start(t)
	path, _ := serialtest.WriteTrack(t, t.TempDir(), "a.wav", 1024)
	if _, err := LoadTrack(0, path, DefaultHeaderLen, 1024); err != nil {
		t.Fatalf("track at the limit should load: %v", err)
	}
}

func TestLoadTrackZeroLimitUsesDefault(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "huge.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Truncate(DefaultMaxTrackBytes + 1); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	_ = f.Close()

	if _, err := LoadTrack(0, path, DefaultHeaderLen, 0); !errors.Is(err, ErrTrackAllocation) {
		t.Fatalf("expected ErrTrackAllocation, got %v", err)
	}
}
