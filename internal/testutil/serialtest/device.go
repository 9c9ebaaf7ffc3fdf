package serialtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

var (
	readyQuery = []byte("READY?\n")
	readyReply = []byte("YES!")
	pullToken  = []byte("RD?\n")
	ackToken   = []byte("ACK!\n")
)

// Device plays the playback device's side of the pull protocol on a Channel.
// It answers each READY? query once and sends a pull request whenever the
// host waits for input outside the handshake.
type Device struct {
	ch           *Channel
	readyReplies [][]byte
	pullReplies  [][]byte
	answered     int
	ready        bool

	Queries int
	Pulls   int
}

func NewDevice(ch *Channel) *Device {
	d := &Device{ch: ch}
	ch.OnIdle(d.idle)
	return d
}

// ReplyReady scripts answers to successive READY? queries. An empty reply
// leaves the query unanswered. After the script runs out the device says YES!.
func (d *Device) ReplyReady(replies ...[]byte) {
	d.readyReplies = append(d.readyReplies, replies...)
}

// ReplyPull scripts successive pull frames. After the script runs out the
// device sends RD?.
func (d *Device) ReplyPull(replies ...[]byte) {
	d.pullReplies = append(d.pullReplies, replies...)
}

func (d *Device) idle() {
	last, count := d.ch.LastWrite()
	if count > 0 && bytes.Equal(last, readyQuery) {
		if d.answered != count {
			d.answer(count)
			return
		}
		if !d.ready {
			return
		}
	}
	d.Pulls++
	reply := pullToken
	if len(d.pullReplies) > 0 {
		reply, d.pullReplies = d.pullReplies[0], d.pullReplies[1:]
	}
	d.ch.Feed(reply)
}

func (d *Device) answer(count int) {
	d.answered = count
	d.Queries++
	reply := readyReply
	if len(d.readyReplies) > 0 {
		reply, d.readyReplies = d.readyReplies[0], d.readyReplies[1:]
	}
	if len(reply) > 0 {
		d.ch.Feed(reply)
	}
	d.ready = bytes.Equal(reply, readyReply)
}

// Chunk is one pull cycle as seen on the wire.
type Chunk struct {
	Header   []byte
	Declared int
	Payload  []byte
}

// Transcript is the host's output decoded into protocol units.
type Transcript struct {
	ReadyQueries int
	Acks         int
	Chunks       []Chunk
}

func (t Transcript) PayloadBytes() int {
	total := 0
	for _, c := range t.Chunks {
		total += len(c.Payload)
	}
	return total
}

// ParseTranscript decodes host writes, one entry per Write call.
func ParseTranscript(writes [][]byte, headerWidth int) (Transcript, error) {
	var out Transcript
	expectHeader := false
	for i, w := range writes {
		switch {
		case bytes.Equal(w, readyQuery):
			out.ReadyQueries++
		case bytes.Equal(w, ackToken):
			out.Acks++
			expectHeader = true
		case expectHeader:
			if len(w) != headerWidth {
				return out, fmt.Errorf("write[%d]: header len=%d want=%d", i, len(w), headerWidth)
			}
			out.Chunks = append(out.Chunks, Chunk{
				Header:   w,
				Declared: int(binary.BigEndian.Uint16(w[:2])),
			})
			expectHeader = false
		default:
			if len(out.Chunks) == 0 {
				return out, fmt.Errorf("write[%d]: payload before any chunk header", i)
			}
			if len(w) != 1 {
				return out, fmt.Errorf("write[%d]: payload write len=%d want=1", i, len(w))
			}
			c := &out.Chunks[len(out.Chunks)-1]
			c.Payload = append(c.Payload, w[0])
		}
	}
	return out, nil
}

// WriteTrack writes a size-byte file whose byte i is i%251 and returns its path
// and contents.
func WriteTrack(t testing.TB, dir, name string, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write track %s: %v", path, err)
	}
	return path, data
}
