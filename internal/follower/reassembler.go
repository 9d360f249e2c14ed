// Package follower tails the Arena client's Player.log, reassembles the
// line stream into complete log messages, and feeds them to a sink. It owns
// rotation/truncation detection and restarts from the top of the file when
// the log is replaced underneath it.
package follower

import (
	"log"
	"regexp"
	"strings"
	"time"

	"arena-tracker/internal/timeparse"
)

// Message start markers: the two logger names the client writes with,
// optionally followed by an inline timestamp on the same line.
var (
	logStartTimed   = regexp.MustCompile(`^\[(UnityCrossThreadLogger|Client GRE)\](\d[\d:/ .\-]+(AM|PM)?)`)
	logStartUntimed = regexp.MustCompile(`^\[(UnityCrossThreadLogger|Client GRE)\]`)
	lineTimestamp   = regexp.MustCompile(`^([\d/.\-]+[ T][\d]+:[\d]+:[\d]+( AM| PM)?)`)
)

// Sink consumes the reassembled stream. HandleLine sees every raw line
// before reassembly (for account-info patterns and client notices);
// HandleMessage sees each finalized message exactly once. Reset is called
// whenever the cursor restarts from byte 0.
type Sink interface {
	HandleLine(line string)
	HandleMessage(text string, logTime time.Time, rawTime string)
	Reset()
}

// Reassembler buffers line fragments between message boundaries.
type Reassembler struct {
	sink Sink

	buffer      []string
	curLogTime  time.Time
	lastRawTime string

	// Last finalized message, for duplicate suppression: the client
	// occasionally writes the same entry twice in a row.
	lastMessage string

	dispatched int64
	suppressed int64
}

func NewReassembler(sink Sink) *Reassembler {
	return &Reassembler{sink: sink}
}

// AppendLine consumes one complete line (a fragment of a message, not
// necessarily a complete message).
func (r *Reassembler) AppendLine(line string) {
	r.sink.HandleLine(line)

	if m := lineTimestamp.FindStringSubmatch(line); m != nil {
		r.setTime(m[1])
	}

	m := logStartUntimed.FindStringIndex(line)
	if m == nil {
		r.buffer = append(r.buffer, line)
		return
	}

	// A new message starts here; the previous one is complete.
	r.Flush()

	if timed := logStartTimed.FindStringSubmatch(line); timed != nil {
		r.setTime(timed[2])
		r.buffer = append(r.buffer, line[len(timed[0]):])
	} else {
		r.buffer = append(r.buffer, line[m[1]:])
	}
}

func (r *Reassembler) setTime(raw string) {
	t, err := timeparse.Parse(raw)
	if err != nil {
		// Fatal to this timestamp only; the buffer keeps whatever
		// time was last established.
		return
	}
	r.lastRawTime = raw
	r.curLogTime = t
}

// Flush finalizes the current buffer. Called on every message boundary and
// whenever the reader is about to wait for more data. A buffer with no
// established timestamp is ambiguous partial data at stream start and is
// dropped rather than mis-timed.
func (r *Reassembler) Flush() {
	if len(r.buffer) == 0 {
		return
	}
	if r.curLogTime.IsZero() {
		r.buffer = nil
		return
	}

	full := strings.Join(r.buffer, "")
	r.buffer = nil

	if full == r.lastMessage {
		r.suppressed++
		log.Printf("[Follower] Skipping repeated log entry: %.120s", full)
		return
	}

	r.sink.HandleMessage(full, r.curLogTime, r.lastRawTime)
	r.lastMessage = full
	r.dispatched++
}

// Dispatched returns how many messages have been handed to the sink.
func (r *Reassembler) Dispatched() int64 { return r.dispatched }

// Suppressed returns how many duplicate messages were dropped.
func (r *Reassembler) Suppressed() int64 { return r.suppressed }
