package follower

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type syncSink struct {
	mu       sync.Mutex
	messages []string
	resets   int
}

func (s *syncSink) HandleLine(string) {}
func (s *syncSink) HandleMessage(text string, _ time.Time, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
}
func (s *syncSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

func (s *syncSink) snapshot() (messages []string, resets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...), s.resets
}

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing log: %v", err)
	}
}

func TestParseLog_SinglePass(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Player.log")
	writeLog(t, path,
		"[UnityCrossThreadLogger]2023-06-01 19:30:05: Event.One\n"+
			"{\"a\": 1}\n"+
			"[UnityCrossThreadLogger]2023-06-01 19:30:06: Event.Two\n"+
			"{\"b\": 2}\n")

	sink := &syncSink{}
	f := New(sink, Config{PollInterval: 5 * time.Millisecond})

	if err := f.ParseLog(context.Background(), path, false); err != nil {
		t.Fatalf("ParseLog failed: %v", err)
	}

	messages, resets := sink.snapshot()
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2: %q", len(messages), messages)
	}
	if resets != 1 {
		t.Errorf("Reset called %d times, want 1", resets)
	}
}

func TestParseLog_MissingFile(t *testing.T) {
	sink := &syncSink{}
	f := New(sink, Config{PollInterval: 5 * time.Millisecond})

	err := f.ParseLog(context.Background(), filepath.Join(t.TempDir(), "absent.log"), false)
	if err == nil {
		t.Fatal("ParseLog on a missing file should fail when not following")
	}
}

func TestParseLog_PartialLineNotSplit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Player.log")
	// The final line has no newline; it must not be dispatched as a
	// truncated fragment of the message.
	writeLog(t, path,
		"[UnityCrossThreadLogger]2023-06-01 19:30:05: Event.One\n"+
			"{\"a\": 1}\n"+
			"[UnityCrossThreadLogger]2023-06-01 19:30:06: Event.Two\n"+
			"{\"b\":")

	sink := &syncSink{}
	f := New(sink, Config{PollInterval: 5 * time.Millisecond})
	if err := f.ParseLog(context.Background(), path, false); err != nil {
		t.Fatalf("ParseLog failed: %v", err)
	}

	messages, _ := sink.snapshot()
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2: %q", len(messages), messages)
	}
	if messages[1] != "Event.Two\n" {
		t.Errorf("second message = %q, want the fragment excluded", messages[1])
	}
}

func TestParseLog_RestartsOnTruncation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Player.log")
	writeLog(t, path,
		"[UnityCrossThreadLogger]2023-06-01 19:30:05: Event.Original\n"+
			"{\"a\": 1, \"pad\": \"xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx\"}\n")

	sink := &syncSink{}
	f := New(sink, Config{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.ParseLog(ctx, path, true) }()

	// Wait for the first pass to pick up the original message.
	waitFor(t, func() bool {
		messages, _ := sink.snapshot()
		return len(messages) >= 1
	})

	// Replace with a shorter file, as the client does on restart.
	writeLog(t, path,
		"[UnityCrossThreadLogger]2023-06-01 20:00:00: Event.Fresh\n"+
			"{\"b\": 2}\n")

	waitFor(t, func() bool {
		messages, resets := sink.snapshot()
		if resets < 2 {
			return false
		}
		for _, m := range messages {
			if m == "Event.Fresh\n{\"b\": 2}\n" {
				return true
			}
		}
		return false
	})

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("ParseLog returned %v, want context.Canceled", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
