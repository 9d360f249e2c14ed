package follower

import (
	"testing"
	"time"
)

type recordedMessage struct {
	text    string
	logTime time.Time
	rawTime string
}

type recordingSink struct {
	lines    []string
	messages []recordedMessage
	resets   int
}

func (s *recordingSink) HandleLine(line string) { s.lines = append(s.lines, line) }
func (s *recordingSink) HandleMessage(text string, logTime time.Time, rawTime string) {
	s.messages = append(s.messages, recordedMessage{text, logTime, rawTime})
}
func (s *recordingSink) Reset() { s.resets++ }

func TestReassembler_MultiLineMessage(t *testing.T) {
	sink := &recordingSink{}
	r := NewReassembler(sink)

	r.AppendLine("[UnityCrossThreadLogger]2023-06-01 19:30:05: Event.Joined\n")
	r.AppendLine("{\n")
	r.AppendLine("  \"field\": 1\n")
	r.AppendLine("}\n")
	r.AppendLine("[UnityCrossThreadLogger]2023-06-01 19:30:06: Next\n")

	if len(sink.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(sink.messages))
	}
	msg := sink.messages[0]
	want := "Event.Joined\n{\n  \"field\": 1\n}\n"
	if msg.text != want {
		t.Errorf("message text = %q, want %q", msg.text, want)
	}
	if !msg.logTime.Equal(time.Date(2023, 6, 1, 19, 30, 5, 0, time.UTC)) {
		t.Errorf("logTime = %v", msg.logTime)
	}
	if len(sink.lines) != 5 {
		t.Errorf("HandleLine saw %d lines, want every raw line", len(sink.lines))
	}
}

func TestReassembler_FlushFinalizesLastMessage(t *testing.T) {
	sink := &recordingSink{}
	r := NewReassembler(sink)

	r.AppendLine("[UnityCrossThreadLogger]2023-06-01 19:30:05: Event.One\n")
	r.AppendLine("{\"a\": 1}\n")
	r.Flush()

	if len(sink.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(sink.messages))
	}
	if got := r.Dispatched(); got != 1 {
		t.Errorf("Dispatched = %d, want 1", got)
	}
}

func TestReassembler_DuplicateSuppression(t *testing.T) {
	sink := &recordingSink{}
	r := NewReassembler(sink)

	for i := 0; i < 2; i++ {
		r.AppendLine("[UnityCrossThreadLogger]2023-06-01 19:30:05: Event.Dup\n")
		r.AppendLine("{\"a\": 1}\n")
	}
	r.Flush()

	if len(sink.messages) != 1 {
		t.Fatalf("got %d messages, want 1 after suppression", len(sink.messages))
	}
	if got := r.Suppressed(); got != 1 {
		t.Errorf("Suppressed = %d, want 1", got)
	}

	// A different message, then the first again: both must dispatch since
	// only consecutive repeats are suppressed.
	r.AppendLine("[UnityCrossThreadLogger]2023-06-01 19:30:06: Event.Other\n")
	r.AppendLine("{\"b\": 2}\n")
	r.AppendLine("[UnityCrossThreadLogger]2023-06-01 19:30:07: Event.Dup\n")
	r.AppendLine("{\"a\": 1}\n")
	r.Flush()

	if len(sink.messages) != 3 {
		t.Errorf("got %d messages, want 3", len(sink.messages))
	}
}

func TestReassembler_UntimedStartMarkerKeepsPriorTime(t *testing.T) {
	sink := &recordingSink{}
	r := NewReassembler(sink)

	r.AppendLine("[UnityCrossThreadLogger]2023-06-01 19:30:05: First\n")
	r.AppendLine("[UnityCrossThreadLogger]Second without timestamp\n")
	r.Flush()

	if len(sink.messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(sink.messages))
	}
	if !sink.messages[1].logTime.Equal(sink.messages[0].logTime) {
		t.Errorf("untimed message logTime = %v, want inherited %v",
			sink.messages[1].logTime, sink.messages[0].logTime)
	}
}

func TestReassembler_NoTimestampDiscarded(t *testing.T) {
	sink := &recordingSink{}
	r := NewReassembler(sink)

	// Stream starts mid-message with no timestamp context at all.
	r.AppendLine("partial json fragment}\n")
	r.Flush()

	if len(sink.messages) != 0 {
		t.Errorf("got %d messages, want 0 for timestampless data", len(sink.messages))
	}
}

func TestReassembler_InlineTimestampLine(t *testing.T) {
	sink := &recordingSink{}
	r := NewReassembler(sink)

	r.AppendLine("[UnityCrossThreadLogger]Header\n")
	r.AppendLine("2023-06-01 19:30:09 Some continuation\n")
	r.Flush()

	if len(sink.messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(sink.messages))
	}
	if !sink.messages[0].logTime.Equal(time.Date(2023, 6, 1, 19, 30, 9, 0, time.UTC)) {
		t.Errorf("logTime = %v, want the inline timestamp", sink.messages[0].logTime)
	}
}

func TestReassembler_EmptyFlushNoOp(t *testing.T) {
	sink := &recordingSink{}
	r := NewReassembler(sink)
	r.Flush()
	if len(sink.messages) != 0 || r.Dispatched() != 0 {
		t.Error("Flush on empty buffer dispatched a message")
	}
}
