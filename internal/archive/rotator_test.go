package archive

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"arena-tracker/internal/tracker"
)

func TestRotator_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRotator(dir)
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}

	if err := r.WriteEvent("pick", map[string]any{"card_id": 777}); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}
	if err := r.WriteEvent("pack", map[string]any{"card_ids": []int{1, 2}}); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Closing a non-empty file moves it to warm storage.
	warm, err := os.ReadDir(filepath.Join(dir, "warm"))
	if err != nil || len(warm) != 1 {
		t.Fatalf("warm dir entries = %v (%v), want 1 file", warm, err)
	}

	f, err := os.Open(filepath.Join(dir, "warm", warm[0].Name()))
	if err != nil {
		t.Fatalf("opening warm file: %v", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("bad JSONL line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Kind != "pick" || records[1].Kind != "pack" {
		t.Errorf("record kinds = %q, %q", records[0].Kind, records[1].Kind)
	}
	if records[0].RecordedAt == "" {
		t.Error("recorded_at missing")
	}
}

func TestRotator_EmptyFileRemovedOnClose(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRotator(dir)
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	hot, _ := os.ReadDir(filepath.Join(dir, "hot"))
	warm, _ := os.ReadDir(filepath.Join(dir, "warm"))
	if len(hot) != 0 || len(warm) != 0 {
		t.Errorf("hot=%d warm=%d entries, want empty dirs", len(hot), len(warm))
	}
}

func TestRotator_CompactGzipsWarmFiles(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRotator(dir)
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	if err := r.WriteEvent("deck", map[string]any{"event_name": "X"}); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := r.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	warm, _ := os.ReadDir(filepath.Join(dir, "warm"))
	if len(warm) != 0 {
		t.Errorf("warm still holds %d files after compaction", len(warm))
	}
	cold, _ := os.ReadDir(filepath.Join(dir, "cold"))
	if len(cold) != 1 {
		t.Fatalf("cold holds %d files, want 1", len(cold))
	}

	f, err := os.Open(filepath.Join(dir, "cold", cold[0].Name()))
	if err != nil {
		t.Fatalf("opening cold file: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("cold file is not gzip: %v", err)
	}
	defer zr.Close()

	var rec Record
	if err := json.NewDecoder(zr).Decode(&rec); err != nil {
		t.Fatalf("decoding compacted record: %v", err)
	}
	if rec.Kind != "deck" {
		t.Errorf("kind = %q", rec.Kind)
	}
}

type countingSubmitter struct {
	games int
}

func (c *countingSubmitter) SubmitUser(tracker.Envelope, tracker.UserEvent) error       { return nil }
func (c *countingSubmitter) SubmitDraftPack(tracker.Envelope, tracker.DraftPack) error  { return nil }
func (c *countingSubmitter) SubmitDraftPick(tracker.Envelope, tracker.DraftPick) error  { return nil }
func (c *countingSubmitter) SubmitHumanDraftPack(tracker.Envelope, tracker.HumanDraftPack) error {
	return nil
}
func (c *countingSubmitter) SubmitHumanDraftPick(tracker.Envelope, tracker.HumanDraftPick) error {
	return nil
}
func (c *countingSubmitter) SubmitDeck(tracker.Envelope, tracker.DeckSubmission) error { return nil }
func (c *countingSubmitter) SubmitGame(tracker.Envelope, tracker.CompletedGame) error {
	c.games++
	return nil
}
func (c *countingSubmitter) SubmitRank(tracker.Envelope, tracker.RankEvent) error { return nil }
func (c *countingSubmitter) SubmitOngoingEvents(tracker.Envelope, tracker.OngoingEvents) error {
	return nil
}
func (c *countingSubmitter) SubmitEventCourse(tracker.Envelope, tracker.EventCourse) error {
	return nil
}
func (c *countingSubmitter) SubmitEventEnded(tracker.Envelope, tracker.EventEnded) error { return nil }
func (c *countingSubmitter) SubmitCollection(tracker.Envelope, tracker.CollectionEvent) error {
	return nil
}
func (c *countingSubmitter) SubmitInventory(tracker.Envelope, tracker.InventoryEvent) error {
	return nil
}
func (c *countingSubmitter) SubmitPlayerProgress(tracker.Envelope, tracker.PlayerProgress) error {
	return nil
}
func (c *countingSubmitter) SubmitError(tracker.Envelope, tracker.ErrorReport) error { return nil }

func TestTee_ArchivesAndForwards(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRotator(dir)
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	next := &countingSubmitter{}
	tee := &Tee{Next: next, Rotator: r}

	env := tracker.Envelope{Token: "tok", PlayerID: "PLAYER1"}
	game := tracker.CompletedGame{
		GameResultPart: tracker.GameResultPart{GameNumber: 1, Won: true},
		GameSubmission: tracker.GameSubmission{MatchID: "match-1"},
	}
	if err := tee.SubmitGame(env, game); err != nil {
		t.Fatalf("SubmitGame failed: %v", err)
	}
	if next.games != 1 {
		t.Errorf("forwarded %d games, want 1", next.games)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	warm, _ := os.ReadDir(filepath.Join(dir, "warm"))
	if len(warm) != 1 {
		t.Fatalf("warm holds %d files, want the archived game", len(warm))
	}
}
