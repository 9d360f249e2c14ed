package uploader

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"arena-tracker/internal/tracker"
)

type recordedRequest struct {
	path     string
	encoding string
	body     map[string]any
}

type captureServer struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	*httptest.Server
}

func newCaptureServer(t *testing.T) *captureServer {
	t.Helper()
	cs := &captureServer{status: http.StatusOK}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reader io.Reader = r.Body
		encoding := r.Header.Get("Content-Encoding")
		if encoding == "gzip" {
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				t.Errorf("bad gzip body: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer zr.Close()
			reader = zr
		}

		var body map[string]any
		if err := json.NewDecoder(reader).Decode(&body); err != nil {
			t.Errorf("bad json body: %v", err)
		}

		cs.mu.Lock()
		cs.requests = append(cs.requests, recordedRequest{r.URL.Path, encoding, body})
		status := cs.status
		cs.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *captureServer) recorded() []recordedRequest {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]recordedRequest(nil), cs.requests...)
}

var testEnv = tracker.Envelope{
	Token:         "tok",
	ClientVersion: "0.0.1",
	PlayerID:      "PLAYER1",
	Time:          "2023-06-01T19:30:05",
	UTCTime:       "2023-06-01T19:30:05",
	RawTime:       "2023-06-01 19:30:05",
}

func TestSubmitDraftPick_MergesEnvelope(t *testing.T) {
	srv := newCaptureServer(t)
	client := NewClient(context.Background(), srv.URL)

	err := client.SubmitDraftPick(testEnv, tracker.DraftPick{
		EventName:  "PremierDraft_XYZ",
		PackNumber: 1,
		PickNumber: 2,
		CardID:     777,
	})
	if err != nil {
		t.Fatalf("SubmitDraftPick failed: %v", err)
	}

	reqs := srv.recorded()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	req := reqs[0]
	if req.path != "/pick" {
		t.Errorf("path = %q, want /pick", req.path)
	}
	if req.encoding != "" {
		t.Errorf("encoding = %q, want plain json", req.encoding)
	}
	if req.body["token"] != "tok" {
		t.Errorf("token = %v, envelope not merged", req.body["token"])
	}
	if req.body["card_id"] != float64(777) {
		t.Errorf("card_id = %v", req.body["card_id"])
	}
}

func TestSubmitGame_Gzipped(t *testing.T) {
	srv := newCaptureServer(t)
	client := NewClient(context.Background(), srv.URL)

	game := tracker.CompletedGame{
		GameResultPart: tracker.GameResultPart{GameNumber: 1, Won: true},
		GameSubmission: tracker.GameSubmission{MatchID: "match-1", Turns: 7},
	}
	if err := client.SubmitGame(testEnv, game); err != nil {
		t.Fatalf("SubmitGame failed: %v", err)
	}

	reqs := srv.recorded()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	req := reqs[0]
	if req.path != "/game" {
		t.Errorf("path = %q, want /game", req.path)
	}
	if req.encoding != "gzip" {
		t.Errorf("encoding = %q, want gzip", req.encoding)
	}
	if req.body["match_id"] != "match-1" {
		t.Errorf("match_id = %v", req.body["match_id"])
	}
	if req.body["won"] != true {
		t.Errorf("won = %v", req.body["won"])
	}
	// Mid-match games carry no match result; those keys must be absent
	// rather than zero-valued.
	if _, ok := req.body["won_match"]; ok {
		t.Error("won_match present for a game with no match result")
	}
}

func TestSubmitError_CooldownAndDedup(t *testing.T) {
	srv := newCaptureServer(t)
	client := NewClient(context.Background(), srv.URL)

	report := tracker.ErrorReport{Blob: "some failing blob"}
	if err := client.SubmitError(testEnv, report); err != nil {
		t.Fatalf("SubmitError failed: %v", err)
	}
	// A different error inside the cooldown window is skipped silently.
	if err := client.SubmitError(testEnv, tracker.ErrorReport{Blob: "other"}); err != nil {
		t.Fatalf("second SubmitError failed: %v", err)
	}
	if got := len(srv.recorded()); got != 1 {
		t.Fatalf("got %d error uploads, want 1 within cooldown", got)
	}

	// After the cooldown, a repeat of an already-posted signature is
	// still dropped.
	client.lastErrorAt = client.lastErrorAt.Add(-2 * errorCooldown)
	if err := client.SubmitError(testEnv, report); err != nil {
		t.Fatalf("repeat SubmitError failed: %v", err)
	}
	if got := len(srv.recorded()); got != 1 {
		t.Fatalf("got %d error uploads, want repeat signature dropped", got)
	}

	// A genuinely new error after the cooldown goes through.
	if err := client.SubmitError(testEnv, tracker.ErrorReport{Blob: "brand new"}); err != nil {
		t.Fatalf("new SubmitError failed: %v", err)
	}
	if got := len(srv.recorded()); got != 2 {
		t.Fatalf("got %d error uploads, want 2", got)
	}
}

func TestPost_ClientErrorNotRetried(t *testing.T) {
	srv := newCaptureServer(t)
	srv.status = http.StatusBadRequest
	client := NewClient(context.Background(), srv.URL)

	// A 4xx is the collector's final answer; the call returns without
	// retrying.
	if err := client.SubmitRank(testEnv, tracker.RankEvent{}); err != nil {
		t.Fatalf("SubmitRank returned %v, want nil on 4xx", err)
	}
	if got := len(srv.recorded()); got != 1 {
		t.Errorf("got %d requests, want no retries on 4xx", got)
	}
}

func TestCheckVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version_validation" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("client"); got != "go" {
			t.Errorf("client param = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"min_version": "0.1.0"})
	}))
	defer srv.Close()

	client := NewClient(context.Background(), srv.URL)
	info, err := client.CheckVersion(context.Background(), "go", "0.1.42")
	if err != nil {
		t.Fatalf("CheckVersion failed: %v", err)
	}
	if info.MinVersion != "0.1.0" {
		t.Errorf("min version = %q", info.MinVersion)
	}
}

func TestMergeBlob_EventWinsOnCollision(t *testing.T) {
	blob, err := mergeBlob(testEnv, map[string]any{"player_id": "OVERRIDE", "extra": 1})
	if err != nil {
		t.Fatalf("mergeBlob failed: %v", err)
	}
	var merged map[string]any
	if err := json.Unmarshal(blob, &merged); err != nil {
		t.Fatalf("unmarshaling merged blob: %v", err)
	}
	if merged["player_id"] != "OVERRIDE" {
		t.Errorf("player_id = %v, want the event's value", merged["player_id"])
	}
	if merged["token"] != "tok" {
		t.Errorf("token = %v", merged["token"])
	}
}
