package ingest

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"log"
	"net/http"
)

// maxBodySize caps uploads. Game histories are the largest blobs and
// stay well under this even for long matches.
const maxBodySize = 32 << 20

// eventEndpoints maps URL paths to the stored event kind. Games have
// their own handler.
var eventEndpoints = map[string]string{
	"/pack":              "pack",
	"/pick":              "pick",
	"/human_draft_pack":  "human_draft_pack",
	"/human_draft_pick":  "human_draft_pick",
	"/deck":              "deck",
	"/collection":        "collection",
	"/inventory":         "inventory",
	"/ongoing_events":    "ongoing_events",
	"/event_course":      "event_course",
	"/event_ended":       "event_ended",
	"/player_progress":   "player_progress",
	"/api/rank":          "rank",
	"/api/account":       "account",
	"/api/client_errors": "error",
}

// Server exposes the collector's HTTP surface.
type Server struct {
	store      *Store
	minVersion string
}

// NewServer wires the upload endpoints onto a Store. minVersion is
// reported to clients asking for version validation.
func NewServer(store *Store, minVersion string) *Server {
	return &Server{store: store, minVersion: minVersion}
}

// Handler returns the routing mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for path, kind := range eventEndpoints {
		mux.HandleFunc(path, s.handleEvent(kind))
	}
	mux.HandleFunc("/game", s.handleGame)
	mux.HandleFunc("/api/version_validation", s.handleVersionValidation)
	return mux
}

// decodeBody reads the request body, transparently decompressing
// gzip-encoded uploads.
func decodeBody(r *http.Request) (map[string]any, error) {
	var reader io.Reader = http.MaxBytesReader(nil, r.Body, maxBodySize)
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(reader)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	}

	var blob map[string]any
	if err := json.NewDecoder(reader).Decode(&blob); err != nil {
		return nil, err
	}
	return blob, nil
}

func (s *Server) handleEvent(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		blob, err := decodeBody(r)
		if err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if err := s.store.InsertEvent(r.Context(), kind, blob); err != nil {
			log.Printf("[Ingest] Failed to store %s event: %v", kind, err)
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	blob, err := decodeBody(r)
	if err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if err := s.store.InsertGame(r.Context(), blob); err != nil {
		log.Printf("[Ingest] Failed to store game: %v", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleVersionValidation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"min_version": s.minVersion})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Ingest] Failed to encode response: %v", err)
	}
}
