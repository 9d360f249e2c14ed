// Package uploader delivers tracked events to the collector over HTTP.
package uploader

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"arena-tracker/internal/tracker"
)

// DefaultHost is the production collector.
const DefaultHost = "https://www.17lands.com"

const (
	errorCooldown = 2 * time.Minute

	// Sizing for the error-signature filter. At ~1% false positives a
	// genuinely new error is almost never swallowed, and a crash loop
	// emitting the same signature all day is reported once.
	errorFilterCapacity = 10_000
	errorFilterFPRate   = 0.01
)

// Client posts event blobs to the collector, one endpoint per event kind.
// Failed requests retry with exponential backoff, so a Submit call can
// block for a long time; the follower pipeline is synchronous on purpose
// and inherits that backpressure.
type Client struct {
	host       string
	httpClient *http.Client
	ctx        context.Context

	mu          sync.Mutex
	lastErrorAt time.Time
	seenErrors  *bloom.BloomFilter
}

var _ tracker.Submitter = (*Client)(nil)

// NewClient returns a Client posting to host. The context bounds every
// request retry loop, so cancelling it unblocks a stuck Submit.
func NewClient(ctx context.Context, host string) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		ctx:        ctx,
		seenErrors: bloom.NewWithEstimates(errorFilterCapacity, errorFilterFPRate),
	}
}

// mergeBlob flattens the envelope and the event into a single JSON
// object, event fields winning on collision.
func mergeBlob(env tracker.Envelope, event any) ([]byte, error) {
	merged := map[string]any{}

	envJSON, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}
	if err := json.Unmarshal(envJSON, &merged); err != nil {
		return nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	eventFields := map[string]any{}
	if err := json.Unmarshal(eventJSON, &eventFields); err != nil {
		return nil, fmt.Errorf("unmarshaling event: %w", err)
	}
	for k, v := range eventFields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (c *Client) post(endpoint string, env tracker.Envelope, event any, useGzip bool) error {
	blob, err := mergeBlob(env, event)
	if err != nil {
		return err
	}

	body := blob
	if useGzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(blob); err != nil {
			return fmt.Errorf("compressing blob: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing blob: %w", err)
		}
		body = buf.Bytes()
	}

	return retryCall(c.ctx, func() (int, error) {
		req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.host+"/"+endpoint, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		if useGzip {
			req.Header.Set("Content-Encoding", "gzip")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		log.Printf("[Uploader] POST /%s -> %d", endpoint, resp.StatusCode)
		return resp.StatusCode, nil
	}, func(status int) bool {
		// 4xx means the collector rejected the blob; retrying will not
		// change its mind. Only server errors are worth another attempt.
		return status < http.StatusInternalServerError
	})
}

func (c *Client) SubmitUser(env tracker.Envelope, e tracker.UserEvent) error {
	return c.post("api/account", env, e, false)
}

func (c *Client) SubmitDraftPack(env tracker.Envelope, e tracker.DraftPack) error {
	return c.post("pack", env, e, false)
}

func (c *Client) SubmitDraftPick(env tracker.Envelope, e tracker.DraftPick) error {
	return c.post("pick", env, e, false)
}

func (c *Client) SubmitHumanDraftPack(env tracker.Envelope, e tracker.HumanDraftPack) error {
	return c.post("human_draft_pack", env, e, false)
}

func (c *Client) SubmitHumanDraftPick(env tracker.Envelope, e tracker.HumanDraftPick) error {
	return c.post("human_draft_pick", env, e, false)
}

func (c *Client) SubmitDeck(env tracker.Envelope, e tracker.DeckSubmission) error {
	return c.post("deck", env, e, false)
}

func (c *Client) SubmitGame(env tracker.Envelope, e tracker.CompletedGame) error {
	return c.post("game", env, e, true)
}

func (c *Client) SubmitRank(env tracker.Envelope, e tracker.RankEvent) error {
	return c.post("api/rank", env, e, false)
}

func (c *Client) SubmitOngoingEvents(env tracker.Envelope, e tracker.OngoingEvents) error {
	return c.post("ongoing_events", env, e, false)
}

func (c *Client) SubmitEventCourse(env tracker.Envelope, e tracker.EventCourse) error {
	return c.post("event_course", env, e, false)
}

func (c *Client) SubmitEventEnded(env tracker.Envelope, e tracker.EventEnded) error {
	return c.post("event_ended", env, e, false)
}

func (c *Client) SubmitCollection(env tracker.Envelope, e tracker.CollectionEvent) error {
	return c.post("collection", env, e, false)
}

func (c *Client) SubmitInventory(env tracker.Envelope, e tracker.InventoryEvent) error {
	return c.post("inventory", env, e, false)
}

func (c *Client) SubmitPlayerProgress(env tracker.Envelope, e tracker.PlayerProgress) error {
	return c.post("player_progress", env, e, false)
}

// SubmitError rate-limits crash reports: at most one per cooldown window,
// and a signature already reported this run is dropped entirely.
func (c *Client) SubmitError(env tracker.Envelope, e tracker.ErrorReport) error {
	c.mu.Lock()
	now := time.Now()
	if now.Sub(c.lastErrorAt) < errorCooldown {
		c.mu.Unlock()
		log.Printf("[Uploader] Skipping error report, last one sent %s ago", now.Sub(c.lastErrorAt).Round(time.Second))
		return nil
	}
	if c.seenErrors.TestAndAddString(e.Blob) {
		c.mu.Unlock()
		log.Printf("[Uploader] Skipping already-reported error signature")
		return nil
	}
	c.lastErrorAt = now
	c.mu.Unlock()

	return c.post("api/client_errors", env, e, true)
}

// VersionInfo is the collector's response to a version check.
type VersionInfo struct {
	MinVersion string `json:"min_version"`
	DailyNews  string `json:"daily_news,omitempty"`
}

// CheckVersion asks the collector for the minimum supported client
// version for the given client name and version.
func (c *Client) CheckVersion(ctx context.Context, client, version string) (*VersionInfo, error) {
	params := url.Values{}
	params.Set("client", client)
	params.Set("version", version)

	var info VersionInfo
	err := retryCall(ctx, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.host+"/api/version_validation?"+params.Encode(), nil)
		if err != nil {
			return 0, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
				return 0, fmt.Errorf("decoding version response: %w", err)
			}
		}
		return resp.StatusCode, nil
	}, func(status int) bool {
		return status < http.StatusInternalServerError
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}
