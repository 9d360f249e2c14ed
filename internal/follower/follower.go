package follower

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultRefreshGrace: when the log's mtime leaps this far ahead of
	// the last successful read, the file was replaced faster than the
	// poll loop noticed and we restart from the top.
	DefaultRefreshGrace = 60 * time.Second
)

// Config holds tuning for the poll loop.
type Config struct {
	PollInterval time.Duration
	RefreshGrace time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.RefreshGrace <= 0 {
		out.RefreshGrace = DefaultRefreshGrace
	}
	return out
}

// Follower owns the log cursor and drives the reassembler.
type Follower struct {
	cfg  Config
	sink Sink
}

func New(sink Sink, cfg Config) *Follower {
	return &Follower{cfg: cfg.withDefaults(), sink: sink}
}

// ParseLog reads the log file from the beginning and feeds it through the
// sink. With follow=true it keeps polling for new lines until the context
// is cancelled, restarting from byte 0 whenever the file is truncated or
// replaced. With follow=false it returns after one full pass.
func (f *Follower) ParseLog(ctx context.Context, filename string, follow bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		restart, err := f.parseOnce(ctx, filename, follow)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && follow {
				// Log briefly missing or locked; retried, never escalated.
				if err := sleepCtx(ctx, f.cfg.PollInterval); err != nil {
					return err
				}
				continue
			}
			return err
		}
		if !restart {
			if !follow {
				log.Println("[Follower] Done processing file")
			}
			return nil
		}
		// Rotation or forced refresh: full state reset, reread from 0.
	}
}

// parseOnce runs one pass over the file. Returns restart=true when the
// cursor must be rebuilt from byte 0 (truncation or replacement).
func (f *Follower) parseOnce(ctx context.Context, filename string, follow bool) (restart bool, err error) {
	f.sink.Reset()
	r := NewReassembler(f.sink)

	file, err := os.Open(filename)
	if err != nil {
		return false, fmt.Errorf("opening log: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	var partial strings.Builder
	lastReadTime := time.Now()
	var lastFileSize int64 = -1

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		chunk, readErr := reader.ReadString('\n')
		if chunk != "" {
			partial.WriteString(chunk)
			if strings.HasSuffix(chunk, "\n") {
				r.AppendLine(partial.String())
				partial.Reset()
			}
			lastReadTime = time.Now()
		}
		if readErr == nil {
			continue
		}
		if !errors.Is(readErr, io.EOF) {
			return false, fmt.Errorf("reading log: %w", readErr)
		}

		// Out of bytes for now. Finalize whatever message is buffered
		// and decide whether to wait, restart, or stop.
		r.Flush()

		info, statErr := os.Stat(filename)
		if statErr != nil {
			if follow {
				if err := sleepCtx(ctx, f.cfg.PollInterval); err != nil {
					return false, err
				}
				continue
			}
			return false, nil
		}

		size := info.Size()
		if lastFileSize >= 0 && size < lastFileSize {
			log.Printf("[Follower] Restarting from top: file shrank (previous=%d current=%d)", lastFileSize, size)
			return true, nil
		}
		lastFileSize = size

		if info.ModTime().After(lastReadTime.Add(f.cfg.RefreshGrace)) {
			log.Printf("[Follower] Restarting from top: file modified well after last read (read=%s modified=%s)",
				lastReadTime.Format(time.RFC3339), info.ModTime().Format(time.RFC3339))
			return true, nil
		}

		if !follow {
			return false, nil
		}
		if err := sleepCtx(ctx, f.cfg.PollInterval); err != nil {
			return false, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
