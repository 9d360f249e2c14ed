// Command follower tails the game client log and uploads normalized
// events to the collector.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"arena-tracker/internal/archive"
	"arena-tracker/internal/config"
	"arena-tracker/internal/follower"
	"arena-tracker/internal/tracker"
	"arena-tracker/internal/uploader"
)

// ClientVersion is reported with every upload and checked against the
// collector's minimum supported version at startup.
const ClientVersion = "0.1.42"

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		log.Printf("[Signal] Received %v, initiating graceful shutdown...", sig)
		cancel()

		sig = <-sigCh
		log.Printf("[Signal] Received second %v, forcing exit", sig)
		os.Exit(1)
	}()

	return ctx
}

// versionSupported compares dotted version strings numerically,
// component by component.
func versionSupported(current, minimum string) bool {
	cur := strings.Split(current, ".")
	low := strings.Split(minimum, ".")
	for i := 0; i < len(cur) && i < len(low); i++ {
		if cur[i] != low[i] {
			return len(cur[i]) > len(low[i]) || (len(cur[i]) == len(low[i]) && cur[i] > low[i])
		}
	}
	return len(cur) >= len(low)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Follower] Failed to load configuration: %v", err)
	}
	if cfg.Token == "" {
		log.Fatal("[Follower] TRACKER_TOKEN is required; get yours from the collector account page")
	}

	ctx := setupSignalHandler()

	client := uploader.NewClient(ctx, cfg.Host)
	if info, err := client.CheckVersion(ctx, "go", ClientVersion); err != nil {
		log.Printf("[Follower] Version check failed: %v", err)
	} else if !versionSupported(ClientVersion, info.MinVersion) {
		log.Fatalf("[Follower] Client version %s is below the minimum supported %s; please update",
			ClientVersion, info.MinVersion)
	}

	var submitter tracker.Submitter = client
	if cfg.ArchiveDir != "" {
		rotator, err := archive.NewRotator(cfg.ArchiveDir)
		if err != nil {
			log.Fatalf("[Follower] Failed to open archive: %v", err)
		}
		defer func() {
			if err := rotator.Close(); err != nil {
				log.Printf("[Follower] Failed to close archive: %v", err)
			}
			if err := rotator.Compact(); err != nil {
				log.Printf("[Follower] Failed to compact archive: %v", err)
			}
		}()
		submitter = &archive.Tee{Next: client, Rotator: rotator}
	}

	t := tracker.New(submitter, tracker.Config{
		Token:         cfg.Token,
		ClientVersion: ClientVersion,
	})
	f := follower.New(t, follower.Config{
		PollInterval: cfg.PollInterval,
		RefreshGrace: cfg.RefreshGrace,
	})

	logFile, err := cfg.FindLogFile()
	if err != nil {
		log.Fatalf("[Follower] %v", err)
	}

	// Catch up on events from before the last client restart, then tail
	// the live log.
	if cfg.FollowPrevious {
		if prev := config.PreviousLogFile(logFile); prev != "" {
			log.Printf("[Follower] Parsing rotated-out log %s", prev)
			if err := f.ParseLog(ctx, prev, false); err != nil {
				log.Printf("[Follower] Failed to parse previous log: %v", err)
			}
		}
	}

	log.Printf("[Follower] Following %s", logFile)
	if err := f.ParseLog(ctx, logFile, true); err != nil && ctx.Err() == nil {
		log.Fatalf("[Follower] %v", err)
	}
	log.Printf("[Follower] Done: %d messages seen, %d handled, %d games flushed",
		t.MessagesSeen(), t.HandlersRun(), t.GamesFlushed())
}
