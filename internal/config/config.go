// Package config loads follower configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the follower binary needs.
type Config struct {
	// Token authenticates uploads with the collector. Required.
	Token string `env:"TRACKER_TOKEN"`

	// Host is the collector base URL.
	Host string `env:"TRACKER_HOST" envDefault:"https://www.17lands.com"`

	// LogFile overrides client log discovery.
	LogFile string `env:"TRACKER_LOG_FILE"`

	// ArchiveDir enables local JSONL archiving when set.
	ArchiveDir string `env:"TRACKER_ARCHIVE_DIR"`

	// FollowPrevious controls the one-shot pass over the rotated-out
	// previous log before tailing the current one.
	FollowPrevious bool `env:"TRACKER_FOLLOW_PREVIOUS" envDefault:"true"`

	PollInterval time.Duration `env:"TRACKER_POLL_INTERVAL" envDefault:"500ms"`
	RefreshGrace time.Duration `env:"TRACKER_REFRESH_GRACE" envDefault:"60s"`
}

// Load reads .env files (first one found wins) and then the environment.
func Load() (Config, error) {
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("[Config] Loaded .env from: %s", path)
			break
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

const (
	logIntermediate = "Wizards Of The Coast/MTGA"
	currentLogName  = "Player.log"
	previousLogName = "Player-prev.log"

	steamLogRoot = "steamapps/compatdata/2141910/pfx/drive_c/users/steamuser/AppData/LocalLow"
)

// possibleLogRoots lists directories the game client is known to write
// its log under, across native installs, Steam, Lutris, and Wine.
func possibleLogRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	var roots []string
	switch runtime.GOOS {
	case "darwin":
		roots = append(roots, filepath.Join(home, "Library", "Logs"))
	case "windows":
		user := filepath.Base(home)
		roots = append(roots,
			filepath.Join("C:\\", "users", user, "AppData", "LocalLow"),
			filepath.Join("D:\\", "users", user, "AppData", "LocalLow"),
		)
	default:
		winePrefix := os.Getenv("WINEPREFIX")
		if winePrefix == "" {
			winePrefix = filepath.Join(home, ".wine")
		}
		user := filepath.Base(home)
		roots = append(roots,
			filepath.Join(home, ".steam", "steam", filepath.FromSlash(steamLogRoot)),
			filepath.Join(home, ".local", "share", "Steam", filepath.FromSlash(steamLogRoot)),
			filepath.Join(home, "Games", "magic-the-gathering-arena", "drive_c", "users", user, "AppData", "LocalLow"),
			filepath.Join(winePrefix, "drive_c", "users", user, "AppData", "LocalLow"),
		)
	}
	return roots
}

// FindLogFile returns the current client log, preferring an explicit
// LogFile, then the first discovered candidate.
func (c Config) FindLogFile() (string, error) {
	if c.LogFile != "" {
		return c.LogFile, nil
	}
	for _, root := range possibleLogRoots() {
		candidate := filepath.Join(root, filepath.FromSlash(logIntermediate), currentLogName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no client log found; set TRACKER_LOG_FILE")
}

// PreviousLogFile returns the rotated-out previous log next to the
// current one, or "" when it does not exist.
func PreviousLogFile(currentLog string) string {
	candidate := filepath.Join(filepath.Dir(currentLog), previousLogName)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}
