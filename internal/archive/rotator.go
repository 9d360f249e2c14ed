// Package archive keeps a local JSONL copy of every event the follower
// submits, rotated through hot/warm/cold directories so a collector
// outage never loses data.
package archive

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// Rotation triggers
	MaxEventsPerFile = 1000
	MaxFileAge       = 1 * time.Hour
)

// Record is one archived event line.
type Record struct {
	Kind       string `json:"kind"`
	RecordedAt string `json:"recorded_at"`
	Blob       any    `json:"blob"`
}

// Rotator writes event records to rotating JSONL files. The active file
// lives in hot/, closed files move to warm/, and Compact gzips warm
// files into cold/.
type Rotator struct {
	mu sync.Mutex

	hotDir  string
	warmDir string
	coldDir string

	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	eventCount    int
	fileOpenedAt  time.Time
}

// NewRotator creates the directory layout under baseDir and opens the
// first hot file.
func NewRotator(baseDir string) (*Rotator, error) {
	hotDir := filepath.Join(baseDir, "hot")
	warmDir := filepath.Join(baseDir, "warm")
	coldDir := filepath.Join(baseDir, "cold")

	for _, dir := range []string{hotDir, warmDir, coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	r := &Rotator{
		hotDir:  hotDir,
		warmDir: warmDir,
		coldDir: coldDir,
	}
	if err := r.rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// WriteEvent appends one record and flushes it. Each event is a complete
// unit, so the file is always valid JSONL even after a crash.
func (r *Rotator) WriteEvent(kind string, blob any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(Record{
		Kind:       kind,
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
		Blob:       blob,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := r.currentWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if _, err := r.currentWriter.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	r.eventCount++
	if r.shouldRotate() {
		return r.rotate()
	}
	return nil
}

func (r *Rotator) shouldRotate() bool {
	if r.currentFile == nil {
		return true
	}
	if r.eventCount >= MaxEventsPerFile {
		return true
	}
	if time.Since(r.fileOpenedAt) >= MaxFileAge {
		return true
	}
	return false
}

// rotate closes the current file and opens a new one. Caller holds mu.
func (r *Rotator) rotate() error {
	if r.currentFile != nil {
		if err := r.currentWriter.Flush(); err != nil {
			return fmt.Errorf("failed to flush before rotation: %w", err)
		}
		if err := r.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}

		warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
		if err := os.Rename(r.currentPath, warmPath); err != nil {
			return fmt.Errorf("failed to move to warm storage: %w", err)
		}
		log.Printf("[Archive] Moved %s to warm storage (%d events)", filepath.Base(r.currentPath), r.eventCount)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("events_%s.jsonl", timestamp)
	r.currentPath = filepath.Join(r.hotDir, filename)

	file, err := os.Create(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024)
	r.eventCount = 0
	r.fileOpenedAt = time.Now()
	return nil
}

// Close flushes and closes the current file, moving it to warm storage
// if it holds any events.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return nil
	}
	if err := r.currentWriter.Flush(); err != nil {
		return err
	}
	if err := r.currentFile.Close(); err != nil {
		return err
	}

	if r.eventCount > 0 {
		warmPath := filepath.Join(r.warmDir, filepath.Base(r.currentPath))
		if err := os.Rename(r.currentPath, warmPath); err != nil {
			return err
		}
		log.Printf("[Archive] Closed and moved %s to warm (%d events)", filepath.Base(r.currentPath), r.eventCount)
	} else {
		os.Remove(r.currentPath)
	}

	r.currentFile = nil
	return nil
}

// Compact gzips every warm file into cold storage.
func (r *Rotator) Compact() error {
	entries, err := os.ReadDir(r.warmDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := compressToCold(filepath.Join(r.warmDir, entry.Name()), r.coldDir); err != nil {
			return err
		}
	}
	return nil
}

func compressToCold(warmPath, coldDir string) error {
	src, err := os.Open(warmPath)
	if err != nil {
		return err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	dst, err := os.Create(coldPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	if err := os.Remove(warmPath); err != nil {
		return err
	}
	log.Printf("[Archive] Compressed %s to cold storage", filepath.Base(warmPath))
	return nil
}
