package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Archive appends raw provider payloads to a daily log file. Files
// rotate at midnight UTC and the previous day is gzipped.
type Archive struct {
	outputDir string
	file      *os.File
	mu        sync.Mutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New creates a new Archive instance
func New(outputDir string) *Archive {
	return &Archive{
		outputDir: outputDir,
		stopChan:  make(chan struct{}),
	}
}

// Start opens today's file and starts the rotation timer
func (a *Archive) Start() error {
	if err := a.rotateFile(); err != nil {
		return err
	}

	a.wg.Add(1)
	go a.rotationTimer()

	return nil
}

// Stop closes the current file and stops the rotation timer
func (a *Archive) Stop() error {
	close(a.stopChan)
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// WritePayload appends one payload line for a device. The payload is
// recorded as received, trailing newlines stripped.
func (a *Archive) WritePayload(deviceID string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		if err := a.rotateFile(); err != nil {
			return err
		}
	}

	for len(payload) > 0 && payload[len(payload)-1] == '\n' {
		payload = payload[:len(payload)-1]
	}

	line := fmt.Sprintf("%d\t%s\t%s\n", time.Now().UTC().UnixMilli(), deviceID, payload)
	_, err := a.file.WriteString(line)
	return err
}

// rotationTimer handles daily rotation at midnight UTC
func (a *Archive) rotationTimer() {
	defer a.wg.Done()

	for {
		now := time.Now().UTC()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
		waitTime := nextMidnight.Sub(now)

		select {
		case <-time.After(waitTime):
			if err := a.rotateAndCompress(); err != nil {
				fmt.Printf("Error during rotation: %v\n", err)
			}
		case <-a.stopChan:
			return
		}
	}
}

// rotateAndCompress rotates the current file and compresses the previous day's file
func (a *Archive) rotateAndCompress() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		a.file.Close()
		a.file = nil
	}

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	yesterdayFile := filepath.Join(a.outputDir, fmt.Sprintf("payloads_%s.log", yesterday.Format("2006-01-02")))

	if _, err := os.Stat(yesterdayFile); err == nil {
		if err := compressFile(yesterdayFile); err != nil {
			return fmt.Errorf("failed to compress file: %w", err)
		}
	}

	return a.rotateFile()
}

// compressFile gzips a file in place and removes the original
func compressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer target.Close()

	gzipWriter := gzip.NewWriter(target)
	if _, err := io.Copy(gzipWriter, source); err != nil {
		gzipWriter.Close()
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

// rotateFile opens the log file for today's date
func (a *Archive) rotateFile() error {
	timestamp := time.Now().UTC().Format("2006-01-02")
	filename := filepath.Join(a.outputDir, fmt.Sprintf("payloads_%s.log", timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	a.file = file
	return nil
}
