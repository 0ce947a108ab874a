// Package fetch downloads finished render artifacts to local storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Common errors returned by the fetcher.
var (
	// ErrNetwork is returned when the artifact could not be retrieved.
	ErrNetwork = errors.New("failed to retrieve artifact")

	// ErrWrite is returned when the artifact could not be written locally.
	ErrWrite = errors.New("failed to write artifact")
)

// copyBufferSize is the chunk size for streaming the body to disk.
const copyBufferSize = 256 * 1024

// Fetcher streams artifacts from a URL to local storage in bounded-size
// chunks, never buffering the whole artifact in memory.
type Fetcher struct {
	logger  *slog.Logger
	client  *http.Client
	timeout time.Duration
}

// New creates a Fetcher. timeout bounds one complete download and is
// independent of any render poll budget.
func New(logger *slog.Logger, timeout time.Duration) *Fetcher {
	return &Fetcher{
		logger:  logger,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Fetch downloads url to destination. On any failure the partial file is
// removed so the caller can never serve a truncated artifact.
func (f *Fetcher) Fetch(ctx context.Context, url, destination string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid artifact URL: %v", ErrNetwork, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
	}

	file, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	written, err := io.CopyBuffer(file, resp.Body, make([]byte, copyBufferSize))
	if err != nil {
		f.cleanup(file, destination)
		// A read error mid-body is a network failure even though it
		// surfaced during the copy.
		return fmt.Errorf("%w: download interrupted after %d bytes: %v", ErrNetwork, written, err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(destination)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	f.logger.Debug("artifact fetched",
		"url", url,
		"destination", destination,
		"bytes", written)

	return nil
}

func (f *Fetcher) cleanup(file *os.File, destination string) {
	_ = file.Close()
	if err := os.Remove(destination); err != nil {
		f.logger.Warn("failed to remove partial artifact",
			"destination", destination,
			"error", err)
	}
}
