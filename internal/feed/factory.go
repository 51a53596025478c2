package feed

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.bug.st/serial"
)

// OpenSerial opens a live feed on the serial device at path.
func OpenSerial(path string, opts PortOptions) (*Feed[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return New[serial.Port](port, 0), nil
}

// OpenFile opens a command script for replay.
func OpenFile(path string, interval time.Duration) (*Feed[*os.File], error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	return New(f, interval), nil
}

// FromReader wraps r, e.g. os.Stdin or a string in tests.
func FromReader(r io.Reader, interval time.Duration) *Feed[io.ReadCloser] {
	return New(io.NopCloser(r), interval)
}
