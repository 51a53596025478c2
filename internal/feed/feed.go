// Package feed delivers filter commands read line by line from a script,
// any reader, or a serial device to one or more subscribers.
package feed

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/gridloc/internal/monitoring"
	"github.com/banshee-data/gridloc/internal/timeutil"
)

// Port is the minimal interface a command source must satisfy.
type Port interface {
	io.Reader
	io.Closer
}

// Feed parses lines from a port and fans the resulting commands out to
// subscribers. Delivery blocks until every subscriber has received the
// command, so no step of a run is dropped.
type Feed[T Port] struct {
	port     T
	interval time.Duration
	clock    timeutil.Clock

	subscribers  map[string]chan Command
	subscriberMu sync.Mutex

	malformedMu sync.Mutex
	malformed   int

	closing   bool
	closingMu sync.Mutex
}

// New creates a Feed reading from port. A positive interval paces
// delivery, waiting that long before each command.
func New[T Port](port T, interval time.Duration) *Feed[T] {
	return &Feed[T]{
		port:        port,
		interval:    interval,
		clock:       timeutil.RealClock{},
		subscribers: make(map[string]chan Command),
	}
}

// SetClock replaces the clock used for pacing. Call before Monitor.
func (f *Feed[T]) SetClock(c timeutil.Clock) {
	f.clock = c
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new channel. The ID is used to unsubscribe.
func (f *Feed[T]) Subscribe() (string, <-chan Command) {
	id := randomID()
	ch := make(chan Command)
	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	f.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (f *Feed[T]) Unsubscribe(id string) {
	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	if ch, ok := f.subscribers[id]; ok {
		close(ch)
		delete(f.subscribers, id)
	}
}

// Malformed returns how many lines were skipped as invalid.
func (f *Feed[T]) Malformed() int {
	f.malformedMu.Lock()
	defer f.malformedMu.Unlock()
	return f.malformed
}

// Monitor reads the port until EOF, cancellation or a read error. It
// returns nil at EOF and ctx.Err() when cancelled. Malformed lines are
// logged and skipped.
func (f *Feed[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(f.port)

	type numbered struct {
		n    int
		text string
	}
	lineChan := make(chan numbered)
	scanErrChan := make(chan error, 1)

	// The blocking scan runs in its own goroutine so the outer loop can
	// still observe cancellation.
	go func() {
		defer close(lineChan)
		n := 0
		for scan.Scan() {
			n++
			select {
			case lineChan <- numbered{n: n, text: scan.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	var ticker timeutil.Ticker
	if f.interval > 0 {
		ticker = f.clock.NewTicker(f.interval)
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			if f.isClosing() {
				return nil
			}

			cmd, ok, err := ParseCommand(line.text)
			if err != nil {
				f.malformedMu.Lock()
				f.malformed++
				f.malformedMu.Unlock()
				monitoring.Logf("feed: skipping line %d: %v", line.n, err)
				continue
			}
			if !ok {
				continue
			}
			cmd.Line = line.n

			if ticker != nil {
				select {
				case <-ticker.C():
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := f.dispatch(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (f *Feed[T]) dispatch(ctx context.Context, cmd Command) error {
	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	for _, ch := range f.subscribers {
		select {
		case ch <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	monitoring.Debugf("feed: dispatched line %d: %s", cmd.Line, cmd)
	return nil
}

func (f *Feed[T]) isClosing() bool {
	f.closingMu.Lock()
	defer f.closingMu.Unlock()
	return f.closing
}

// Close closes all subscriber channels and the port.
func (f *Feed[T]) Close() error {
	f.closingMu.Lock()
	f.closing = true
	f.closingMu.Unlock()

	f.subscriberMu.Lock()
	defer f.subscriberMu.Unlock()
	for id, ch := range f.subscribers {
		close(ch)
		delete(f.subscribers, id)
	}
	return f.port.Close()
}
