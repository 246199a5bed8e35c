// Package logtail exposes append-only, line-oriented logs as "last N lines" windows.
//
// Implementations must tolerate a reader racing a writer: a window may end with
// a line the writer has not finished yet. That trailing partial line is returned
// as-is so a process whose final output lacks a newline is still observed.
package logtail

import "context"

// Tail reads the most recent lines of a log.
type Tail interface {
	// LastLines returns up to n lines, oldest first. n <= 0 yields no lines.
	LastLines(n int) ([]string, error)
}

// Watchable is implemented by tails that can signal appends. The returned
// channel receives a value (coalesced) after new data arrives and is closed
// once ctx is done.
type Watchable interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Lines adapts a fixed slice to Tail. Useful for classifying a captured window.
type Lines []string

// LastLines implements Tail.
func (l Lines) LastLines(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > len(l) {
		n = len(l)
	}
	out := make([]string, n)
	copy(out, l[len(l)-n:])
	return out, nil
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
		// already pending
	}
}
