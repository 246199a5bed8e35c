package logtail

import (
	"bytes"
	"context"
	"sync"
)

// MemoryTail is an in-process log. It satisfies io.Writer so it can sit behind
// a console decorator and collect a body's output while watchers read it.
type MemoryTail struct {
	mu      sync.RWMutex
	lines   []string
	partial []byte
	limit   int
	subs    map[chan struct{}]struct{}
}

// NewMemoryTail returns an empty log. limit > 0 bounds retained complete lines;
// older lines are discarded first.
func NewMemoryTail(limit int) *MemoryTail {
	return &MemoryTail{limit: limit, subs: make(map[chan struct{}]struct{})}
}

// Write appends p, splitting on '\n'. It never fails.
func (m *MemoryTail) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	data := p
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			m.partial = append(m.partial, data...)
			break
		}
		line := string(append(m.partial, data[:i]...))
		m.partial = m.partial[:0]
		m.lines = append(m.lines, trimCR(line))
		data = data[i+1:]
	}
	m.trim()
	m.broadcast()
	m.mu.Unlock()
	return len(p), nil
}

// Append adds complete lines.
func (m *MemoryTail) Append(lines ...string) {
	m.mu.Lock()
	m.lines = append(m.lines, lines...)
	m.trim()
	m.broadcast()
	m.mu.Unlock()
}

// LastLines implements Tail.
func (m *MemoryTail) LastLines(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := len(m.lines)
	if len(m.partial) > 0 {
		total++
	}
	if n > total {
		n = total
	}
	out := make([]string, 0, n)
	fromLines := n
	if len(m.partial) > 0 {
		fromLines--
	}
	out = append(out, m.lines[len(m.lines)-fromLines:]...)
	if len(m.partial) > 0 {
		out = append(out, trimCR(string(m.partial)))
	}
	return out, nil
}

// Len reports the number of complete lines retained.
func (m *MemoryTail) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lines)
}

// Watch implements Watchable.
func (m *MemoryTail) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

// caller holds mu
func (m *MemoryTail) broadcast() {
	for ch := range m.subs {
		notify(ch)
	}
}

// caller holds mu
func (m *MemoryTail) trim() {
	if m.limit > 0 && len(m.lines) > m.limit {
		m.lines = append(m.lines[:0:0], m.lines[len(m.lines)-m.limit:]...)
	}
}

func trimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}
