// Package console decorates the byte stream a step body writes to its console.
package console

import "io"

// Filter wraps a console writer.
type Filter interface {
	Decorate(w io.Writer) io.Writer
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(io.Writer) io.Writer

// Decorate implements Filter.
func (f FilterFunc) Decorate(w io.Writer) io.Writer { return f(w) }

type passThrough struct{}

func (passThrough) Decorate(w io.Writer) io.Writer { return w }

// PassThrough leaves the writer untouched.
var PassThrough Filter = passThrough{}

// Flusher is implemented by decorated writers that buffer a trailing partial line.
type Flusher interface {
	Flush() error
}

// Flush flushes w when it buffers output.
func Flush(w io.Writer) error {
	if f, ok := w.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

type chain []Filter

// Merge combines filters. The first filter is applied closest to the sink, so
// output written to the merged writer passes through the last filter first.
// This matches adding a new filter on top of one inherited from the host.
// Nil filters are skipped.
func Merge(filters ...Filter) Filter {
	var c chain
	for _, f := range filters {
		if f == nil {
			continue
		}
		if inner, ok := f.(chain); ok {
			c = append(c, inner...)
			continue
		}
		c = append(c, f)
	}
	switch len(c) {
	case 0:
		return PassThrough
	case 1:
		return c[0]
	default:
		return c
	}
}

func (c chain) Decorate(w io.Writer) io.Writer {
	for _, f := range c {
		w = f.Decorate(w)
	}
	return w
}
