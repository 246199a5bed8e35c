package console

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
)

// Annotator highlights Gradle output: task headers, the build outcome banner,
// error lines and the step's own [WithGradle] messages. Line content is never
// altered, only wrapped in styling when the sink supports color.
type Annotator struct {
	renderer *lipgloss.Renderer
	plain    bool
}

// AnnotatorOption customizes an Annotator.
type AnnotatorOption func(*Annotator)

// WithRenderer fixes the renderer instead of detecting one per sink.
func WithRenderer(r *lipgloss.Renderer) AnnotatorOption {
	return func(a *Annotator) { a.renderer = r }
}

// WithPlain disables styling; lines pass through verbatim.
func WithPlain() AnnotatorOption {
	return func(a *Annotator) { a.plain = true }
}

// NewAnnotator returns an Annotator.
func NewAnnotator(opts ...AnnotatorOption) *Annotator {
	a := &Annotator{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Decorate implements Filter. The returned writer buffers an unterminated
// line until the next newline or Flush.
func (a *Annotator) Decorate(w io.Writer) io.Writer {
	r := a.renderer
	if r == nil {
		r = lipgloss.NewRenderer(w)
	}
	return &annotatingWriter{out: w, styles: newStyles(r), plain: a.plain}
}

type styles struct {
	task    lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	err     lipgloss.Style
	step    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		task:    r.NewStyle().Bold(true).Foreground(colorCyan),
		success: r.NewStyle().Bold(true).Foreground(colorGreen),
		failure: r.NewStyle().Bold(true).Foreground(colorRed),
		err:     r.NewStyle().Foreground(colorRed),
		step:    r.NewStyle().Foreground(colorYellow),
	}
}

func (s styles) render(line string) string {
	switch {
	case strings.HasPrefix(line, "> Task "):
		return s.task.Render(line)
	case strings.HasPrefix(line, "BUILD SUCCESSFUL"):
		return s.success.Render(line)
	case strings.HasPrefix(line, "BUILD FAILED"):
		return s.failure.Render(line)
	case strings.HasPrefix(line, "[WithGradle]"):
		return s.step.Render(line)
	case strings.Contains(line, "ERROR"), strings.HasPrefix(line, "FAILURE:"):
		return s.err.Render(line)
	default:
		return line
	}
}

type annotatingWriter struct {
	mu      sync.Mutex
	out     io.Writer
	styles  styles
	plain   bool
	pending []byte
}

func (w *annotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := p
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			w.pending = append(w.pending, data...)
			return len(p), nil
		}
		line := string(append(w.pending, data[:i]...))
		w.pending = w.pending[:0]
		if err := w.emit(line, true); err != nil {
			return 0, err
		}
		data = data[i+1:]
	}
}

// Flush writes a buffered partial line and flushes the sink.
func (w *annotatingWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		line := string(w.pending)
		w.pending = w.pending[:0]
		if err := w.emit(line, false); err != nil {
			return err
		}
	}
	return Flush(w.out)
}

func (w *annotatingWriter) emit(line string, newline bool) error {
	cr := strings.HasSuffix(line, "\r")
	text := strings.TrimSuffix(line, "\r")
	if !w.plain {
		text = w.styles.render(text)
	}
	if cr {
		text += "\r"
	}
	if newline {
		text += "\n"
	}
	_, err := io.WriteString(w.out, text)
	return err
}
