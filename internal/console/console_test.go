package console

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefixFilter(prefix string) Filter {
	return FilterFunc(func(w io.Writer) io.Writer {
		return writerFunc(func(p []byte) (int, error) {
			if _, err := io.WriteString(w, prefix+string(p)); err != nil {
				return 0, err
			}
			return len(p), nil
		})
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestPassThrough(t *testing.T) {
	var buf bytes.Buffer
	w := PassThrough.Decorate(&buf)
	_, err := io.WriteString(w, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
}

func TestMergeOrder(t *testing.T) {
	var buf bytes.Buffer
	existing := prefixFilter("[host]")
	added := prefixFilter("[step]")

	w := Merge(existing, added).Decorate(&buf)
	_, err := io.WriteString(w, "x")
	require.NoError(t, err)

	// "added" sees the write first, then "existing" wraps its output.
	assert.Equal(t, "[host][step]x", buf.String())
}

func TestMergeSkipsNilAndFlattens(t *testing.T) {
	assert.Equal(t, PassThrough, Merge())
	assert.Equal(t, PassThrough, Merge(nil, nil))

	single := prefixFilter("a")
	var buf bytes.Buffer
	_, _ = io.WriteString(Merge(nil, single).Decorate(&buf), "1")
	assert.Equal(t, "a1", buf.String())

	nested := Merge(prefixFilter("a"), prefixFilter("b"))
	merged := Merge(nested, prefixFilter("c"))
	assert.Len(t, merged, 3)
}

func TestAnnotatorPreservesContent(t *testing.T) {
	var buf bytes.Buffer
	r := lipgloss.NewRenderer(&buf)
	r.SetColorProfile(termenv.Ascii)
	w := NewAnnotator(WithRenderer(r)).Decorate(&buf)

	input := "> Task :compileJava\nERROR: boom\nBUILD FAILED in 2s\n[WithGradle] Execution begin\nplain\n"
	_, err := io.WriteString(w, input)
	require.NoError(t, err)
	assert.Equal(t, input, buf.String())
}

func TestAnnotatorBuffersPartialLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewAnnotator(WithPlain()).Decorate(&buf)

	_, _ = io.WriteString(w, "BUILD SUCC")
	assert.Empty(t, buf.String())

	_, _ = io.WriteString(w, "ESSFUL\r\ntail")
	assert.Equal(t, "BUILD SUCCESSFUL\r\n", buf.String())

	require.NoError(t, Flush(w))
	assert.Equal(t, "BUILD SUCCESSFUL\r\ntail", buf.String())
}

func TestStylesRender(t *testing.T) {
	s := newStyles(lipgloss.NewRenderer(io.Discard))

	for _, line := range []string{"> Task :test", "BUILD SUCCESSFUL", "BUILD FAILED", "[WithGradle] x", "ERROR y", "FAILURE: z", "other"} {
		assert.True(t, strings.Contains(s.render(line), line), line)
	}
	assert.Equal(t, "other", s.render("other"))
}

func TestFlushPlainWriter(t *testing.T) {
	require.NoError(t, Flush(&bytes.Buffer{}))
}

var sgrPattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestAnnotatorColorsOutcome(t *testing.T) {
	var buf bytes.Buffer
	r := lipgloss.NewRenderer(&buf)
	r.SetColorProfile(termenv.ANSI256)
	w := NewAnnotator(WithRenderer(r)).Decorate(&buf)

	_, err := io.WriteString(w, "BUILD FAILED in 1s\nplain\n")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "BUILD FAILED in 1s")
	assert.True(t, strings.HasSuffix(out, "\nplain\n"))

	assert.Equal(t, "BUILD FAILED in 1s\nplain\n", sgrPattern.ReplaceAllString(out, ""), "styling must not alter content")
}
