package logtail

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
	"git.home.luguber.info/inful/withgradle/internal/logfields"
)

const defaultChunk = 8 * 1024

// FileTail reads the end of a log file that another process appends to.
// A file that does not exist yet reads as empty.
type FileTail struct {
	path  string
	chunk int64
}

// NewFileTail returns a tail over path.
func NewFileTail(path string) *FileTail {
	return &FileTail{path: path, chunk: defaultChunk}
}

// Path returns the monitored file.
func (f *FileTail) Path() string { return f.path }

// LastLines implements Tail by reading backwards from EOF until n lines are
// available or the start of the file is reached.
func (f *FileTail) LastLines(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open log").
			WithContext("path", f.path).
			Build()
	}
	defer func() { _ = file.Close() }()

	st, err := file.Stat()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat log").
			WithContext("path", f.path).
			Build()
	}

	var buf []byte
	pos := st.Size()
	for pos > 0 {
		size := min(f.chunk, pos)
		pos -= size
		block := make([]byte, size)
		if _, err := file.ReadAt(block, pos); err != nil && err != io.EOF {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read log").
				WithContext("path", f.path).
				Build()
		}
		buf = append(block, buf...)
		if bytes.Count(buf, []byte{'\n'}) > n {
			break
		}
	}

	text := strings.TrimSuffix(string(buf), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if pos > 0 {
		// first segment starts mid-line
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, l := range lines {
		lines[i] = trimCR(l)
	}
	return lines, nil
}

// Watch implements Watchable using fsnotify on the containing directory, which
// keeps working when the file is created or rotated after watching starts.
func (f *FileTail) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	abs, err := filepath.Abs(f.path)
	if err != nil {
		_ = w.Close()
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve log path").
			WithContext("path", f.path).
			Build()
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to watch log directory").
			WithContext("path", filepath.Dir(abs)).
			Build()
	}

	ch := make(chan struct{}, 1)
	name := filepath.Base(abs)
	go func() {
		defer close(ch)
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					notify(ch)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Debug("Log watcher error", logfields.Path(abs), logfields.Error(err))
			}
		}
	}()
	return ch, nil
}
