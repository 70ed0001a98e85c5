package export

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/guttosm/tradeexport/internal/domain/errs"
)

// Sink is an output destination with explicit success and failure exits.
// Exactly one of Commit or Abort must be called.
type Sink interface {
	io.Writer
	Commit() error
	Abort()
}

// FileSink writes to a hidden temporary file next to its target and only
// renames it into place on Commit, so a failed run never leaves a partial
// file at the destination.
type FileSink struct {
	path string
	tmp  *os.File
	done bool
}

// NewFileSink creates the temporary file for path.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, &errs.IOError{Op: "open", Err: errors.New("empty output path")}
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, &errs.IOError{Op: "open", Err: err}
	}
	return &FileSink{path: path, tmp: tmp}, nil
}

// Path returns the final destination.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Write(p []byte) (int, error) {
	return s.tmp.Write(p)
}

// Commit syncs, closes and renames the temp file over the destination.
func (s *FileSink) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	name := s.tmp.Name()
	if err := s.tmp.Sync(); err != nil {
		_ = s.tmp.Close()
		_ = os.Remove(name)
		return &errs.IOError{Op: "sync", Err: err}
	}
	if err := s.tmp.Close(); err != nil {
		_ = os.Remove(name)
		return &errs.IOError{Op: "close", Err: err}
	}
	if err := os.Rename(name, s.path); err != nil {
		_ = os.Remove(name)
		return &errs.IOError{Op: "rename", Err: err}
	}
	return nil
}

// Abort discards the temp file. It is a no-op after Commit.
func (s *FileSink) Abort() {
	if s.done {
		return
	}
	s.done = true
	_ = s.tmp.Close()
	_ = os.Remove(s.tmp.Name())
}

// streamSink forwards to a writer it does not own (stdout, an HTTP body).
type streamSink struct {
	io.Writer
}

// NewStreamSink wraps w; Commit and Abort never close it.
func NewStreamSink(w io.Writer) Sink { return streamSink{Writer: w} }

func (streamSink) Commit() error { return nil }
func (streamSink) Abort()        {}
