// ABOUTME: Captures a child process's stdout/stderr with memory-to-tempfile switchover
// ABOUTME: Tracks its own tempfiles so cleanup removes exactly what this capture created and nothing else

package stream

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bastelbude1/tasker/pkg/types"
)

const readChunkSize = 8 * 1024 // 8 KiB

var _ types.StreamingOutputHandler = (*Capture)(nil)

// Handler captures one stream (stdout or stderr), buffering in memory until
// types.StreamMemoryThreshold is crossed, then spilling to a uniquely named
// tempfile. Bytes beyond types.StreamHardCap are dropped with Truncated set.
type Handler struct {
	mu        sync.Mutex
	prefix    string // "tasker_stdout_" or "tasker_stderr_"
	buf       []byte
	file      *os.File
	filePath  string
	size      int64
	truncated bool
}

// NewStdoutHandler builds a Handler for a task's stdout stream.
func NewStdoutHandler() *Handler { return &Handler{prefix: "tasker_stdout_"} }

// NewStderrHandler builds a Handler for a task's stderr stream.
func NewStderrHandler() *Handler { return &Handler{prefix: "tasker_stderr_"} }

// Write implements io.Writer so a Handler can be used directly as
// exec.Cmd.Stdout / exec.Cmd.Stderr.
func (h *Handler) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := len(p)
	if h.size >= types.StreamHardCap {
		h.truncated = true
		return total, nil
	}
	if h.size+int64(len(p)) > types.StreamHardCap {
		allowed := types.StreamHardCap - h.size
		p = p[:allowed]
		h.truncated = true
	}

	if h.file == nil && h.size+int64(len(p)) > types.StreamMemoryThreshold {
		if err := h.spill(); err != nil {
			return 0, err
		}
	}

	if h.file != nil {
		n, err := h.file.Write(p)
		h.size += int64(n)
		return total, err
	}

	h.buf = append(h.buf, p...)
	h.size += int64(len(p))
	return total, nil
}

func (h *Handler) spill() error {
	f, err := os.CreateTemp("", h.prefix+"*")
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	if len(h.buf) > 0 {
		if _, err := f.Write(h.buf); err != nil {
			f.Close()
			return err
		}
	}
	h.file = f
	h.filePath = f.Name()
	h.buf = nil
	return nil
}

// Finish closes any backing file and returns the captured stream as a
// types.StreamRef.
func (h *Handler) Finish() (types.StreamRef, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file != nil {
		if err := h.file.Close(); err != nil {
			return types.StreamRef{}, err
		}
		return types.StreamRef{FilePath: h.filePath, Size: h.size, Truncated: h.truncated}, nil
	}
	return types.StreamRef{InMemory: h.buf, Size: h.size, Truncated: h.truncated}, nil
}

// ReadBounded returns up to limit bytes of a captured stream, reading from
// disk when the stream spilled. Used by the substitution engine to inline
// @N_stdout@ / @N_stderr@ references without violating ARG_MAX.
func ReadBounded(ref types.StreamRef, limit int) ([]byte, error) {
	if !ref.IsFile() {
		if len(ref.InMemory) <= limit {
			return ref.InMemory, nil
		}
		return ref.InMemory[:limit], nil
	}
	f, err := os.Open(ref.FilePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, limit)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// ReadAll returns the full captured stream, regardless of size. Used by the
// stream predicates, LineCount, and stdout_split/stderr_split, which need the
// whole stream; @N_stdout_file@ substitution passes the path instead.
func ReadAll(ref types.StreamRef) ([]byte, error) {
	if !ref.IsFile() {
		return ref.InMemory, nil
	}
	return os.ReadFile(ref.FilePath)
}

// Capture bundles a stdout and a stderr Handler behind the single interface
// ExecDeps-level callers expect (types.StreamingOutputHandler), so the
// executor package never has to juggle two handler values directly.
type Capture struct {
	stdout *Handler
	stderr *Handler
}

// NewCapture builds a Capture ready to be wired as a child process's
// Stdout/Stderr writers.
func NewCapture() *Capture {
	return &Capture{stdout: NewStdoutHandler(), stderr: NewStderrHandler()}
}

func (c *Capture) WriteStdout(p []byte) (int, error) { return c.stdout.Write(p) }
func (c *Capture) WriteStderr(p []byte) (int, error) { return c.stderr.Write(p) }

// Stdout exposes the stdout Handler directly for use as an io.Writer.
func (c *Capture) Stdout() *Handler { return c.stdout }

// Stderr exposes the stderr Handler directly for use as an io.Writer.
func (c *Capture) Stderr() *Handler { return c.stderr }

// Finish closes both backing files (if any) and returns both StreamRefs.
func (c *Capture) Finish() (stdout, stderr types.StreamRef, err error) {
	stdout, err = c.stdout.Finish()
	if err != nil {
		return
	}
	stderr, err = c.stderr.Finish()
	return
}

// Cleanup removes any tempfiles this Capture spilled to, ignoring
// already-removed files.
func (c *Capture) Cleanup() error {
	var firstErr error
	for _, path := range []string{c.stdout.filePath, c.stderr.filePath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LineCount returns the number of lines in a captured stream, for
// stdout_count/stderr_count predicates.
func LineCount(ref types.StreamRef) (int, error) {
	data, err := ReadAll(ref)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	count := 0
	for _, b := range data {
		if b == '\n' {
			count++
		}
	}
	if data[len(data)-1] != '\n' {
		count++
	}
	return count, nil
}
