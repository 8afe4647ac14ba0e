package exec

import (
	"bytes"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// StreamingWriter writes subprocess output line by line behind a styled
// label such as "[install] ".
//
// Partial lines are held until their newline arrives or Flush is called.
// Carriage-return redraws (progress bars) keep only the last redraw.
// Writers created with NewStreamingPair share a lock, so a command's stdout
// and stderr lines never interleave mid-line on a shared terminal.
type StreamingWriter struct {
	prefix string
	writer io.Writer
	mu     *sync.Mutex
	buffer []byte
}

// NewStreamingWriter creates a writer that renders prefix in color
func NewStreamingWriter(writer io.Writer, prefix string, color lipgloss.Color) *StreamingWriter {
	return newStreamingWriter(writer, prefix, color, &sync.Mutex{})
}

// NewStreamingPair creates stdout and stderr writers for one command
func NewStreamingPair(stdout, stderr io.Writer, label string) (*StreamingWriter, *StreamingWriter) {
	mu := &sync.Mutex{}
	prefix := "[" + label + "] "
	return newStreamingWriter(stdout, prefix, lipgloss.Color("245"), mu),
		newStreamingWriter(stderr, prefix, lipgloss.Color("203"), mu)
}

func newStreamingWriter(writer io.Writer, prefix string, color lipgloss.Color, mu *sync.Mutex) *StreamingWriter {
	if prefix != "" {
		prefix = lipgloss.NewStyle().Foreground(color).Render(prefix)
	}
	return &StreamingWriter{
		prefix: prefix,
		writer: writer,
		mu:     mu,
	}
}

// Write emits every complete line in p and buffers the rest
func (s *StreamingWriter) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, p...)

	for {
		i := bytes.IndexByte(s.buffer, '\n')
		if i < 0 {
			break
		}
		if err := s.emit(s.buffer[:i]); err != nil {
			return 0, err
		}
		s.buffer = s.buffer[i+1:]
	}

	return len(p), nil
}

// Flush writes a trailing partial line, if any
func (s *StreamingWriter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) == 0 {
		return nil
	}
	err := s.emit(s.buffer)
	s.buffer = nil
	return err
}

// emit writes one line; callers hold s.mu
func (s *StreamingWriter) emit(line []byte) error {
	line = bytes.TrimRight(line, "\r")
	if i := bytes.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}

	out := make([]byte, 0, len(s.prefix)+len(line)+1)
	out = append(out, s.prefix...)
	out = append(out, line...)
	out = append(out, '\n')

	_, err := s.writer.Write(out)
	return err
}
