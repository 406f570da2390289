package generate

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"
)

// ReaderSource turns an io.Reader into fragments of at most ChunkSize bytes.
// A rune split across reads is held back until it is complete.
type ReaderSource struct {
	r     io.Reader
	buf   []byte
	carry []byte
	eof   bool
}

// NewReaderSource reads from r in chunks of chunkSize bytes (4096 if <= 0).
func NewReaderSource(r io.Reader, chunkSize int) *ReaderSource {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	return &ReaderSource{r: r, buf: make([]byte, chunkSize)}
}

// Next returns the next fragment, or io.EOF once the reader is drained.
func (s *ReaderSource) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if s.eof {
			if len(s.carry) == 0 {
				return "", io.EOF
			}
			out := string(s.carry)
			s.carry = nil
			return out, nil
		}

		n, err := s.r.Read(s.buf)
		data := append(s.carry, s.buf[:n]...)
		s.carry = nil
		if errors.Is(err, io.EOF) {
			s.eof = true
		} else if err != nil {
			return "", err
		}
		if s.eof {
			s.carry = data
			continue
		}

		cut := completeRunes(data)
		s.carry = append([]byte(nil), data[cut:]...)
		if cut > 0 {
			return string(data[:cut]), nil
		}
	}
}

// Close closes the reader when it is an io.Closer.
func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// completeRunes returns the length of the longest prefix of p that does not
// end inside a multi-byte rune.
func completeRunes(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if !utf8.FullRune(p[i:]) {
				return i
			}
			break
		}
	}
	return len(p)
}
