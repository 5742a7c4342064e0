package table

// streaming.go cleans CSV input before it reaches encoding/csv:
//
//   - the UTF-8 BOM written by Windows programs is dropped
//   - invalid UTF-8 sequences are replaced with U+FFFD
//
// Both run over a single bufio.Reader so memory stays at the buffer size.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewCleanReader wraps r with BOM skipping and UTF-8 sanitization.
func NewCleanReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return &utf8Sanitizer{r: br}
}

// utf8Sanitizer re-encodes its input rune by rune. A rune that does not fit
// in the caller's buffer is kept in pending for the next Read.
type utf8Sanitizer struct {
	r       *bufio.Reader
	pending []byte
	buf     [utf8.UTFMax]byte
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.pending) > 0 {
			c := copy(p[n:], s.pending)
			s.pending = s.pending[c:]
			n += c
			continue
		}

		r, size, err := s.r.ReadRune()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		// ReadRune reports invalid bytes as (RuneError, 1); a literal
		// U+FFFD in the input has size 3 and passes through unchanged.
		if r == utf8.RuneError && size == 1 {
			r = utf8.RuneError
		}

		w := utf8.EncodeRune(s.buf[:], r)
		c := copy(p[n:], s.buf[:w])
		n += c
		if c < w {
			s.pending = s.buf[c:w]
		}
	}
	return n, nil
}
