package chunk

import (
	"context"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/Sumatoshi-tech/multisum/pkg/digest"
)

// TextSource chunks an in-memory string.
//
// Offsets index the caller's UTF-8 string. Cuts are placed only where a rune
// starts a new NFC segment, so normalizing each chunk separately yields the
// same bytes as normalizing the whole text. When no such cut exists within
// the chunk size, the chunk grows to the next one.
type TextSource struct {
	gen       uint64
	text      string
	chunkSize int64
	offset    int
	done      bool
}

// NewTextSource creates a source over text for generation gen.
func NewTextSource(gen uint64, text string, chunkSize int64) (*TextSource, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, chunkSize)
	}

	return &TextSource{gen: gen, text: text, chunkSize: chunkSize}, nil
}

// TotalSize implements Source.
func (s *TextSource) TotalSize() int64 { return int64(len(s.text)) }

// ChunkSize implements Source.
func (s *TextSource) ChunkSize() int64 { return s.chunkSize }

// Sync implements Source.
func (s *TextSource) Sync() bool { return true }

// Next implements Source.
func (s *TextSource) Next() (Descriptor, bool) {
	if s.done {
		return Descriptor{}, false
	}

	start := s.offset
	end := s.cut(start)
	final := end >= len(s.text)

	s.offset = end
	s.done = final

	return Descriptor{Generation: s.gen, Start: int64(start), End: int64(end), Final: final}, true
}

// Read implements Source. It returns the NFC form of the range.
func (s *TextSource) Read(_ context.Context, desc Descriptor) ([]byte, error) {
	if desc.Start < 0 || desc.End < desc.Start || desc.End > int64(len(s.text)) {
		return nil, &ReadError{
			Start: desc.Start,
			End:   desc.End,
			Err:   fmt.Errorf("%w: text length %d", ErrInvalidRange, len(s.text)),
		}
	}

	return digest.NormalizeText(s.text[desc.Start:desc.End]), nil
}

// cut returns the end offset of the chunk starting at start.
func (s *TextSource) cut(start int) int {
	n := len(s.text)

	limit := start + int(min(s.chunkSize, int64(n)))
	if limit >= n {
		return n
	}

	for i := limit; i > start; i-- {
		if s.segmentStart(i) {
			return i
		}
	}

	for i := limit + 1; i < n; i++ {
		if s.segmentStart(i) {
			return i
		}
	}

	return n
}

// segmentStart reports whether a normalization segment begins at byte i.
func (s *TextSource) segmentStart(i int) bool {
	if !utf8.RuneStart(s.text[i]) {
		return false
	}

	return norm.NFC.PropertiesString(s.text[i:]).BoundaryBefore()
}
