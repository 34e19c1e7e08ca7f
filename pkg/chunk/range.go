package chunk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrInvalidRange is returned for ranges outside [0, Size()].
var ErrInvalidRange = errors.New("invalid byte range")

// RangeReader is a seekable byte source of known size.
// ReadRange may block; callers run it off the control loop.
type RangeReader interface {
	Size() int64
	ReadRange(ctx context.Context, start, end int64) ([]byte, error)
}

// RangeSource chunks a RangeReader into fixed-size ranges. Bytes are hashed unmodified.
type RangeSource struct {
	gen       uint64
	reader    RangeReader
	total     int64
	chunkSize int64
	offset    int64
	done      bool
}

// NewRangeSource creates a source over r for generation gen.
func NewRangeSource(gen uint64, r RangeReader, chunkSize int64) (*RangeSource, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, chunkSize)
	}

	return &RangeSource{
		gen:       gen,
		reader:    r,
		total:     max(r.Size(), 0),
		chunkSize: chunkSize,
	}, nil
}

// TotalSize implements Source.
func (s *RangeSource) TotalSize() int64 { return s.total }

// ChunkSize implements Source.
func (s *RangeSource) ChunkSize() int64 { return s.chunkSize }

// Sync implements Source. Range reads are treated as blocking I/O.
func (s *RangeSource) Sync() bool { return false }

// Next implements Source.
func (s *RangeSource) Next() (Descriptor, bool) {
	if s.done {
		return Descriptor{}, false
	}

	start := s.offset
	end := min(start+s.chunkSize, s.total)
	final := end >= s.total

	s.offset = end
	s.done = final

	return Descriptor{Generation: s.gen, Start: start, End: end, Final: final}, true
}

// Read implements Source.
func (s *RangeSource) Read(ctx context.Context, desc Descriptor) ([]byte, error) {
	if desc.Len() == 0 {
		return nil, nil
	}

	data, err := s.reader.ReadRange(ctx, desc.Start, desc.End)
	if err != nil {
		return nil, &ReadError{Start: desc.Start, End: desc.End, Err: err}
	}

	if int64(len(data)) != desc.Len() {
		return nil, &ReadError{
			Start: desc.Start,
			End:   desc.End,
			Err:   fmt.Errorf("short read: got %d bytes: %w", len(data), io.ErrUnexpectedEOF),
		}
	}

	return data, nil
}

// FileReader reads ranges of a file with ReadAt.
type FileReader struct {
	r    io.ReaderAt
	size int64
	c    io.Closer
}

// NewFileReader wraps an open file. The caller keeps ownership of f.
func NewFileReader(f *os.File) (*FileReader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", f.Name())
	}

	return &FileReader{r: f, size: info.Size()}, nil
}

// OpenFile opens path for range reads. Close releases the file.
func OpenFile(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	fr, err := NewFileReader(f)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	fr.c = f

	return fr, nil
}

// NewBytesReader serves ranges of an in-memory byte slice.
func NewBytesReader(b []byte) *FileReader {
	return &FileReader{r: bytes.NewReader(b), size: int64(len(b))}
}

// Size implements RangeReader.
func (fr *FileReader) Size() int64 { return fr.size }

// ReadRange implements RangeReader.
func (fr *FileReader) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	if start < 0 || end < start || end > fr.size {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrInvalidRange, start, end, fr.size)
	}

	buf := make([]byte, end-start)

	n, err := fr.r.ReadAt(buf, start)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nil, fmt.Errorf("read at %d: %w", start, err)
	}

	return buf[:n], nil
}

// Close releases the underlying file when the reader owns it.
func (fr *FileReader) Close() error {
	if fr.c == nil {
		return nil
	}

	err := fr.c.Close()
	fr.c = nil

	return err
}
