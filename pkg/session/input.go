package session

import "github.com/Sumatoshi-tech/multisum/pkg/chunk"

// Input source names used in logs, spans and metrics.
const (
	SourceText = "text"
	SourceFile = "file"
)

// Input is one thing to hash: a text value or a byte-range reader.
type Input struct {
	// Label names the input in logs and reports, e.g. a file path.
	Label string

	text   string
	reader chunk.RangeReader
}

// TextInput hashes the NFC-normalized UTF-8 bytes of text.
func TextInput(text string) Input {
	return Input{text: text}
}

// FileInput hashes the raw bytes served by r.
func FileInput(r chunk.RangeReader) Input {
	return Input{reader: r}
}

// WithLabel returns a copy of in labeled label.
func (in Input) WithLabel(label string) Input {
	in.Label = label

	return in
}

// Source returns SourceText or SourceFile.
func (in Input) Source() string {
	if in.reader != nil {
		return SourceFile
	}

	return SourceText
}

// Size returns the input length in bytes before normalization.
func (in Input) Size() int64 {
	if in.reader != nil {
		return in.reader.Size()
	}

	return int64(len(in.text))
}

func (in Input) chunks(gen uint64, chunkSize int64) (chunk.Source, error) {
	if in.reader != nil {
		return chunk.NewRangeSource(gen, in.reader, chunkSize)
	}

	return chunk.NewTextSource(gen, in.text, chunkSize)
}
