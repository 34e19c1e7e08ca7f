package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/multisum/pkg/chunk"
	"github.com/Sumatoshi-tech/multisum/pkg/digest"
	"github.com/Sumatoshi-tech/multisum/pkg/session"
	"github.com/Sumatoshi-tech/multisum/pkg/units"
)

// Tool names.
const (
	ToolNameChecksumText = "checksum_text"
	ToolNameChecksumFile = "checksum_file"
)

// MaxTextInputBytes is the largest text value accepted by checksum_text.
const MaxTextInputBytes = 16 * units.MiB

// Sentinel errors for tool input validation.
var (
	ErrEmptyPath       = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrTextTooLarge    = errors.New("text exceeds maximum size")
)

// ChecksumTextInput is the input schema for the checksum_text tool.
type ChecksumTextInput struct {
	Text       string   `json:"text"                 jsonschema:"Text to hash. Normalized to Unicode NFC before hashing."`
	Algorithms []string `json:"algorithms,omitempty" jsonschema:"Subset of md5, sha1, sha256. Defaults to all configured algorithms."`
}

// ChecksumFileInput is the input schema for the checksum_file tool.
type ChecksumFileInput struct {
	Path       string   `json:"path"                 jsonschema:"Absolute path to a local file"`
	Algorithms []string `json:"algorithms,omitempty" jsonschema:"Subset of md5, sha1, sha256. Defaults to all configured algorithms."`
}

// ChecksumOutput is the structured payload returned by both tools.
type ChecksumOutput struct {
	Label     string            `json:"label,omitempty"`
	Source    string            `json:"source"`
	Size      int64             `json:"size"`
	Chunks    int               `json:"chunks"`
	ElapsedMS int64             `json:"elapsed_ms"`
	Digests   map[string]string `json:"digests"`
}

// ToolOutput is the structured output for all tools.
type ToolOutput struct {
	Data any `json:"data,omitempty"`
}

func (s *Server) handleChecksumText(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ChecksumTextInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if len(input.Text) > MaxTextInputBytes {
		return errorResult(fmt.Errorf("%w: %d bytes, limit %d", ErrTextTooLarge, len(input.Text), MaxTextInputBytes))
	}

	return s.checksum(ctx, session.TextInput(input.Text), input.Algorithms)
}

func (s *Server) handleChecksumFile(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ChecksumFileInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Path == "" {
		return errorResult(ErrEmptyPath)
	}

	if !filepath.IsAbs(input.Path) {
		return errorResult(fmt.Errorf("%w: %s", ErrPathNotAbsolute, input.Path))
	}

	fr, err := chunk.OpenFile(filepath.Clean(input.Path))
	if err != nil {
		return errorResult(err)
	}
	defer fr.Close()

	return s.checksum(ctx, session.FileInput(fr).WithLabel(input.Path), input.Algorithms)
}

func (s *Server) checksum(
	ctx context.Context, in session.Input, names []string,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	cfg := s.cfg

	if len(names) > 0 {
		algs, err := digest.ParseAlgorithms(names)
		if err != nil {
			return errorResult(err)
		}

		cfg.Algorithms = algs
	}

	res, err := session.Compute(ctx, cfg, in, s.opts...)
	if err != nil {
		s.logger.WarnContext(ctx, "checksum failed", "source", in.Source(), "label", in.Label, "error", err)

		return errorResult(err)
	}

	out := ChecksumOutput{
		Label:     res.Label,
		Source:    res.Source,
		Size:      res.TotalSize,
		Chunks:    res.Chunks,
		ElapsedMS: res.Elapsed.Milliseconds(),
		Digests:   make(map[string]string, len(res.Digests)),
	}

	for _, d := range res.Ordered() {
		out.Digests[d.Algorithm.String()] = d.Hex
	}

	return jsonResult(out)
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return errorResult(fmt.Errorf("marshal result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}
