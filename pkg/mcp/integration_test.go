package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/multisum/pkg/mcp"
)

const (
	helloMD5    = "5d41402abc4b2a76b9719d911017c592"
	helloSHA1   = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"
	helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
)

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) (context.Context, *mcpsdk.ClientSession) {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return ctx, session
}

func decodeOutput(t *testing.T, result *mcpsdk.CallToolResult) mcp.ChecksumOutput {
	t.Helper()

	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok, "first content should be text")

	var out mcp.ChecksumOutput
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))

	return out
}

func TestMCPServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, toolsResult)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
	}

	assert.ElementsMatch(t, []string{mcp.ToolNameChecksumText, mcp.ToolNameChecksumFile}, toolNames)

	for _, tool := range toolsResult.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}
}

func TestMCPServer_InMemoryTransport_ChecksumText(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameChecksumText,
		Arguments: map[string]any{"text": "hello"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decodeOutput(t, result)
	assert.Equal(t, "text", out.Source)
	assert.Equal(t, int64(5), out.Size)
	assert.Equal(t, map[string]string{
		"md5":    helloMD5,
		"sha1":   helloSHA1,
		"sha256": helloSHA256,
	}, out.Digests)
}

func TestMCPServer_InMemoryTransport_ChecksumTextSubset(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameChecksumText,
		Arguments: map[string]any{"text": "hello", "algorithms": []string{"sha256"}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decodeOutput(t, result)
	assert.Equal(t, map[string]string{"sha256": helloSHA256}, out.Digests)
}

func TestMCPServer_InMemoryTransport_ChecksumFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameChecksumFile,
		Arguments: map[string]any{"path": path},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decodeOutput(t, result)
	assert.Equal(t, "file", out.Source)
	assert.Equal(t, path, out.Label)
	assert.Equal(t, helloSHA1, out.Digests["sha1"])
}

func TestMCPServer_InMemoryTransport_ToolErrors(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.bin")

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{name: "relative path", tool: mcp.ToolNameChecksumFile, args: map[string]any{"path": "rel/file"}, want: "absolute"},
		{name: "empty path", tool: mcp.ToolNameChecksumFile, args: map[string]any{"path": ""}, want: "required"},
		{name: "missing file", tool: mcp.ToolNameChecksumFile, args: map[string]any{"path": missing}, want: "missing.bin"},
		{
			name: "unknown algorithm", tool: mcp.ToolNameChecksumText,
			args: map[string]any{"text": "x", "algorithms": []string{"crc32"}}, want: "crc32",
		},
	}

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: tt.tool, Arguments: tt.args})
			require.NoError(t, err)
			require.True(t, result.IsError)
			require.NotEmpty(t, result.Content)

			text, ok := result.Content[0].(*mcpsdk.TextContent)
			require.True(t, ok)
			assert.Contains(t, text.Text, tt.want)
		})
	}
}
