package mcp_test

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dwellscope/dwellscope/internal/mcp"
)

// connect wires srv to an in-memory transport and returns a ready client
// session. Teardown closes the session and waits for the server loop.
func connect(t *testing.T, ctx context.Context, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientEnd, serverEnd := mcpsdk.NewInMemoryTransports()

	serverDone := make(chan error, 1)

	go func() { serverDone <- srv.RunWithTransport(ctx, serverEnd) }()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, clientEnd, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		<-serverDone
	})

	return session
}

// callTool invokes one tool and requires a protocol-level success; the
// result may still carry IsError for tool-level failures.
func callTool(t *testing.T, ctx context.Context, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)

	return result
}

// writeWavyDataset writes a one-system NDJSON dataset with an oscillating
// residency series.
func writeWavyDataset(t *testing.T, system string, n int) string {
	t.Helper()

	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	var b strings.Builder

	for i := range n {
		v := 50 + 10*math.Sin(2*math.Pi*float64(i)/60)
		fmt.Fprintf(&b, `{"ts":%q,"system":%q,"residency":%g}`+"\n",
			base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), system, v)
	}

	path := filepath.Join(t.TempDir(), "data.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	return path
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestServer_ToolsList(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	ctx := testContext(t)
	session := connect(t, ctx, srv)

	listed, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, listed)

	names := make([]string, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)

		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.ElementsMatch(t, []string{"residency_analyze", "residency_systems"}, names)
	assert.Equal(t, []string{"residency_analyze", "residency_systems"}, srv.ListToolNames())
}

func TestServer_CallSystems(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	path := writeWavyDataset(t, "web-01", 90)
	ctx := testContext(t)
	session := connect(t, ctx, srv)

	result := callTool(t, ctx, session, "residency_systems", map[string]any{"path": path})

	assert.False(t, result.IsError)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "web-01")
}

func TestServer_CallAnalyze(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	path := writeWavyDataset(t, "web-01", 120)
	ctx := testContext(t)
	session := connect(t, ctx, srv)

	result := callTool(t, ctx, session, "residency_analyze", map[string]any{
		"path":   path,
		"system": "web-01",
		"window": 30,
	})

	assert.False(t, result.IsError)
	assert.NotEmpty(t, result.Content)
}

func TestServer_CallAnalyze_EmptyPathIsToolError(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	ctx := testContext(t)
	session := connect(t, ctx, srv)

	result := callTool(t, ctx, session, "residency_analyze", map[string]any{"path": ""})

	assert.True(t, result.IsError)
}
