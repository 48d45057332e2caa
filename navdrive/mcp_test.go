package navdrive

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "softnav-test", Version: "0.1.0"}

func mcpSession(t *testing.T, d *Driver) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	d.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_StateAndVisit(t *testing.T) {
	d, srv := newTestDriver(t, Config{})
	session := mcpSession(t, d)

	text := mcpCallTool(t, session, "softnav_state", map[string]any{})
	var st pageState
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Title != "Home" {
		t.Errorf("Title = %q, want Home", st.Title)
	}
	if st.HistoryLen != 1 {
		t.Errorf("HistoryLen = %d, want 1", st.HistoryLen)
	}
	if !strings.HasPrefix(st.RestorationID, "rst_") {
		t.Errorf("RestorationID = %q", st.RestorationID)
	}

	text = mcpCallTool(t, session, "softnav_visit", map[string]any{
		"url": srv.URL + "/about",
	})
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Title != "About" {
		t.Errorf("Title = %q, want About", st.Title)
	}
	if st.HistoryLen != 2 {
		t.Errorf("HistoryLen = %d, want 2", st.HistoryLen)
	}
}

func TestMCP_ClickAndBack(t *testing.T) {
	d, _ := newTestDriver(t, Config{})
	session := mcpSession(t, d)

	text := mcpCallTool(t, session, "softnav_click", map[string]any{"href": "/docs/"})
	var clicked struct {
		Intercepted bool      `json:"intercepted"`
		State       pageState `json:"state"`
	}
	if err := json.Unmarshal([]byte(text), &clicked); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !clicked.Intercepted {
		t.Fatal("click not intercepted")
	}
	if clicked.State.Title != "Docs" {
		t.Errorf("Title = %q, want Docs", clicked.State.Title)
	}

	text = mcpCallTool(t, session, "softnav_back", map[string]any{})
	var st pageState
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Title != "Home" {
		t.Errorf("Title after back = %q, want Home", st.Title)
	}
}

func TestMCP_OptedOutClick(t *testing.T) {
	d, _ := newTestDriver(t, Config{})
	session := mcpSession(t, d)

	text := mcpCallTool(t, session, "softnav_click", map[string]any{"href": "/legacy"})
	var clicked struct {
		Intercepted bool `json:"intercepted"`
	}
	if err := json.Unmarshal([]byte(text), &clicked); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if clicked.Intercepted {
		t.Fatal("opted-out link reported as intercepted")
	}
}

func TestMCP_LogWithoutStoreErrors(t *testing.T) {
	d, _ := newTestDriver(t, Config{})
	session := mcpSession(t, d)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "softnav_log",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error without a visit log")
	}
}
