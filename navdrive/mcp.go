package navdrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/softnav/session"
)

// RegisterMCP registers navigation tools on an MCP server, so agents can
// drive a soft navigation session: visit, click, back/forward, inspect
// state, and read the visit log.
func (d *Driver) RegisterMCP(srv *mcp.Server) {
	d.registerVisitTool(srv)
	d.registerClickTool(srv)
	d.registerBackTool(srv)
	d.registerForwardTool(srv)
	d.registerStateTool(srv)
	d.registerLogTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// addTool wires a typed handler as an MCP tool with JSON text results.
func addTool(srv *mcp.Server, tool *mcp.Tool, handler func(ctx context.Context, args json.RawMessage) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := handler(ctx, req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// pageState is the tool-facing view of the session.
type pageState struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	RestorationID string   `json:"restoration_id"`
	Links         []string `json:"links"`
	Invalidated   bool     `json:"invalidated"`
	HistoryLen    int      `json:"history_len"`
}

func (d *Driver) state() pageState {
	st := pageState{
		URL:           d.session.Location().RequestURL(),
		RestorationID: d.session.RestorationID(),
		Invalidated:   d.Invalidated(),
		HistoryLen:    d.history.Len(),
	}
	if cur := d.Current(); cur != nil {
		st.Title = cur.Title
		for _, l := range cur.Links {
			st.Links = append(st.Links, l.Href)
		}
	}
	return st
}

func (d *Driver) registerVisitTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "softnav_visit",
		Description: "Soft-navigate to a URL. Relative URLs resolve against the current page.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute or relative URL to visit"},
		}, []string{"url"}),
	}
	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(args, &r); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if err := d.Visit(r.URL); err != nil {
			return nil, err
		}
		return d.state(), nil
	})
}

func (d *Driver) registerClickTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "softnav_click",
		Description: "Click a link on the current page by href. Reports whether the click was intercepted as a soft visit.",
		InputSchema: inputSchema(map[string]any{
			"href": map[string]any{"type": "string", "description": "href of the link, as it appears on the page"},
		}, []string{"href"}),
	}
	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r struct {
			Href string `json:"href"`
		}
		if err := json.Unmarshal(args, &r); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		intercepted := d.ClickLink(r.Href)
		return map[string]any{"intercepted": intercepted, "state": d.state()}, nil
	})
}

func (d *Driver) registerBackTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "softnav_back",
		Description: "Travel one history entry back, restoring the previous page.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		if err := d.Back(); err != nil {
			return nil, err
		}
		return d.state(), nil
	})
}

func (d *Driver) registerForwardTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "softnav_forward",
		Description: "Travel one history entry forward.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		if err := d.Forward(); err != nil {
			return nil, err
		}
		return d.state(), nil
	})
}

func (d *Driver) registerStateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "softnav_state",
		Description: "Current page state: URL, title, links, restoration identifier, history depth.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		return d.state(), nil
	})
}

func (d *Driver) registerLogTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "softnav_log",
		Description: "Most recent visits from the visit log, newest first.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max entries (default 20)"},
		}, nil),
	}
	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		if d.log == nil {
			return nil, errors.New("no visit log configured")
		}
		var r struct {
			Limit int `json:"limit"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &r); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		return d.log.Recent(ctx, r.Limit)
	})
}

var _ session.FormSubmitHandler = (*Driver)(nil)
var _ session.SnapshotCacher = (*Driver)(nil)
var _ session.ProgressReporter = (*Driver)(nil)
