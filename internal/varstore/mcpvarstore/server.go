package mcpvarstore

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	getVarSchema = json.RawMessage(`{
		"type": "object",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`)
	setVarSchema = json.RawMessage(`{
		"type": "object",
		"properties": {"name": {"type": "string"}, "value": {"type": "string"}},
		"required": ["name", "value"]
	}`)
	appendVarSchema = setVarSchema
)

// Server publishes a [Store]'s contents as three MCP tools: get_var,
// set_var, and append_var. It is the variable store's wire-facing half; an
// in-process caller should talk to the embedded Store directly instead of
// going through MCP.
type Server struct {
	mcp  *mcpsdk.Server
	vars *Store
}

// New builds a Server backed by vars. name and version identify the server
// in MCP's implementation handshake.
func New(vars *Store, name, version string) *Server {
	s := &Server{
		mcp:  mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil),
		vars: vars,
	}

	s.mcp.AddTool(&mcpsdk.Tool{
		Name:        "get_var",
		Description: "Read the current value of a named variable.",
		InputSchema: getVarSchema,
	}, s.handleGetVar)

	s.mcp.AddTool(&mcpsdk.Tool{
		Name:        "set_var",
		Description: "Overwrite the value of a named variable.",
		InputSchema: setVarSchema,
	}, s.handleSetVar)

	s.mcp.AddTool(&mcpsdk.Tool{
		Name:        "append_var",
		Description: "Append to the value of a named variable, creating it if unset.",
		InputSchema: appendVarSchema,
	}, s.handleAppendVar)

	return s
}

// Run serves the MCP protocol over transport until ctx is cancelled or the
// transport closes.
func (s *Server) Run(ctx context.Context, transport mcpsdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}

type getVarArgs struct {
	Name string `json:"name"`
}

type setVarArgs struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *Server) handleGetVar(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args getVarArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Name == "" {
		return errorResult(fmt.Errorf("get_var: name is required")), nil
	}
	v, ok := s.vars.Get(args.Name)
	if !ok {
		return errorResult(fmt.Errorf("get_var: variable %q is not set", args.Name)), nil
	}
	return textResult(string(v)), nil
}

func (s *Server) handleSetVar(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args setVarArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Name == "" {
		return errorResult(fmt.Errorf("set_var: name is required")), nil
	}
	s.vars.Set(args.Name, []byte(args.Value))
	return textResult("ok"), nil
}

func (s *Server) handleAppendVar(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args setVarArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Name == "" {
		return errorResult(fmt.Errorf("append_var: name is required")), nil
	}
	s.vars.Append(args.Name, []byte(args.Value))
	return textResult("ok"), nil
}

// decodeArgs round-trips req's arguments through JSON into out, regardless
// of whether the SDK handed them back as a map or a raw message.
func decodeArgs(req *mcpsdk.CallToolRequest, out any) error {
	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return fmt.Errorf("mcpvarstore: decode tool arguments: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("mcpvarstore: decode tool arguments: %w", err)
	}
	return nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}}}
}

func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}
}
