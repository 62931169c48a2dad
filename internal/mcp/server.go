package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/melissa98m/weeb-website-sub000/internal/api"
	"github.com/melissa98m/weeb-website-sub000/internal/reconcile"
)

const serverVersion = "0.3.0"

const instructions = `weebctl - back-office tools for the weeb blog

Articles carry a set of genres. Use list_genres to find genre ids, then
plan_article_genres to preview a change and set_article_genres to apply it.
set_article_genres makes the article's genres exactly equal to the given ids:
genres not listed are removed.

Mutating tools need a logged-in staff or editor session (run "weebctl login").`

// Server exposes the back-office API as MCP tools.
type Server struct {
	client     *api.Client
	reconciler *reconcile.Reconciler
	logger     *zap.Logger
	session    *Session
}

func NewServer(client *api.Client, reconciler *reconcile.Reconciler, logger *zap.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.New("api client is required")
	}
	if reconciler == nil {
		return nil, errors.New("reconciler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		client:     client,
		reconciler: reconciler,
		logger:     logger,
		session:    newSession(),
	}, nil
}

// MCPServer builds the go-sdk server with every tool registered.
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "weebctl",
			Version: serverVersion,
		},
		&mcp.ServerOptions{
			Instructions: instructions,
		},
	)
	s.registerTools(server)
	return server
}

// ServeStdio runs the MCP server over stdio until ctx is done or the client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("mcp server starting", zap.String("session", s.session.ID))
	return s.MCPServer().Run(ctx, &mcp.StdioTransport{})
}

// wrapResultAsObject ensures the result is always an object (not array or null)
func wrapResultAsObject(result interface{}) map[string]interface{} {
	if result == nil {
		return map[string]interface{}{"items": []interface{}{}, "count": 0, "message": "No results"}
	}

	switch v := result.(type) {
	case []interface{}:
		return map[string]interface{}{"items": v, "count": len(v)}
	case map[string]interface{}:
		return v
	default:
		b, err := json.Marshal(result)
		if err != nil {
			return map[string]interface{}{"data": result}
		}

		if len(b) > 0 && b[0] == '[' {
			var arr []interface{}
			if err := json.Unmarshal(b, &arr); err == nil {
				return map[string]interface{}{"items": arr, "count": len(arr)}
			}
		}

		if len(b) > 0 && b[0] == '{' {
			var obj map[string]interface{}
			if err := json.Unmarshal(b, &obj); err == nil {
				return obj
			}
		}

		return map[string]interface{}{"data": result}
	}
}

// formatMCPResponse wraps data into an object and tags it with the session context.
func (s *Server) formatMCPResponse(data interface{}) map[string]interface{} {
	wrapped := wrapResultAsObject(data)
	wrapped["_context"] = s.session.Context(s.client.BaseURL)
	return wrapped
}

// textResult converts any data to a CallToolResult with JSON TextContent.
func textResult(data interface{}) (*mcp.CallToolResult, error) {
	if data == nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "{}"},
			},
		}, nil
	}
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, nil
}

// mustTextResult is like textResult but returns an error result instead of failing.
func mustTextResult(data interface{}) *mcp.CallToolResult {
	res, err := textResult(data)
	if err != nil {
		return errorResult(err)
	}
	return res
}

func errorResult(err error) *mcp.CallToolResult {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
		IsError: true,
	}
}
