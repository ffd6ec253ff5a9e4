package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"gallery/internal/auth"
	"gallery/internal/gallery"
	"gallery/internal/models"
)

// Server exposes read-only catalog tools. Every tool runs as the identity of
// the HTTP session that called it.
type Server struct {
	svc *gallery.Service
}

func NewMCPServer(svc *gallery.Service) *Server {
	return &Server{svc: svc}
}

func callerFrom(ctx context.Context) *auth.Identity {
	if id, ok := auth.IdentityFromContext(ctx); ok {
		return &id
	}
	return nil
}

func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(gallery.AsError(err).Message), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listLibrariesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.svc.ListLibraries(ctx, callerFrom(ctx)))
}

func (s *Server) listMediaHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := models.MediaFilter{
		LibraryID: int64(request.GetInt("library_id", 0)),
		Topic:     request.GetString("topic", ""),
	}
	return result(s.svc.ListMedia(ctx, callerFrom(ctx), filter))
}

func (s *Server) listTopicsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.svc.Topics(ctx, callerFrom(ctx), int64(request.GetInt("library_id", 0))))
}

func readOnly(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append([]mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}, opts...)
	return mcp.NewTool(name, opts...)
}

// MCPServer builds the tool registry.
func (s *Server) MCPServer(version string) *server.MCPServer {
	mcpServer := server.NewMCPServer("Gallery", version)

	mcpServer.AddTool(readOnly("list_libraries",
		"List every media library with its id, name and description."),
		s.listLibrariesHandler)

	mcpServer.AddTool(readOnly("list_media",
		"List media items, optionally filtered by library and topic.",
		mcp.WithNumber("library_id", mcp.Description("Only media in this library")),
		mcp.WithString("topic", mcp.Description("Only media with exactly this topic")),
	), s.listMediaHandler)

	mcpServer.AddTool(readOnly("list_topics",
		"List the distinct topics in first-seen order, optionally within one library.",
		mcp.WithNumber("library_id", mcp.Description("Only topics in this library")),
	), s.listTopicsHandler)

	return mcpServer
}

// Handler returns the stateless streamable HTTP endpoint. The session
// identity on the incoming request is carried into tool calls.
func (s *Server) Handler(version string) http.Handler {
	return server.NewStreamableHTTPServer(s.MCPServer(version),
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id, ok := auth.IdentityFromContext(r.Context()); ok {
				return auth.WithIdentity(ctx, id)
			}
			return ctx
		}),
	)
}
