// Package mcp exposes the registry query API to editor clients as MCP tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/addonlens/addonlens/pkg/registry"
)

const serverVersion = "0.1.0-dev"

// Server wraps an MCP server around a model registry.
type Server struct {
	mcpServer *server.MCPServer
	registry  *registry.Registry
}

// NewServer creates the MCP server and registers all tools.
func NewServer(reg *registry.Registry) *Server {
	s := &Server{registry: reg}

	s.mcpServer = server.NewMCPServer(
		"addonlens",
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: getModelsTool(), Handler: s.handleGetModels},
		server.ServerTool{Tool: getInheritingModelsTool(), Handler: s.handleGetInheritingModels},
		server.ServerTool{Tool: getModelFieldsTool(), Handler: s.handleGetModelFields},
		server.ServerTool{Tool: getModelMethodsTool(), Handler: s.handleGetModelMethods},
		server.ServerTool{Tool: listModelsTool(), Handler: s.handleListModels},
		server.ServerTool{Tool: listComponentsTool(), Handler: s.handleListComponents},
		server.ServerTool{Tool: cacheStatsTool(), Handler: s.handleCacheStats},
		server.ServerTool{Tool: refreshTool(), Handler: s.handleRefresh},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
