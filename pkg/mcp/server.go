package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/urmzd/alpacaswitch/pkg/db"
	"github.com/urmzd/alpacaswitch/pkg/device/schema"
	"github.com/urmzd/alpacaswitch/pkg/roster"
)

// Switches is the roster manager as seen by the tools.
type Switches interface {
	Snapshot() *roster.Roster
	Discovering() bool
	Discover(ctx context.Context) error
	Refresh(ctx context.Context, sw *roster.Switch) (bool, error)
	SetState(ctx context.Context, sw *roster.Switch, on bool) error
}

// History lists recorded switch transitions.
type History interface {
	Recent(ctx context.Context, address string, limit int) ([]*db.Event, error)
}

// Server wraps the MCP server with switch control tools
type Server struct {
	mcpServer *server.MCPServer
	switches  Switches
	history   History
	validator *schema.Validator
}

// NewServer creates a new MCP server. history may be nil, in which case
// switch_history reports that no event log is available.
func NewServer(switches Switches, history History, validator *schema.Validator, version string) *Server {
	s := &Server{
		switches:  switches,
		history:   history,
		validator: validator,
	}

	s.mcpServer = server.NewMCPServer(
		"alpacaswitch",
		version,
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
