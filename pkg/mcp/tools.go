package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	// Health check
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Report roster size and whether the first discovery has completed"),
		),
		s.handleGetHealth,
	)

	// List switches
	s.mcpServer.AddTool(
		mcp.NewTool("list_switches",
			mcp.WithDescription("List every switch in roster order with its cached state"),
		),
		s.handleListSwitches,
	)

	// Get switch
	s.mcpServer.AddTool(
		mcp.NewTool("get_switch",
			mcp.WithDescription("Read the current state of one switch from the device"),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Switch id (roster index, as used by Alpaca clients)"),
			),
		),
		s.handleGetSwitch,
	)

	// Set switch
	s.mcpServer.AddTool(
		mcp.NewTool("set_switch",
			mcp.WithDescription("Turn a switch on or off"),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Switch id (roster index, as used by Alpaca clients)"),
			),
			mcp.WithBoolean("state",
				mcp.Required(),
				mcp.Description("true for on, false for off"),
			),
		),
		s.handleSetSwitch,
	)

	// Rediscover
	s.mcpServer.AddTool(
		mcp.NewTool("rediscover",
			mcp.WithDescription("Run a discovery cycle now and rebuild the roster. Switch ids may change."),
		),
		s.handleRediscover,
	)

	// History
	s.mcpServer.AddTool(
		mcp.NewTool("switch_history",
			mcp.WithDescription("List recent on/off transitions, newest first"),
			mcp.WithString("address",
				mcp.Description("Only show transitions of the switch at this address"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of events (default 20, max 500)"),
			),
		),
		s.handleSwitchHistory,
	)
}
