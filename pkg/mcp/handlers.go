package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/urmzd/alpacaswitch/pkg/device/schema"
	"github.com/urmzd/alpacaswitch/pkg/roster"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.switches.Snapshot()

	out := GetHealthOutput{
		Status:      "healthy",
		Switches:    snap.Len(),
		Discovering: s.switches.Discovering(),
		Timestamp:   timestamp(time.Now()),
	}
	if built := snap.BuiltAt(); built.IsZero() {
		out.Status = "starting"
	} else {
		out.LastDiscovery = timestamp(built)
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListSwitches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos := rosterInfos(s.switches.Snapshot())

	out := ListSwitchesOutput{
		Switches: infos,
		Count:    len(infos),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetSwitch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, sw, err := s.lookup(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.switches.Refresh(ctx, sw); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read switch state: %s", err)), nil
	}

	out := GetSwitchOutput{Switch: SwitchToInfo(id, sw)}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSetSwitch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	if s.validator != nil {
		if err := s.validator.Validate(schema.SetSwitch, args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("validation error: %s", err)), nil
		}
	}

	on, ok := args["state"].(bool)
	if !ok {
		return mcp.NewToolResultError(`parameter "state" must be a boolean`), nil
	}

	id, sw, err := s.lookup(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.switches.SetState(ctx, sw, on); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set switch state: %s", err)), nil
	}

	out := SetSwitchOutput{Switch: SwitchToInfo(id, sw)}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleRediscover(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.switches.Discover(ctx); err != nil {
		if errors.Is(err, roster.ErrBusy) {
			return mcp.NewToolResultError("a discovery cycle is already running"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("discovery failed: %s", err)), nil
	}

	infos := rosterInfos(s.switches.Snapshot())
	out := RediscoverOutput{
		Switches: infos,
		Count:    len(infos),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSwitchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("no event log is configured"), nil
	}

	args := request.GetArguments()
	address, _ := args["address"].(string)

	limit := defaultHistoryLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(math.Min(l, maxHistoryLimit))
	}

	events, err := s.history.Recent(ctx, address, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read history: %s", err)), nil
	}

	out := SwitchHistoryOutput{
		Events: events,
		Count:  len(events),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// --- helpers ---

// lookup resolves the "id" argument against the current roster.
func (s *Server) lookup(request mcp.CallToolRequest) (int, *roster.Switch, error) {
	id, err := requiredIndex(request, "id")
	if err != nil {
		return 0, nil, err
	}
	sw, ok := s.switches.Snapshot().At(id)
	if !ok {
		return 0, nil, fmt.Errorf("invalid switch id: %d", id)
	}
	return id, sw, nil
}

func requiredIndex(request mcp.CallToolRequest, key string) (int, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("required parameter %q is missing", key)
	}
	f, ok := v.(float64)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("parameter %q must be a non-negative integer", key)
	}
	return int(f), nil
}

func formatJSON(v any) string {
	b, err := encodeJSON(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}

func encodeJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
