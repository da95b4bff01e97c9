package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/JuweiLin/ARProject/internal/dispatch"
)

func (s *MCPServer) handleGetStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	status, err := s.api.GetStatus(ctx)
	if err != nil {
		return textError("failed to get status: " + err.Error()), nil
	}
	return textJSON(status)
}

func (s *MCPServer) handleListDevices(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	devices, err := s.api.GetDevices(ctx)
	if err != nil {
		return textError("failed to list devices: " + err.Error()), nil
	}
	return textJSON(devices.Devices)
}

func (s *MCPServer) handleListTasks(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	tasks, err := s.api.GetTasks(ctx)
	if err != nil {
		return textError("failed to list tasks: " + err.Error()), nil
	}
	return textJSON(tasks)
}

func (s *MCPServer) handleResetExperiment(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if err := s.api.ResetTasks(ctx); err != nil {
		return textError("failed to reset experiment: " + err.Error()), nil
	}
	return textResult(`{"status":"reset"}`), nil
}

func (s *MCPServer) handleSendCommand(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	device, err := req.RequireString("device")
	if err != nil {
		return textError("missing required parameter: device"), nil
	}
	command, err := req.RequireString("command")
	if err != nil {
		return textError("missing required parameter: command"), nil
	}

	var message string
	d := dispatch.New(s.client,
		dispatch.Fields{dispatch.FieldDevice: device, dispatch.FieldCommand: command},
		dispatch.NotifierFunc(func(m string) { message = m }),
	)
	if err := d.Dispatch(ctx); err != nil {
		return textError("failed to send command: " + err.Error()), nil
	}
	s.logger.Info().Str("device", device).Str("command", command).Str("message", message).Msg("command dispatched")
	return textResult(message), nil
}

// textResult returns a successful text result.
func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

// textError returns an error text result.
func textError(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// textJSON marshals v to indented JSON and returns it as a text result.
func textJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return textError("failed to marshal response: " + err.Error()), nil
	}
	return textResult(string(data)), nil
}
