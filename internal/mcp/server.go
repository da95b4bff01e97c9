package mcp

import (
	"context"
	"log"
	"os"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/internal/dispatch"
)

// MCPServer exposes the AR hub to AI assistants via MCP.
type MCPServer struct {
	api    DaemonAPI
	client *dispatch.Client
	logger zerolog.Logger
}

// New creates an MCPServer. Call Run() to start serving on stdio.
func New(cfg Config, logger zerolog.Logger) (*MCPServer, error) {
	client, err := dispatch.NewClient(cfg.Phone.URL, nil)
	if err != nil {
		return nil, err
	}
	return &MCPServer{
		api:    NewAPIClient(cfg.Daemon.Socket),
		client: client,
		logger: logger.With().Str("component", "mcp").Logger(),
	}, nil
}

// SetDaemonAPI overrides the daemon API client. Intended for testing with a mock.
func (s *MCPServer) SetDaemonAPI(api DaemonAPI) {
	s.api = api
}

// Run registers MCP tools and serves on stdio.
// It blocks until stdin is closed or the context is cancelled.
func (s *MCPServer) Run(ctx context.Context) error {
	srv := mcpserver.NewMCPServer(
		"arhub",
		"0.1.0",
		mcpserver.WithRecovery(),
	)

	s.registerTools(srv)

	stdio := mcpserver.NewStdioServer(srv)
	stdio.SetErrorLogger(log.New(os.Stderr, "", log.LstdFlags))

	s.logger.Info().Str("endpoint", s.client.Endpoint()).Msg("MCP server starting on stdio")
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *MCPServer) registerTools(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcplib.NewTool("get_status",
			mcplib.WithDescription("Get AR hub status including uptime, connected device count, and browser/headset client counts"),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetStatus,
	)

	srv.AddTool(
		mcplib.NewTool("list_devices",
			mcplib.WithDescription("List connected lighting devices with their status, brightness and color"),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleListDevices,
	)

	srv.AddTool(
		mcplib.NewTool("list_tasks",
			mcplib.WithDescription("List experiment task progress and the recorded user actions"),
			mcplib.WithReadOnlyHintAnnotation(true),
		),
		s.handleListTasks,
	)

	srv.AddTool(
		mcplib.NewTool("reset_experiment",
			mcplib.WithDescription("Start a new experiment run with every task pending"),
		),
		s.handleResetExperiment,
	)

	srv.AddTool(
		mcplib.NewTool("send_command",
			mcplib.WithDescription("Send a command to a connected device through the phone server and return the hub's message"),
			mcplib.WithString("device", mcplib.Required(), mcplib.Description("Device name (e.g. \"Rectangle\")")),
			mcplib.WithString("command", mcplib.Required(), mcplib.Description("Command in the form \"COLOR BRIGHTNESS\" (e.g. \"Blue 80\")")),
		),
		s.handleSendCommand,
	)
}
