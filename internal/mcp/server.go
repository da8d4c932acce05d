// Package mcp exposes actions and plugin state as Model Context Protocol
// tools over stdio or SSE.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"scuffcommander/internal/store"
	"scuffcommander/pkg/action"
	"scuffcommander/pkg/plugin"
)

const actionsURI = "scuffcommander://actions"

// Actions is the read side of the action repository.
type Actions interface {
	Get(ctx context.Context, id string) (*store.Record, error)
	List(ctx context.Context) ([]*store.Record, error)
}

// ActionSummary is one entry of list_actions.
type ActionSummary struct {
	ID      string `json:"id" jsonschema_description:"Action id, as used by run_action"`
	Summary string `json:"summary" jsonschema_description:"One-line description of the action"`
}

// StatusResponse is the result of plugin_status.
type StatusResponse struct {
	Plugins []plugin.Status `json:"plugins" jsonschema_description:"Configured plugins and whether they hold a live connection"`
}

// Server wraps the runner and registry as an MCP server.
type Server struct {
	actions   Actions
	runner    *action.Runner
	registry  *plugin.Registry
	logger    *zap.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(actions Actions, runner *action.Runner, registry *plugin.Registry, version string, logger *zap.Logger) *Server {
	s := &Server{
		actions:   actions,
		runner:    runner,
		registry:  registry,
		logger:    logger,
		mcpServer: server.NewMCPServer("scuffcommander", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("Serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Serving MCP over SSE", zap.String("addr", addr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop MCP server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("run_action",
		mcp.WithDescription("Run a stored action by id, or an ad hoc action tree given as JSON."),
		mcp.WithString("id", mcp.Description("Id of a stored action")),
		mcp.WithString("action", mcp.Description(`Action tree JSON, e.g. {"tag":"Single","content":{"tag":"OBS","content":{"tag":"StartStream"}}}`)),
	), s.handleRunAction)

	s.mcpServer.AddTool(mcp.NewTool("check_condition",
		mcp.WithDescription("Evaluate a condition and return true or false."),
		mcp.WithString("condition", mcp.Required(),
			mcp.Description(`Condition JSON, e.g. {"query":{"tag":"OBS","content":"IsStreaming"},"target":"true"}`)),
	), s.handleCheckCondition)

	s.mcpServer.AddTool(mcp.NewTool("list_actions",
		mcp.WithDescription("List the stored actions."),
	), s.handleListActions)

	s.mcpServer.AddTool(mcp.NewTool("plugin_status",
		mcp.WithDescription("Report the configured plugins and their connection state."),
		mcp.WithOutputSchema[StatusResponse](),
	), mcp.NewStructuredToolHandler(s.handlePluginStatus))
}

func (s *Server) handleRunAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	raw := request.GetString("action", "")

	var a action.Action
	switch {
	case raw != "":
		parsed, err := action.Unmarshal([]byte(raw))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid action: %v", err)), nil
		}
		a = parsed
		if id == "" {
			id = "adhoc"
		}
	case id != "":
		rec, err := s.actions.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Action with ID %s not configured", id)), nil
		}
		if err != nil {
			return nil, err
		}
		a = rec.Action
	default:
		return mcp.NewToolResultError("either id or action is required"), nil
	}

	if err := s.runner.Run(ctx, id, a); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Success"), nil
}

func (s *Server) handleCheckCondition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var cond action.Condition
	if err := json.Unmarshal([]byte(request.GetString("condition", "")), &cond); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid condition: %v", err)), nil
	}
	ok, err := s.runner.Check(ctx, cond)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(plugin.FormatBool(ok)), nil
}

func (s *Server) summaries(ctx context.Context) ([]ActionSummary, error) {
	records, err := s.actions.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ActionSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, ActionSummary{ID: rec.ID, Summary: action.Summary(rec.Action)})
	}
	return out, nil
}

func (s *Server) handleListActions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.summaries(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handlePluginStatus(_ context.Context, _ mcp.CallToolRequest, _ map[string]interface{}) (StatusResponse, error) {
	return StatusResponse{Plugins: s.registry.Status()}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(actionsURI, "Stored actions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := s.actions.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list actions: %w", err)
		}
		doc := action.Document{Actions: make(map[string]action.Action, len(records))}
		for _, rec := range records {
			doc.Actions[rec.ID] = rec.Action
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      actionsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
