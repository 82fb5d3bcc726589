// Package mcp exposes the collaboration pipeline and the convergence
// machine as Model Context Protocol tools, over stdio or SSE.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/winnow"
	"github.com/aretw0/winnow/internal/autosave"
	"github.com/aretw0/winnow/internal/convergence"
	"github.com/aretw0/winnow/internal/orchestrator"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CollaborateResponse aligns with the HTTP adapter's response shape so MCP
// and REST clients see the same structure.
type CollaborateResponse struct {
	Feedback         []string `json:"feedback,omitempty" jsonschema_description:"Observations from the collaborator"`
	FollowUpQuestion string   `json:"followUpQuestion,omitempty" jsonschema_description:"At most one open question back to the learner"`
	GeneratedItems   []string `json:"generatedItems,omitempty" jsonschema_description:"Generated list items, for item-mode strategies"`
}

// Server wraps the Winnow core and exposes it as an MCP Server.
type Server struct {
	orch      *orchestrator.Service
	machine   *convergence.Machine
	saves     *autosave.Buffer
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(orch *orchestrator.Service, machine *convergence.Machine, saves *autosave.Buffer) *Server {
	s := &Server{
		orch:      orch,
		machine:   machine,
		saves:     saves,
		mcpServer: server.NewMCPServer("winnow-mcp", strings.TrimSpace(winnow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: collaborate
	collaborateTool := mcp.NewTool("collaborate",
		mcp.WithDescription("Ask the collaborator to review or generate for one focus of the learner's project."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		mcp.WithString("focus", mcp.Required(), mcp.Description("Focus key, e.g. 'problem' or 'convergence:variants'")),
		mcp.WithString("action", mcp.Description("review, generate, or suggest (default review)")),
		mcp.WithString("payload", mcp.Description("JSON object with the focus-specific payload (optional)")),
		mcp.WithOutputSchema[CollaborateResponse](),
	)
	s.mcpServer.AddTool(collaborateTool, mcp.NewStructuredToolHandler(s.handleCollaborate))

	// TOOL: convergence_status
	statusTool := mcp.NewTool("convergence_status",
		mcp.WithDescription("Get the project's convergence session: stage, sub-phase, banked ideas, locked artifact."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		mcp.WithOutputSchema[domain.ConvergenceSession](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleStatus))

	// TOOL: convergence_step
	stepTool := mcp.NewTool("convergence_step",
		mcp.WithDescription("Drive the convergence session: reflect, choose, confirm, direction, variants, bank, unbank, selection, lock, or reset."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		mcp.WithString("step", mcp.Required(), mcp.Description("One of reflect, choose, confirm, direction, variants, bank, unbank, selection, lock, reset")),
		mcp.WithString("idea", mcp.Description("Idea text, for bank, unbank, and lock")),
		mcp.WithString("candidates", mcp.Description("JSON array of candidate strings, for choose")),
		mcp.WithOutputSchema[domain.ConvergenceSession](),
	)
	s.mcpServer.AddTool(stepTool, mcp.NewStructuredToolHandler(s.handleStep))

	// TOOL: save_fields
	s.mcpServer.AddTool(mcp.NewTool("save_fields",
		mcp.WithDescription("Queue dotted-path field edits for a debounced write to the project document."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		mcp.WithString("fields", mcp.Required(), mcp.Description("JSON object of dotted-path writes")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID := request.GetString("project_id", "")
		var fields map[string]any
		if err := json.Unmarshal([]byte(request.GetString("fields", "{}")), &fields); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid fields JSON: %v", err)), nil
		}
		s.saves.Queue(projectID, fields)
		return mcp.NewToolResultText(`{"queued": true}`), nil
	})
}

func (s *Server) handleCollaborate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (CollaborateResponse, error) {
	projectID, _ := args["project_id"].(string)
	focusKey, _ := args["focus"].(string)

	action := domain.ActionReview
	if a, ok := args["action"].(string); ok && a != "" {
		action = domain.Action(a)
	}

	var payload map[string]any
	if raw, ok := args["payload"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return CollaborateResponse{}, fmt.Errorf("invalid payload JSON: %w", err)
		}
	}

	result, err := s.orch.Collaborate(ctx, orchestrator.Request{
		ProjectID: projectID,
		Focus:     domain.ParseFocus(focusKey),
		Action:    action,
		Payload:   payload,
	})
	if err != nil {
		return CollaborateResponse{}, fmt.Errorf("collaborate failed: %w", err)
	}

	return CollaborateResponse{
		Feedback:         result.Feedback,
		FollowUpQuestion: result.FollowUpQuestion,
		GeneratedItems:   result.GeneratedItems,
	}, nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.ConvergenceSession, error) {
	projectID, _ := args["project_id"].(string)
	sess, err := s.machine.Session(ctx, projectID)
	if err != nil {
		return domain.ConvergenceSession{}, fmt.Errorf("status failed: %w", err)
	}
	return *sess, nil
}

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.ConvergenceSession, error) {
	projectID, _ := args["project_id"].(string)
	step, _ := args["step"].(string)
	idea, _ := args["idea"].(string)

	var sess *domain.ConvergenceSession
	var err error
	switch step {
	case "reflect":
		sess, err = s.machine.EnsureReflection(ctx, projectID)
	case "choose":
		var candidates []string
		if raw, ok := args["candidates"].(string); ok && raw != "" {
			if jsonErr := json.Unmarshal([]byte(raw), &candidates); jsonErr != nil {
				return domain.ConvergenceSession{}, fmt.Errorf("invalid candidates JSON: %w", jsonErr)
			}
		}
		sess, err = s.machine.Choose(ctx, projectID, candidates)
	case "confirm":
		sess, err = s.machine.ConfirmPhase(ctx, projectID)
	case "direction":
		sess, err = s.machine.ConfirmDirection(ctx, projectID)
	case "variants":
		sess, err = s.machine.RegenerateVariants(ctx, projectID)
	case "bank":
		sess, err = s.machine.AddIdea(ctx, projectID, idea)
	case "unbank":
		sess, err = s.machine.RemoveIdea(ctx, projectID, idea)
	case "selection":
		sess, err = s.machine.BeginSelection(ctx, projectID)
	case "lock":
		sess, err = s.machine.Lock(ctx, projectID, idea)
	case "reset":
		sess, err = s.machine.Reset(ctx, projectID)
	default:
		return domain.ConvergenceSession{}, fmt.Errorf("unknown step %q", step)
	}
	if err != nil {
		return domain.ConvergenceSession{}, fmt.Errorf("%s failed: %w", step, err)
	}
	return *sess, nil
}

func (s *Server) registerResources() {
	// EXPOSE: winnow://projects
	s.mcpServer.AddResource(mcp.NewResource("winnow://projects", "Known Projects",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.orch.Store().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "winnow://projects",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
