// Package mcp exposes scheduling and session inspection as MCP tools so an
// agent can drive the concierge.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/internal/presentation/graph"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// WorkflowURI is the resource holding the booking workflow diagram.
const WorkflowURI = "concierge://workflow"

// ScheduleArgs are the arguments of schedule_message.
type ScheduleArgs struct {
	Recipients   string `json:"recipients"`
	Message      string `json:"message"`
	// DelayMinutes is nil when the agent omits it.
	DelayMinutes *int   `json:"delayMinutes,omitempty"`
}

// KeyArgs carries a session key or job id.
type KeyArgs struct {
	Key string `json:"key,omitempty"`
	ID  string `json:"id,omitempty"`
}

// JobList wraps list_jobs output; structured results must be objects.
type JobList struct {
	Jobs []*domain.Job `json:"jobs"`
}

// Server wraps the concierge and exposes it as an MCP Server.
type Server struct {
	app       ports.Concierge
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(app ports.Concierge, version string, opts ...Option) *Server {
	s := &Server{
		app:       app,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("concierge-mcp", strings.TrimSpace(version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP endpoints over SSE until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
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

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("schedule_message",
		mcp.WithDescription("Schedule a one-shot message to one or more recipients. The message is sent once after the delay."),
		mcp.WithString("recipients", mcp.Required(), mcp.Description("Comma-separated phone numbers or channel addresses")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message body, sent verbatim")),
		mcp.WithNumber("delayMinutes", mcp.Description("Delay in whole minutes (default 1, minimum 1)")),
		mcp.WithOutputSchema[domain.JobReceipt](),
	), mcp.NewStructuredToolHandler(s.ScheduleMessage))

	s.mcpServer.AddTool(mcp.NewTool("get_job",
		mcp.WithDescription("Get the status of a scheduled job."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Job ID returned by schedule_message")),
		mcp.WithOutputSchema[domain.Job](),
	), mcp.NewStructuredToolHandler(s.GetJob))

	s.mcpServer.AddTool(mcp.NewTool("list_jobs",
		mcp.WithDescription("List the scheduled jobs still tracked, oldest first."),
		mcp.WithOutputSchema[JobList](),
	), mcp.NewStructuredToolHandler(s.ListJobs))

	s.mcpServer.AddTool(mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a pending scheduled job."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Job ID")),
		mcp.WithOutputSchema[domain.Job](),
	), mcp.NewStructuredToolHandler(s.CancelJob))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Inspect the booking conversation of one customer."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Customer channel address, e.g. whatsapp:+15550001")),
		mcp.WithOutputSchema[domain.Session](),
	), mcp.NewStructuredToolHandler(s.GetSession))
}

// ScheduleMessage implements the schedule_message tool.
func (s *Server) ScheduleMessage(ctx context.Context, request mcp.CallToolRequest, args ScheduleArgs) (domain.JobReceipt, error) {
	var recipients []string
	for _, r := range strings.Split(args.Recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}

	delay := domain.DefaultDelayMinutes
	if args.DelayMinutes != nil {
		delay = *args.DelayMinutes
	}

	receipt, err := s.app.ScheduleMessage(ctx, recipients, args.Message, delay)
	if err != nil {
		s.logger.Warn("MCP schedule_message rejected", "err", err)
		return domain.JobReceipt{}, fmt.Errorf("schedule failed: %w", err)
	}
	return receipt, nil
}

// GetJob implements the get_job tool.
func (s *Server) GetJob(ctx context.Context, request mcp.CallToolRequest, args KeyArgs) (domain.Job, error) {
	job, err := s.app.Job(args.ID)
	if err != nil {
		return domain.Job{}, err
	}
	return *job, nil
}

// ListJobs implements the list_jobs tool.
func (s *Server) ListJobs(ctx context.Context, request mcp.CallToolRequest, args KeyArgs) (JobList, error) {
	jobs := s.app.Jobs()
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	return JobList{Jobs: jobs}, nil
}

// CancelJob implements the cancel_job tool.
func (s *Server) CancelJob(ctx context.Context, request mcp.CallToolRequest, args KeyArgs) (domain.Job, error) {
	job, err := s.app.Cancel(args.ID)
	if err != nil {
		return domain.Job{}, err
	}
	return *job, nil
}

// GetSession implements the get_session tool.
func (s *Server) GetSession(ctx context.Context, request mcp.CallToolRequest, args KeyArgs) (domain.Session, error) {
	session, err := s.app.Session(ctx, args.Key)
	if err != nil {
		return domain.Session{}, err
	}
	return *session, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(WorkflowURI, "Booking Workflow",
		mcp.WithResourceDescription("Mermaid flowchart of the booking conversation stages"),
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      WorkflowURI,
				MIMEType: "text/vnd.mermaid",
				Text:     graph.GenerateMermaid(runtime.Workflow(), nil),
			},
		}, nil
	})
}
