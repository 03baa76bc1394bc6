package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shakram02/go-sql-console/internal/config"
	"github.com/shakram02/go-sql-console/internal/dbadapter"
	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/journal"
	"github.com/shakram02/go-sql-console/internal/sqlguard"
)

// MCPServer handles MCP protocol over stdio
type MCPServer struct {
	conn        *dbadapter.Conn
	adapter     dbadapter.DBAdapter
	cfg         *config.Config
	journal     *journal.Journal
	history     *journal.History
	logger      *slog.Logger
	sessionID   string
	initialized bool
	ctx         context.Context
	cancel      context.CancelFunc
}

var _ domain.Executor = (*MCPServer)(nil)

// NewMCPServer creates a console over an open connection. The journal and
// history live as long as the server.
func NewMCPServer(ctx context.Context, conn *dbadapter.Conn, cfg *config.Config, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sessionID := uuid.NewString()
	logger = logger.With("session", sessionID)

	serverCtx, serverCancel := context.WithCancel(ctx)

	return &MCPServer{
		conn:      conn,
		adapter:   conn.Adapter(),
		cfg:       cfg,
		journal:   journal.NewJournal(cfg.JournalCapacity, logger),
		history:   journal.NewHistory(cfg.HistoryCapacity),
		logger:    logger,
		sessionID: sessionID,
		ctx:       serverCtx,
		cancel:    serverCancel,
	}
}

// Run reads one JSON-RPC message per line from in and writes responses to out.
func (s *MCPServer) Run(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		response := s.handleMessage([]byte(line))
		if response != nil {
			responseBytes, err := json.Marshal(response)
			if err != nil {
				s.logger.Error("failed to marshal response", "error", err)
				continue
			}
			if _, err := fmt.Fprintln(out, string(responseBytes)); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
	}
}

func (s *MCPServer) handleMessage(data []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      nil,
			Error: &Error{
				Code:    ParseError,
				Message: "Parse error",
				Data:    err.Error(),
			},
		}
	}

	if req.JSONRPC != "2.0" {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &Error{
				Code:    InvalidRequest,
				Message: "Invalid JSON-RPC version",
			},
		}
	}

	return s.handleRequest(&req)
}

func (s *MCPServer) handleRequest(req *JSONRPCRequest) *JSONRPCResponse {
	var result any
	var err *Error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(req.Params)
	case "initialized", "notifications/initialized":
		// Notification, no response needed
		return nil
	case "tools/list":
		result, err = s.handleListTools()
	case "tools/call":
		result, err = s.handleCallTool(req.Params)
	case "resources/list":
		result, err = s.handleListResources()
	case "resources/read":
		result, err = s.handleReadResource(req.Params)
	case "ping":
		result = map[string]any{}
	default:
		err = &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   err,
	}
}

// Execute runs sql with the configured timeout and records the attempt in
// the history. Everything the console sends to the database goes through it,
// including undo statements issued by the journal.
func (s *MCPServer) Execute(ctx context.Context, sql string) (*domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.conn.Execute(ctx, sql)
	attempt := journal.Attempt{SQL: sql, Start: start, Duration: time.Since(start)}
	log := s.logger.With("statement", sqlguard.LeadingKeyword(sql), "duration", attempt.Duration)
	if err != nil {
		attempt.Error = s.describe(err)
		log.Debug("statement failed", "error", attempt.Error)
	} else {
		n := res.RowCount()
		attempt.RowCount = &n
		log.Debug("statement executed", "rows", n)
	}
	s.history.Record(attempt)
	return res, err
}

// refuse records a statement that was not sent to the database.
func (s *MCPServer) refuse(sql string, err error) {
	s.history.Record(journal.Attempt{SQL: sql, Error: s.describe(err)})
	s.logger.Info("statement refused", "kind", domain.KindOf(err), "error", err)
}

// describe renders err for the operator: domain errors as they are, driver
// errors through the adapter.
func (s *MCPServer) describe(err error) string {
	if domain.KindOf(err) != "" {
		return err.Error()
	}
	return s.conn.ErrorMessage(err)
}

// Shutdown gracefully shuts down the server
func (s *MCPServer) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Close releases all resources
func (s *MCPServer) Close() error {
	s.Shutdown()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
