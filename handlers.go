package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shakram02/go-sql-console/internal/domain"
)

func (s *MCPServer) handleInitialize(params json.RawMessage) (*InitializeResult, *Error) {
	var initParams InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &Error{
				Code:    InvalidParams,
				Message: "Invalid initialize parameters",
				Data:    err.Error(),
			}
		}
	}

	s.initialized = true
	s.logger.Info("client initialized", "client", initParams.ClientInfo.Name, "version", initParams.ClientInfo.Version)

	mode := "read-write: edits are journaled and can be undone"
	if s.cfg.ReadOnly {
		mode = "read-only: only SELECT, SHOW, EXPLAIN and WITH queries are allowed"
	}

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
		Instructions: fmt.Sprintf("Connected to %s database %q, %s.", s.adapter.Name(), s.conn.DatabaseName(), mode),
	}, nil
}

var (
	tableProperty = Property{Type: "string", Description: "Table name"}
	keyProperty   = Property{Description: "Primary key value of the row, or its row locator (ctid/rowid) when the table has no primary key"}
)

func (s *MCPServer) handleListTools() (*ListToolsResult, *Error) {
	return &ListToolsResult{
		Tools: []Tool{
			{
				Name:        "query",
				Description: "Execute a SQL statement. In read-only mode only SELECT, SHOW, EXPLAIN and WITH queries are allowed; otherwise destructive statements need confirm=true",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"sql": {
							Type:        "string",
							Description: "The SQL statement to execute",
						},
						"confirm": {
							Type:        "boolean",
							Description: "Run a destructive statement (DROP, TRUNCATE, ALTER, DELETE/UPDATE without WHERE)",
						},
					},
					Required: []string{"sql"},
				},
			},
			{
				Name:        "classify",
				Description: "Classify a SQL statement without running it: multi-statement, read-safe, destructive",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"sql": {Type: "string", Description: "The SQL statement to classify"},
					},
					Required: []string{"sql"},
				},
			},
			{
				Name:        "browse_table",
				Description: "Read one page of a table with optional sorting, contains-filters and keyset cursors",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"table":       tableProperty,
						"limit":       {Type: "integer", Description: "Page size (default from MCP_PAGE_SIZE, max 10000)"},
						"offset":      {Type: "integer", Description: "Rows to skip; ignored with a cursor"},
						"sort_column": {Type: "string", Description: "Column to order by"},
						"sort_dir":    {Type: "string", Enum: []string{"ASC", "DESC"}},
						"filters": {
							Type:        "array",
							Description: "Case-insensitive contains filters, AND-joined",
							Items:       &Property{Type: "object", Description: `{"column": "...", "value": "..."}`},
						},
						"after":      {Type: "string", Description: "Return rows whose primary key is greater than this value"},
						"before":     {Type: "string", Description: "Return rows whose primary key is less than this value, in descending order"},
						"count_mode": {Type: "string", Enum: []string{"estimate", "exact"}},
					},
					Required: []string{"table"},
				},
			},
			{
				Name:        "update_cell",
				Description: "Set one column of one row; journaled",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"table":  tableProperty,
						"key":    keyProperty,
						"column": {Type: "string", Description: "Column to set"},
						"value":  {Description: "New value; null for SQL NULL"},
					},
					Required: []string{"table", "key", "column", "value"},
				},
			},
			{
				Name:        "insert_row",
				Description: "Insert one row; journaled",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"table":  tableProperty,
						"values": {Type: "object", Description: "Column values; omitted columns take their default"},
					},
					Required: []string{"table"},
				},
			},
			{
				Name:        "delete_row",
				Description: "Delete one row; journaled (not undoable)",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"table": tableProperty,
						"key":   keyProperty,
					},
					Required: []string{"table", "key"},
				},
			},
			{
				Name:        "truncate_table",
				Description: "Remove every row of a table; requires confirm=true",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"table":   tableProperty,
						"confirm": {Type: "boolean"},
					},
					Required: []string{"table", "confirm"},
				},
			},
			{
				Name:        "undo",
				Description: "Reverse a journaled update or insert",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"id": {Type: "integer", Description: "Journal entry id"},
					},
					Required: []string{"id"},
				},
			},
			{
				Name:        "journal",
				Description: "List the change journal, oldest first",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"limit": {Type: "integer", Description: "Return only the most recent entries"},
					},
				},
			},
			{
				Name:        "history",
				Description: "List every statement attempt of this session, oldest first",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"limit": {Type: "integer", Description: "Return only the most recent entries"},
					},
				},
			},
		},
	}, nil
}

func (s *MCPServer) handleCallTool(params json.RawMessage) (*CallToolResult, *Error) {
	var callParams CallToolParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    err.Error(),
		}
	}

	s.logger.Debug("tool call", "tool", callParams.Name)

	switch callParams.Name {
	case "query":
		return s.executeQuery(callParams.Arguments)
	case "classify":
		return s.classify(callParams.Arguments)
	case "browse_table":
		return s.browseTable(callParams.Arguments)
	case "update_cell":
		return s.updateCell(callParams.Arguments)
	case "insert_row":
		return s.insertRow(callParams.Arguments)
	case "delete_row":
		return s.deleteRow(callParams.Arguments)
	case "truncate_table":
		return s.truncateTable(callParams.Arguments)
	case "undo":
		return s.undo(callParams.Arguments)
	case "journal":
		return s.listJournal(callParams.Arguments)
	case "history":
		return s.listHistory(callParams.Arguments)
	default:
		return nil, &Error{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Unknown tool: %s", callParams.Name),
		}
	}
}

func (s *MCPServer) handleListResources() (*ListResourcesResult, *Error) {
	ctx, cancel := s.queryContext()
	defer cancel()

	tables, err := s.conn.ListTables(ctx)
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to list tables: %s", s.describe(err)),
		}
	}

	resources := make([]Resource, 0, len(tables))
	for _, tableName := range tables {
		resources = append(resources, Resource{
			URI:      s.schemaURI(tableName),
			Name:     fmt.Sprintf("Schema for table '%s'", tableName),
			MimeType: "application/json",
		})
	}

	return &ListResourcesResult{Resources: resources}, nil
}

// schemaURI is <db type>://<database>/<table>/schema.
func (s *MCPServer) schemaURI(table string) string {
	return fmt.Sprintf("%s://%s/%s/schema", s.adapter.Name(), s.conn.DatabaseName(), table)
}

func (s *MCPServer) handleReadResource(params json.RawMessage) (*ReadResourceResult, *Error) {
	var readParams ReadResourceParams
	if err := json.Unmarshal(params, &readParams); err != nil {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Invalid parameters",
			Data:    err.Error(),
		}
	}

	// Parse URI: <db type>://dbname/tablename/schema
	uri := readParams.URI
	prefix := s.adapter.Name() + "://"
	if !strings.HasPrefix(uri, prefix) {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Invalid resource URI: must start with %s", prefix),
		}
	}

	parts := strings.Split(strings.TrimPrefix(uri, prefix), "/")
	if len(parts) != 3 || parts[2] != "schema" || parts[1] == "" {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Invalid resource URI format: expected %sdbname/tablename/schema", prefix),
		}
	}
	if parts[0] != s.conn.DatabaseName() {
		return nil, &Error{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Unknown database %q", parts[0]),
		}
	}

	ctx, cancel := s.queryContext()
	defer cancel()

	schema, err := s.conn.ReadSchema(ctx, parts[1])
	if err != nil {
		code := InternalError
		if errors.Is(err, domain.ErrUnknownTable) {
			code = InvalidParams
		}
		return nil, &Error{
			Code:    code,
			Message: fmt.Sprintf("Failed to get schema: %s", s.describe(err)),
		}
	}

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, &Error{
			Code:    InternalError,
			Message: fmt.Sprintf("Failed to marshal schema: %v", err),
		}
	}

	return &ReadResourceResult{
		Contents: []ResourceContent{
			{
				URI:      uri,
				MimeType: "application/json",
				Text:     string(schemaJSON),
			},
		},
	}, nil
}
