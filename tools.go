package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/journal"
	"github.com/shakram02/go-sql-console/internal/sqlguard"
	"github.com/shakram02/go-sql-console/internal/tablequery"
)

// sqlValue is a JSON scalar carried as text. JSON null is SQL NULL.
type sqlValue struct {
	text *string
	set  bool
}

func (v *sqlValue) UnmarshalJSON(b []byte) error {
	v.set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		v.text = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}

	var s string
	switch t := x.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	default:
		return fmt.Errorf("expected a string, number, boolean or null")
	}
	v.text = &s
	return nil
}

type queryArgs struct {
	SQL     string `json:"sql"`
	Confirm bool   `json:"confirm"`
}

type queryResponse struct {
	Columns   []string         `json:"columns,omitempty"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int64            `json:"row_count"`
	Truncated bool             `json:"truncated,omitempty"`
	Warning   string           `json:"warning,omitempty"`
}

type classifyResponse struct {
	sqlguard.Statement
	ReadOnlyMode bool   `json:"read_only_mode"`
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
}

type browseResponse struct {
	Table      string               `json:"table"`
	Columns    []string             `json:"columns"`
	Rows       []map[string]any     `json:"rows"`
	TotalCount *int64               `json:"total_count"`
	CountMode  tablequery.CountMode `json:"count_mode"`
	Keyset     bool                 `json:"keyset"`
	Descending bool                 `json:"descending"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset,omitempty"`
	KeyColumn  string               `json:"key_column,omitempty"`
	FirstKey   *string              `json:"first_key,omitempty"`
	LastKey    *string              `json:"last_key,omitempty"`
}

type rowArgs struct {
	Table string   `json:"table"`
	Key   sqlValue `json:"key"`
}

type updateCellArgs struct {
	rowArgs
	Column string   `json:"column"`
	Value  sqlValue `json:"value"`
}

type insertRowArgs struct {
	Table  string              `json:"table"`
	Values map[string]sqlValue `json:"values"`
}

type truncateArgs struct {
	Table   string `json:"table"`
	Confirm bool   `json:"confirm"`
}

type undoArgs struct {
	ID *uint64 `json:"id"`
}

type listArgs struct {
	Limit int `json:"limit"`
}

type editResponse struct {
	JournalID    *uint64 `json:"journal_id,omitempty"`
	RowsAffected int64   `json:"rows_affected"`
	KeyColumn    string  `json:"key_column,omitempty"`
	Key          string  `json:"key,omitempty"`
	Warning      string  `json:"warning,omitempty"`
}

type journalResponse struct {
	SessionID string          `json:"session_id"`
	Total     int             `json:"total"`
	Entries   []journal.Entry `json:"entries"`
}

type historyResponse struct {
	SessionID string                 `json:"session_id"`
	Total     int                    `json:"total"`
	Capacity  int                    `json:"capacity"`
	Entries   []journal.HistoryEntry `json:"entries"`
}

func (s *MCPServer) executeQuery(raw json.RawMessage) (*CallToolResult, *Error) {
	var args queryArgs
	if perr := decodeArgs(raw, &args); perr != nil {
		return nil, perr
	}
	if strings.TrimSpace(args.SQL) == "" {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Missing or invalid 'sql' parameter",
		}
	}

	stmt := sqlguard.Classify(args.SQL)
	if err := s.checkStatement(stmt, args.Confirm); err != nil {
		s.refuse(args.SQL, err)
		return s.toolError(err), nil
	}

	res, err := s.Execute(s.ctx, args.SQL)
	if err != nil {
		return s.toolError(err), nil
	}

	resp := queryResponse{
		Columns:   res.Columns,
		Rows:      rowMaps(res),
		RowCount:  res.RowCount(),
		Truncated: res.Truncated,
	}
	switch {
	case res.Truncated:
		resp.Warning = fmt.Sprintf("Result truncated at %d rows", len(res.Rows))
	case stmt.Destructive:
		resp.Warning = stmt.Warning
	}
	return jsonResult(resp)
}

// checkStatement applies the session policy: the read-only whitelist and
// the adapter's own checks in read-only mode, the destructive-statement
// confirmation otherwise.
func (s *MCPServer) checkStatement(stmt sqlguard.Statement, confirm bool) error {
	if s.cfg.ReadOnly {
		return s.adapter.ValidateQuery(stmt.SQL)
	}
	if stmt.Destructive && !confirm {
		return domain.Errorf(domain.KindConfirmationRequired, "%s; pass confirm=true to run it", stmt.Warning)
	}
	return nil
}

func (s *MCPServer) classify(raw json.RawMessage) (*CallToolResult, *Error) {
	var args queryArgs
	if perr := decodeArgs(raw, &args); perr != nil {
		return nil, perr
	}
	if args.SQL == "" {
		return nil, &Error{
			Code:    InvalidParams,
			Message: "Missing or invalid 'sql' parameter",
		}
	}

	resp := classifyResponse{
		Statement:    sqlguard.Classify(args.SQL),
		ReadOnlyMode: s.cfg.ReadOnly,
		Allowed:      true,
	}
	if err := s.checkStatement(resp.Statement, false); err != nil {
		resp.Allowed = false
		resp.Reason = err.Error()
	}
	return jsonResult(resp)
}

func (s *MCPServer) browseTable(raw json.RawMessage) (*CallToolResult, *Error) {
	var req tablequery.PageRequest
	if perr := decodeArgs(raw, &req); perr != nil {
		return nil, perr
	}
	if req.Table == "" {
		return nil, missingParam("table")
	}
	if req.Limit == 0 {
		req.Limit = s.cfg.PageSize
	}

	schema, err := s.readSchema(req.Table)
	if err != nil {
		return s.toolError(err), nil
	}
	page, err := tablequery.Build(req, schema, s.adapter.Dialect())
	if err != nil {
		return s.toolError(err), nil
	}

	var data, count *domain.Result
	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		var err error
		data, err = s.Execute(ctx, page.DataSQL)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = s.Execute(ctx, page.CountSQL)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.toolError(err), nil
	}

	resp := browseResponse{
		Table:      req.Table,
		Columns:    data.Columns,
		Rows:       rowMaps(data),
		TotalCount: countValue(count),
		CountMode:  page.CountMode,
		Keyset:     page.Keyset,
		Descending: page.Descending,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if pk, ok := schema.SinglePrimaryKey(); ok {
		resp.KeyColumn = pk.Name()
		if i := slices.Index(data.Columns, pk.Name()); i >= 0 && len(data.Rows) > 0 {
			first, last := data.Rows[0][i], data.Rows[len(data.Rows)-1][i]
			if page.Descending {
				first, last = last, first
			}
			resp.FirstKey, resp.LastKey = textValue(first), textValue(last)
		}
	}
	return jsonResult(resp)
}

func (s *MCPServer) updateCell(raw json.RawMessage) (*CallToolResult, *Error) {
	var args updateCellArgs
	if perr := decodeArgs(raw, &args); perr != nil {
		return nil, perr
	}
	if perr := args.validate(); perr != nil {
		return nil, perr
	}
	if args.Column == "" {
		return nil, missingParam("column")
	}
	if !args.Value.set {
		return nil, missingParam("value")
	}
	if err := s.requireWritable("update_cell"); err != nil {
		return s.toolError(err), nil
	}

	schema, target, err := s.target(args.rowArgs)
	if err != nil {
		return s.toolError(err), nil
	}
	query, err := tablequery.UpdateCell(schema, target, args.Column, args.Value.text, s.adapter.Dialect())
	if err != nil {
		return s.toolError(err), nil
	}
	row, err := s.currentRow(schema, target)
	if err != nil {
		return s.toolError(err), nil
	}

	res, err := s.Execute(s.ctx, query)
	if err != nil {
		return s.toolError(err), nil
	}

	// The journal addresses the row by the key it has after the update.
	key := target.Value()
	switch {
	case args.Column == target.Column():
		key = *args.Value.text
	case target.IsLocator() && len(res.Rows) > 0 && len(res.Rows[0]) > 0:
		if loc := textValue(res.Rows[0][0]); loc != nil {
			key = *loc
		}
	}

	resp := editResponse{RowsAffected: res.RowCount(), KeyColumn: target.Column(), Key: key}
	if res.RowCount() > 0 {
		id := s.journal.Record(journal.Mutation{
			Table:     args.Table,
			Operation: journal.OpUpdate,
			Column:    args.Column,
			OldValue:  textValue(row[args.Column]),
			NewValue:  args.Value.text,
			PKColumn:  target.Column(),
			PKValue:   key,
		})
		resp.JournalID = &id
		s.logger.Info("cell updated", "table", args.Table, "column", args.Column, "journal_id", id)
	}
	return jsonResult(resp)
}

func (s *MCPServer) insertRow(raw json.RawMessage) (*CallToolResult, *Error) {
	var args insertRowArgs
	if perr := decodeArgs(raw, &args); perr != nil {
		return nil, perr
	}
	if args.Table == "" {
		return nil, missingParam("table")
	}
	if err := s.requireWritable("insert_row"); err != nil {
		return s.toolError(err), nil
	}

	// NULL is the default for an omitted column.
	values := make(map[string]string, len(args.Values))
	for col, v := range args.Values {
		if v.text != nil {
			values[col] = *v.text
		}
	}

	schema, err := s.readSchema(args.Table)
	if err != nil {
		return s.toolError(err), nil
	}
	query, keyColumn, err := tablequery.InsertRow(schema, values, s.adapter.Dialect())
	if err != nil {
		return s.toolError(err), nil
	}

	res, err := s.Execute(s.ctx, query)
	if err != nil {
		return s.toolError(err), nil
	}

	m := journal.Mutation{
		Table:     args.Table,
		Operation: journal.OpInsert,
		Context:   map[string]any{"values": values},
	}
	if keyColumn != "" && len(res.Rows) > 0 && len(res.Rows[0]) > 0 {
		if key := textValue(res.Rows[0][0]); key != nil {
			m.PKColumn, m.PKValue = keyColumn, *key
		}
	}
	id := s.journal.Record(m)
	s.logger.Info("row inserted", "table", args.Table, "journal_id", id)

	resp := editResponse{JournalID: &id, RowsAffected: res.RowCount(), KeyColumn: m.PKColumn, Key: m.PKValue}
	if m.PKColumn == "" {
		resp.Warning = "the new row's key is unknown; this insert cannot be undone"
	}
	return jsonResult(resp)
}

func (s *MCPServer) deleteRow(raw json.RawMessage) (*CallToolResult, *Error) {
	var args rowArgs
	if perr := decodeArgs(raw, &args); perr != nil {
		return nil, perr
	}
	if perr := args.validate(); perr != nil {
		return nil, perr
	}
	if err := s.requireWritable("delete_row"); err != nil {
		return s.toolError(err), nil
	}

	schema, target, err := s.target(args)
	if err != nil {
		return s.toolError(err), nil
	}
	row, err := s.currentRow(schema, target)
	if err != nil {
		return s.toolError(err), nil
	}
	query, err := tablequery.DeleteRow(schema, target)
	if err != nil {
		return s.toolError(err), nil
	}

	res, err := s.Execute(s.ctx, query)
	if err != nil {
		return s.toolError(err), nil
	}

	resp := editResponse{RowsAffected: res.RowCount(), KeyColumn: target.Column(), Key: target.Value()}
	if res.RowCount() > 0 {
		id := s.journal.Record(journal.Mutation{
			Table:     args.Table,
			Operation: journal.OpDelete,
			PKColumn:  target.Column(),
			PKValue:   target.Value(),
			Context:   map[string]any{"row": row},
		})
		resp.JournalID = &id
		resp.Warning = "deletes are journaled but cannot be undone"
		s.logger.Info("row deleted", "table", args.Table, "journal_id", id)
	}
	return jsonResult(resp)
}

func (s *MCPServer) truncateTable(raw json.RawMessage) (*CallToolResult, *Error) {
	var args truncateArgs
	if perr := decodeArgs(raw, &args); perr != nil {
		return nil, perr
	}
	if args.Table == "" {
		return nil, missingParam("table")
	}
	if err := s.requireWritable("truncate_table"); err != nil {
		return s.toolError(err), nil
	}

	schema, err := s.readSchema(args.Table)
	if err != nil {
		return s.toolError(err), nil
	}
	query, err := tablequery.Truncate(schema, s.adapter.Dialect())
	if err != nil {
		return s.toolError(err), nil
	}
	if !args.Confirm {
		err := domain.Errorf(domain.KindConfirmationRequired, "%s; pass confirm=true to run it", sqlguard.Analyze(query).Warning)
		s.refuse(query, err)
		return s.toolError(err), nil
	}

	res, err := s.Execute(s.ctx, query)
	if err != nil {
		return s.toolError(err), nil
	}

	id := s.journal.Record(journal.Mutation{
		Table:     args.Table,
		Operation: journal.OpTruncate,
		Context:   map[string]any{"rows_affected": res.RowCount()},
	})
	s.logger.Warn("table truncated", "table", args.Table, "journal_id", id)

	return jsonResult(editResponse{
		JournalID:    &id,
		RowsAffected: res.RowCount(),
		Warning:      "truncates are journaled but cannot be undone",
	})
}

func (s *MCPServer) undo(raw json.RawMessage) (*CallToolResult, *Error) {
	var args undoArgs
	if perr := decodeArgs(raw, &args); perr != nil {
		return nil, perr
	}
	if args.ID == nil {
		return nil, missingParam("id")
	}
	if err := s.requireWritable("undo"); err != nil {
		return s.toolError(err), nil
	}

	entry, err := s.journal.Undo(s.ctx, s, *args.ID)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(entry)
}

func (s *MCPServer) listJournal(raw json.RawMessage) (*CallToolResult, *Error) {
	var args listArgs
	if perr := decodeArgs(raw, &args); perr != nil {
		return nil, perr
	}
	entries := s.journal.List()
	return jsonResult(journalResponse{
		SessionID: s.sessionID,
		Total:     len(entries),
		Entries:   newest(entries, args.Limit),
	})
}

func (s *MCPServer) listHistory(raw json.RawMessage) (*CallToolResult, *Error) {
	var args listArgs
	if perr := decodeArgs(raw, &args); perr != nil {
		return nil, perr
	}
	entries := s.history.List()
	return jsonResult(historyResponse{
		SessionID: s.sessionID,
		Total:     len(entries),
		Capacity:  s.history.Cap(),
		Entries:   newest(entries, args.Limit),
	})
}

func (s *MCPServer) requireWritable(tool string) error {
	if s.cfg.ReadOnly {
		return domain.Errorf(domain.KindReadOnly, "%s is not available in read-only mode", tool)
	}
	return nil
}

func (s *MCPServer) queryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.cfg.QueryTimeout)
}

func (s *MCPServer) readSchema(table string) (*tablequery.Schema, error) {
	ctx, cancel := s.queryContext()
	defer cancel()
	return s.conn.ReadSchema(ctx, table)
}

// target resolves the row addressed by args against a fresh schema snapshot.
func (s *MCPServer) target(args rowArgs) (*tablequery.Schema, tablequery.RowTarget, error) {
	schema, err := s.readSchema(args.Table)
	if err != nil {
		return nil, tablequery.RowTarget{}, err
	}
	target, err := schema.Target(*args.Key.text, s.adapter.Dialect())
	if err != nil {
		return nil, tablequery.RowTarget{}, err
	}
	return schema, target, nil
}

// currentRow reads the targeted row before it is changed.
func (s *MCPServer) currentRow(schema *tablequery.Schema, target tablequery.RowTarget) (map[string]any, error) {
	query, err := tablequery.SelectRow(schema, target, s.adapter.Dialect())
	if err != nil {
		return nil, err
	}
	res, err := s.Execute(s.ctx, query)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, domain.Errorf(domain.KindRowNotFound, "no row in %q with %s = %q", schema.Table, target.Column(), target.Value())
	}
	return rowMap(res.Columns, res.Rows[0]), nil
}

func (a rowArgs) validate() *Error {
	if a.Table == "" {
		return missingParam("table")
	}
	if a.Key.text == nil {
		return missingParam("key")
	}
	return nil
}

func (s *MCPServer) toolError(err error) *CallToolResult {
	code := string(domain.KindOf(err))
	if code == "" {
		code = "DATABASE_ERROR"
	}
	text, merr := json.MarshalIndent(map[string]string{
		"error":   code,
		"message": s.describe(err),
	}, "", "  ")
	if merr != nil {
		text = []byte(err.Error())
	}
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: string(text)}},
		IsError: true,
	}
}

func decodeArgs(raw json.RawMessage, dst any) *Error {
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{
			Code:    InvalidParams,
			Message: "Invalid arguments",
			Data:    err.Error(),
		}
	}
	return nil
}

func missingParam(name string) *Error {
	return &Error{
		Code:    InvalidParams,
		Message: fmt.Sprintf("Missing or invalid '%s' parameter", name),
	}
}

func jsonResult(v any) (*CallToolResult, *Error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &CallToolResult{
			Content: []Content{{Type: "text", Text: fmt.Sprintf("Failed to marshal results: %v", err)}},
			IsError: true,
		}, nil
	}
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: string(b)}},
	}, nil
}

func rowMaps(res *domain.Result) []map[string]any {
	if len(res.Columns) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(res.Rows))
	for _, r := range res.Rows {
		rows = append(rows, rowMap(res.Columns, r))
	}
	return rows
}

func rowMap(columns []string, values []any) map[string]any {
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row
}

// textValue renders a scanned value the way it is written back as a literal.
func textValue(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case []byte:
		s = string(t)
	case time.Time:
		s = t.Format(time.RFC3339Nano)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

// countValue reads the single value of a count or estimate statement.
// Estimates may be NULL when the table has no statistics yet.
func countValue(res *domain.Result) *int64 {
	if res == nil || len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return nil
	}
	var n int64
	switch v := res.Rows[0][0].(type) {
	case int64:
		n = v
	case int32:
		n = int64(v)
	case int:
		n = int64(v)
	case uint64:
		n = int64(v)
	case float64:
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

func newest[T any](entries []T, limit int) []T {
	if limit > 0 && limit < len(entries) {
		return entries[len(entries)-limit:]
	}
	return entries
}
