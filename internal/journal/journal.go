// Package journal keeps the bounded, in-memory records of what the console
// did to the database: the change Journal of executed mutations, which can be
// selectively undone, and the History of every statement attempt.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shakram02/go-sql-console/internal/domain"
	"github.com/shakram02/go-sql-console/internal/sqlesc"
)

// DefaultCapacity is the number of journal entries kept before the oldest is
// evicted.
const DefaultCapacity = 10000

// Operation is the kind of mutation a journal entry records.
type Operation string

const (
	OpInsert   Operation = "insert"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpTruncate Operation = "truncate"
)

// Mutation is what the edit path reports after a successful write.
//
// OldValue and NewValue are nil for SQL NULL. Context carries anything else
// worth keeping, such as the full contents of a deleted row.
type Mutation struct {
	Table     string         `json:"table"`
	Operation Operation      `json:"operation"`
	Column    string         `json:"column,omitempty"`
	OldValue  *string        `json:"old_value"`
	NewValue  *string        `json:"new_value"`
	PKColumn  string         `json:"pk_column,omitempty"`
	PKValue   string         `json:"pk_value,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Entry is a recorded mutation.
type Entry struct {
	ID        uint64    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Mutation
	Undone bool `json:"undone"`
}

// Journal is a capacity-bounded, append-only log of mutations.
type Journal struct {
	mu      sync.Mutex
	entries *ring[Entry]
	nextID  uint64
	logger  *slog.Logger
	now     func() time.Time
}

// NewJournal returns an empty journal. A capacity below one means
// DefaultCapacity; a nil logger discards.
func NewJournal(capacity int, logger *slog.Logger) *Journal {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Journal{
		entries: newRing[Entry](capacity),
		nextID:  1,
		logger:  logger,
		now:     time.Now,
	}
}

// Record appends m and returns its id. IDs start at 1 and are never reused.
func (j *Journal) Record(m Mutation) uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := j.nextID
	j.nextID++
	if old, evicted := j.entries.push(Entry{ID: id, Timestamp: j.now(), Mutation: m}); evicted {
		j.logger.Debug("journal entry evicted", "id", old.ID, "table", old.Table, "operation", old.Operation)
	}
	return id
}

// Len returns the number of entries currently held.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entries.len()
}

// List returns a copy of the entries, oldest first.
func (j *Journal) List() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entries.slice()
}

// Get returns a copy of the entry with the given id.
func (j *Journal) Get(id uint64) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, err := j.lookup(id)
	if err != nil {
		return Entry{}, err
	}
	return *e, nil
}

// Undo reverses entry id through exec and marks it undone. The statement runs
// with the journal locked, so no record or eviction can interleave with it.
// A failed execution, or one that touched no row because the row was since
// deleted or re-keyed, leaves the entry untouched.
func (j *Journal) Undo(ctx context.Context, exec domain.Executor, id uint64) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, err := j.lookup(id)
	if err != nil {
		return Entry{}, err
	}
	if e.Undone {
		return Entry{}, domain.Errorf(domain.KindAlreadyUndone, "journal entry %d was already undone", id)
	}

	sql, err := UndoSQL(*e)
	if err != nil {
		return Entry{}, err
	}
	res, err := exec.Execute(ctx, sql)
	if err != nil {
		return Entry{}, fmt.Errorf("undo journal entry %d: %w", id, err)
	}
	if res.RowCount() == 0 {
		return Entry{}, domain.Errorf(domain.KindRowNotFound, "undo journal entry %d: no row in %q with %s = %q", id, e.Table, e.PKColumn, e.PKValue)
	}

	e.Undone = true
	j.logger.Info("journal entry undone", "id", id, "table", e.Table, "operation", e.Operation)
	return *e, nil
}

// lookup finds id in O(1): ids held by the ring are contiguous.
func (j *Journal) lookup(id uint64) (*Entry, error) {
	n := j.entries.len()
	if n > 0 {
		oldest := j.entries.at(0).ID
		if id >= oldest && id-oldest < uint64(n) {
			return j.entries.at(int(id - oldest)), nil
		}
	}
	return nil, domain.Errorf(domain.KindJournalEntryNotFound, "journal entry %d not found", id)
}

// UndoSQL returns the statement that reverses e.
func UndoSQL(e Entry) (string, error) {
	switch e.Operation {
	case OpUpdate:
		table, column, pk, pkValue, err := quoteTarget(e, true)
		if err != nil {
			return "", err
		}
		old := sqlesc.Null
		if e.OldValue != nil {
			if old, err = sqlesc.QuoteLiteral(*e.OldValue); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s", table, column, old, pk, pkValue), nil

	case OpInsert:
		table, _, pk, pkValue, err := quoteTarget(e, false)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", table, pk, pkValue), nil

	case OpDelete, OpTruncate:
		return "", domain.Errorf(domain.KindUndoUnsupported, "undo of %s is not supported", e.Operation)

	default:
		return "", domain.Errorf(domain.KindUndoUnsupported, "unknown operation %q", e.Operation)
	}
}

func quoteTarget(e Entry, withColumn bool) (table, column sqlesc.QuotedIdent, pk sqlesc.QuotedIdent, pkValue sqlesc.Literal, err error) {
	if e.PKColumn == "" {
		err = domain.Errorf(domain.KindUndoUnsupported, "journal entry %d has no row key", e.ID)
		return
	}
	if table, err = sqlesc.QuoteIdentifier(e.Table); err != nil {
		return
	}
	if withColumn {
		if column, err = sqlesc.QuoteIdentifier(e.Column); err != nil {
			return
		}
	}
	if pk, err = sqlesc.QuoteIdentifier(e.PKColumn); err != nil {
		return
	}
	pkValue, err = sqlesc.QuoteLiteral(e.PKValue)
	return
}
