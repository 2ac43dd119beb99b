package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/storage"
)

const expenseColumns = `key, remote_id, description, amount, payer_id, payer_name,
	participants, date, category, group_id, group_name, settled, sync_state`

// UpsertExpense inserts or fully replaces one expense record by key.
func (s *SQLiteStore) UpsertExpense(ctx context.Context, rec *models.ExpenseRecord) error {
	if rec.Key == "" {
		return fmt.Errorf("expense record has no key")
	}

	participants, err := marshalRefs(rec.Participants)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   remote_id = excluded.remote_id,
		   description = excluded.description,
		   amount = excluded.amount,
		   payer_id = excluded.payer_id,
		   payer_name = excluded.payer_name,
		   participants = excluded.participants,
		   date = excluded.date,
		   category = excluded.category,
		   group_id = excluded.group_id,
		   group_name = excluded.group_name,
		   settled = excluded.settled,
		   sync_state = excluded.sync_state`,
		rec.Key, rec.RemoteID, rec.Description, rec.Amount,
		rec.Payer.ID, rec.Payer.Name, participants, rec.Date, rec.Category,
		rec.Group.ID, rec.Group.Name, rec.Settled, rec.SyncState,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert expense %s: %w", rec.Key, err)
	}
	return nil
}

// UpsertExpenses bulk-upserts expense records. Each record write lands or
// fails independently; a returned error means at least one write failed.
func (s *SQLiteStore) UpsertExpenses(ctx context.Context, recs []*models.ExpenseRecord) error {
	for _, rec := range recs {
		if err := s.UpsertExpense(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// GetExpense retrieves an expense record by cache key.
func (s *SQLiteStore) GetExpense(ctx context.Context, key string) (*models.ExpenseRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE key = ?`, key)

	rec, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense %s: %w", key, err)
	}
	return rec, nil
}

// ListExpenses returns every cached expense record.
func (s *SQLiteStore) ListExpenses(ctx context.Context) ([]*models.ExpenseRecord, error) {
	return s.listExpenses(ctx, `SELECT `+expenseColumns+` FROM expenses`)
}

// ListExpensesBySyncState returns records matching the given sync state.
func (s *SQLiteStore) ListExpensesBySyncState(ctx context.Context, state models.SyncState) ([]*models.ExpenseRecord, error) {
	return s.listExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE sync_state = ?`, state)
}

func (s *SQLiteStore) listExpenses(ctx context.Context, query string, args ...any) ([]*models.ExpenseRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var recs []*models.ExpenseRecord
	for rows.Next() {
		rec, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return recs, nil
}

// DeleteExpense removes an expense record by cache key.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete expense %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", key, storage.ErrNotFound)
	}
	return nil
}

// ClearExpenses empties the expense partition.
func (s *SQLiteStore) ClearExpenses(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM expenses"); err != nil {
		return fmt.Errorf("failed to clear expenses: %w", err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(sc scanner) (*models.ExpenseRecord, error) {
	rec := &models.ExpenseRecord{}
	var participants string
	if err := sc.Scan(
		&rec.Key, &rec.RemoteID, &rec.Description, &rec.Amount,
		&rec.Payer.ID, &rec.Payer.Name, &participants, &rec.Date, &rec.Category,
		&rec.Group.ID, &rec.Group.Name, &rec.Settled, &rec.SyncState,
	); err != nil {
		return nil, err
	}

	refs, err := unmarshalRefs(participants)
	if err != nil {
		return nil, err
	}
	rec.Participants = refs
	return rec, nil
}
