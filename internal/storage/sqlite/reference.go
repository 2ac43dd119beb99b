package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/storage"
)

// UpsertPeople replaces cached people by remote id. Each write lands or
// fails independently.
func (s *SQLiteStore) UpsertPeople(ctx context.Context, people []*models.Person) error {
	for _, p := range people {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO people (id, display_name, is_default_participant)
			 VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   display_name = excluded.display_name,
			   is_default_participant = excluded.is_default_participant`,
			p.ID, p.DisplayName, p.IsDefaultParticipant,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert person %d: %w", p.ID, err)
		}
	}
	return nil
}

// ListPeople returns the cached reference people.
func (s *SQLiteStore) ListPeople(ctx context.Context) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, display_name, is_default_participant FROM people")
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	var people []*models.Person
	for rows.Next() {
		p := &models.Person{}
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.IsDefaultParticipant); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate people: %w", err)
	}
	return people, nil
}

// UpsertGroup inserts or fully replaces one group by key.
func (s *SQLiteStore) UpsertGroup(ctx context.Context, g *models.Group) error {
	if g.Key == "" {
		return fmt.Errorf("group has no key")
	}

	members, err := marshalRefs(g.Members)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO groups (key, remote_id, display_name, members, sync_state)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   remote_id = excluded.remote_id,
		   display_name = excluded.display_name,
		   members = excluded.members,
		   sync_state = excluded.sync_state`,
		g.Key, g.RemoteID, g.DisplayName, members, g.SyncState,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group %s: %w", g.Key, err)
	}
	return nil
}

// UpsertGroups bulk-upserts groups. Non-atomic across the batch.
func (s *SQLiteStore) UpsertGroups(ctx context.Context, gs []*models.Group) error {
	for _, g := range gs {
		if err := s.UpsertGroup(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// GetGroup retrieves a group by cache key.
func (s *SQLiteStore) GetGroup(ctx context.Context, key string) (*models.Group, error) {
	g := &models.Group{}
	var members string
	err := s.db.QueryRowContext(ctx,
		"SELECT key, remote_id, display_name, members, sync_state FROM groups WHERE key = ?",
		key,
	).Scan(&g.Key, &g.RemoteID, &g.DisplayName, &members, &g.SyncState)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group %s: %w", key, err)
	}

	refs, err := unmarshalRefs(members)
	if err != nil {
		return nil, err
	}
	g.Members = refs
	return g, nil
}

// ListGroups returns every cached group.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, remote_id, display_name, members, sync_state FROM groups")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		g := &models.Group{}
		var members string
		if err := rows.Scan(&g.Key, &g.RemoteID, &g.DisplayName, &members, &g.SyncState); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		refs, err := unmarshalRefs(members)
		if err != nil {
			return nil, err
		}
		g.Members = refs
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// DeleteGroup removes a group by cache key.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete group %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", key, storage.ErrNotFound)
	}
	return nil
}

// ClearGroups empties the group partition.
func (s *SQLiteStore) ClearGroups(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM groups"); err != nil {
		return fmt.Errorf("failed to clear groups: %w", err)
	}
	return nil
}
