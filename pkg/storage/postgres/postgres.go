// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling, one JSONB document per entity,
// and session-scoped advisory locks for the single-writer rule.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storyloom/storyloom/pkg/api"
	"github.com/storyloom/storyloom/pkg/storage"
)

// Store is a PostgreSQL-backed document store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a PostgreSQL store with the given configuration. If
// MigrateOnStart is set, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// GetEntity retrieves a content entity by kind and ID.
func (s *Store) GetEntity(ctx context.Context, kind api.EntityKind, id string) (*api.ContentEntity, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM entities WHERE id = $1 AND kind = $2 AND NOT deleted`,
		id, string(kind),
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying entity: %w", err)
	}

	var e api.ContentEntity
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("unmarshaling entity %s: %w", id, err)
	}
	return &e, nil
}

// PutEntity inserts a new entity.
func (s *Store) PutEntity(ctx context.Context, e *api.ContentEntity) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO entities (id, kind, parent_id, position, deleted, created_at, updated_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, string(e.Kind), e.ParentID, e.Position, e.Deleted, e.CreatedAt, e.UpdatedAt, doc)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// UpdateEntity replaces an existing entity document.
func (s *Store) UpdateEntity(ctx context.Context, e *api.ContentEntity) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE entities
		SET parent_id = $2, position = $3, deleted = $4, updated_at = $5, doc = $6
		WHERE id = $1
	`, e.ID, e.ParentID, e.Position, e.Deleted, e.UpdatedAt, doc)
	if err != nil {
		return fmt.Errorf("updating entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutEntities inserts a batch of entities in one transaction.
func (s *Store) PutEntities(ctx context.Context, es []*api.ContentEntity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range es {
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling entity: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO entities (id, kind, parent_id, position, deleted, created_at, updated_at, doc)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, e.ID, string(e.Kind), e.ParentID, e.Position, e.Deleted, e.CreatedAt, e.UpdatedAt, doc)
		if err != nil {
			if isDuplicateKey(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("inserting entity %s: %w", e.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteEntity soft-deletes an entity.
func (s *Store) DeleteEntity(ctx context.Context, kind api.EntityKind, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE entities SET deleted = TRUE,
			doc = jsonb_set(doc, '{deleted}', 'true')
		WHERE id = $1 AND kind = $2 AND NOT deleted
	`, id, string(kind))
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListChildren returns non-deleted children ordered by position.
func (s *Store) ListChildren(ctx context.Context, parentID string, kind api.EntityKind) ([]api.ContentEntity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM entities
		WHERE parent_id = $1 AND kind = $2 AND NOT deleted
		ORDER BY position ASC
	`, parentID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	var out []api.ContentEntity
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning child: %w", err)
		}
		var e api.ContentEntity
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("unmarshaling child: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PutInstruction inserts a new instruction.
func (s *Store) PutInstruction(ctx context.Context, ins *api.Instruction) error {
	doc, err := json.Marshal(ins)
	if err != nil {
		return fmt.Errorf("marshaling instruction: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO instructions (id, scope_kind, scope_id, created_at, doc)
		VALUES ($1, $2, $3, $4, $5)
	`, ins.ID, string(ins.ScopeKind), ins.ScopeID, ins.CreatedAt, doc)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting instruction: %w", err)
	}
	return nil
}

// ListInstructions returns the instructions on one scope node, newest first.
func (s *Store) ListInstructions(ctx context.Context, scopeKind api.EntityKind, scopeID string) ([]api.Instruction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM instructions
		WHERE scope_kind = $1 AND scope_id = $2
		ORDER BY created_at DESC, id DESC
	`, string(scopeKind), scopeID)
	if err != nil {
		return nil, fmt.Errorf("querying instructions: %w", err)
	}
	defer rows.Close()

	var out []api.Instruction
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning instruction: %w", err)
		}
		var ins api.Instruction
		if err := json.Unmarshal(doc, &ins); err != nil {
			return nil, fmt.Errorf("unmarshaling instruction: %w", err)
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

// GetDraft retrieves a draft by ID.
func (s *Store) GetDraft(ctx context.Context, id string) (*api.Draft, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM drafts WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying draft: %w", err)
	}
	var d api.Draft
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("unmarshaling draft %s: %w", id, err)
	}
	return &d, nil
}

// PutDraft inserts a new draft.
func (s *Store) PutDraft(ctx context.Context, d *api.Draft) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling draft: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO drafts (id, target_kind, target_id, content_kind, status, created_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.ID, string(d.TargetKind), d.TargetID, string(d.ContentKind), string(d.Status), d.CreatedAt, doc)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting draft: %w", err)
	}
	return nil
}

// UpdateDraft replaces an existing draft document.
func (s *Store) UpdateDraft(ctx context.Context, d *api.Draft) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling draft: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE drafts SET status = $2, doc = $3 WHERE id = $1
	`, d.ID, string(d.Status), doc)
	if err != nil {
		return fmt.Errorf("updating draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListDrafts returns all drafts for a target, newest first.
func (s *Store) ListDrafts(ctx context.Context, targetKind api.EntityKind, targetID string) ([]api.Draft, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM drafts
		WHERE target_kind = $1 AND target_id = $2
		ORDER BY created_at DESC, id DESC
	`, string(targetKind), targetID)
	if err != nil {
		return nil, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()

	var out []api.Draft
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning draft: %w", err)
		}
		var d api.Draft
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, fmt.Errorf("unmarshaling draft: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FindPendingDraft returns the live pending draft for a target and
// content kind, if any.
func (s *Store) FindPendingDraft(ctx context.Context, targetID string, contentKind api.ContentKind) (*api.Draft, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT doc FROM drafts
		WHERE target_id = $1 AND content_kind = $2 AND status = 'pending'
	`, targetID, string(contentKind)).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying pending draft: %w", err)
	}
	var d api.Draft
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("unmarshaling pending draft: %w", err)
	}
	return &d, nil
}

// DeleteDraftsForTarget removes all drafts owned by a target entity.
func (s *Store) DeleteDraftsForTarget(ctx context.Context, targetID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM drafts WHERE target_id = $1`, targetID)
	if err != nil {
		return fmt.Errorf("deleting drafts: %w", err)
	}
	return nil
}

// GetGeneration retrieves a generation record by ID.
func (s *Store) GetGeneration(ctx context.Context, id string) (*api.Generation, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM generations WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying generation: %w", err)
	}
	var g api.Generation
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("unmarshaling generation %s: %w", id, err)
	}
	return &g, nil
}

// PutGeneration inserts a new generation record.
func (s *Store) PutGeneration(ctx context.Context, g *api.Generation) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling generation: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO generations (id, status, created_at, doc)
		VALUES ($1, $2, $3, $4)
	`, g.ID, string(g.Status), g.CreatedAt, doc)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting generation: %w", err)
	}
	return nil
}

// UpdateGeneration replaces an existing generation record.
func (s *Store) UpdateGeneration(ctx context.Context, g *api.Generation) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling generation: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE generations SET status = $2, doc = $3 WHERE id = $1
	`, g.ID, string(g.Status), doc)
	if err != nil {
		return fmt.Errorf("updating generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// WithLock runs fn while holding a session advisory lock derived from key.
// The lock is held on a dedicated pooled connection so fn is free to use
// the pool for its own queries.
func (s *Store) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring lock connection: %w", err)
	}
	defer conn.Release()

	id := lockID(key)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, id); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}
	defer func() {
		// Unlock on a background context so cancellation of ctx cannot
		// leak the lock for the lifetime of the session.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, id)
	}()

	return fn(ctx)
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// lockID hashes an advisory lock key into the signed 64-bit space
// PostgreSQL expects.
func lockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// isDuplicateKey reports whether err is a PostgreSQL unique violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
