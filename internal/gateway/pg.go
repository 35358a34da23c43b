package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgInsufficientPrivilege is the SQLSTATE the remote store raises when the
// caller lacks a grant. The message is surfaced verbatim.
const pgInsufficientPrivilege = "42501"

// PG implements DataGateway, PrincipalDirectory, and RuleStore against the
// hosted Postgres backend. Every entity table has the same physical shape:
// (id, active, created_at, updated_at, fields jsonb); the kind schema gives
// the jsonb payload its type.
type PG struct {
	pool     *pgxpool.Pool
	registry *Registry
	logger   *slog.Logger
}

// NewPG constructs the Postgres gateway.
func NewPG(pool *pgxpool.Pool, registry *Registry, logger *slog.Logger) *PG {
	return &PG{pool: pool, registry: registry, logger: logger}
}

// Registry exposes the kind registry the gateway validates against.
func (g *PG) Registry() *Registry {
	return g.registry
}

// FetchCollection returns the full collection, newest first.
func (g *PG) FetchCollection(ctx context.Context, kind Kind) ([]Item, error) {
	schema, err := g.registry.Schema(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT id, active, created_at, updated_at, fields FROM %s ORDER BY created_at DESC, id",
		schema.Table(),
	)
	rows, err := g.pool.Query(ctx, query)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows, schema)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return items, nil
}

// FetchByID returns one item by identifier.
func (g *PG) FetchByID(ctx context.Context, kind Kind, id uuid.UUID) (Item, error) {
	schema, err := g.registry.Schema(kind)
	if err != nil {
		return Item{}, err
	}
	query := fmt.Sprintf(
		"SELECT id, active, created_at, updated_at, fields FROM %s WHERE id = $1",
		schema.Table(),
	)
	return g.queryItem(ctx, schema, query, id)
}

// Insert validates the payload and writes it. Identifier and timestamps are
// assigned by the remote store and returned on the item.
func (g *PG) Insert(ctx context.Context, kind Kind, fields map[string]any) (Item, error) {
	schema, err := g.registry.Schema(kind)
	if err != nil {
		return Item{}, err
	}
	clean, err := schema.ValidateInsert(fields)
	if err != nil {
		return Item{}, err
	}
	payload, err := marshalFields(clean)
	if err != nil {
		return Item{}, err
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (active, fields) VALUES (TRUE, $1) RETURNING id, active, created_at, updated_at, fields",
		schema.Table(),
	)
	return g.queryItem(ctx, schema, query, payload)
}

// Update merges the patch into the stored fields and bumps updated_at.
func (g *PG) Update(ctx context.Context, kind Kind, id uuid.UUID, fields map[string]any) (Item, error) {
	schema, err := g.registry.Schema(kind)
	if err != nil {
		return Item{}, err
	}
	clean, err := schema.ValidatePatch(fields)
	if err != nil {
		return Item{}, err
	}
	payload, err := marshalFields(clean)
	if err != nil {
		return Item{}, err
	}
	query := fmt.Sprintf(
		"UPDATE %s SET fields = fields || $2::jsonb, updated_at = NOW() WHERE id = $1 RETURNING id, active, created_at, updated_at, fields",
		schema.Table(),
	)
	return g.queryItem(ctx, schema, query, id, payload)
}

// SoftDelete flips the active flag; the row remains fetchable.
func (g *PG) SoftDelete(ctx context.Context, kind Kind, id uuid.UUID) (Item, error) {
	schema, err := g.registry.Schema(kind)
	if err != nil {
		return Item{}, err
	}
	if !schema.SoftDelete {
		return Item{}, fmt.Errorf("%w: %s", ErrHardDeleteOnly, kind)
	}
	query := fmt.Sprintf(
		"UPDATE %s SET active = FALSE, updated_at = NOW() WHERE id = $1 RETURNING id, active, created_at, updated_at, fields",
		schema.Table(),
	)
	return g.queryItem(ctx, schema, query, id)
}

// HardDelete removes the row.
func (g *PG) HardDelete(ctx context.Context, kind Kind, id uuid.UUID) error {
	schema, err := g.registry.Schema(kind)
	if err != nil {
		return err
	}
	tag, err := g.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", schema.Table()), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *PG) queryItem(ctx context.Context, schema Schema, query string, args ...any) (Item, error) {
	row := g.pool.QueryRow(ctx, query, args...)
	item, err := scanItem(row, schema)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, mapPgError(err)
	}
	return item, nil
}

func scanItem(row pgx.Row, schema Schema) (Item, error) {
	var (
		item    Item
		payload []byte
	)
	if err := row.Scan(&item.ID, &item.Active, &item.CreatedAt, &item.UpdatedAt, &payload); err != nil {
		return Item{}, err
	}
	raw := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &raw); err != nil {
			return Item{}, &SchemaError{Kind: schema.Kind, Reason: "fields payload is not valid json"}
		}
	}
	fields, err := schema.ValidatePatch(raw)
	if err != nil {
		return Item{}, err
	}
	item.Fields = fields
	return item, nil
}

func marshalFields(fields map[string]any) ([]byte, error) {
	encodable := make(map[string]any, len(fields))
	for name, value := range fields {
		if t, ok := value.(time.Time); ok {
			encodable[name] = t.Format(time.RFC3339)
			continue
		}
		encodable[name] = value
	}
	return json.Marshal(encodable)
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInsufficientPrivilege {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, pgErr.Message)
	}
	return err
}
