package streams

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kt-lectures/broadcaster/internal/models"
	"github.com/kt-lectures/broadcaster/pkg/database"
)

// Repository handles relay key persistence. Relay key names are unique.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a relay keys repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRelayKey(row pgx.Row) (*models.RelayKey, error) {
	var k models.RelayKey
	var embedded []byte
	if err := row.Scan(&k.ID, &k.Name, &embedded, &k.CreatedAt); err != nil {
		return nil, err
	}
	if len(embedded) > 0 {
		k.Embedded = new(models.DirectPlatformKey)
		if err := json.Unmarshal(embedded, k.Embedded); err != nil {
			return nil, fmt.Errorf("decode relay key %s: %w", k.Name, err)
		}
	}
	return &k, nil
}

func encodeEmbedded(k *models.RelayKey) ([]byte, error) {
	if k.Embedded == nil {
		return nil, nil
	}
	return json.Marshal(k.Embedded)
}

// RelayKeyNames returns the names of all stored relay keys.
func (r *Repository) RelayKeyNames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM relay_keys`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ListRelayKeys returns every relay key, newest first.
func (r *Repository) ListRelayKeys(ctx context.Context) ([]models.RelayKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, embedded, created_at FROM relay_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.RelayKey
	for rows.Next() {
		k, err := scanRelayKey(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *k)
	}
	return list, rows.Err()
}

// InsertRelayKey reserves a relay key name. A taken name yields models.ErrDuplicateKey.
func (r *Repository) InsertRelayKey(ctx context.Context, k *models.RelayKey) error {
	embedded, err := encodeEmbedded(k)
	if err != nil {
		return err
	}
	const q = `INSERT INTO relay_keys (id, name, embedded) VALUES ($1, $2, $3) RETURNING created_at`
	err = r.pool.QueryRow(ctx, q, k.ID, k.Name, embedded).Scan(&k.CreatedAt)
	if database.IsUniqueViolation(err) {
		return models.ErrDuplicateKey
	}
	return err
}

// ReplaceRelayKey stores the embedded primary stream of an existing relay key.
func (r *Repository) ReplaceRelayKey(ctx context.Context, k *models.RelayKey) error {
	embedded, err := encodeEmbedded(k)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE relay_keys SET embedded = $2 WHERE name = $1`, k.Name, embedded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
