package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Postgres is a Store backed by the tables created in migrations.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an already connected pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) State(ctx context.Context, chatID string) (string, error) {
	var state string
	err := p.db.GetContext(ctx, &state,
		`SELECT state FROM conversation_states WHERE chat_id = $1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return state, err
}

func (p *Postgres) SetState(ctx context.Context, chatID, state string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO conversation_states (chat_id, state, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (chat_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		chatID, state)
	return err
}

func (p *Postgres) Menu(ctx context.Context, categoryID string) ([]byte, error) {
	var payload []byte
	err := p.db.GetContext(ctx, &payload,
		`SELECT payload FROM menu_cache WHERE category_id = $1`, categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return payload, err
}

func (p *Postgres) SetMenu(ctx context.Context, categoryID string, payload []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO menu_cache (category_id, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (category_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		categoryID, payload)
	return err
}

func (p *Postgres) DropMenus(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM menu_cache`)
	return err
}

func (p *Postgres) Images(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := p.db.GetContext(ctx, &payload,
		`SELECT payload FROM menu_images WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return payload, err
}

func (p *Postgres) SetImages(ctx context.Context, payload []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO menu_images (id, payload, updated_at)
		 VALUES (1, $1, now())
		 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		payload)
	return err
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
