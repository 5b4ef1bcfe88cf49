package recipient

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/gigradar/internal/model"
)

var _ model.RecipientStore = (*PostgresStore)(nil)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	chat_id TEXT UNIQUE,
	keywords TEXT,
	mailing_kwork BOOLEAN DEFAULT TRUE,
	mailing_fl BOOLEAN DEFAULT TRUE,
	mailing_freelancer BOOLEAN DEFAULT TRUE
)`

const createKeywordsIndex = `CREATE INDEX IF NOT EXISTS idx_users_keywords ON users(keywords)`

// mailingColumns maps each source to its opt-in column in users.
var mailingColumns = map[model.Source]string{
	model.SourceFL:         "mailing_fl",
	model.SourceKwork:      "mailing_kwork",
	model.SourceFreelancer: "mailing_freelancer",
}

// PostgresStore reads recipients from the users table shared with the chat
// front end.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the users table exists.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createUsersTable); err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, createKeywordsIndex); err != nil {
		return fmt.Errorf("creating keywords index: %w", err)
	}
	return nil
}

// ForSource returns a snapshot of users opted into source.
func (s *PostgresStore) ForSource(ctx context.Context, source model.Source) ([]model.Recipient, error) {
	column, ok := mailingColumns[source]
	if !ok {
		return nil, fmt.Errorf("no mailing column for source %q", source)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chat_id, keywords, mailing_fl, mailing_kwork, mailing_freelancer
		FROM users
		WHERE `+column+` = TRUE AND chat_id IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying recipients for %s: %w", source, err)
	}

	recipients, err := pgx.CollectRows(rows, scanRecipient)
	if err != nil {
		return nil, fmt.Errorf("scanning recipients for %s: %w", source, err)
	}
	return recipients, nil
}

func scanRecipient(row pgx.CollectableRow) (model.Recipient, error) {
	var (
		chatID                string
		keywords              sql.NullString
		fl, kwork, freelancer sql.NullBool
	)
	if err := row.Scan(&chatID, &keywords, &fl, &kwork, &freelancer); err != nil {
		return model.Recipient{}, err
	}
	return model.Recipient{
		ChatID:   chatID,
		Keywords: model.ParseKeywords(keywords.String),
		Sources: map[model.Source]bool{
			model.SourceFL:         fl.Bool,
			model.SourceKwork:      kwork.Bool,
			model.SourceFreelancer: freelancer.Bool,
		},
	}, nil
}

// Upsert inserts r or replaces its keywords and opt-in flags.
func (s *PostgresStore) Upsert(ctx context.Context, r model.Recipient) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (chat_id, keywords, mailing_fl, mailing_kwork, mailing_freelancer)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id) DO UPDATE SET
			keywords = EXCLUDED.keywords,
			mailing_fl = EXCLUDED.mailing_fl,
			mailing_kwork = EXCLUDED.mailing_kwork,
			mailing_freelancer = EXCLUDED.mailing_freelancer`,
		r.ChatID,
		model.JoinKeywords(r.Keywords),
		r.Wants(model.SourceFL),
		r.Wants(model.SourceKwork),
		r.Wants(model.SourceFreelancer),
	)
	if err != nil {
		return fmt.Errorf("upserting recipient %s: %w", r.ChatID, err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
