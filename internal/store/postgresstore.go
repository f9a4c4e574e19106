package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// PostgresStore is an optional Postgres-backed CredentialStore, selected via
// config.Storage.Backend == "postgres", for operators who run the gateway as
// multiple replicas sharing one credential table (coordination across
// replicas is out of this module's scope, but storing the durable records in
// a shared database is a natural fit since Credential is already a plain
// JSON-able struct).
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cliproxy_credentials (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	payload JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS cliproxy_credentials_provider_idx ON cliproxy_credentials (provider);
`

// NewPostgresStore connects using dsn and ensures the backing table exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apierror.Storage(err, "failed to connect to postgres credential store")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, apierror.Storage(err, "failed to initialize postgres credential schema")
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() { p.pool.Close() }

func (p *PostgresStore) List() ([]*Credential, error) {
	rows, err := p.pool.Query(context.Background(), `SELECT payload FROM cliproxy_credentials ORDER BY updated_at DESC`)
	if err != nil {
		return nil, apierror.Storage(err, "failed to list postgres credentials")
	}
	defer rows.Close()
	var out []*Credential
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, apierror.Storage(err, "failed to scan postgres credential row")
		}
		var c Credential
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Get(id string) (*Credential, error) {
	var raw []byte
	err := p.pool.QueryRow(context.Background(), `SELECT payload FROM cliproxy_credentials WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, apierror.Storage(err, "failed to load postgres credential %s", id)
	}
	var c Credential
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, apierror.Storage(err, "corrupt postgres credential %s", id)
	}
	return &c, nil
}

func (p *PostgresStore) GetByProvider(provider Provider) ([]*Credential, error) {
	rows, err := p.pool.Query(context.Background(), `SELECT payload FROM cliproxy_credentials WHERE provider = $1 ORDER BY updated_at DESC`, string(provider))
	if err != nil {
		return nil, apierror.Storage(err, "failed to query postgres credentials for provider %s", provider)
	}
	defer rows.Close()
	var out []*Credential
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			continue
		}
		var c Credential
		if err := json.Unmarshal(raw, &c); err == nil {
			out = append(out, &c)
		}
	}
	return out, rows.Err()
}

func (p *PostgresStore) Save(c *Credential) error {
	if c.SchemaVersion == 0 {
		c.SchemaVersion = CurrentSchemaVersion
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return apierror.Storage(err, "failed to marshal credential %s", c.ID)
	}
	_, err = p.pool.Exec(context.Background(), `
		INSERT INTO cliproxy_credentials (id, provider, updated_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET provider = $2, updated_at = $3, payload = $4
	`, c.ID, string(c.Provider), c.UpdatedAt, payload)
	if err != nil {
		return apierror.Storage(err, "failed to upsert credential %s", c.ID)
	}
	return nil
}

func (p *PostgresStore) Delete(id string) error {
	_, err := p.pool.Exec(context.Background(), `DELETE FROM cliproxy_credentials WHERE id = $1`, id)
	if err != nil {
		return apierror.Storage(err, "failed to delete credential %s", id)
	}
	return nil
}

func (p *PostgresStore) DeleteByProvider(provider Provider) (int, error) {
	tag, err := p.pool.Exec(context.Background(), `DELETE FROM cliproxy_credentials WHERE provider = $1`, string(provider))
	if err != nil {
		return 0, apierror.Storage(err, "failed to delete credentials for provider %s", provider)
	}
	return int(tag.RowsAffected()), nil
}
