package params

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	apperrors "realtime_strategies/pkg/errors"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS strategy_configs_global (
	strategy_id TEXT PRIMARY KEY,
	parameters  TEXT NOT NULL,
	version     INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	created_by  TEXT NOT NULL,
	metadata    TEXT
);
CREATE TABLE IF NOT EXISTS strategy_configs_symbol (
	strategy_id TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	parameters  TEXT NOT NULL,
	version     INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	created_by  TEXT NOT NULL,
	metadata    TEXT,
	PRIMARY KEY (strategy_id, symbol)
);
CREATE TABLE IF NOT EXISTS strategy_config_audit (
	id             TEXT PRIMARY KEY,
	strategy_id    TEXT NOT NULL,
	symbol         TEXT NOT NULL DEFAULT '',
	action         TEXT NOT NULL,
	old_parameters TEXT,
	new_parameters TEXT,
	changed_by     TEXT NOT NULL,
	changed_at     TIMESTAMP NOT NULL,
	reason         TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_strategy ON strategy_config_audit (strategy_id, symbol, changed_at DESC);
`

// SQLiteStore persists configs and audit in a local SQLite database,
// for single-node and development deployments.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	connected atomic.Bool
}

// NewSQLiteStore creates a store backed by the database at path
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite store: %w", err)
	}
	// WAL survives process crashes without blocking readers.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	s.db = db
	s.connected.Store(true)
	return nil
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	s.connected.Store(false)
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if !s.connected.Load() {
		return apperrors.ErrNotConnected
	}
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) IsConnected() bool {
	return s.connected.Load()
}

func (s *SQLiteStore) GetGlobalConfig(ctx context.Context, strategyID string) (*StrategyConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT strategy_id, '', parameters, version, created_at, updated_at, created_by, metadata
		 FROM strategy_configs_global WHERE strategy_id = ?`, strategyID)
	return scanConfig(row)
}

func (s *SQLiteStore) GetSymbolConfig(ctx context.Context, strategyID, symbol string) (*StrategyConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT strategy_id, symbol, parameters, version, created_at, updated_at, created_by, metadata
		 FROM strategy_configs_symbol WHERE strategy_id = ? AND symbol = ?`, strategyID, symbol)
	return scanConfig(row)
}

func (s *SQLiteStore) UpsertGlobalConfig(ctx context.Context, cfg *StrategyConfig) error {
	paramsJSON, metaJSON, err := marshalConfig(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO strategy_configs_global (strategy_id, parameters, version, created_at, updated_at, created_by, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(strategy_id) DO UPDATE SET
		   parameters = excluded.parameters, version = excluded.version,
		   updated_at = excluded.updated_at, created_by = excluded.created_by,
		   metadata = excluded.metadata`,
		cfg.StrategyID, paramsJSON, cfg.Version, cfg.CreatedAt, cfg.UpdatedAt, cfg.CreatedBy, metaJSON)
	return err
}

func (s *SQLiteStore) UpsertSymbolConfig(ctx context.Context, cfg *StrategyConfig) error {
	paramsJSON, metaJSON, err := marshalConfig(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO strategy_configs_symbol (strategy_id, symbol, parameters, version, created_at, updated_at, created_by, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(strategy_id, symbol) DO UPDATE SET
		   parameters = excluded.parameters, version = excluded.version,
		   updated_at = excluded.updated_at, created_by = excluded.created_by,
		   metadata = excluded.metadata`,
		cfg.StrategyID, cfg.Symbol, paramsJSON, cfg.Version, cfg.CreatedAt, cfg.UpdatedAt, cfg.CreatedBy, metaJSON)
	return err
}

func (s *SQLiteStore) DeleteGlobalConfig(ctx context.Context, strategyID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM strategy_configs_global WHERE strategy_id = ?`, strategyID)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (s *SQLiteStore) DeleteSymbolConfig(ctx context.Context, strategyID, symbol string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM strategy_configs_symbol WHERE strategy_id = ? AND symbol = ?`, strategyID, symbol)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (s *SQLiteStore) ListSymbolOverrides(ctx context.Context, strategyID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol FROM strategy_configs_symbol WHERE strategy_id = ? ORDER BY symbol`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateAuditRecord(ctx context.Context, rec *AuditRecord) (string, error) {
	id := uuid.NewString()
	oldJSON, err := marshalNullable(rec.OldParameters)
	if err != nil {
		return "", err
	}
	newJSON, err := marshalNullable(rec.NewParameters)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO strategy_config_audit (id, strategy_id, symbol, action, old_parameters, new_parameters, changed_by, changed_at, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.StrategyID, rec.Symbol, rec.Action, oldJSON, newJSON, rec.ChangedBy, rec.ChangedAt, rec.Reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) GetAuditTrail(ctx context.Context, strategyID, symbol string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, strategy_id, symbol, action, old_parameters, new_parameters, changed_by, changed_at, reason
		 FROM strategy_config_audit WHERE strategy_id = ?`
	args := []interface{}{strategyID}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY changed_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetAuditRecordByID(ctx context.Context, id string) (*AuditRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, strategy_id, symbol, action, old_parameters, new_parameters, changed_by, changed_at, reason
		 FROM strategy_config_audit WHERE id = ?`, id)
	rec, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) GetAuditRecordByVersion(ctx context.Context, strategyID string, version int, symbol string) (*AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy_id, symbol, action, old_parameters, new_parameters, changed_by, changed_at, reason
		 FROM strategy_config_audit WHERE strategy_id = ? AND symbol = ? AND new_parameters IS NOT NULL
		 ORDER BY changed_at DESC, id DESC`, strategyID, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		if v, ok := asNumber(rec.NewParameters["version"]); ok && int(v) == version {
			return rec, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, apperrors.ErrNotFound
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row rowScanner) (*StrategyConfig, error) {
	var (
		cfg        StrategyConfig
		paramsJSON string
		metaJSON   sql.NullString
	)
	err := row.Scan(&cfg.StrategyID, &cfg.Symbol, &paramsJSON, &cfg.Version,
		&cfg.CreatedAt, &cfg.UpdatedAt, &cfg.CreatedBy, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(paramsJSON), &cfg.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &cfg.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &cfg, nil
}

func scanAudit(row rowScanner) (*AuditRecord, error) {
	var (
		rec              AuditRecord
		oldJSON, newJSON sql.NullString
		reason           sql.NullString
		changedAt        time.Time
	)
	err := row.Scan(&rec.ID, &rec.StrategyID, &rec.Symbol, &rec.Action,
		&oldJSON, &newJSON, &rec.ChangedBy, &changedAt, &reason)
	if err != nil {
		return nil, err
	}
	rec.ChangedAt = changedAt
	rec.Reason = reason.String
	if oldJSON.Valid && oldJSON.String != "" {
		if err := json.Unmarshal([]byte(oldJSON.String), &rec.OldParameters); err != nil {
			return nil, fmt.Errorf("decode old parameters: %w", err)
		}
	}
	if newJSON.Valid && newJSON.String != "" {
		if err := json.Unmarshal([]byte(newJSON.String), &rec.NewParameters); err != nil {
			return nil, fmt.Errorf("decode new parameters: %w", err)
		}
	}
	return &rec, nil
}

func marshalConfig(cfg *StrategyConfig) (string, string, error) {
	paramsJSON, err := json.Marshal(cfg.Parameters)
	if err != nil {
		return "", "", fmt.Errorf("encode parameters: %w", err)
	}
	metaJSON := ""
	if cfg.Metadata != nil {
		raw, err := json.Marshal(cfg.Metadata)
		if err != nil {
			return "", "", fmt.Errorf("encode metadata: %w", err)
		}
		metaJSON = string(raw)
	}
	return string(paramsJSON), metaJSON, nil
}

func marshalNullable(params map[string]interface{}) (interface{}, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
