package params

import "context"

// Store persists strategy configs and their audit trail. Lookups for absent
// records return apperrors.ErrNotFound. Audit records are append-only: the
// interface deliberately exposes no update or delete path for them.
type Store interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error
	IsConnected() bool

	GetGlobalConfig(ctx context.Context, strategyID string) (*StrategyConfig, error)
	GetSymbolConfig(ctx context.Context, strategyID, symbol string) (*StrategyConfig, error)
	UpsertGlobalConfig(ctx context.Context, cfg *StrategyConfig) error
	UpsertSymbolConfig(ctx context.Context, cfg *StrategyConfig) error
	DeleteGlobalConfig(ctx context.Context, strategyID string) error
	DeleteSymbolConfig(ctx context.Context, strategyID, symbol string) error
	ListSymbolOverrides(ctx context.Context, strategyID string) ([]string, error)

	CreateAuditRecord(ctx context.Context, rec *AuditRecord) (string, error)
	GetAuditTrail(ctx context.Context, strategyID, symbol string, limit int) ([]AuditRecord, error)
	GetAuditRecordByID(ctx context.Context, id string) (*AuditRecord, error)
	GetAuditRecordByVersion(ctx context.Context, strategyID string, version int, symbol string) (*AuditRecord, error)
}
