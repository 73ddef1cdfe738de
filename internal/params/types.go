// Package params manages runtime strategy configuration: persistence with
// audit trail, TTL caching, schema validation and rollback.
package params

import "time"

// Config sources in resolution priority order
const (
	SourceCache       = "cache"
	SourceStore       = "store"
	SourceEnvironment = "environment"
	SourceDefault     = "default"
)

// Audit actions
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// StrategyConfig is one persisted parameter set. Symbol is empty for the
// global config; at most one global and one per-symbol record exist for a
// given strategy.
type StrategyConfig struct {
	StrategyID string                 `json:"strategy_id" bson:"strategy_id"`
	Symbol     string                 `json:"symbol,omitempty" bson:"symbol,omitempty"`
	Parameters map[string]interface{} `json:"parameters" bson:"parameters"`
	Version    int                    `json:"version" bson:"version"`
	CreatedAt  time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at" bson:"updated_at"`
	CreatedBy  string                 `json:"created_by" bson:"created_by"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// AuditRecord is one immutable configuration change entry. OldParameters is
// nil for CREATE, NewParameters is nil for DELETE.
type AuditRecord struct {
	ID            string                 `json:"id" bson:"_id,omitempty"`
	StrategyID    string                 `json:"strategy_id" bson:"strategy_id"`
	Symbol        string                 `json:"symbol,omitempty" bson:"symbol,omitempty"`
	Action        string                 `json:"action" bson:"action"`
	OldParameters map[string]interface{} `json:"old_parameters,omitempty" bson:"old_parameters,omitempty"`
	NewParameters map[string]interface{} `json:"new_parameters,omitempty" bson:"new_parameters,omitempty"`
	ChangedBy     string                 `json:"changed_by" bson:"changed_by"`
	ChangedAt     time.Time              `json:"changed_at" bson:"changed_at"`
	Reason        string                 `json:"reason,omitempty" bson:"reason,omitempty"`
}

// Resolved is the outcome of a configuration lookup
type Resolved struct {
	Parameters map[string]interface{} `json:"parameters"`
	Version    int                    `json:"version"`
	Source     string                 `json:"source"`
	IsOverride bool                   `json:"is_override"`
	CreatedAt  *time.Time             `json:"created_at,omitempty"`
	UpdatedAt  *time.Time             `json:"updated_at,omitempty"`
	CacheHit   bool                   `json:"cache_hit"`
}

// StrategyInfo summarizes one strategy for the listing endpoint
type StrategyInfo struct {
	StrategyID      string   `json:"strategy_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Type            string   `json:"type"`
	HasGlobalConfig bool     `json:"has_global_config"`
	SymbolOverrides []string `json:"symbol_overrides"`
	ParameterCount  int      `json:"parameter_count"`
}

// SetRequest carries one configuration write
type SetRequest struct {
	StrategyID   string
	Symbol       string // empty for global
	Parameters   map[string]interface{}
	ChangedBy    string
	Reason       string
	ValidateOnly bool
}

// RollbackRequest targets either a historical version or a specific audit id
type RollbackRequest struct {
	StrategyID    string
	Symbol        string
	TargetVersion int    // > 0 selects by version
	RollbackID    string // non-empty selects by audit id
	ChangedBy     string
	Reason        string
}

func copyParams(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
