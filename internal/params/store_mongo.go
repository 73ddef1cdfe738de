package params

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	apperrors "realtime_strategies/pkg/errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo collection names
const (
	collGlobalConfigs = "strategy_configs_global"
	collSymbolConfigs = "strategy_configs_symbol"
	collConfigAudit   = "strategy_config_audit"
)

// MongoConfig selects the document store deployment
type MongoConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MongoStore persists configs and audit in MongoDB, the production store
// shared by all replicas.
type MongoStore struct {
	cfg       MongoConfig
	client    *mongo.Client
	db        *mongo.Database
	connected atomic.Bool
}

// NewMongoStore creates a store for the given deployment
func NewMongoStore(cfg MongoConfig) *MongoStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &MongoStore{cfg: cfg}
}

func (s *MongoStore) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(s.cfg.URI).
		SetServerSelectionTimeout(s.cfg.Timeout))
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}

	s.client = client
	s.db = client.Database(s.cfg.Database)
	if err := s.ensureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	s.connected.Store(true)
	return nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := s.db.Collection(collGlobalConfigs).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "strategy_id", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collSymbolConfigs).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "strategy_id", Value: 1}, {Key: "symbol", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collConfigAudit).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "strategy_id", Value: 1}, {Key: "symbol", Value: 1}}},
		{Keys: bson.D{{Key: "changed_at", Value: -1}}},
	})
	return err
}

func (s *MongoStore) Close(ctx context.Context) error {
	s.connected.Store(false)
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if !s.connected.Load() {
		return apperrors.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) IsConnected() bool {
	return s.connected.Load()
}

func (s *MongoStore) GetGlobalConfig(ctx context.Context, strategyID string) (*StrategyConfig, error) {
	return s.findConfig(ctx, collGlobalConfigs, bson.M{"strategy_id": strategyID})
}

func (s *MongoStore) GetSymbolConfig(ctx context.Context, strategyID, symbol string) (*StrategyConfig, error) {
	return s.findConfig(ctx, collSymbolConfigs, bson.M{"strategy_id": strategyID, "symbol": symbol})
}

func (s *MongoStore) findConfig(ctx context.Context, coll string, filter bson.M) (*StrategyConfig, error) {
	var cfg StrategyConfig
	err := s.db.Collection(coll).FindOne(ctx, filter).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *MongoStore) UpsertGlobalConfig(ctx context.Context, cfg *StrategyConfig) error {
	return s.upsert(ctx, collGlobalConfigs, bson.M{"strategy_id": cfg.StrategyID}, cfg)
}

func (s *MongoStore) UpsertSymbolConfig(ctx context.Context, cfg *StrategyConfig) error {
	return s.upsert(ctx, collSymbolConfigs, bson.M{"strategy_id": cfg.StrategyID, "symbol": cfg.Symbol}, cfg)
}

func (s *MongoStore) upsert(ctx context.Context, coll string, filter bson.M, cfg *StrategyConfig) error {
	_, err := s.db.Collection(coll).ReplaceOne(ctx, filter, cfg, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) DeleteGlobalConfig(ctx context.Context, strategyID string) error {
	return s.delete(ctx, collGlobalConfigs, bson.M{"strategy_id": strategyID})
}

func (s *MongoStore) DeleteSymbolConfig(ctx context.Context, strategyID, symbol string) error {
	return s.delete(ctx, collSymbolConfigs, bson.M{"strategy_id": strategyID, "symbol": symbol})
}

func (s *MongoStore) delete(ctx context.Context, coll string, filter bson.M) error {
	res, err := s.db.Collection(coll).DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListSymbolOverrides(ctx context.Context, strategyID string) ([]string, error) {
	values, err := s.db.Collection(collSymbolConfigs).Distinct(ctx, "symbol", bson.M{"strategy_id": strategyID})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if sym, ok := v.(string); ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

func (s *MongoStore) CreateAuditRecord(ctx context.Context, rec *AuditRecord) (string, error) {
	stored := *rec
	stored.ID = uuid.NewString()
	if _, err := s.db.Collection(collConfigAudit).InsertOne(ctx, &stored); err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (s *MongoStore) GetAuditTrail(ctx context.Context, strategyID, symbol string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{"strategy_id": strategyID}
	if symbol != "" {
		filter["symbol"] = symbol
	}
	cursor, err := s.db.Collection(collConfigAudit).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "changed_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	var out []AuditRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) GetAuditRecordByID(ctx context.Context, id string) (*AuditRecord, error) {
	var rec AuditRecord
	err := s.db.Collection(collConfigAudit).FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) GetAuditRecordByVersion(ctx context.Context, strategyID string, version int, symbol string) (*AuditRecord, error) {
	filter := bson.M{
		"strategy_id":            strategyID,
		"new_parameters.version": version,
	}
	if symbol == "" {
		// null also matches documents without a symbol field.
		filter["symbol"] = bson.M{"$in": bson.A{"", nil}}
	} else {
		filter["symbol"] = symbol
	}
	var rec AuditRecord
	err := s.db.Collection(collConfigAudit).
		FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "changed_at", Value: -1}})).
		Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
