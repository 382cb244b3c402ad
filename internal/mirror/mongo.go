package mirror

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/config"
	"github.com/kkkkikiki/checkout/internal/model"
)

// Collection name constants.
const (
	colLeads    = "leads"
	colWaitlist = "waitlist"
)

// Mongo mirrors records into MongoDB, upserting by reference or email.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ Mirror = (*Mongo)(nil)

// New returns a Mongo mirror for cfg, or Nop when no URI is configured.
func New(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (Mirror, error) {
	if cfg.URI == "" {
		logger.Info("mongo mirror disabled")
		return Nop{}, nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("mirror/mongo: connect: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(cfg.Database), logger: logger}
	if err := m.migrate(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info("mongo mirror connected", zap.String("database", cfg.Database))
	return m, nil
}

func (m *Mongo) migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colLeads: {
			{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		colWaitlist: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for col, models := range indexes {
		if _, err := m.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mirror/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// MirrorLead upserts the lead keyed by its reference.
func (m *Mongo) MirrorLead(ctx context.Context, lead *model.Lead) error {
	_, err := m.db.Collection(colLeads).UpdateOne(ctx,
		bson.M{"reference": lead.Reference},
		bson.M{"$set": lead},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mirror/mongo: upsert lead %s: %w", lead.Reference, err)
	}
	return nil
}

// MirrorWaitlistEntry upserts the entry keyed by its email.
func (m *Mongo) MirrorWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error {
	_, err := m.db.Collection(colWaitlist).UpdateOne(ctx,
		bson.M{"email": entry.Email},
		bson.M{"$set": entry},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mirror/mongo: upsert waitlist entry: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
