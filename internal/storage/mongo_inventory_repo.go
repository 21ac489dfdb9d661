package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/annel0/mmo-tools/internal/world/block"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB inventory repository.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. mmo_tools
	Collection string // e.g. inventories
}

// MongoInventoryRepo implements inventory.Repository on MongoDB, one document per agent.
type MongoInventoryRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

type mongoItem struct {
	Item   string `bson:"item"`
	Amount int    `bson:"amount"`
}

type mongoTool struct {
	ID        string `bson:"id"`
	Tag       string `bson:"tag"`
	Damage    int    `bson:"damage"`
	MaxDamage int    `bson:"max_damage"`
}

type mongoInventory struct {
	AgentID   string      `bson:"agent_id"`
	Items     []mongoItem `bson:"items"`
	Tools     []mongoTool `bson:"tools"`
	UpdatedAt time.Time   `bson:"updated_at"`
}

// NewMongoInventoryRepo establishes connection and returns repository.
func NewMongoInventoryRepo(cfg MongoConfig) (*MongoInventoryRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "mmo_tools"
	}
	if cfg.Collection == "" {
		cfg.Collection = "inventories"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	// ping
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	repo := &MongoInventoryRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}
	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

func (m *MongoInventoryRepo) ensureIndexes(ctx context.Context) error {
	agentIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "agent_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("agent_unique"),
	}
	_, err := m.collection.Indexes().CreateOne(ctx, agentIdx)
	return err
}

func (m *MongoInventoryRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.ctxTimeout)
}

func toMongo(rec inventory.Record) mongoInventory {
	doc := mongoInventory{
		AgentID:   rec.Agent.String(),
		Items:     make([]mongoItem, 0, len(rec.Items)),
		Tools:     make([]mongoTool, 0, len(rec.Tools)),
		UpdatedAt: rec.UpdatedAt,
	}
	for _, it := range rec.Items {
		doc.Items = append(doc.Items, mongoItem{Item: string(it.Item), Amount: it.Amount})
	}
	for _, t := range rec.Tools {
		doc.Tools = append(doc.Tools, mongoTool{ID: t.ID.String(), Tag: t.Tag, Damage: t.Damage, MaxDamage: t.MaxDamage})
	}
	return doc
}

func fromMongo(doc mongoInventory) (inventory.Record, error) {
	agent, err := uuid.Parse(doc.AgentID)
	if err != nil {
		return inventory.Record{}, fmt.Errorf("bad agent_id %q: %w", doc.AgentID, err)
	}
	rec := inventory.Record{Agent: agent, UpdatedAt: doc.UpdatedAt}
	for _, it := range doc.Items {
		rec.Items = append(rec.Items, inventory.ItemStack{Item: block.Material(it.Item), Amount: it.Amount})
	}
	for _, t := range doc.Tools {
		id, err := uuid.Parse(t.ID)
		if err != nil {
			return inventory.Record{}, fmt.Errorf("bad tool id %q: %w", t.ID, err)
		}
		rec.Tools = append(rec.Tools, inventory.ToolView{ID: id, Tag: t.Tag, Damage: t.Damage, MaxDamage: t.MaxDamage})
	}
	return rec, nil
}

// Save implements inventory.Repository (upsert by agent_id).
func (m *MongoInventoryRepo) Save(ctx context.Context, rec inventory.Record) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	_, err := m.collection.ReplaceOne(ctx, bson.M{"agent_id": rec.Agent.String()}, toMongo(rec), options.Replace().SetUpsert(true))
	return err
}

// Load implements inventory.Repository.
func (m *MongoInventoryRepo) Load(ctx context.Context, agent uuid.UUID) (inventory.Record, bool, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var doc mongoInventory
	err := m.collection.FindOne(ctx, bson.M{"agent_id": agent.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return inventory.Record{}, false, nil
	}
	if err != nil {
		return inventory.Record{}, false, err
	}
	rec, err := fromMongo(doc)
	if err != nil {
		return inventory.Record{}, false, err
	}
	return rec, true, nil
}

// Delete implements inventory.Repository.
func (m *MongoInventoryRepo) Delete(ctx context.Context, agent uuid.UUID) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	_, err := m.collection.DeleteOne(ctx, bson.M{"agent_id": agent.String()})
	return err
}

// BatchSave upserts all records with a single unordered bulk write.
func (m *MongoInventoryRepo) BatchSave(ctx context.Context, recs []inventory.Record) error {
	if len(recs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"agent_id": rec.Agent.String()}).
			SetReplacement(toMongo(rec)).
			SetUpsert(true))
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	_, err := m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

// Close disconnects the client.
func (m *MongoInventoryRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
