package destination

import (
	"context"
	"time"

	"go-deskmigrate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Destination table names the orchestrator writes to
const (
	TableAccounts    = "accounts"
	TableContacts    = "contacts"
	TableAgents      = "agents"
	TableTickets     = "tickets"
	TableComments    = "comments"
	TableTimeEntries = "time_entries"
)

type DestinationRepository interface {
	Upsert(ctx context.Context, table, id string, fields map[string]interface{}) (created bool, err error)
	Update(ctx context.Context, table, id string, fields map[string]interface{}) error
	FindByID(ctx context.Context, table, id string) (map[string]interface{}, error)
	FindAccountByDomain(ctx context.Context, domain string) (*Account, error)
	FindAgentByEmail(ctx context.Context, email string) (*Agent, error)
	EnsureIndexes(ctx context.Context) error
}

type DestinationRepositoryImpl struct {
	db *database.MongodbDB
}

func NewDestinationRepository(db *database.MongodbDB) DestinationRepository {
	return &DestinationRepositoryImpl{db: db}
}

func (r *DestinationRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	type spec struct {
		table string
		keys  bson.D
	}
	for _, s := range []spec{
		{TableAccounts, bson.D{{Key: "domain", Value: 1}}},
		{TableContacts, bson.D{{Key: "email", Value: 1}}},
		{TableContacts, bson.D{{Key: "account_id", Value: 1}}},
		{TableAgents, bson.D{{Key: "email", Value: 1}}},
		{TableTickets, bson.D{{Key: "account_id", Value: 1}}},
		{TableComments, bson.D{{Key: "ticket_id", Value: 1}}},
		{TableTimeEntries, bson.D{{Key: "ticket_id", Value: 1}}},
	} {
		_, err := r.db.DB.Collection(s.table).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: s.keys})
		if err != nil {
			return err
		}
	}
	return nil
}

// Upsert writes a document under its deterministic id. created_at is
// only set on first insert, so reruns keep the original timestamp.
func (r *DestinationRepositoryImpl) Upsert(ctx context.Context, table, id string, fields map[string]interface{}) (bool, error) {
	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		if k == "_id" || k == "created_at" {
			continue
		}
		set[k] = v
	}

	res, err := r.db.DB.Collection(table).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"created_at": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *DestinationRepositoryImpl) Update(ctx context.Context, table, id string, fields map[string]interface{}) error {
	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		if k == "_id" || k == "created_at" {
			continue
		}
		set[k] = v
	}

	_, err := r.db.DB.Collection(table).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (r *DestinationRepositoryImpl) FindByID(ctx context.Context, table, id string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	err := r.db.DB.Collection(table).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *DestinationRepositoryImpl) FindAccountByDomain(ctx context.Context, domain string) (*Account, error) {
	var acc Account
	err := r.db.DB.Collection(TableAccounts).FindOne(ctx, bson.M{"domain": domain}).Decode(&acc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *DestinationRepositoryImpl) FindAgentByEmail(ctx context.Context, email string) (*Agent, error) {
	var agent Agent
	err := r.db.DB.Collection(TableAgents).FindOne(ctx, bson.M{"email": email}).Decode(&agent)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}
