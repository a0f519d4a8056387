package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"feedesk/internal/receipt/models"
	"feedesk/pkg/platform/sentinel"
)

const registrationsCollection = "registrations"

type mongoEntry struct {
	Seq                      int64 `bson:"seq"`
	models.RegistrationEntry `bson:",inline"`
}

// MongoStore keeps one document per entry. seq orders documents by append; it is taken
// from the collection size and may repeat under concurrent writers, which only affects
// ordering between those writers.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(registrationsCollection)}
}

// EnsureIndexes creates the unique transaction_id index and the seq ordering index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("transaction_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "seq", Value: 1}},
			Options: options.Index().SetName("seq"),
		},
	})
	if err != nil {
		return fmt.Errorf("create registration indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context) ([]models.RegistrationEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	var docs []mongoEntry
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", err)
	}
	entries := make([]models.RegistrationEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, d.RegistrationEntry)
	}
	return entries, nil
}

func (s *MongoStore) Exists(ctx context.Context, transactionID string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"transaction_id": transactionID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) Find(ctx context.Context, transactionID string) (*models.RegistrationEntry, error) {
	var doc mongoEntry
	err := s.coll.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return &doc.RegistrationEntry, nil
}

func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) Append(ctx context.Context, entry models.RegistrationEntry) error {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}
	_, err = s.coll.InsertOne(ctx, mongoEntry{Seq: n + 1, RegistrationEntry: entry})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("append transaction %s: %w", entry.TransactionID, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("append registration: %w", err)
	}
	return nil
}
