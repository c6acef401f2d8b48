package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/store"
)

// Store keeps every record as a {_id, seq, body} document, one MongoDB
// collection per record collection. Apply needs a replica set because it
// runs inside a multi-document transaction.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, uri string, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close closes the MongoDB connection.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Items() store.Repository[domain.Item] {
	return repository[domain.Item]{coll: s.db.Collection(store.CollectionItems)}
}

func (s *Store) Customers() store.Repository[domain.Customer] {
	return repository[domain.Customer]{coll: s.db.Collection(store.CollectionCustomers)}
}

func (s *Store) Transactions() store.Repository[domain.Transaction] {
	return repository[domain.Transaction]{coll: s.db.Collection(store.CollectionTransactions)}
}

func (s *Store) DebtPayments() store.Repository[domain.DebtPayment] {
	return repository[domain.DebtPayment]{coll: s.db.Collection(store.CollectionDebtPayments)}
}

func (s *Store) Shifts() store.Repository[domain.Shift] {
	return repository[domain.Shift]{coll: s.db.Collection(store.CollectionShifts)}
}

func (s *Store) Users() store.Repository[domain.UserAccount] {
	return repository[domain.UserAccount]{coll: s.db.Collection(store.CollectionUsers)}
}

func (s *Store) AuditLogs() store.Repository[domain.AuditLog] {
	return repository[domain.AuditLog]{coll: s.db.Collection(store.CollectionAuditLogs)}
}

// Apply writes the patch inside a session transaction.
func (s *Store) Apply(ctx context.Context, patch store.Patch) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, write := range patch.Writes() {
			coll := s.db.Collection(write.Collection)
			if write.Delete {
				if err := deleteDocument(sc, coll, write.ID); err != nil {
					return nil, err
				}
				continue
			}
			if err := upsertDocument(sc, coll, write.ID, write.Record); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func upsertDocument(ctx context.Context, coll *mongo.Collection, id string, record any) error {
	if id == "" {
		return store.ErrInvalidTransaction
	}
	update := bson.M{
		"$set":         bson.M{"body": record},
		"$setOnInsert": bson.M{"seq": time.Now().UnixNano()},
	}
	_, err := coll.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", coll.Name(), id, err)
	}
	return nil
}

func deleteDocument(ctx context.Context, coll *mongo.Collection, id string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", coll.Name(), id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete %s/%s: %w", coll.Name(), id, store.ErrNotFound)
	}
	return nil
}

type document[T any] struct {
	ID   string `bson:"_id"`
	Seq  int64  `bson:"seq"`
	Body T      `bson:"body"`
}

type repository[T store.Record] struct {
	coll *mongo.Collection
}

func (r repository[T]) List(ctx context.Context) ([]T, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	result := make([]T, 0, 64)
	for cursor.Next(ctx) {
		var doc document[T]
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", r.coll.Name(), err)
		}
		result = append(result, doc.Body)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r repository[T]) Get(ctx context.Context, id string) (T, error) {
	var doc document[T]
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return doc.Body, store.ErrNotFound
		}
		return doc.Body, fmt.Errorf("failed to get %s/%s: %w", r.coll.Name(), id, err)
	}
	return doc.Body, nil
}

func (r repository[T]) Save(ctx context.Context, record T) error {
	return upsertDocument(ctx, r.coll, record.RecordID(), record)
}

func (r repository[T]) Delete(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.coll, id)
}
