// Package notesmongo stores notes as MongoDB documents, one document per
// note keyed by the note id.
package notesmongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mrshanahan/notes-service/pkg/notes"
)

const (
	DefaultDatabase   = "notes"
	DefaultCollection = "notes"
)

type document struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Content   string    `bson:"content"`
	OwnerID   string    `bson:"owner_id"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials uri, verifies the deployment answers and ensures the owner
// index exists.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("invalid mongo configuration: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}
	if database == "" {
		database = DefaultDatabase
	}
	s := &Store{
		client: client,
		coll:   client.Database(database).Collection(DefaultCollection),
	}
	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("error creating owner index: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) Create(ctx context.Context, n *notes.Note) error {
	_, err := s.coll.InsertOne(ctx, toDocument(n))
	return err
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*notes.Note, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromDocument(doc)
}

func (s *Store) Update(ctx context.Context, n *notes.Note) (bool, error) {
	result, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: n.ID.String()}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "title", Value: n.Title},
			{Key: "content", Value: n.Content},
			{Key: "updated_at", Value: n.UpdatedAt},
		}}})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

func (s *Store) Count(ctx context.Context, owner *uuid.UUID) (int64, error) {
	return s.coll.CountDocuments(ctx, ownerFilter(owner))
}

func (s *Store) List(ctx context.Context, owner *uuid.UUID, skip, limit int) ([]*notes.Note, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	cursor, err := s.coll.Find(ctx, ownerFilter(owner), opts)
	if err != nil {
		return nil, err
	}
	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	found := make([]*notes.Note, 0, len(docs))
	for _, doc := range docs {
		n, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		found = append(found, n)
	}
	return found, nil
}

func ownerFilter(owner *uuid.UUID) bson.D {
	if owner == nil {
		return bson.D{}
	}
	return bson.D{{Key: "owner_id", Value: owner.String()}}
}

func toDocument(n *notes.Note) document {
	return document{
		ID:        n.ID.String(),
		Title:     n.Title,
		Content:   n.Content,
		OwnerID:   n.OwnerID.String(),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func fromDocument(doc document) (*notes.Note, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid note id %q: %w", doc.ID, err)
	}
	owner, err := uuid.Parse(doc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", doc.OwnerID, err)
	}
	return &notes.Note{
		ID:        id,
		Title:     doc.Title,
		Content:   doc.Content,
		OwnerID:   owner,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}
