// Package transcripts records AI assistant exchanges for later analysis.
package transcripts

import (
	"context"
	"fmt"
	"time"

	logging "github.com/op/go-logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var log = logging.MustGetLogger("transcripts")

const collectionName = "ai_transcripts"

type Turn struct {
	Role    string `bson:"role" json:"role"`
	Content string `bson:"content" json:"content"`
}

// Exchange is one request to the assistant and the reply it produced.
type Exchange struct {
	UserID    string    `bson:"user_id"`
	Feature   string    `bson:"feature"`
	Messages  []Turn    `bson:"messages"`
	Reply     string    `bson:"reply"`
	Fallback  bool      `bson:"fallback"`
	Streamed  bool      `bson:"streamed"`
	CreatedAt time.Time `bson:"created_at"`
}

type Recorder interface {
	Record(ctx context.Context, e Exchange) error
}

// Nop discards exchanges. It is used when no MongoDB is configured.
type Nop struct{}

func (Nop) Record(context.Context, Exchange) error { return nil }

// MongoRecorder stores exchanges in the ai_transcripts collection.
type MongoRecorder struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens the MongoDB connection and ensures the collection indexes.
func Connect(ctx context.Context, uri, database string) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	coll := client.Database(database).Collection(collectionName)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "feature", Value: 1}}},
	})
	if err != nil {
		log.Warningf("create transcript indexes: %v", err)
	}

	log.Infof("recording AI transcripts to %s.%s", database, collectionName)
	return &MongoRecorder{client: client, coll: coll}, nil
}

// NewMongoRecorder wraps an existing collection.
func NewMongoRecorder(coll *mongo.Collection) *MongoRecorder {
	return &MongoRecorder{coll: coll}
}

func (r *MongoRecorder) Record(ctx context.Context, e Exchange) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// CountByUser returns how many exchanges userID has recorded.
func (r *MongoRecorder) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"user_id": userID})
}

func (r *MongoRecorder) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}
