package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
)

type MongoRepository struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewMongoRepository(client *mongo.Client, database, collection string) *MongoRepository {
	return &MongoRepository{
		client:     client,
		database:   database,
		collection: collection,
	}
}

func (m *MongoRepository) coll() *mongo.Collection {
	return m.client.Database(m.database).Collection(m.collection)
}

func (m *MongoRepository) Append(ctx context.Context, record *TrackingRecord) error {
	tracer := otel.Tracer("go-clearing")
	ctx, span := tracer.Start(ctx, "Append")
	defer span.End()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := m.coll().InsertOne(ctx, record)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (m *MongoRepository) FetchByUetr(ctx context.Context, uetr string) ([]TrackingRecord, error) {
	tracer := otel.Tracer("go-clearing")
	ctx, span := tracer.Start(ctx, "FetchByUetr")
	defer span.End()

	startTime := time.Now()

	opts := options.Find().SetSort(bson.D{{Key: "createdat", Value: 1}})
	cursor, err := m.coll().Find(ctx, bson.M{"uetr": uetr}, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []TrackingRecord
	for cursor.Next(ctx) {
		var record TrackingRecord
		if err := cursor.Decode(&record); err != nil {
			span.RecordError(err)
			return nil, err
		}
		records = append(records, record)
	}

	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, "FetchByUetr", len(records), time.Since(startTime))

	return records, nil
}

func (m *MongoRepository) UpdateStatus(ctx context.Context, uetr string, status TrackingStatus, reason, actor string) error {
	tracer := otel.Tracer("go-clearing")
	ctx, span := tracer.Start(ctx, "UpdateStatus")
	defer span.End()

	// Append-only: copy identity fields from the latest record into a new
	// transition document.
	opts := options.FindOne().SetSort(bson.D{{Key: "createdat", Value: -1}})
	var latest TrackingRecord
	if err := m.coll().FindOne(ctx, bson.M{"uetr": uetr}, opts).Decode(&latest); err != nil {
		span.RecordError(err)
		return err
	}

	transition := TrackingRecord{
		ID:          uuid.NewString(),
		Uetr:        latest.Uetr,
		MessageType: latest.MessageType,
		TenantID:    latest.TenantID,
		MessageID:   latest.MessageID,
		Direction:   latest.Direction,
		Status:      status,
		Reason:      reason,
		Actor:       actor,
		Source:      latest.Source,
		CreatedAt:   time.Now(),
	}
	_, err := m.coll().InsertOne(ctx, transition)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (m *MongoRepository) FetchUnpublished(ctx context.Context, batchSize int) ([]TrackingRecord, error) {
	tracer := otel.Tracer("go-clearing")
	ctx, span := tracer.Start(ctx, "FetchUnpublished")
	defer span.End()

	startTime := time.Now()

	filter := bson.M{
		"published":       false,
		"publishattempts": bson.M{"$lt": maxPublishAttempts},
	}
	opts := options.Find().SetLimit(int64(batchSize)).SetSort(bson.D{{Key: "createdat", Value: 1}})
	cursor, err := m.coll().Find(ctx, filter, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []TrackingRecord
	for cursor.Next(ctx) {
		var record TrackingRecord
		if err := cursor.Decode(&record); err != nil {
			span.RecordError(err)
			return nil, err
		}
		records = append(records, record)
	}

	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, record := range records {
		if _, err := m.coll().UpdateOne(ctx,
			bson.M{"id": record.ID},
			bson.M{"$inc": bson.M{"publishattempts": 1}}); err != nil {
			return nil, err
		}
	}

	addDBStatsToSpan(span, "FetchUnpublished", len(records), time.Since(startTime))

	return records, nil
}

func (m *MongoRepository) MarkPublished(ctx context.Context, recordID string) error {
	_, err := m.coll().UpdateOne(ctx,
		bson.M{"id": recordID},
		bson.M{"$set": bson.M{"published": true}})
	return err
}
