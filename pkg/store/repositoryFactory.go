package store

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/spanner"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zoff-tech/go-clearing/pkg/config"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	mongoDatabase   = "clearing"
	mongoCollection = "uetr_tracking"
)

var NewSpannerRepositoryFactory = func(client *spanner.Client) TrackingRepository {
	return &SpannerRepository{client: client}
}

var NewMongoRepositoryFactory = func(client *mongo.Client) TrackingRepository {
	return NewMongoRepository(client, mongoDatabase, mongoCollection)
}

func NewRepository(ctx context.Context, cfg config.DbSettings) (TrackingRepository, error) {
	switch cfg.Type {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewPostgresRepository(db), nil
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
		if err != nil {
			return nil, err
		}
		return NewMongoRepositoryFactory(client), nil
	case "spanner":
		client, err := spanner.NewClient(ctx, cfg.URI)
		if err != nil {
			return nil, err
		}
		return NewSpannerRepositoryFactory(client), nil
	default:
		return nil, fmt.Errorf("unsupported DB type: %s", cfg.Type)
	}
}
