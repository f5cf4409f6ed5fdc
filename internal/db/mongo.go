package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vecollab/backend/internal/config"
)

// OpenMongo connects to the blob database and verifies the connection.
func OpenMongo(ctx context.Context, conf *config.MongoConfig) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect -> %w", err)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("client.Ping -> %w", err)
	}

	return client.Database(conf.DB), nil
}
