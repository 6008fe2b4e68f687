package config

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/HSouheill/commercive_backend/repositories"
)

// ConnectDB connects to MongoDB, verifies the connection and provisions table indexes.
func ConnectDB(cfg *Config, logger *zap.Logger) (*mongo.Client, *repositories.MongoStore, error) {
	uri := cfg.MongoURI
	if uri == "" {
		if !cfg.IsDevelopment() {
			return nil, nil, errors.New("MONGO_URI or MONGODB_URI environment variable is required for production")
		}
		uri = "mongodb://localhost:27017"
	}

	logger.Info("Connecting to MongoDB", zap.String("uri", maskMongoURI(uri)))

	clientOptions := options.Client().
		ApplyURI(uri).
		SetRegistry(repositories.NewRegistry())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to MongoDB", zap.String("database", cfg.DBName))

	retry := repositories.DefaultRetryConfig()
	retry.MaxRetries = cfg.StoreRetries
	store := repositories.NewMongoStore(client.Database(cfg.DBName), cfg.TablePrefix, cfg.StoreTimeout, retry, logger)

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer indexCancel()
	if err := store.EnsureIndexes(indexCtx); err != nil {
		// Queries fall back to scans, so a missing index is not fatal.
		logger.Warn("Error creating indexes", zap.Error(err))
	} else {
		logger.Info("Database collections and indexes setup complete")
	}

	return client, store, nil
}

// maskMongoURI masks the password in a MongoDB URI for logging.
func maskMongoURI(uri string) string {
	if idx := strings.Index(uri, "@"); idx > 0 {
		if colonIdx := strings.LastIndex(uri[:idx], ":"); colonIdx > 0 {
			return uri[:colonIdx+1] + "***" + uri[idx:]
		}
	}
	return uri
}
