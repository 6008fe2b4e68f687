package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const missingHintMessage = "hint provided does not correspond to an existing index"

// MongoStore implements Store with one MongoDB collection per table. The client must be
// created with NewRegistry so decimal fields are stored as Decimal128.
type MongoStore struct {
	db      *mongo.Database
	prefix  string
	timeout time.Duration
	retry   RetryConfig
	logger  *zap.Logger
}

func NewMongoStore(db *mongo.Database, prefix string, timeout time.Duration, retry RetryConfig, logger *zap.Logger) *MongoStore {
	return &MongoStore{
		db:      db,
		prefix:  prefix,
		timeout: timeout,
		retry:   retry,
		logger:  logger,
	}
}

func (s *MongoStore) collection(table string) *mongo.Collection {
	return s.db.Collection(s.prefix + table)
}

// do runs fn with a per-attempt timeout, retrying network failures and timeouts.
func (s *MongoStore) do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return withBackoff(ctx, s.retry, s.logger, operation, isTransient, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return fn(attemptCtx)
	})
}

func (s *MongoStore) Put(ctx context.Context, table string, key Key, record interface{}) error {
	return s.do(ctx, "put "+table, func(ctx context.Context) error {
		_, err := s.collection(table).ReplaceOne(ctx, bson.M(key), record, options.Replace().SetUpsert(true))
		return err
	})
}

func (s *MongoStore) Get(ctx context.Context, table string, key Key, out interface{}) (bool, error) {
	found := false
	err := s.do(ctx, "get "+table, func(ctx context.Context) error {
		err := s.collection(table).FindOne(ctx, bson.M(key)).Decode(out)
		if errors.Is(err, mongo.ErrNoDocuments) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *MongoStore) QueryByIndex(ctx context.Context, table string, q IndexQuery, out interface{}) error {
	err := s.find(ctx, table, q, true, out)
	if errors.Is(err, ErrIndexNotFound) {
		s.logger.Warn("Index not found, falling back to scan",
			zap.String("table", table),
			zap.String("index", q.Index))
		return s.find(ctx, table, q, false, out)
	}
	return err
}

func (s *MongoStore) find(ctx context.Context, table string, q IndexQuery, useHint bool, out interface{}) error {
	opts := options.Find()
	if useHint && q.Index != "" {
		opts.SetHint(q.Index)
	}
	if q.SortKey != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.SortKey, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	return s.do(ctx, "query "+table+" "+q.Index, func(ctx context.Context) error {
		cursor, err := s.collection(table).Find(ctx, buildFilter(q.Conditions), opts)
		if err != nil {
			if isMissingIndex(err) {
				return ErrIndexNotFound
			}
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, out)
	})
}

func (s *MongoStore) Update(ctx context.Context, table string, key Key, upd Update) (bool, error) {
	filter := buildFilter(upd.Conditions)
	for field, v := range key {
		filter[field] = v
	}

	doc := bson.M{}
	if len(upd.Set) > 0 {
		doc["$set"] = bson.M(upd.Set)
	}
	if len(upd.Inc) > 0 {
		inc := bson.M{}
		for field, delta := range upd.Inc {
			inc[field] = delta
		}
		doc["$inc"] = inc
	}
	if len(doc) == 0 {
		return false, fmt.Errorf("update %s: nothing to update", table)
	}

	matched := false
	err := s.do(ctx, "update "+table, func(ctx context.Context) error {
		res, err := s.collection(table).UpdateOne(ctx, filter, doc)
		if err != nil {
			return err
		}
		matched = res.MatchedCount > 0
		return nil
	})
	return matched, err
}

func (s *MongoStore) Scan(ctx context.Context, table string, limit int64, out interface{}) error {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.do(ctx, "scan "+table, func(ctx context.Context) error {
		cursor, err := s.collection(table).Find(ctx, bson.M{}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, out)
	})
}

// EnsureIndexes creates the named secondary indexes of every table.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for table, defs := range Indexes {
		models := make([]mongo.IndexModel, 0, len(defs))
		for _, d := range defs {
			keys := bson.D{{Key: d.HashKey, Value: 1}}
			if d.RangeKey != "" {
				keys = append(keys, bson.E{Key: d.RangeKey, Value: 1})
			}
			models = append(models, mongo.IndexModel{Keys: keys, Options: options.Index().SetName(d.Name)})
		}
		if _, err := s.collection(table).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes for %s: %w", table, err)
		}
	}

	for table, fields := range PrimaryKeys {
		keys := bson.D{}
		for _, f := range fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		model := mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true).SetName("primary")}
		if _, err := s.collection(table).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create primary key index for %s: %w", table, err)
		}
	}
	return nil
}

func buildFilter(conds []Condition) bson.M {
	filter := bson.M{}
	for _, c := range conds {
		ops, _ := filter[c.Field].(bson.M)
		if ops == nil {
			ops = bson.M{}
		}
		switch c.Op {
		case OpEq:
			ops["$eq"] = c.Value
		case OpGte:
			ops["$gte"] = c.Value
		case OpLt:
			ops["$lt"] = c.Value
		case OpLte:
			ops["$lte"] = c.Value
		case OpIn:
			ops["$in"] = c.Value
		}
		filter[c.Field] = ops
	}
	return filter
}

func isMissingIndex(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorMessage(missingHintMessage)
}

func isTransient(err error) bool {
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}
