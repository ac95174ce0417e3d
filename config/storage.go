package config

import (
	"context"
	"fmt"

	"highscore/adapters/dynamodb"
	"highscore/adapters/jsonfile"
	mem "highscore/adapters/memory"
	"highscore/adapters/redis"
	"highscore/adapters/sqlx"
	"highscore/core"
	"highscore/engine"
)

// Open creates the selected storage adapter. Tables and key spaces are
// created when missing; sample data is loaded only into a fresh store.
func (s StorageConfig) Open(ctx context.Context) (engine.Storage, error) {
	switch s.Adapter {
	case AdapterMemory:
		var opts []mem.Option
		if s.Memory.SeedSampleData {
			opts = append(opts, mem.WithRecords(core.SampleRecords()))
		}
		return mem.New(opts...), nil
	case AdapterRedis:
		return redis.New(ctx, s.Redis)
	case AdapterSQL:
		return sqlx.New(ctx, s.SQL)
	case AdapterFile:
		return jsonfile.New(s.File)
	case AdapterDynamoDB:
		return dynamodb.New(ctx, s.DynamoDB)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", s.Adapter)
	}
}

// SetSeedSampleData toggles seeding on the selected adapter.
func (s *StorageConfig) SetSeedSampleData(seed bool) {
	switch s.Adapter {
	case AdapterMemory:
		s.Memory.SeedSampleData = seed
	case AdapterSQL:
		s.SQL.SeedSampleData = seed
	case AdapterRedis:
		s.Redis.SeedSampleData = seed
	case AdapterFile:
		s.File.SeedSampleData = seed
	case AdapterDynamoDB:
		s.DynamoDB.SeedSampleData = seed
	}
}
