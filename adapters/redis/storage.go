package redis

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"highscore/core"
	"highscore/engine"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"HIGHSCORE_STORAGE_REDIS_ADDR"`
	Password     string        `json:"password" env:"HIGHSCORE_STORAGE_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"HIGHSCORE_STORAGE_REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"HIGHSCORE_STORAGE_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"HIGHSCORE_STORAGE_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"HIGHSCORE_STORAGE_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"HIGHSCORE_STORAGE_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"HIGHSCORE_STORAGE_REDIS_WRITE_TIMEOUT"`
	KeyPrefix    string        `json:"key_prefix" env:"HIGHSCORE_STORAGE_REDIS_KEY_PREFIX"`

	// SeedSampleData loads core.SampleRecords when no difficulty has been recorded yet.
	SeedSampleData bool `json:"seed_sample_data" env:"HIGHSCORE_STORAGE_REDIS_SEED"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    core.TableName,
	}
}

// Validate validates Redis configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("redis address cannot be empty")
	}
	if c.DB < 0 {
		return errors.New("redis database cannot be negative")
	}
	if c.PoolSize < 0 {
		return errors.New("redis pool size cannot be negative")
	}
	return nil
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - {prefix}:difficulty:{d} -> sorted set, member name, score = highscore (ordering only)
// - {prefix}:exact:{d} -> hash, name -> decimal highscore
// - {prefix}:difficulties -> sorted set of known difficulties (member and score = d)
//
// Sorted set scores are float64 and lose precision above 2^53, so the hash is
// the source of truth for every score that is compared or returned.
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a new Redis-backed storage with the provided configuration
func New(ctx context.Context, config Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewWithClient(client, config.KeyPrefix)
	if config.SeedSampleData {
		if err := s.seedIfEmpty(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing).
// An empty prefix selects core.TableName.
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = core.TableName
	}
	return &Store{client: client, prefix: prefix}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) boardKey(difficulty int64) string {
	return fmt.Sprintf("%s:difficulty:%d", s.prefix, difficulty)
}

func (s *Store) exactKey(difficulty int64) string {
	return fmt.Sprintf("%s:exact:%d", s.prefix, difficulty)
}

func (s *Store) difficultiesKey() string {
	return s.prefix + ":difficulties"
}

// Replaces the stored score only when strictly greater. Scores travel as
// canonical decimal strings and are compared by sign, length, then bytes.
// Returns {accepted, had_previous, previous_or_current}.
var submitScript = redis.NewScript(`
	local board = KEYS[1]
	local index = KEYS[2]
	local exact = KEYS[3]
	local name = ARGV[1]
	local score = ARGV[2]

	local function greater(a, b)
		local an, bn = a:sub(1, 1) == '-', b:sub(1, 1) == '-'
		if an ~= bn then
			return bn
		end
		if an then
			a, b = b:sub(2), a:sub(2)
		end
		if #a ~= #b then
			return #a > #b
		end
		return a > b
	end

	local current = redis.call('HGET', exact, name)
	if current then
		if not greater(score, current) then
			return {'0', '1', current}
		end
		redis.call('HSET', exact, name, score)
		redis.call('ZADD', board, score, name)
		return {'1', '1', current}
	end

	redis.call('HSET', exact, name, score)
	redis.call('ZADD', board, score, name)
	redis.call('ZADD', index, ARGV[3], ARGV[3])
	return {'1', '0', '0'}
`)

func (s *Store) Upsert(ctx context.Context, r core.Record) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.exactKey(r.Difficulty), r.Name, strconv.FormatInt(r.Score, 10))
		p.ZAdd(ctx, s.boardKey(r.Difficulty), redis.Z{Score: float64(r.Score), Member: r.Name})
		p.ZAdd(ctx, s.difficultiesKey(), redis.Z{Score: float64(r.Difficulty), Member: strconv.FormatInt(r.Difficulty, 10)})
		return nil
	})
	return core.WrapStorage("upsert", err)
}

// SubmitIfHigher runs the comparison and write inside one script so it is atomic on the server.
func (s *Store) SubmitIfHigher(ctx context.Context, r core.Record) (core.Result, error) {
	keys := []string{s.boardKey(r.Difficulty), s.difficultiesKey(), s.exactKey(r.Difficulty)}
	args := []any{r.Name, strconv.FormatInt(r.Score, 10), strconv.FormatInt(r.Difficulty, 10)}
	raw, err := submitScript.Run(ctx, s.client, keys, args...).StringSlice()
	if err != nil {
		return core.Result{}, core.WrapStorage("submit", err)
	}
	if len(raw) != 3 {
		return core.Result{}, core.WrapStorage("submit", fmt.Errorf("unexpected script reply %v", raw))
	}
	score, err := strconv.ParseInt(raw[2], 10, 64)
	if err != nil {
		return core.Result{}, core.WrapStorage("submit", fmt.Errorf("corrupt score %q: %w", raw[2], err))
	}

	accepted, hadPrev := raw[0] == "1", raw[1] == "1"
	if !accepted {
		return core.Result{Record: core.Record{Name: r.Name, Difficulty: r.Difficulty, Score: score}}, nil
	}
	res := core.Result{Record: r, Accepted: true}
	if hadPrev {
		res.Previous = &score
	}
	return res, nil
}

// Seed upserts records.
func (s *Store) Seed(ctx context.Context, records []core.Record) error {
	for _, r := range records {
		if err := s.Upsert(ctx, r); err != nil {
			return core.WrapStorage("seed", err)
		}
	}
	return nil
}

func (s *Store) seedIfEmpty(ctx context.Context) error {
	n, err := s.client.ZCard(ctx, s.difficultiesKey()).Result()
	if err != nil {
		return core.WrapStorage("seed", err)
	}
	if n > 0 {
		return nil
	}
	return s.Seed(ctx, core.SampleRecords())
}

func (s *Store) difficulties(ctx context.Context) ([]int64, error) {
	members, err := s.client.ZRange(ctx, s.difficultiesKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		d, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt difficulty member %q: %w", m, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// board reads one difficulty ordered by score desc, name asc. The sorted set
// only supplies the members; scores come from the exact hash and the slice
// is re-sorted, since float ties and ZREVRANGE member order are both unreliable.
func (s *Store) board(ctx context.Context, difficulty int64) ([]core.Record, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, s.boardKey(difficulty), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(zs) == 0 {
		return []core.Record{}, nil
	}
	names := make([]string, 0, len(zs))
	for _, z := range zs {
		name, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected member type %T", z.Member)
		}
		names = append(names, name)
	}
	exact, err := s.client.HMGet(ctx, s.exactKey(difficulty), names...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]core.Record, 0, len(zs))
	for i, z := range zs {
		score := int64(z.Score)
		if v, ok := exact[i].(string); ok {
			if score, err = strconv.ParseInt(v, 10, 64); err != nil {
				return nil, fmt.Errorf("corrupt score %q for %q: %w", v, names[i], err)
			}
		}
		out = append(out, core.Record{Name: names[i], Difficulty: difficulty, Score: score})
	}
	slices.SortStableFunc(out, func(a, b core.Record) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *Store) score(ctx context.Context, name string, difficulty int64) (core.Record, bool, error) {
	v, err := s.client.HGet(ctx, s.exactKey(difficulty), name).Result()
	if errors.Is(err, redis.Nil) {
		return core.Record{}, false, nil
	}
	if err != nil {
		return core.Record{}, false, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return core.Record{}, false, fmt.Errorf("corrupt score %q for %q: %w", v, name, err)
	}
	return core.Record{Name: name, Difficulty: difficulty, Score: n}, true, nil
}

func (s *Store) QueryAll(ctx context.Context) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		ds, err := s.difficulties(ctx)
		if err != nil {
			yield(core.Record{}, core.WrapStorage("query all", err))
			return
		}
		for _, d := range ds {
			records, err := s.board(ctx, d)
			if err != nil {
				yield(core.Record{}, core.WrapStorage("query all", err))
				return
			}
			for _, r := range records {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

func (s *Store) QueryByName(ctx context.Context, name string) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		ds, err := s.difficulties(ctx)
		if err != nil {
			yield(core.Record{}, core.WrapStorage("query by name", err))
			return
		}
		for _, d := range ds {
			r, ok, err := s.score(ctx, name, d)
			if err != nil {
				yield(core.Record{}, core.WrapStorage("query by name", err))
				return
			}
			if ok && !yield(r, nil) {
				return
			}
		}
	}
}

func (s *Store) QueryByDifficulty(ctx context.Context, difficulty int64) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		records, err := s.board(ctx, difficulty)
		if err != nil {
			yield(core.Record{}, core.WrapStorage("query by difficulty", err))
			return
		}
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s *Store) QueryByNameAndDifficulty(ctx context.Context, name string, difficulty int64) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		r, ok, err := s.score(ctx, name, difficulty)
		if err != nil {
			yield(core.Record{}, core.WrapStorage("query by name and difficulty", err))
			return
		}
		if ok {
			yield(r, nil)
		}
	}
}

var _ engine.Storage = (*Store)(nil)
