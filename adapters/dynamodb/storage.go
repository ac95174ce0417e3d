package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"highscore/core"
	"highscore/engine"
)

// Config holds DynamoDB table configuration.
type Config struct {
	Table    string `json:"table" env:"HIGHSCORE_STORAGE_DYNAMODB_TABLE"`
	Region   string `json:"region" env:"HIGHSCORE_STORAGE_DYNAMODB_REGION"`
	Endpoint string `json:"endpoint" env:"HIGHSCORE_STORAGE_DYNAMODB_ENDPOINT"`

	// SeedSampleData loads core.SampleRecords when the table is created by this process.
	SeedSampleData bool `json:"seed_sample_data" env:"HIGHSCORE_STORAGE_DYNAMODB_SEED"`
}

// DefaultConfig returns defaults; region and credentials come from the AWS environment.
func DefaultConfig() Config {
	return Config{Table: core.TableName}
}

// Validate validates DynamoDB configuration.
func (c Config) Validate() error {
	if c.Table == "" {
		return errors.New("dynamodb table cannot be empty")
	}
	return nil
}

// API is the subset of the DynamoDB client used by Store.
type API interface {
	awsdynamodb.DescribeTableAPIClient
	awsdynamodb.QueryAPIClient
	awsdynamodb.ScanAPIClient
	CreateTable(ctx context.Context, params *awsdynamodb.CreateTableInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.CreateTableOutput, error)
	GetItem(ctx context.Context, params *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error)
}

// Store implements engine.Storage on a DynamoDB table with partition key
// "name" (S) and sort key "difficulty" (N).
type Store struct {
	api   API
	table string
}

// New loads the default AWS configuration, creates the table when missing and,
// on explicit opt-in, seeds sample data into a freshly created table.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dynamodb config: %w", err)
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	s := NewWithAPI(client, cfg.Table)
	created, err := s.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	if created && cfg.SeedSampleData {
		for _, r := range core.SampleRecords() {
			if err := s.Upsert(ctx, r); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// NewWithAPI wraps an existing client without touching the table (useful for testing).
func NewWithAPI(api API, table string) *Store {
	return &Store{api: api, table: table}
}

// Initialize creates the table if it does not exist, waits for it to become
// active and reports whether it did so.
func (s *Store) Initialize(ctx context.Context) (bool, error) {
	_, err := s.api.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return false, nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return false, core.WrapStorage("initialize", err)
	}

	_, err = s.api.CreateTable(ctx, &awsdynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("name"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("difficulty"), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("name"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("difficulty"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return false, core.WrapStorage("initialize", err)
	}
	waiter := awsdynamodb.NewTableExistsWaiter(s.api)
	if err := waiter.Wait(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(s.table)}, 2*time.Minute); err != nil {
		return false, core.WrapStorage("initialize", err)
	}
	return true, nil
}

// Close is a no-op; the SDK client holds no connections that need releasing.
func (s *Store) Close() error { return nil }

// namePrefix is prepended to every stored name. DynamoDB rejects empty key
// strings, and the empty name is a valid player.
const namePrefix = "n#"

// item is the stored shape of a core.Record.
type item struct {
	Name       string `dynamodbav:"name"`
	Difficulty int64  `dynamodbav:"difficulty"`
	Score      int64  `dynamodbav:"score"`
}

func (it item) record() core.Record {
	return core.Record{Name: strings.TrimPrefix(it.Name, namePrefix), Difficulty: it.Difficulty, Score: it.Score}
}

func marshal(r core.Record) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(item{Name: namePrefix + r.Name, Difficulty: r.Difficulty, Score: r.Score})
}

func unmarshal(av map[string]types.AttributeValue) (core.Record, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return core.Record{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return it.record(), nil
}

func key(name string, difficulty int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"name":       &types.AttributeValueMemberS{Value: namePrefix + name},
		"difficulty": &types.AttributeValueMemberN{Value: strconv.FormatInt(difficulty, 10)},
	}
}

func (s *Store) Upsert(ctx context.Context, r core.Record) error {
	item, err := marshal(r)
	if err != nil {
		return core.WrapStorage("upsert", fmt.Errorf("failed to marshal record: %w", err))
	}
	_, err = s.api.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return core.WrapStorage("upsert", err)
}

// SubmitIfHigher writes the item under a condition evaluated by DynamoDB, so
// the comparison and the write are one atomic step.
func (s *Store) SubmitIfHigher(ctx context.Context, r core.Record) (core.Result, error) {
	item, err := marshal(r)
	if err != nil {
		return core.Result{}, core.WrapStorage("submit", fmt.Errorf("failed to marshal record: %w", err))
	}
	out, err := s.api.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#name) OR #score < :score"),
		ExpressionAttributeNames: map[string]string{
			"#name":  "name",
			"#score": "score",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":score": &types.AttributeValueMemberN{Value: strconv.FormatInt(r.Score, 10)},
		},
		ReturnValues:                        types.ReturnValueAllOld,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if !errors.As(err, &failed) {
			return core.Result{}, core.WrapStorage("submit", err)
		}
		stored, err := unmarshal(failed.Item)
		if err != nil {
			return core.Result{}, core.WrapStorage("submit", err)
		}
		return core.Result{Record: stored}, nil
	}

	res := core.Result{Record: r, Accepted: true}
	if len(out.Attributes) > 0 {
		if old, err := unmarshal(out.Attributes); err == nil {
			res.Previous = &old.Score
		}
	}
	return res, nil
}

func decode(items []map[string]types.AttributeValue) ([]core.Record, error) {
	var stored []item
	if err := attributevalue.UnmarshalListOfMaps(items, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal records: %w", err)
	}
	records := make([]core.Record, 0, len(stored))
	for _, it := range stored {
		records = append(records, it.record())
	}
	return records, nil
}

// scan reads every page of a scan and returns the records in leaderboard
// order; DynamoDB does not order items across partitions.
func (s *Store) scan(ctx context.Context, in *awsdynamodb.ScanInput) ([]core.Record, error) {
	var out []core.Record
	p := awsdynamodb.NewScanPaginator(s.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		records, err := decode(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	core.SortLeaderboard(out)
	return out, nil
}

func (s *Store) lazy(op string, load func() ([]core.Record, error)) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		records, err := load()
		if err != nil {
			yield(core.Record{}, core.WrapStorage(op, err))
			return
		}
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s *Store) QueryAll(ctx context.Context) iter.Seq2[core.Record, error] {
	return s.lazy("query all", func() ([]core.Record, error) {
		return s.scan(ctx, &awsdynamodb.ScanInput{
			TableName:      aws.String(s.table),
			ConsistentRead: aws.Bool(true),
		})
	})
}

func (s *Store) QueryByDifficulty(ctx context.Context, difficulty int64) iter.Seq2[core.Record, error] {
	return s.lazy("query by difficulty", func() ([]core.Record, error) {
		return s.scan(ctx, &awsdynamodb.ScanInput{
			TableName:                aws.String(s.table),
			ConsistentRead:           aws.Bool(true),
			FilterExpression:         aws.String("#difficulty = :difficulty"),
			ExpressionAttributeNames: map[string]string{"#difficulty": "difficulty"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":difficulty": &types.AttributeValueMemberN{Value: strconv.FormatInt(difficulty, 10)},
			},
		})
	})
}

// QueryByName reads one partition; the sort key already yields difficulty ascending.
func (s *Store) QueryByName(ctx context.Context, name string) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		p := awsdynamodb.NewQueryPaginator(s.api, &awsdynamodb.QueryInput{
			TableName:                aws.String(s.table),
			ConsistentRead:           aws.Bool(true),
			KeyConditionExpression:   aws.String("#name = :name"),
			ExpressionAttributeNames: map[string]string{"#name": "name"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":name": &types.AttributeValueMemberS{Value: namePrefix + name},
			},
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				yield(core.Record{}, core.WrapStorage("query by name", err))
				return
			}
			records, err := decode(page.Items)
			if err != nil {
				yield(core.Record{}, core.WrapStorage("query by name", err))
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

func (s *Store) QueryByNameAndDifficulty(ctx context.Context, name string, difficulty int64) iter.Seq2[core.Record, error] {
	return s.lazy("query by name and difficulty", func() ([]core.Record, error) {
		out, err := s.api.GetItem(ctx, &awsdynamodb.GetItemInput{
			TableName:      aws.String(s.table),
			Key:            key(name, difficulty),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return nil, err
		}
		if out.Item == nil {
			return nil, nil
		}
		r, err := unmarshal(out.Item)
		if err != nil {
			return nil, err
		}
		return []core.Record{r}, nil
	})
}

var _ engine.Storage = (*Store)(nil)
