package dynamodb

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"highscore/core"
)

// fakeAPI is an in-memory table that understands the expressions Store sends.
// Items are held as stored, so names carry the key prefix.
type fakeAPI struct {
	mu       sync.Mutex
	exists   bool
	created  int
	items    map[core.Key]core.Record
	pageSize int
	failWith error
}

func newFakeAPI(exists bool) *fakeAPI {
	return &fakeAPI{exists: exists, items: map[core.Key]core.Record{}, pageSize: 3}
}

func (f *fakeAPI) DescribeTable(_ context.Context, in *awsdynamodb.DescribeTableInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found")}
	}
	return &awsdynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

func (f *fakeAPI) CreateTable(_ context.Context, _ *awsdynamodb.CreateTableInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists = true
	f.created++
	return &awsdynamodb.CreateTableOutput{}, nil
}

func (f *fakeAPI) marshal(r core.Record) map[string]types.AttributeValue {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		panic(err)
	}
	return item
}

// checkKey rejects empty key strings the way DynamoDB does.
func checkKey(name string) error {
	if name == "" {
		return &smithy.GenericAPIError{
			Code:    "ValidationException",
			Message: "One or more parameter values are not valid. The AttributeValue for a key attribute cannot contain an empty string value.",
		}
	}
	return nil
}

func (f *fakeAPI) GetItem(_ context.Context, in *awsdynamodb.GetItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var k struct {
		Name       string `dynamodbav:"name"`
		Difficulty int64  `dynamodbav:"difficulty"`
	}
	if err := attributevalue.UnmarshalMap(in.Key, &k); err != nil {
		return nil, err
	}
	if err := checkKey(k.Name); err != nil {
		return nil, err
	}
	r, ok := f.items[core.Key{Name: k.Name, Difficulty: k.Difficulty}]
	if !ok {
		return &awsdynamodb.GetItemOutput{}, nil
	}
	return &awsdynamodb.GetItemOutput{Item: f.marshal(r)}, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *awsdynamodb.PutItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var r core.Record
	if err := attributevalue.UnmarshalMap(in.Item, &r); err != nil {
		return nil, err
	}
	if err := checkKey(r.Name); err != nil {
		return nil, err
	}
	old, existed := f.items[r.Key()]
	if in.ConditionExpression != nil {
		if aws.ToString(in.ConditionExpression) != "attribute_not_exists(#name) OR #score < :score" {
			return nil, errors.New("unexpected condition " + aws.ToString(in.ConditionExpression))
		}
		limit, err := strconv.ParseInt(in.ExpressionAttributeValues[":score"].(*types.AttributeValueMemberN).Value, 10, 64)
		if err != nil {
			return nil, err
		}
		if existed && old.Score >= limit {
			failed := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
			if in.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
				failed.Item = f.marshal(old)
			}
			return nil, failed
		}
	}
	f.items[r.Key()] = r
	out := &awsdynamodb.PutItemOutput{}
	if existed && in.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = f.marshal(old)
	}
	return out, nil
}

func (f *fakeAPI) sorted(keep func(core.Record) bool) []core.Record {
	var out []core.Record
	for _, r := range f.items {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Difficulty < out[j].Difficulty
	})
	return out
}

// page returns one page after start, with LastEvaluatedKey set when more remain.
func (f *fakeAPI) page(records []core.Record, start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	from := 0
	if start != nil {
		var last core.Record
		_ = attributevalue.UnmarshalMap(start, &last)
		for i, r := range records {
			if r.Key() == last.Key() {
				from = i + 1
			}
		}
	}
	to := min(from+f.pageSize, len(records))
	items := make([]map[string]types.AttributeValue, 0, to-from)
	for _, r := range records[from:to] {
		items = append(items, f.marshal(r))
	}
	if to < len(records) {
		last := records[to-1]
		return items, f.marshal(core.Record{Name: last.Name, Difficulty: last.Difficulty})
	}
	return items, nil
}

func (f *fakeAPI) Scan(_ context.Context, in *awsdynamodb.ScanInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	keep := func(core.Record) bool { return true }
	if v, ok := in.ExpressionAttributeValues[":difficulty"]; ok {
		d, _ := strconv.ParseInt(v.(*types.AttributeValueMemberN).Value, 10, 64)
		keep = func(r core.Record) bool { return r.Difficulty == d }
	}
	items, last := f.page(f.sorted(keep), in.ExclusiveStartKey)
	return &awsdynamodb.ScanOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (f *fakeAPI) Query(_ context.Context, in *awsdynamodb.QueryInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	name := in.ExpressionAttributeValues[":name"].(*types.AttributeValueMemberS).Value
	if err := checkKey(name); err != nil {
		return nil, err
	}
	items, last := f.page(f.sorted(func(r core.Record) bool { return r.Name == name }), in.ExclusiveStartKey)
	return &awsdynamodb.QueryOutput{Items: items, LastEvaluatedKey: last}, nil
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := NewWithAPI(newFakeAPI(true), core.TableName)
	for _, r := range core.SampleRecords() {
		require.NoError(t, s.Upsert(context.Background(), r))
	}
	return s
}

func TestStore_Initialize(t *testing.T) {
	api := newFakeAPI(false)
	s := NewWithAPI(api, core.TableName)

	created, err := s.Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Initialize(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, api.created)
}

func TestStore_SubmitIfHigher(t *testing.T) {
	s := NewWithAPI(newFakeAPI(true), core.TableName)
	ctx := context.Background()
	bob := func(score int64) core.Record { return core.Record{Name: "bob", Difficulty: 1, Score: score} }

	res, err := s.SubmitIfHigher(ctx, bob(60))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Nil(t, res.Previous)

	res, err = s.SubmitIfHigher(ctx, bob(50))
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, bob(60), res.Record)

	res, err = s.SubmitIfHigher(ctx, bob(60))
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	res, err = s.SubmitIfHigher(ctx, bob(75))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	require.NotNil(t, res.Previous)
	assert.Equal(t, int64(60), *res.Previous)

	got, err := core.Collect(s.QueryByNameAndDifficulty(ctx, "bob", 1))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{bob(75)}, got)
}

func TestStore_EmptyName(t *testing.T) {
	api := newFakeAPI(true)
	s := NewWithAPI(api, core.TableName)
	ctx := context.Background()
	anon := core.Record{Name: "", Difficulty: 2, Score: 30}

	res, err := s.SubmitIfHigher(ctx, anon)
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	res, err = s.SubmitIfHigher(ctx, core.Record{Name: "", Difficulty: 2, Score: 20})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, anon, res.Record)

	stored, ok := api.items[core.Key{Name: namePrefix, Difficulty: 2}]
	require.True(t, ok)
	assert.Equal(t, int64(30), stored.Score)

	got, err := core.Collect(s.QueryByNameAndDifficulty(ctx, "", 2))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{anon}, got)

	got, err = core.Collect(s.QueryByName(ctx, ""))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{anon}, got)

	got, err = core.Collect(s.QueryAll(ctx))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{anon}, got)
}

func TestFakeAPI_RejectsEmptyKey(t *testing.T) {
	api := newFakeAPI(true)
	_, err := api.PutItem(context.Background(), &awsdynamodb.PutItemInput{
		TableName: aws.String(core.TableName),
		Item:      api.marshal(core.Record{Name: "", Difficulty: 1, Score: 1}),
	})
	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ValidationException", apiErr.ErrorCode())
}

func TestStore_QueryAll_PagesAndOrders(t *testing.T) {
	s := seededStore(t)

	got, err := core.Collect(s.QueryAll(context.Background()))
	require.NoError(t, err)

	want := core.SampleRecords()
	core.SortLeaderboard(want)
	assert.Equal(t, want, got)
}

func TestStore_Queries(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	d1, err := core.Collect(s.QueryByDifficulty(ctx, 1))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{
		{Name: "alice", Difficulty: 1, Score: 88},
		{Name: "bob", Difficulty: 1, Score: 60},
	}, d1)

	bob, err := core.Collect(s.QueryByName(ctx, "bob"))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{
		{Name: "bob", Difficulty: 1, Score: 60},
		{Name: "bob", Difficulty: 2, Score: 40},
		{Name: "bob", Difficulty: 3, Score: 15},
	}, bob)

	none, err := core.Collect(s.QueryByNameAndDifficulty(ctx, "john", 1))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_ErrorsAreStorageErrors(t *testing.T) {
	api := newFakeAPI(true)
	api.failWith = errors.New("throttled")
	s := NewWithAPI(api, core.TableName)
	ctx := context.Background()

	_, err := s.SubmitIfHigher(ctx, core.Record{Name: "x", Difficulty: 1, Score: 1})
	assert.True(t, core.IsStorage(err))
	assert.True(t, core.IsStorage(s.Upsert(ctx, core.Record{Name: "x", Difficulty: 1, Score: 1})))

	_, err = core.Collect(s.QueryAll(ctx))
	assert.True(t, core.IsStorage(err))
	_, err = core.Collect(s.QueryByName(ctx, "x"))
	assert.True(t, core.IsStorage(err))
	_, err = core.Collect(s.QueryByNameAndDifficulty(ctx, "x", 1))
	assert.True(t, core.IsStorage(err))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{}.Validate())
}
