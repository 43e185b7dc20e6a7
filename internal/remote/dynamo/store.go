package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dmitrijs2005/shopsync/internal/remote"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Query returns up to limit records of a collection matching all filters.
// A greater-than filter on remote.FieldUpdatedAt becomes a server-side
// filter expression; equality filters apply to payload fields.
func (s *Store) Query(ctx context.Context, collection string, filters []remote.Filter, limit int) ([]remote.Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#c = :collection"),
		ExpressionAttributeNames: map[string]string{
			"#c": attrCollection,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":collection": &types.AttributeValueMemberS{Value: collection},
		},
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var conditions []string
	for n, f := range filters {
		nameKey := fmt.Sprintf("#f%d", n)
		valueKey := fmt.Sprintf(":v%d", n)

		switch {
		case f.Field == remote.FieldUpdatedAt && f.Op == remote.FilterGreaterThan:
			input.ExpressionAttributeNames[nameKey] = attrUpdatedAt
			input.ExpressionAttributeValues[valueKey] = &types.AttributeValueMemberN{
				Value: strconv.FormatInt(toInt64(f.Value), 10),
			}
			conditions = append(conditions, fmt.Sprintf("%s > %s", nameKey, valueKey))
		case f.Op == remote.FilterEquals:
			av, err := attributevalue.Marshal(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: filter value for %s: %v", remote.ErrRejected, f.Field, err)
			}
			input.ExpressionAttributeNames[nameKey] = f.Field
			input.ExpressionAttributeValues[valueKey] = av
			conditions = append(conditions, fmt.Sprintf("%s.%s = %s", attrPayload, nameKey, valueKey))
		default:
			return nil, fmt.Errorf("%w: unsupported filter %s %s", remote.ErrRejected, f.Field, f.Op)
		}
	}
	if len(conditions) > 0 {
		input.FilterExpression = aws.String(joinAnd(conditions))
	}

	// Limit counts evaluated items before the filter expression is
	// applied, so a filtered page can hold fewer matches than asked for.
	// Follow LastEvaluatedKey until enough matches are collected or the
	// partition is exhausted.
	var records []remote.Record
	for {
		var out *dynamodb.QueryOutput
		err := s.withRetry(ctx, func(ctx context.Context) error {
			var err error
			out, err = s.client.Query(ctx, input)
			return err
		})
		if err != nil {
			return nil, classify(err)
		}

		for _, item := range out.Items {
			rec, err := recordFromItem(item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		if out.LastEvaluatedKey == nil || (limit > 0 && len(records) >= limit) {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.Slice(records, func(i, j int) bool { return records[i].UpdatedAt < records[j].UpdatedAt })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Insert stores a new document under a server-assigned id.
func (s *Store) Insert(ctx context.Context, collection string, payload json.RawMessage) (string, error) {
	id := uuid.NewString()

	item, err := itemFromPayload(collection, id, payload)
	if err != nil {
		return "", err
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      item,
		})
		return err
	})
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

// Update replaces an existing document; remote.ErrNotFound if it is gone.
func (s *Store) Update(ctx context.Context, collection, id string, payload json.RawMessage) error {
	item, err := itemFromPayload(collection, id, payload)
	if err != nil {
		return err
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.table),
			Item:                item,
			ConditionExpression: aws.String("attribute_exists(id)"),
		})
		return err
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// Delete removes a document; deleting an absent id succeeds.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	err := s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key: map[string]types.AttributeValue{
				attrCollection: &types.AttributeValueMemberS{Value: collection},
				attrID:         &types.AttributeValueMemberS{Value: id},
			},
		})
		return err
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// withRetry runs fn, retrying throttled requests a few times with fibonacci
// backoff before the failure is reported to the caller. This stays within a
// single logical attempt; the push synchronizer's retry ceiling counts
// attempts, not these low-level re-sends.
func (s *Store) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isThrottle(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func itemFromPayload(collection, id string, payload json.RawMessage) (map[string]types.AttributeValue, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: payload must be a JSON object: %v", remote.ErrRejected, err)
	}

	payloadAttr, err := attributevalue.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrRejected, err)
	}

	return map[string]types.AttributeValue{
		attrCollection: &types.AttributeValueMemberS{Value: collection},
		attrID:         &types.AttributeValueMemberS{Value: id},
		attrUpdatedAt:  &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().UnixMilli(), 10)},
		attrPayload:    payloadAttr,
	}, nil
}

func recordFromItem(item map[string]types.AttributeValue) (remote.Record, error) {
	var row struct {
		ID        string         `dynamodbav:"id"`
		UpdatedAt int64          `dynamodbav:"updated_at"`
		Payload   map[string]any `dynamodbav:"payload"`
	}
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return remote.Record{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	data, err := json.Marshal(row.Payload)
	if err != nil {
		return remote.Record{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	return remote.Record{ID: row.ID, Data: data, UpdatedAt: row.UpdatedAt}, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func joinAnd(conditions []string) string {
	s := conditions[0]
	for _, c := range conditions[1:] {
		s += " AND " + c
	}
	return s
}
