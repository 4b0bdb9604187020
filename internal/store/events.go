package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/Open-SGF/sgf-meetup-api/internal/codec"
	"github.com/Open-SGF/sgf-meetup-api/internal/config"
	"github.com/Open-SGF/sgf-meetup-api/internal/domain"
)

// DynamoDB rejects oversized batches outright, so these ceilings are
// protocol constants, not tuning knobs.
const (
	maxBatchGetSize   = 100
	maxBatchWriteSize = 25

	scanPageSize = 250

	maxUnprocessedRetries = 3
)

// ErrMissingGroup is returned when a read is attempted without a group.
var ErrMissingGroup = errors.New("group is required")

// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// QueryOptions filters a group's events. Either time bound may be nil;
// omitting both returns all non-deleted events for the group.
type QueryOptions struct {
	Before *time.Time
	After  *time.Time
	Limit  *int32
	Cursor string
}

// EventStoreConfig names the tables and index the store operates on.
type EventStoreConfig struct {
	EventsTable         string
	ArchivedEventsTable string
	GroupDateIndex      string
}

// NewEventStoreConfig derives the store config from the app config.
func NewEventStoreConfig(cfg *config.Config) EventStoreConfig {
	return EventStoreConfig{
		EventsTable:         cfg.Tables.Events,
		ArchivedEventsTable: cfg.Tables.ArchivedEvents,
		GroupDateIndex:      cfg.Tables.GroupDateIndex,
	}
}

// EventStore reads and writes event records.
type EventStore struct {
	config EventStoreConfig
	db     DynamoAPI
	log    *zap.Logger
}

// NewEventStore creates a new event store.
func NewEventStore(config EventStoreConfig, db DynamoAPI, log *zap.Logger) *EventStore {
	return &EventStore{
		config: config,
		db:     db,
		log:    log,
	}
}

// QueryGroupEvents returns one page of the group's non-deleted events in
// ascending dateTime order, plus an opaque cursor for the next page ("" when
// the result set is exhausted).
func (s *EventStore) QueryGroupEvents(ctx context.Context, group string, opts QueryOptions) ([]domain.Event, string, error) {
	if group == "" {
		return nil, "", ErrMissingGroup
	}

	keyCond := expression.Key("groupUrlName").Equal(expression.Value(group))

	switch {
	case opts.After != nil && opts.Before != nil:
		keyCond = keyCond.And(expression.Key("dateTime").Between(
			expression.Value(formatTime(*opts.After)),
			expression.Value(formatTime(*opts.Before)),
		))
	case opts.After != nil:
		keyCond = keyCond.And(expression.Key("dateTime").
			GreaterThanEqual(expression.Value(formatTime(*opts.After))))
	case opts.Before != nil:
		keyCond = keyCond.And(expression.Key("dateTime").
			LessThanEqual(expression.Value(formatTime(*opts.Before))))
	}

	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithFilter(expression.AttributeNotExists(expression.Name("deletedAt"))).
		Build()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.EventsTable),
		IndexName:                 aws.String(s.config.GroupDateIndex),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
	}

	if opts.Cursor != "" {
		startKey, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, "", err
		}
		input.ExclusiveStartKey = startKey
	}

	if opts.Limit != nil {
		input.Limit = opts.Limit
	}

	result, err := s.db.Query(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query events for group %s: %w", group, err)
	}

	events := make([]domain.Event, 0, len(result.Items))
	for _, item := range result.Items {
		event, err := codec.Decode(item)
		if err != nil {
			return nil, "", err
		}
		events = append(events, event)
	}

	nextCursor := ""
	if result.LastEvaluatedKey != nil {
		nextCursor, err = encodeCursor(result.LastEvaluatedKey)
		if err != nil {
			return nil, "", err
		}
	}

	return events, nextCursor, nil
}

// FutureEvents returns every non-deleted event dated after now, across all
// groups present in storage, using bounded-page scans. This backs the
// reconciler's deletion-candidate snapshot, which must span groups that are
// no longer configured.
func (s *EventStore) FutureEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	filter := expression.Name("dateTime").
		GreaterThan(expression.Value(formatTime(now))).
		And(expression.AttributeNotExists(expression.Name("deletedAt")))

	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan expression: %w", err)
	}

	paginator := dynamodb.NewScanPaginator(s.db, &dynamodb.ScanInput{
		TableName:                 aws.String(s.config.EventsTable),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		FilterExpression:          expr.Filter(),
		Limit:                     aws.Int32(scanPageSize),
	})

	var events []domain.Event
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan future events: %w", err)
		}
		for _, item := range page.Items {
			event, err := codec.Decode(item)
			if err != nil {
				return nil, err
			}
			events = append(events, event)
		}
	}

	return events, nil
}

// UpsertEvents writes events keyed by id, creating or replacing as needed,
// and returns how many were written.
func (s *EventStore) UpsertEvents(ctx context.Context, events []domain.Event) (int, error) {
	saved := 0

	for chunk := range slices.Chunk(events, maxBatchWriteSize) {
		writes := make([]types.WriteRequest, 0, len(chunk))
		for _, event := range chunk {
			item, err := codec.Encode(event)
			if err != nil {
				return saved, err
			}
			writes = append(writes, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := s.batchWrite(ctx, s.config.EventsTable, writes); err != nil {
			return saved, fmt.Errorf("failed to upsert events: %w", err)
		}
		saved += len(chunk)
	}

	return saved, nil
}

// SoftDeleteEvents stamps deletedAt on the given events and copies their
// prior records to the archive table. Ids not found in the events table are
// skipped.
func (s *EventStore) SoftDeleteEvents(ctx context.Context, ids []string, at time.Time) error {
	for chunk := range slices.Chunk(ids, maxBatchGetSize) {
		items, err := s.getItems(ctx, chunk)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			continue
		}

		archived := make([]types.WriteRequest, 0, len(items))
		updated := make([]types.WriteRequest, 0, len(items))
		for _, item := range items {
			event, err := codec.Decode(item)
			if err != nil {
				return err
			}

			archived = append(archived, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})

			event.MarkDeleted(at)
			deletedItem, err := codec.Encode(event)
			if err != nil {
				return err
			}
			updated = append(updated, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: deletedItem},
			})
		}

		for archiveChunk := range slices.Chunk(archived, maxBatchWriteSize) {
			if err := s.batchWrite(ctx, s.config.ArchivedEventsTable, archiveChunk); err != nil {
				return fmt.Errorf("failed to archive events: %w", err)
			}
		}
		for updateChunk := range slices.Chunk(updated, maxBatchWriteSize) {
			if err := s.batchWrite(ctx, s.config.EventsTable, updateChunk); err != nil {
				return fmt.Errorf("failed to soft-delete events: %w", err)
			}
		}
	}

	return nil
}

// getItems reads one pre-chunked batch of ids, retrying unprocessed keys.
// Like writes, reads can come back partially processed under throttling.
func (s *EventStore) getItems(ctx context.Context, ids []string) ([]map[string]types.AttributeValue, error) {
	keys := make([]map[string]types.AttributeValue, len(ids))
	for i, id := range ids {
		keys[i] = map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		}
	}

	var items []map[string]types.AttributeValue
	pending := keys

	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt >= maxUnprocessedRetries {
			return nil, fmt.Errorf("%d keys still unprocessed after %d attempts", len(pending), attempt)
		}

		result, err := s.db.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				s.config.EventsTable: {Keys: pending},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read events for deletion: %w", err)
		}

		items = append(items, result.Responses[s.config.EventsTable]...)

		pending = result.UnprocessedKeys[s.config.EventsTable].Keys
		if len(pending) > 0 {
			s.log.Warn("retrying unprocessed batch keys",
				zap.String("table", s.config.EventsTable),
				zap.Int("count", len(pending)))
		}
	}

	return items, nil
}

// batchWrite sends one pre-chunked batch, retrying unprocessed items. The
// store throttles under load by returning items unprocessed rather than
// failing the call.
func (s *EventStore) batchWrite(ctx context.Context, table string, writes []types.WriteRequest) error {
	pending := writes

	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt >= maxUnprocessedRetries {
			return fmt.Errorf("%d items still unprocessed after %d attempts", len(pending), attempt)
		}

		result, err := s.db.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{table: pending},
		})
		if err != nil {
			return err
		}

		pending = result.UnprocessedItems[table]
		if len(pending) > 0 {
			s.log.Warn("retrying unprocessed batch items",
				zap.String("table", table),
				zap.Int("count", len(pending)))
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
