package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/Open-SGF/sgf-meetup-api/internal/domain"
)

// RunLogStore appends run summaries. The table is append-only: records are
// never updated or deleted.
type RunLogStore struct {
	table string
	db    DynamoAPI
	log   *zap.Logger
}

// NewRunLogStore creates a new run log store.
func NewRunLogStore(table string, db DynamoAPI, log *zap.Logger) *RunLogStore {
	return &RunLogStore{
		table: table,
		db:    db,
		log:   log,
	}
}

type runLogRecord struct {
	ID                string           `dynamodbav:"id"`
	StartedAt         string           `dynamodbav:"startedAt"`
	FinishedAt        string           `dynamodbav:"finishedAt"`
	SuccessGroupNames []string         `dynamodbav:"successGroupNames"`
	FailedGroupNames  []string         `dynamodbav:"failedGroupNames"`
	TotalEventsSaved  int              `dynamodbav:"totalEventsSaved"`
	Errors            []runErrorRecord `dynamodbav:"errors"`
}

type runErrorRecord struct {
	ErrorName    string `dynamodbav:"errorName"`
	ErrorMessage string `dynamodbav:"errorMessage"`
	StackTrace   string `dynamodbav:"stackTrace,omitempty"`
	GroupName    string `dynamodbav:"groupName,omitempty"`
}

// Append writes one run log record.
func (s *RunLogStore) Append(ctx context.Context, runLog domain.RunLog) error {
	rec := runLogRecord{
		ID:                runLog.ID,
		StartedAt:         runLog.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:        runLog.FinishedAt.UTC().Format(time.RFC3339),
		SuccessGroupNames: runLog.SuccessGroupNames,
		FailedGroupNames:  runLog.FailedGroupNames,
		TotalEventsSaved:  runLog.TotalEventsSaved,
	}

	for _, runErr := range runLog.Errors {
		rec.Errors = append(rec.Errors, runErrorRecord{
			ErrorName:    runErr.ErrorName,
			ErrorMessage: runErr.ErrorMessage,
			StackTrace:   runErr.StackTrace,
			GroupName:    runErr.GroupName,
		})
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}

	if _, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}

	s.log.Info("run log written",
		zap.String("run_id", runLog.ID),
		zap.Int("events_saved", runLog.TotalEventsSaved),
		zap.Int("failed_groups", len(runLog.FailedGroupNames)))

	return nil
}
