package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Open-SGF/sgf-meetup-api/internal/domain"
)

var testNow = time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)

// MockSupplier is a mock implementation of token.Supplier
type MockSupplier struct {
	mock.Mock
}

func (m *MockSupplier) Token(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockFetcher is a mock implementation of EventFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchGroupEvents(ctx context.Context, groupURLName, token string) ([]domain.Event, error) {
	args := m.Called(ctx, groupURLName, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Event), args.Error(1)
}

// MockEventStore is a mock implementation of EventStore
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) FutureEvents(ctx context.Context, now time.Time) ([]domain.Event, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventStore) UpsertEvents(ctx context.Context, events []domain.Event) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func (m *MockEventStore) SoftDeleteEvents(ctx context.Context, ids []string, at time.Time) error {
	args := m.Called(ctx, ids, at)
	return args.Error(0)
}

// MockRunLogAppender is a mock implementation of RunLogAppender
type MockRunLogAppender struct {
	mock.Mock
}

func (m *MockRunLogAppender) Append(ctx context.Context, runLog domain.RunLog) error {
	args := m.Called(ctx, runLog)
	return args.Error(0)
}

func futureEvent(id, group string) domain.Event {
	return domain.Event{
		ID:       id,
		Title:    "Upcoming event " + id,
		DateTime: testNow.AddDate(0, 0, 7),
		Group:    domain.Group{Name: "SGF Devs", URLName: group},
	}
}

func newTestService(groups []string, tokens *MockSupplier, fetcher *MockFetcher, store *MockEventStore, runLogs *MockRunLogAppender) *Service {
	service := NewService(
		ServiceConfig{GroupNames: groups},
		tokens,
		fetcher,
		store,
		runLogs,
		zap.NewNop(),
	)
	service.now = func() time.Time { return testNow }
	return service
}

func TestService_Run_SavesNewEvents(t *testing.T) {
	tokens := new(MockSupplier)
	fetcher := new(MockFetcher)
	store := new(MockEventStore)
	runLogs := new(MockRunLogAppender)

	incoming := []domain.Event{futureEvent("2", "sgfdevs")}

	tokens.On("Token", mock.Anything).Return("bearer-token", nil)
	store.On("FutureEvents", mock.Anything, testNow).Return([]domain.Event{}, nil)
	fetcher.On("FetchGroupEvents", mock.Anything, "sgfdevs", "bearer-token").Return(incoming, nil)
	store.On("UpsertEvents", mock.Anything, incoming).Return(1, nil)
	runLogs.On("Append", mock.Anything, mock.AnythingOfType("domain.RunLog")).Return(nil)

	service := newTestService([]string{"sgfdevs"}, tokens, fetcher, store, runLogs)

	run, err := service.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []string{"sgfdevs"}, run.SuccessGroupNames)
	assert.Empty(t, run.FailedGroupNames)
	assert.Equal(t, 1, run.TotalEventsSaved)
	assert.Empty(t, run.Errors)
	store.AssertNotCalled(t, "SoftDeleteEvents", mock.Anything, mock.Anything, mock.Anything)
	runLogs.AssertNumberOfCalls(t, "Append", 1)
}

func TestService_Run_SoftDeletesDisappearedEvents(t *testing.T) {
	tokens := new(MockSupplier)
	fetcher := new(MockFetcher)
	store := new(MockEventStore)
	runLogs := new(MockRunLogAppender)

	known := []domain.Event{futureEvent("1", "sgfdevs")}

	tokens.On("Token", mock.Anything).Return("bearer-token", nil)
	store.On("FutureEvents", mock.Anything, testNow).Return(known, nil)
	fetcher.On("FetchGroupEvents", mock.Anything, "sgfdevs", "bearer-token").Return([]domain.Event{}, nil)
	store.On("UpsertEvents", mock.Anything, []domain.Event{}).Return(0, nil)
	store.On("SoftDeleteEvents", mock.Anything, []string{"1"}, testNow).Return(nil)
	runLogs.On("Append", mock.Anything, mock.AnythingOfType("domain.RunLog")).Return(nil)

	service := newTestService([]string{"sgfdevs"}, tokens, fetcher, store, runLogs)

	run, err := service.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []string{"sgfdevs"}, run.SuccessGroupNames)
	assert.Equal(t, 0, run.TotalEventsSaved)
	store.AssertCalled(t, "SoftDeleteEvents", mock.Anything, []string{"1"}, testNow)
}

func TestService_Run_NoDeleteOnFetchFailure(t *testing.T) {
	tokens := new(MockSupplier)
	fetcher := new(MockFetcher)
	store := new(MockEventStore)
	runLogs := new(MockRunLogAppender)

	known := []domain.Event{futureEvent("1", "sgfdevs")}

	tokens.On("Token", mock.Anything).Return("bearer-token", nil)
	store.On("FutureEvents", mock.Anything, testNow).Return(known, nil)
	fetcher.On("FetchGroupEvents", mock.Anything, "sgfdevs", "bearer-token").
		Return(nil, errors.New("upstream unavailable"))
	runLogs.On("Append", mock.Anything, mock.AnythingOfType("domain.RunLog")).Return(nil)

	service := newTestService([]string{"sgfdevs"}, tokens, fetcher, store, runLogs)

	run, err := service.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []string{"sgfdevs"}, run.FailedGroupNames)
	assert.Len(t, run.Errors, 1)
	assert.Equal(t, "FetchError", run.Errors[0].ErrorName)
	assert.Equal(t, "sgfdevs", run.Errors[0].GroupName)
	// A failed fetch is not evidence of disappearance.
	store.AssertNotCalled(t, "SoftDeleteEvents", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Run_GroupFailureDoesNotAbortOthers(t *testing.T) {
	tokens := new(MockSupplier)
	fetcher := new(MockFetcher)
	store := new(MockEventStore)
	runLogs := new(MockRunLogAppender)

	incoming := []domain.Event{futureEvent("5", "open-sgf")}

	tokens.On("Token", mock.Anything).Return("bearer-token", nil)
	store.On("FutureEvents", mock.Anything, testNow).Return([]domain.Event{}, nil)
	fetcher.On("FetchGroupEvents", mock.Anything, "sgfdevs", "bearer-token").
		Return(nil, errors.New("upstream unavailable"))
	fetcher.On("FetchGroupEvents", mock.Anything, "open-sgf", "bearer-token").Return(incoming, nil)
	store.On("UpsertEvents", mock.Anything, incoming).Return(1, nil)
	runLogs.On("Append", mock.Anything, mock.AnythingOfType("domain.RunLog")).Return(nil)

	service := newTestService([]string{"sgfdevs", "open-sgf"}, tokens, fetcher, store, runLogs)

	run, err := service.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []string{"open-sgf"}, run.SuccessGroupNames)
	assert.Equal(t, []string{"sgfdevs"}, run.FailedGroupNames)
	assert.Equal(t, 1, run.TotalEventsSaved)
}

func TestService_Run_TokenFailureWritesSingleRunLog(t *testing.T) {
	tokens := new(MockSupplier)
	fetcher := new(MockFetcher)
	store := new(MockEventStore)
	runLogs := new(MockRunLogAppender)

	tokens.On("Token", mock.Anything).Return("", errors.New("bad credentials"))

	var written domain.RunLog
	runLogs.On("Append", mock.Anything, mock.AnythingOfType("domain.RunLog")).
		Run(func(args mock.Arguments) {
			written = args.Get(1).(domain.RunLog)
		}).
		Return(nil)

	service := newTestService([]string{"sgfdevs", "open-sgf"}, tokens, fetcher, store, runLogs)

	run, err := service.Run(context.Background())

	assert.Error(t, err)
	assert.Equal(t, []string{"sgfdevs", "open-sgf"}, run.FailedGroupNames)
	assert.Empty(t, run.SuccessGroupNames)
	assert.Len(t, run.Errors, 1)
	assert.Equal(t, "TokenError", run.Errors[0].ErrorName)
	runLogs.AssertNumberOfCalls(t, "Append", 1)
	assert.Equal(t, run.ID, written.ID)
	fetcher.AssertNotCalled(t, "FetchGroupEvents", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "FutureEvents", mock.Anything, mock.Anything)
}

func TestService_Run_SnapshotFailureSkipsDeletionPass(t *testing.T) {
	tokens := new(MockSupplier)
	fetcher := new(MockFetcher)
	store := new(MockEventStore)
	runLogs := new(MockRunLogAppender)

	incoming := []domain.Event{futureEvent("2", "sgfdevs")}

	tokens.On("Token", mock.Anything).Return("bearer-token", nil)
	store.On("FutureEvents", mock.Anything, testNow).Return(nil, errors.New("scan throttled"))
	fetcher.On("FetchGroupEvents", mock.Anything, "sgfdevs", "bearer-token").Return(incoming, nil)
	store.On("UpsertEvents", mock.Anything, incoming).Return(1, nil)
	runLogs.On("Append", mock.Anything, mock.AnythingOfType("domain.RunLog")).Return(nil)

	service := newTestService([]string{"sgfdevs"}, tokens, fetcher, store, runLogs)

	run, err := service.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []string{"sgfdevs"}, run.SuccessGroupNames)
	assert.Len(t, run.Errors, 1)
	assert.Equal(t, "SnapshotError", run.Errors[0].ErrorName)
	store.AssertNotCalled(t, "SoftDeleteEvents", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Run_UpsertFailureStillClearsCandidates(t *testing.T) {
	tokens := new(MockSupplier)
	fetcher := new(MockFetcher)
	store := new(MockEventStore)
	runLogs := new(MockRunLogAppender)

	known := []domain.Event{futureEvent("1", "sgfdevs")}
	incoming := []domain.Event{futureEvent("1", "sgfdevs")}

	tokens.On("Token", mock.Anything).Return("bearer-token", nil)
	store.On("FutureEvents", mock.Anything, testNow).Return(known, nil)
	fetcher.On("FetchGroupEvents", mock.Anything, "sgfdevs", "bearer-token").Return(incoming, nil)
	store.On("UpsertEvents", mock.Anything, incoming).Return(0, errors.New("write throttled"))
	runLogs.On("Append", mock.Anything, mock.AnythingOfType("domain.RunLog")).Return(nil)

	service := newTestService([]string{"sgfdevs"}, tokens, fetcher, store, runLogs)

	run, err := service.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []string{"sgfdevs"}, run.FailedGroupNames)
	assert.Equal(t, "StoreError", run.Errors[0].ErrorName)
	// The fetch succeeded, so event 1 is still alive upstream and must not
	// be soft-deleted even though persisting it failed.
	store.AssertNotCalled(t, "SoftDeleteEvents", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Run_IdempotentWithUnchangedUpstream(t *testing.T) {
	tokens := new(MockSupplier)
	fetcher := new(MockFetcher)
	store := new(MockEventStore)
	runLogs := new(MockRunLogAppender)

	event := futureEvent("2", "sgfdevs")
	incoming := []domain.Event{event}

	tokens.On("Token", mock.Anything).Return("bearer-token", nil)
	store.On("FutureEvents", mock.Anything, testNow).Return([]domain.Event{event}, nil)
	fetcher.On("FetchGroupEvents", mock.Anything, "sgfdevs", "bearer-token").Return(incoming, nil)
	store.On("UpsertEvents", mock.Anything, incoming).Return(1, nil)
	runLogs.On("Append", mock.Anything, mock.AnythingOfType("domain.RunLog")).Return(nil)

	service := newTestService([]string{"sgfdevs"}, tokens, fetcher, store, runLogs)

	first, err := service.Run(context.Background())
	assert.NoError(t, err)
	second, err := service.Run(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, first.TotalEventsSaved, second.TotalEventsSaved)
	assert.Equal(t, first.SuccessGroupNames, second.SuccessGroupNames)
	store.AssertNotCalled(t, "SoftDeleteEvents", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNumberOfCalls(t, "UpsertEvents", 2)
}

func TestService_Run_RunLogFailureDoesNotFailRun(t *testing.T) {
	tokens := new(MockSupplier)
	fetcher := new(MockFetcher)
	store := new(MockEventStore)
	runLogs := new(MockRunLogAppender)

	tokens.On("Token", mock.Anything).Return("bearer-token", nil)
	store.On("FutureEvents", mock.Anything, testNow).Return([]domain.Event{}, nil)
	fetcher.On("FetchGroupEvents", mock.Anything, "sgfdevs", "bearer-token").Return([]domain.Event{}, nil)
	store.On("UpsertEvents", mock.Anything, []domain.Event{}).Return(0, nil)
	runLogs.On("Append", mock.Anything, mock.AnythingOfType("domain.RunLog")).
		Return(errors.New("table missing"))

	service := newTestService([]string{"sgfdevs"}, tokens, fetcher, store, runLogs)

	_, err := service.Run(context.Background())

	assert.NoError(t, err)
}
