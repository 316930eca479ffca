package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/assessment-delivery/internal/cache"
	"github.com/edupulse/assessment-delivery/internal/delivery"
	"github.com/edupulse/assessment-delivery/internal/events"
	"github.com/edupulse/assessment-delivery/internal/models"
	"github.com/edupulse/assessment-delivery/internal/stores"
	"github.com/edupulse/assessment-delivery/internal/utils"
)

// ===== MOCKS =====

type MockAssessmentStore struct {
	mock.Mock
}

func (m *MockAssessmentStore) GetAssessment(ctx context.Context, id uint) (*models.Assessment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assessment), args.Error(1)
}

type MockSubmissionStore struct {
	mock.Mock
}

func (m *MockSubmissionStore) Submit(ctx context.Context, req *stores.SubmissionRequest) (*models.SubmissionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubmissionResult), args.Error(1)
}

// ===== FIXTURES =====

type serviceFixture struct {
	service     DeliveryService
	assessments *MockAssessmentStore
	submitter   *MockSubmissionStore
	cache       *cache.MemoryCache
	publisher   *events.MockEventPublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	f := &serviceFixture{
		assessments: new(MockAssessmentStore),
		submitter:   new(MockSubmissionStore),
		cache:       cache.NewMemoryCache(),
		publisher:   events.NewMockEventPublisher(nil),
	}
	f.service = NewDeliveryService(DeliveryServiceConfig{
		Assessments: f.assessments,
		Submitter:   f.submitter,
		Cache:       f.cache,
		Publisher:   f.publisher,
		Logger:      logger,
		Validator:   utils.NewValidator(),
		NewRand:     func() *rand.Rand { return rand.New(rand.NewSource(1)) },
	})
	return f
}

// restartedService builds a fresh service sharing only the snapshot cache,
// standing in for a process restart.
func restartedService(t *testing.T, shared *cache.MemoryCache) *serviceFixture {
	t.Helper()
	f := newServiceFixture(t)
	f.cache = shared
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)
	f.service = NewDeliveryService(DeliveryServiceConfig{
		Assessments: f.assessments,
		Submitter:   f.submitter,
		Cache:       shared,
		Publisher:   f.publisher,
		Logger:      utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		Validator:   utils.NewValidator(),
		NewRand:     func() *rand.Rand { return rand.New(rand.NewSource(1)) },
	})
	return f
}

func testAssessment(id uint) *models.Assessment {
	return &models.Assessment{
		ID:    id,
		Title: "Algebra Midterm",
		Questions: []models.Question{
			{
				ID: 1, Type: models.SingleChoice, Required: true, Points: 2, OrderIndex: 1,
				Format: []byte(`{"options":[{"id":"a","text":"A"},{"id":"b","text":"B"}]}`),
			},
			{
				ID: 2, Type: models.ShortAnswer, Required: false, Points: 3, OrderIndex: 2,
			},
		},
	}
}

// ===== TESTS =====

func TestDeliveryService_StartSession(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, view.SessionID)
	assert.Equal(t, "Algebra Midterm", view.Title)
	assert.Equal(t, 2, view.QuestionCount)
	assert.Equal(t, 0, view.State.CurrentIndex)
	require.NotNil(t, view.Current)

	started := f.publisher.EventsOfType(events.EventSessionStarted)
	require.Len(t, started, 1)

	// A snapshot is persisted for resumability.
	var snapshot models.SessionSnapshot
	require.NoError(t, f.cache.Get(context.Background(), snapshotKeyPrefix+view.SessionID, &snapshot))
	assert.Equal(t, uint(10), snapshot.AssessmentID)
}

func TestDeliveryService_StartSession_ValidatesRequest(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.StartSession(context.Background(), StartSessionRequest{AssessmentID: 10})
	assert.True(t, IsValidation(err), "missing student id")

	_, err = f.service.StartSession(context.Background(), StartSessionRequest{StudentID: "student-1"})
	assert.True(t, IsValidation(err), "missing assessment id")

	f.assessments.AssertNotCalled(t, "GetAssessment", mock.Anything, mock.Anything)
}

func TestDeliveryService_StartSession_RejectsDuplicateActive(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	_, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)

	_, err = f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.True(t, IsConflict(err))

	// Other students and previews are unaffected.
	_, err = f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-2",
	})
	assert.NoError(t, err)

	_, err = f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
		IsPreview:    true,
	})
	assert.NoError(t, err)
}

func TestDeliveryService_StartSession_AssessmentMissing(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(99)).Return(nil, stores.ErrAssessmentNotFound)

	_, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 99,
		StudentID:    "student-1",
	})
	assert.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestDeliveryService_StartSession_LoadFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(nil, errors.New("connection reset"))

	_, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	assert.True(t, IsLoadError(err))
}

func TestDeliveryService_PreviewSkipsSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "teacher-1",
		IsPreview:    true,
	})
	require.NoError(t, err)

	var snapshot models.SessionSnapshot
	err = f.cache.Get(context.Background(), snapshotKeyPrefix+view.SessionID, &snapshot)
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "preview sessions are never persisted")
}

func TestDeliveryService_PreviewSubmitPublishesNoSubmissionEvent(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "teacher-1",
		IsPreview:    true,
	})
	require.NoError(t, err)

	_, err = f.service.Submit(context.Background(), view.SessionID, false)
	require.NoError(t, err)

	assert.Empty(t, f.publisher.EventsOfType(events.EventSessionSubmitted),
		"preview completion is local, nothing was submitted")
	assert.Empty(t, f.publisher.EventsOfType(events.EventSessionForceSubmitted))
	f.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestDeliveryService_SaveAnswerAndNavigate(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)

	err = f.service.SaveAnswer(context.Background(), view.SessionID, 1,
		[]byte(`{"selected_options":["a"]}`))
	require.NoError(t, err)

	answer, err := f.service.GetAnswer(view.SessionID, 1)
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Equal(t, models.SingleChoice, answer.Type)

	state, err := f.service.Navigate(context.Background(), view.SessionID, NavigateRequest{Direction: "next"})
	require.NoError(t, err)
	assert.Equal(t, 1, state.CurrentIndex)

	// Snapshot reflects the latest answer and position.
	var snapshot models.SessionSnapshot
	require.NoError(t, f.cache.Get(context.Background(), snapshotKeyPrefix+view.SessionID, &snapshot))
	assert.Len(t, snapshot.Answers, 1)
	assert.Equal(t, 1, snapshot.State.CurrentIndex)
}

func TestDeliveryService_Navigate_RejectsUnknownDirection(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)

	_, err = f.service.Navigate(context.Background(), view.SessionID, NavigateRequest{Direction: "sideways"})
	assert.True(t, IsValidation(err))
}

func TestDeliveryService_SubmitPublishesEventAndDropsSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)
	f.submitter.On("Submit", mock.Anything, mock.Anything).Return(&models.SubmissionResult{ResultID: "r-1"}, nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.SaveAnswer(context.Background(), view.SessionID, 1,
		[]byte(`{"selected_options":["b"]}`)))

	result, err := f.service.Submit(context.Background(), view.SessionID, false)
	require.NoError(t, err)
	assert.Equal(t, "r-1", result.ResultID)

	submitted := f.publisher.EventsOfType(events.EventSessionSubmitted)
	require.Len(t, submitted, 1)

	var snapshot models.SessionSnapshot
	err = f.cache.Get(context.Background(), snapshotKeyPrefix+view.SessionID, &snapshot)
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "snapshot dropped after submission")
}

func TestDeliveryService_SubmitBlockedKeepsSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)

	_, err = f.service.Submit(context.Background(), view.SessionID, false)
	assert.True(t, delivery.IsValidationBlocked(err))
	f.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.EventsOfType(events.EventSessionSubmitted))
}

func TestDeliveryService_SubmitFailurePublishesFailureEvent(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)
	f.submitter.On("Submit", mock.Anything, mock.Anything).Return(nil, errors.New("upstream down"))

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)
	require.NoError(t, f.service.SaveAnswer(context.Background(), view.SessionID, 1,
		[]byte(`{"selected_options":["a"]}`)))

	_, err = f.service.Submit(context.Background(), view.SessionID, false)
	assert.True(t, delivery.IsSubmissionRejected(err))

	failed := f.publisher.EventsOfType(events.EventSessionSubmitFailed)
	require.Len(t, failed, 1)

	// The session stays retryable with its answers intact.
	answer, err := f.service.GetAnswer(view.SessionID, 1)
	require.NoError(t, err)
	assert.NotNil(t, answer)
}

func TestDeliveryService_ResumeFromSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)
	require.NoError(t, f.service.SaveAnswer(context.Background(), view.SessionID, 1,
		[]byte(`{"selected_options":["a"]}`)))

	restarted := restartedService(t, f.cache)

	resumed, err := restarted.service.ResumeSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, uint(10), resumed.AssessmentID)
	assert.Equal(t, view.SessionID, resumed.SessionID, "resume keeps the client's session id")

	answer, err := restarted.service.GetAnswer(view.SessionID, 1)
	require.NoError(t, err)
	require.NotNil(t, answer, "answers survive the restart")

	resumedEvents := restarted.publisher.EventsOfType(events.EventSessionResumed)
	assert.Len(t, resumedEvents, 1)
}

func TestDeliveryService_ResumeKeepsAnswersAcrossRestarts(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)

	// First restart: resume, then answer through the original session id.
	restarted := restartedService(t, f.cache)
	_, err = restarted.service.ResumeSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	require.NoError(t, restarted.service.SaveAnswer(context.Background(), view.SessionID, 1,
		[]byte(`{"selected_options":["a"]}`)))

	// Second restart: the post-resume answer must still be in the snapshot.
	second := restartedService(t, f.cache)
	_, err = second.service.ResumeSession(context.Background(), view.SessionID)
	require.NoError(t, err)

	answer, err := second.service.GetAnswer(view.SessionID, 1)
	require.NoError(t, err)
	require.NotNil(t, answer, "answer saved after the first resume survives the second restart")
	assert.Equal(t, models.SingleChoice, answer.Type)
}

func TestDeliveryService_ResumeUnknownSession(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.ResumeSession(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotResumed)
}

func TestDeliveryService_CloseSession(t *testing.T) {
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.CloseSession(context.Background(), view.SessionID))

	_, err = f.service.GetView(view.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	var snapshot models.SessionSnapshot
	err = f.cache.Get(context.Background(), snapshotKeyPrefix+view.SessionID, &snapshot)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	closed := f.publisher.EventsOfType(events.EventSessionClosed)
	assert.Len(t, closed, 1)

	// Closing is terminal for the registry entry.
	err = f.service.CloseSession(context.Background(), view.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
