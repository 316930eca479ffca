package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/edupulse/assessment-delivery/internal/cache"
	"github.com/edupulse/assessment-delivery/internal/delivery"
	"github.com/edupulse/assessment-delivery/internal/events"
	"github.com/edupulse/assessment-delivery/internal/models"
	"github.com/edupulse/assessment-delivery/internal/stores"
	"github.com/edupulse/assessment-delivery/internal/utils"
)

const (
	snapshotKeyPrefix = "session:snapshot:"
	snapshotTTL       = 24 * time.Hour
)

// DeliveryService owns the live session registry: it loads assessments,
// starts and resumes delivery sessions, routes answer and navigation
// operations to them, and publishes lifecycle events.
type DeliveryService interface {
	StartSession(ctx context.Context, req StartSessionRequest) (*SessionView, error)
	ResumeSession(ctx context.Context, sessionID string) (*SessionView, error)
	GetView(sessionID string) (*SessionView, error)
	GetQuestions(sessionID string) ([]models.Question, error)

	SaveAnswer(ctx context.Context, sessionID string, questionID uint, payload json.RawMessage) error
	GetAnswer(sessionID string, questionID uint) (*models.StudentAnswer, error)
	Navigate(ctx context.Context, sessionID string, req NavigateRequest) (models.SessionState, error)
	MoveOrderingItem(ctx context.Context, sessionID string, questionID uint, index int, up bool) error
	StepNumeric(ctx context.Context, sessionID string, questionID uint, up bool) error
	MatchingPresentation(sessionID string, questionID uint) ([]models.MatchItem, error)
	OrderingPresentation(sessionID string, questionID uint) ([]string, error)

	Submit(ctx context.Context, sessionID string, forced bool) (*models.SubmissionResult, error)
	Summary(sessionID string) (*models.SessionSummary, error)
	CloseSession(ctx context.Context, sessionID string) error

	RunTimeWarningLoop(ctx context.Context, interval time.Duration)
}

// StartSessionRequest carries the parameters for starting a delivery session.
type StartSessionRequest struct {
	AssessmentID uint   `json:"assessment_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
	IsPreview    bool   `json:"is_preview"`
}

// NavigateRequest moves the session position. Direction is one of "next",
// "previous", "jump"; Index applies to jumps only.
type NavigateRequest struct {
	Direction string `json:"direction" validate:"required,oneof=next previous jump"`
	Index     int    `json:"index"`
}

// SessionView is the handler-facing projection of a live session.
type SessionView struct {
	SessionID     string              `json:"session_id"`
	AssessmentID  uint                `json:"assessment_id"`
	Title         string              `json:"title"`
	Instructions  string              `json:"instructions,omitempty"`
	IsPreview     bool                `json:"is_preview"`
	QuestionCount int                 `json:"question_count"`
	State         models.SessionState `json:"state"`
	Current       *models.Question    `json:"current_question,omitempty"`
	Section       *models.Section     `json:"current_section,omitempty"`
}

type deliveryService struct {
	assessments stores.AssessmentStore
	submitter   stores.SubmissionStore
	cache       cache.CacheService
	publisher   events.EventPublisher
	logger      utils.Logger
	validator   *utils.Validator

	newRand func() *rand.Rand

	mu       sync.RWMutex
	sessions map[string]*delivery.Session
}

// DeliveryServiceConfig wires the service's collaborators. NewRand may be nil,
// in which case each session gets a time-seeded source.
type DeliveryServiceConfig struct {
	Assessments stores.AssessmentStore
	Submitter   stores.SubmissionStore
	Cache       cache.CacheService
	Publisher   events.EventPublisher
	Logger      utils.Logger
	Validator   *utils.Validator
	NewRand     func() *rand.Rand
}

func NewDeliveryService(cfg DeliveryServiceConfig) DeliveryService {
	newRand := cfg.NewRand
	if newRand == nil {
		newRand = func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	return &deliveryService{
		assessments: cfg.Assessments,
		submitter:   cfg.Submitter,
		cache:       cfg.Cache,
		publisher:   cfg.Publisher,
		logger:      cfg.Logger,
		validator:   cfg.Validator,
		newRand:     newRand,
		sessions:    make(map[string]*delivery.Session),
	}
}

// ===== SESSION LIFECYCLE =====

func (s *deliveryService) StartSession(ctx context.Context, req StartSessionRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if !req.IsPreview && s.hasActiveSession(req.AssessmentID, req.StudentID) {
		return nil, ErrSessionActive
	}

	assessment, err := s.assessments.GetAssessment(ctx, req.AssessmentID)
	if err != nil {
		if errors.Is(err, stores.ErrAssessmentNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, NewLoadError(req.AssessmentID, err)
	}

	session := delivery.NewSession(delivery.Config{
		Assessment:    assessment,
		StudentID:     req.StudentID,
		IsPreview:     req.IsPreview,
		Rand:          s.newRand(),
		Submitter:     s.submitter,
		Logger:        utils.ToSlogLogger(s.logger),
		OnCompleted:   s.handleCompleted(assessment),
		OnTimeWarning: s.handleTimeWarning(assessment, req.StudentID),
	})

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.logger.Info("session started",
		"session_id", session.ID(),
		"assessment_id", assessment.ID,
		"student_id", req.StudentID,
		"is_preview", req.IsPreview)

	s.persistSnapshot(ctx, session)
	s.publish(ctx, events.NewSessionStartedEvent(
		session.ID(), assessment.ID, assessment.Title, req.StudentID,
		session.StartedAt(), assessment.TimeLimit, req.IsPreview,
		len(session.Questions())))

	return s.viewOf(session), nil
}

// ResumeSession rebuilds a session from its cached snapshot after a client
// interruption. The assessment is re-fetched so format payloads stay current.
func (s *deliveryService) ResumeSession(ctx context.Context, sessionID string) (*SessionView, error) {
	if session, err := s.lookup(sessionID); err == nil {
		return s.viewOf(session), nil
	}

	var snapshot models.SessionSnapshot
	if err := s.cache.Get(ctx, snapshotKeyPrefix+sessionID, &snapshot); err != nil {
		return nil, ErrSessionNotResumed
	}
	if snapshot.State.IsCompleted {
		return nil, ErrSessionCompleted
	}

	assessment, err := s.assessments.GetAssessment(ctx, snapshot.AssessmentID)
	if err != nil {
		return nil, NewLoadError(snapshot.AssessmentID, err)
	}

	// The rebuilt session keeps the client's id so later answer saves snapshot
	// under the same key.
	session := delivery.NewSession(delivery.Config{
		SessionID:     sessionID,
		Assessment:    assessment,
		StudentID:     snapshot.StudentID,
		IsPreview:     snapshot.IsPreview,
		Rand:          s.newRand(),
		Submitter:     s.submitter,
		Logger:        utils.ToSlogLogger(s.logger),
		OnCompleted:   s.handleCompleted(assessment),
		OnTimeWarning: s.handleTimeWarning(assessment, snapshot.StudentID),
	})
	session.RestoreAnswers(snapshot)

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.logger.Info("session resumed",
		"session_id", sessionID,
		"assessment_id", snapshot.AssessmentID,
		"answer_count", len(snapshot.Answers))

	s.publish(ctx, events.NewSessionResumedEvent(
		sessionID, snapshot.AssessmentID, snapshot.StudentID, len(snapshot.Answers)))

	return s.viewOf(session), nil
}

func (s *deliveryService) GetView(sessionID string) (*SessionView, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.viewOf(session), nil
}

func (s *deliveryService) GetQuestions(sessionID string) ([]models.Question, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Questions(), nil
}

func (s *deliveryService) CloseSession(ctx context.Context, sessionID string) error {
	session, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	submitted := session.State().IsCompleted
	session.Close()

	s.mu.Lock()
	delete(s.sessions, session.ID())
	s.mu.Unlock()

	if err := s.cache.Delete(ctx, snapshotKeyPrefix+sessionID); err != nil {
		s.logger.Warn("failed to drop session snapshot", "session_id", sessionID, "error", err)
	}

	s.logger.Info("session closed", "session_id", sessionID, "submitted", submitted)
	s.publish(ctx, events.NewSessionClosedEvent(
		sessionID, session.AssessmentID(), session.StudentID(), submitted))
	return nil
}

// ===== ANSWERS AND NAVIGATION =====

func (s *deliveryService) SaveAnswer(ctx context.Context, sessionID string, questionID uint, payload json.RawMessage) error {
	session, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := session.Answer(questionID, payload); err != nil {
		return err
	}
	s.persistSnapshot(ctx, session)
	return nil
}

func (s *deliveryService) GetAnswer(sessionID string, questionID uint) (*models.StudentAnswer, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	answer, ok := session.CurrentAnswer(questionID)
	if !ok {
		return nil, nil
	}
	return &answer, nil
}

func (s *deliveryService) Navigate(ctx context.Context, sessionID string, req NavigateRequest) (models.SessionState, error) {
	if err := s.validator.Validate(req); err != nil {
		return models.SessionState{}, err
	}
	session, err := s.lookup(sessionID)
	if err != nil {
		return models.SessionState{}, err
	}

	var state models.SessionState
	switch req.Direction {
	case "next":
		state = session.Next()
	case "previous":
		state = session.Previous()
	case "jump":
		state = session.JumpTo(req.Index)
	default:
		return models.SessionState{}, ErrInvalidNavigation
	}

	s.persistSnapshot(ctx, session)
	return state, nil
}

func (s *deliveryService) MoveOrderingItem(ctx context.Context, sessionID string, questionID uint, index int, up bool) error {
	session, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := session.MoveOrderingItem(questionID, index, up); err != nil {
		return err
	}
	s.persistSnapshot(ctx, session)
	return nil
}

func (s *deliveryService) StepNumeric(ctx context.Context, sessionID string, questionID uint, up bool) error {
	session, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := session.StepNumeric(questionID, up); err != nil {
		return err
	}
	s.persistSnapshot(ctx, session)
	return nil
}

func (s *deliveryService) MatchingPresentation(sessionID string, questionID uint) ([]models.MatchItem, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return session.MatchingPresentation(questionID)
}

func (s *deliveryService) OrderingPresentation(sessionID string, questionID uint) ([]string, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return session.OrderingPresentation(questionID)
}

// ===== SUBMISSION =====

func (s *deliveryService) Submit(ctx context.Context, sessionID string, forced bool) (*models.SubmissionResult, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	result, err := session.Submit(ctx, forced)
	if err != nil {
		if delivery.IsSubmissionRejected(err) {
			s.publish(ctx, events.NewSessionSubmitFailedEvent(
				sessionID, session.AssessmentID(), session.StudentID(), err.Error(), forced))
		}
		return nil, err
	}

	if err := s.cache.Delete(ctx, snapshotKeyPrefix+sessionID); err != nil {
		s.logger.Warn("failed to drop session snapshot", "session_id", sessionID, "error", err)
	}
	return result, nil
}

func (s *deliveryService) Summary(sessionID string) (*models.SessionSummary, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	summary := session.Summary()
	return &summary, nil
}

// ===== TIMERS =====

// RunTimeWarningLoop polls live sessions so each timed session fires its
// warning hook once when it crosses the threshold. Blocks until ctx is done.
func (s *deliveryService) RunTimeWarningLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			live := make([]*delivery.Session, 0, len(s.sessions))
			for _, session := range s.sessions {
				live = append(live, session)
			}
			s.mu.RUnlock()
			for _, session := range live {
				session.CheckTimeWarning()
			}
		}
	}
}

// ===== INTERNAL =====

func (s *deliveryService) lookup(sessionID string) (*delivery.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// hasActiveSession reports whether a live, uncompleted session already exists
// for the assessment/student pair. Previews never count.
func (s *deliveryService) hasActiveSession(assessmentID uint, studentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.IsPreview() || session.State().IsCompleted {
			continue
		}
		if session.AssessmentID() == assessmentID && session.StudentID() == studentID {
			return true
		}
	}
	return false
}

func (s *deliveryService) viewOf(session *delivery.Session) *SessionView {
	view := &SessionView{
		SessionID:     session.ID(),
		AssessmentID:  session.AssessmentID(),
		IsPreview:     session.IsPreview(),
		QuestionCount: len(session.Questions()),
		State:         session.State(),
		Section:       session.CurrentSection(),
	}
	if a := session.AssessmentInfo(); a != nil {
		view.Title = a.Title
		if a.Instructions != nil {
			view.Instructions = *a.Instructions
		}
	}
	if current, err := session.Current(); err == nil {
		view.Current = &current
	}
	return view
}

func (s *deliveryService) persistSnapshot(ctx context.Context, session *delivery.Session) {
	if session.IsPreview() {
		return
	}
	snapshot := session.Snapshot()
	if err := s.cache.Set(ctx, snapshotKeyPrefix+snapshot.SessionID, snapshot, snapshotTTL); err != nil {
		s.logger.Warn("failed to persist session snapshot",
			"session_id", snapshot.SessionID, "error", err)
	}
}

func (s *deliveryService) publish(ctx context.Context, event *events.SessionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish session event",
			"event_type", event.Type, "error", err)
	}
}

func (s *deliveryService) handleCompleted(assessment *models.Assessment) func(string, bool, *models.SubmissionResult) {
	return func(sessionID string, forced bool, result *models.SubmissionResult) {
		session, err := s.lookup(sessionID)
		if err != nil {
			return
		}
		// Preview walkthroughs complete locally; nothing was submitted, so
		// downstream consumers get no submission event.
		if session.IsPreview() {
			return
		}
		summary := session.Summary()
		var timeSpent *int
		if assessment.TimeLimit != nil {
			spent := *assessment.TimeLimit * 60
			if remaining := session.TimeRemaining(); remaining != nil {
				spent -= *remaining
			}
			timeSpent = &spent
		}
		resultID := ""
		if result != nil {
			resultID = result.ResultID
		}
		s.publish(context.Background(), events.NewSessionSubmittedEvent(
			sessionID, assessment.ID, session.StudentID(), resultID, forced,
			summary.AnsweredCount, summary.QuestionCount, timeSpent))
	}
}

func (s *deliveryService) handleTimeWarning(assessment *models.Assessment, studentID string) func(string, int) {
	return func(sessionID string, remaining int) {
		s.logger.Info("session entered warning window",
			"session_id", sessionID, "seconds_remaining", remaining)
		s.publish(context.Background(), events.NewSessionTimeWarningEvent(
			sessionID, assessment.ID, studentID, remaining))
	}
}
