package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/assessment-delivery/internal/models"
	"github.com/edupulse/assessment-delivery/internal/stores"
)

// Config assembles a session. Rand seeds every shuffle the session performs
// (question order, matching responses, ordering presentation) so tests can
// inject a fixed seed.
type Config struct {
	Assessment *models.Assessment
	StudentID  string
	IsPreview  bool
	Rand       *rand.Rand
	Submitter  stores.SubmissionStore
	Logger     *slog.Logger

	// SessionID, when non-empty, pins the session id. Snapshot resume uses it
	// to keep the id the client already holds; a fresh id is generated
	// otherwise.
	SessionID string

	// OnCompleted fires after the session reaches its terminal state; forced
	// reports whether timer expiry drove the submission.
	OnCompleted func(sessionID string, forced bool, result *models.SubmissionResult)
	// OnTimeWarning fires once when the timer enters the warning window.
	OnTimeWarning func(sessionID string, remaining int)
}

// Session owns one student's pass through an assessment: the sequenced
// question list (immutable for the session's lifetime), the answer store, the
// navigator, and the countdown timer. All state transitions are serialized
// through a single mutex; the timer goroutine and transport handlers are the
// only concurrent writers.
type Session struct {
	id         string
	assessment *models.Assessment
	studentID  string
	preview    bool

	questions []models.Question
	sections  []models.Section
	answers   *AnswerStore
	nav       *Navigator
	timer     *Timer
	rng       *rand.Rand

	submitter stores.SubmissionStore
	logger    *slog.Logger

	mu         sync.Mutex
	submitting bool
	completed  bool
	result     *models.SubmissionResult
	startedAt  time.Time

	// One-time shuffled presentations, fixed at first render so re-renders
	// never leak ordering information.
	matchingOrder map[uint][]models.MatchItem
	orderingInit  map[uint][]string

	warnOnce      sync.Once
	onCompleted   func(sessionID string, forced bool, result *models.SubmissionResult)
	onTimeWarning func(sessionID string, remaining int)
}

// NewSession sequences the assessment exactly once and, for timed
// assessments, starts the countdown. A zero-question assessment is a valid
// "nothing to deliver" session, not an error.
func NewSession(cfg Config) *Session {
	id := cfg.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		id:            id,
		assessment:    cfg.Assessment,
		studentID:     cfg.StudentID,
		preview:       cfg.IsPreview,
		rng:           cfg.Rand,
		submitter:     cfg.Submitter,
		logger:        cfg.Logger,
		answers:       NewAnswerStore(),
		startedAt:     time.Now(),
		matchingOrder: make(map[uint][]models.MatchItem),
		orderingInit:  make(map[uint][]string),
		onCompleted:   cfg.OnCompleted,
		onTimeWarning: cfg.OnTimeWarning,
	}

	s.questions = Sequence(cfg.Assessment, cfg.IsPreview, cfg.Rand)
	s.sections = SortedSections(cfg.Assessment)
	s.nav = NewNavigator(len(s.questions))

	if cfg.Assessment.TimeLimit != nil {
		s.timer = NewTimer(*cfg.Assessment.TimeLimit, s.handleExpiry)
		s.timer.Start()
	}

	return s
}

func (s *Session) ID() string { return s.id }

// AssessmentInfo returns the assessment the session delivers.
func (s *Session) AssessmentInfo() *models.Assessment { return s.assessment }

func (s *Session) AssessmentID() uint { return s.assessment.ID }

func (s *Session) StudentID() string { return s.studentID }

func (s *Session) IsPreview() bool { return s.preview }

func (s *Session) StartedAt() time.Time { return s.startedAt }

// Questions returns the sequenced question list.
func (s *Session) Questions() []models.Question {
	out := make([]models.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// State reports the current session state.
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() models.SessionState {
	state := models.SessionState{
		CurrentIndex: s.nav.Index(),
		IsSubmitting: s.submitting,
		IsCompleted:  s.completed,
	}
	if s.timer != nil {
		remaining := s.timer.Remaining()
		state.RemainingSeconds = &remaining
	}
	return state
}

// TimeRemaining returns the remaining seconds, or nil for untimed sessions.
func (s *Session) TimeRemaining() *int {
	if s.timer == nil {
		return nil
	}
	remaining := s.timer.Remaining()
	return &remaining
}

// InWarning reports whether the timer is inside its warning window.
func (s *Session) InWarning() bool {
	return s.timer != nil && s.timer.InWarning()
}

// Result returns the submission result once the session is completed.
func (s *Session) Result() *models.SubmissionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// ===== NAVIGATION =====

// Current returns the question at the current position.
func (s *Session) Current() (models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return models.Question{}, ErrEmptySequence
	}
	return s.questions[s.nav.Index()], nil
}

// Next moves forward one question; a no-op at the last question.
func (s *Session) Next() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.Next()
	return s.stateLocked()
}

// Previous moves back one question; a no-op at the first question.
func (s *Session) Previous() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.Previous()
	return s.stateLocked()
}

// JumpTo moves to an absolute position; out-of-range indexes are ignored.
func (s *Session) JumpTo(index int) models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.JumpTo(index)
	return s.stateLocked()
}

// CurrentSection returns the section containing the current question, or nil.
func (s *Session) CurrentSection() *models.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CurrentSection(s.sections, s.questions, s.nav.Index())
}

// ===== ANSWER COLLECTION =====

// Answer validates a type-tagged payload and writes it to the answer store.
// The store never holds a payload the per-type validator rejected, so an
// InvalidLocalInputError leaves the previous value (or absence) intact.
func (s *Session) Answer(questionID uint, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return ErrSessionCompleted
	}
	if s.submitting {
		return ErrSubmitInFlight
	}

	q, err := s.findQuestion(questionID)
	if err != nil {
		return err
	}
	policy, ok := policyFor(q.Type)
	if !ok || q.Type == models.Unsupported {
		return ErrUnsupportedAnswer
	}

	if err := policy.decode(raw); err != nil {
		return err
	}
	if policy.validate != nil {
		if err := policy.validate(q, raw); err != nil {
			return err
		}
	}
	if policy.transform != nil {
		transformed, err := policy.transform(q, raw)
		if err != nil {
			return err
		}
		raw = transformed
	}

	s.answers.Set(models.StudentAnswer{
		QuestionID: questionID,
		Type:       q.Type,
		Data:       raw,
	})
	return nil
}

// CurrentAnswer returns the stored answer for a question, supporting editor
// state restoration on back-navigation.
func (s *Session) CurrentAnswer(questionID uint) (models.StudentAnswer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Get(questionID)
}

// MatchingPresentation returns the response column for a matching question,
// shuffled once at first render and stable afterwards.
func (s *Session) MatchingPresentation(questionID uint) ([]models.MatchItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.matchingOrder[questionID]; ok {
		return cached, nil
	}
	q, err := s.findQuestion(questionID)
	if err != nil {
		return nil, err
	}
	if q.Type != models.Matching {
		return nil, ErrTypeMismatch
	}
	var format models.MatchingFormat
	if err := json.Unmarshal(q.Format, &format); err != nil {
		return nil, fmt.Errorf("malformed matching format for question %d: %w", q.ID, err)
	}
	shuffled := ShuffledResponses(&format, s.rng)
	s.matchingOrder[questionID] = shuffled
	return shuffled, nil
}

// OrderingPresentation returns the current item order for an ordering
// question: the stored answer if one exists, else the one-time shuffled
// initial presentation.
func (s *Session) OrderingPresentation(questionID uint) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderingPresentationLocked(questionID)
}

func (s *Session) orderingPresentationLocked(questionID uint) ([]string, error) {
	if answer, ok := s.answers.Get(questionID); ok {
		var a models.OrderingAnswer
		if err := json.Unmarshal(answer.Data, &a); err == nil && len(a.Order) > 0 {
			return a.Order, nil
		}
	}
	if cached, ok := s.orderingInit[questionID]; ok {
		return cached, nil
	}
	q, err := s.findQuestion(questionID)
	if err != nil {
		return nil, err
	}
	if q.Type != models.Ordering {
		return nil, ErrTypeMismatch
	}
	var format models.OrderingFormat
	if err := json.Unmarshal(q.Format, &format); err != nil {
		return nil, fmt.Errorf("malformed ordering format for question %d: %w", q.ID, err)
	}
	initial := InitialOrder(&format, s.rng)
	s.orderingInit[questionID] = initial
	return initial, nil
}

// MoveOrderingItem applies one adjacent swap to an ordering question's
// current order and stores the result. Boundary moves are no-ops.
func (s *Session) MoveOrderingItem(questionID uint, index int, up bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return ErrSessionCompleted
	}
	if s.submitting {
		return ErrSubmitInFlight
	}

	current, err := s.orderingPresentationLocked(questionID)
	if err != nil {
		return err
	}
	order := make([]string, len(current))
	copy(order, current)
	MoveItem(order, index, up)

	raw, err := json.Marshal(models.OrderingAnswer{Order: order})
	if err != nil {
		return err
	}
	s.answers.Set(models.StudentAnswer{
		QuestionID: questionID,
		Type:       models.Ordering,
		Data:       raw,
	})
	return nil
}

// StepNumeric increments or decrements a numeric answer by the format's step,
// applying the same bound check as direct entry.
func (s *Session) StepNumeric(questionID uint, up bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return ErrSessionCompleted
	}
	if s.submitting {
		return ErrSubmitInFlight
	}

	q, err := s.findQuestion(questionID)
	if err != nil {
		return err
	}
	if q.Type != models.Numeric {
		return ErrTypeMismatch
	}
	var format models.NumericFormat
	if len(q.Format) > 0 {
		if err := json.Unmarshal(q.Format, &format); err != nil {
			return fmt.Errorf("malformed numeric format for question %d: %w", q.ID, err)
		}
	}

	step := 1.0
	if format.Step != nil {
		step = *format.Step
	}
	if !up {
		step = -step
	}

	value := 0.0
	if answer, ok := s.answers.Get(questionID); ok {
		var a models.NumericAnswer
		if err := json.Unmarshal(answer.Data, &a); err == nil && a.Value != nil {
			value = *a.Value
		}
	} else if format.Min != nil {
		value = *format.Min
	}
	next := value + step

	raw, err := json.Marshal(models.NumericAnswer{Value: &next, Unit: format.Unit})
	if err != nil {
		return err
	}
	if err := validateNumeric(q, raw); err != nil {
		return err
	}
	s.answers.Set(models.StudentAnswer{
		QuestionID: questionID,
		Type:       models.Numeric,
		Data:       raw,
	})
	return nil
}

// ===== SUBMISSION PIPELINE =====

// Submit runs the submission pipeline: validate completeness (unless preview
// or forced), transform the answer store into the wire payload, invoke the
// submission store exactly once, and transition to the terminal completed
// state. A second call while a submission is in flight is rejected locally
// without a network call. On store failure the session is unchanged (answers
// and timer preserved) so the caller may retry.
func (s *Session) Submit(ctx context.Context, forced bool) (*models.SubmissionResult, error) {
	s.mu.Lock()

	if s.completed {
		s.mu.Unlock()
		return nil, ErrSessionCompleted
	}
	if s.submitting {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}

	// Completeness gate. Forced submission (timer expiry) bypasses it
	// entirely: time-boxing takes precedence over completeness.
	if !forced && !s.preview {
		if unanswered := FindUnanswered(s.questions, s.answers); len(unanswered) > 0 {
			first := s.positionOf(unanswered[0].ID)
			s.nav.JumpTo(first)
			ids := make([]uint, len(unanswered))
			for i, q := range unanswered {
				ids[i] = q.ID
			}
			s.mu.Unlock()
			return nil, &ValidationBlockedError{
				MissingCount: len(unanswered),
				FirstIndex:   first,
				QuestionIDs:  ids,
			}
		}
	}

	if s.preview {
		// Preview walkthroughs are never persisted.
		s.completed = true
		s.result = &models.SubmissionResult{}
		s.stopTimerLocked()
		result := s.result
		s.mu.Unlock()
		s.notifyCompleted(forced, result)
		return result, nil
	}

	s.submitting = true
	req := &stores.SubmissionRequest{
		SessionID:    s.id,
		AssessmentID: s.assessment.ID,
		StudentID:    s.studentID,
		Answers:      s.buildPayloadLocked(),
		Forced:       forced,
	}
	if s.assessment.TimeLimit != nil {
		spent := *s.assessment.TimeLimit * 60
		if s.timer != nil {
			spent -= s.timer.Remaining()
		}
		req.TimeSpent = &spent
	}
	s.mu.Unlock()

	result, err := s.submitter.Submit(ctx, req)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Error("submission failed", "session_id", s.id, "error", err)
		}
		return nil, &SubmissionRejectedError{Err: err}
	}

	s.completed = true
	s.result = result
	s.stopTimerLocked()
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("session submitted",
			"session_id", s.id,
			"assessment_id", s.assessment.ID,
			"result_id", result.ResultID,
			"forced", forced)
	}
	s.notifyCompleted(forced, result)
	return result, nil
}

// Summary derives the final-review statistics.
func (s *Session) Summary() models.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildSummary(s.questions, s.answers)
}

// Snapshot captures the session for cache persistence.
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := models.SessionSnapshot{
		SessionID:    s.id,
		AssessmentID: s.assessment.ID,
		StudentID:    s.studentID,
		IsPreview:    s.preview,
		State:        s.stateLocked(),
		Answers:      s.answers.All(),
		StartedAt:    s.startedAt,
	}
	if len(s.matchingOrder) > 0 {
		snapshot.MatchingOrders = make(map[uint][]models.MatchItem, len(s.matchingOrder))
		for id, items := range s.matchingOrder {
			snapshot.MatchingOrders[id] = items
		}
	}
	if len(s.orderingInit) > 0 {
		snapshot.OrderingInits = make(map[uint][]string, len(s.orderingInit))
		for id, order := range s.orderingInit {
			snapshot.OrderingInits[id] = order
		}
	}
	return snapshot
}

// RestoreAnswers reloads answers, position, and the one-time shuffled
// presentations from a snapshot, for resuming an interrupted client.
func (s *Session) RestoreAnswers(snapshot models.SessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return
	}
	s.answers.Restore(snapshot.Answers)
	s.nav.JumpTo(snapshot.State.CurrentIndex)
	for id, items := range snapshot.MatchingOrders {
		s.matchingOrder[id] = items
	}
	for id, order := range snapshot.OrderingInits {
		s.orderingInit[id] = order
	}
}

// Close tears the session down: the timer is stopped and releases its
// periodic trigger, with no further callbacks firing afterwards. Answers
// already entered are abandoned with no partial-submit artifact.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// ===== INTERNAL =====

// handleExpiry is the timer's expiry callback: forced submission bypasses the
// completeness gate and proceeds regardless of unanswered required questions.
func (s *Session) handleExpiry() {
	if s.logger != nil {
		s.logger.Info("time expired, forcing submission", "session_id", s.id)
	}
	if _, err := s.Submit(context.Background(), true); err != nil && s.logger != nil {
		s.logger.Error("forced submission failed", "session_id", s.id, "error", err)
	}
}

// CheckTimeWarning fires the warning hook once when the timer first enters
// the warning window. Called by the owning service on its poll cadence.
func (s *Session) CheckTimeWarning() {
	if s.timer == nil || !s.timer.InWarning() {
		return
	}
	s.warnOnce.Do(func() {
		if s.onTimeWarning != nil {
			s.onTimeWarning(s.id, s.timer.Remaining())
		}
	})
}

func (s *Session) notifyCompleted(forced bool, result *models.SubmissionResult) {
	if s.onCompleted != nil {
		s.onCompleted(s.id, forced, result)
	}
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Session) findQuestion(questionID uint) (*models.Question, error) {
	for i := range s.questions {
		if s.questions[i].ID == questionID {
			return &s.questions[i], nil
		}
	}
	return nil, ErrQuestionNotFound
}

func (s *Session) positionOf(questionID uint) int {
	for i := range s.questions {
		if s.questions[i].ID == questionID {
			return i
		}
	}
	return 0
}

// buildPayloadLocked emits {questionId, answerData} pairs in sequenced
// question order, skipping questions that were never answered.
func (s *Session) buildPayloadLocked() []models.AnswerPayload {
	payload := make([]models.AnswerPayload, 0, s.answers.Len())
	for _, q := range s.questions {
		if answer, ok := s.answers.Get(q.ID); ok {
			payload = append(payload, models.AnswerPayload{
				QuestionID: q.ID,
				AnswerData: answer.Data,
			})
		}
	}
	return payload
}
