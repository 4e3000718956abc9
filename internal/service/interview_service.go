package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-interview-be/internal/config"
	"ai-interview-be/internal/dto"
	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/pkg/domainevents"
	"ai-interview-be/pkg/generation"
	"ai-interview-be/pkg/interview"
	"ai-interview-be/pkg/ledger"
	"ai-interview-be/pkg/recovery"
	"ai-interview-be/pkg/splitter"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const interviewModule = "INTERVIEW"

const defaultClosing = "Thank you, that concludes the interview."

// ConsumptionLedger is the saga every billable job goes through.
type ConsumptionLedger interface {
	Begin(ctx context.Context, req ledger.BeginRequest) (*ledger.BeginResult, error)
	Settle(ctx context.Context, ticket *ledger.Ticket, output map[string]interface{}) error
	Abort(ctx context.Context, ticket *ledger.Ticket, errorInfo string) error
}

// IInterviewService drives conversational sessions. Action methods return an error only when
// the request was rejected before anything was streamed; failures after that are delivered to
// the sink as a single error event.
type IInterviewService interface {
	Start(ctx context.Context, userId uuid.UUID, req dto.StartInterviewRequest, sink interview.Sink) error
	Answer(ctx context.Context, userId uuid.UUID, req dto.AnswerRequest, sink interview.Sink) error
	Attach(ctx context.Context, userId uuid.UUID, sessionId string, sink interview.Sink) error
	End(ctx context.Context, userId uuid.UUID, sessionId string, sink interview.Sink) error
	GetSession(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionStateResponse, error)
	GetResult(ctx context.Context, userId uuid.UUID, resultId uuid.UUID) (*dto.SessionResultResponse, error)
	// HandleEviction finalizes a session dropped from the store while still active.
	HandleEviction(session *interview.Session)
}

type InterviewServiceConfig struct {
	EvictionGrace     time.Duration
	SegmentMarker     string
	GenerationTimeout time.Duration
	Now               func() time.Time
}

type interviewService struct {
	ledger    ConsumptionLedger
	store     interview.Store
	gateway   generation.Gateway
	writer    *recovery.Writer
	kinds     *config.JobKindRegistry
	publisher domainevents.Publisher
	cfg       InterviewServiceConfig
	logger    logger.ILogger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewInterviewService(
	consumption ConsumptionLedger,
	store interview.Store,
	gateway generation.Gateway,
	writer *recovery.Writer,
	kinds *config.JobKindRegistry,
	publisher domainevents.Publisher,
	cfg InterviewServiceConfig,
	log logger.ILogger,
) IInterviewService {
	if cfg.SegmentMarker == "" {
		cfg.SegmentMarker = generation.DefaultSegmentMarker
	}
	if cfg.EvictionGrace <= 0 {
		cfg.EvictionGrace = 5 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &interviewService{
		ledger:    consumption,
		store:     store,
		gateway:   gateway,
		writer:    writer,
		kinds:     kinds,
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
		tracer:    otel.Tracer("ai-interview-be/interview"),
		now:       now,
	}
}

// outbox stops delivering after the first failed send; the session keeps advancing.
type outbox struct {
	sink      interview.Sink
	dead      bool
	sessionID string
	logger    logger.ILogger
}

func (s *interviewService) newOutbox(sink interview.Sink, sessionID string) *outbox {
	return &outbox{sink: sink, sessionID: sessionID, logger: s.logger}
}

func (o *outbox) emit(event interview.Event) {
	if o.dead || o.sink == nil {
		return
	}
	if err := o.sink.Send(event); err != nil {
		o.dead = true
		o.logger.Warn(interviewModule, "Client went away, dropping further events", map[string]interface{}{
			"session_id": o.sessionID,
			"error":      err.Error(),
		})
	}
}

func (s *interviewService) Start(ctx context.Context, userId uuid.UUID, req dto.StartInterviewRequest, sink interview.Sink) error {
	kind, ok := s.kinds.Get(req.JobKind)
	if !ok {
		return dto.NewValidationError("jobKind", "is not a known job kind")
	}
	if kind.Mode != config.ModeConversational {
		return dto.NewValidationError("jobKind", "is not a conversational job kind")
	}

	sessionID := uuid.NewString()
	resultID := uuid.New()

	begin, err := s.ledger.Begin(ctx, ledger.BeginRequest{
		UserID:         userId,
		WorkType:       kind.WorkType,
		IdempotencyKey: req.IdempotencyKey,
		ResultID:       &resultID,
		Input: map[string]interface{}{
			"job_kind":   kind.Name,
			"position":   req.Position,
			"session_id": sessionID,
		},
	})
	if err != nil {
		return err
	}

	if begin.AlreadySettled {
		priorResult := ""
		if begin.Prior.ResultId != nil {
			priorResult = begin.Prior.ResultId.String()
		}
		s.logger.Info(interviewModule, "Replayed settled interview request", map[string]interface{}{
			"user_id":   userId,
			"record_id": begin.Prior.Id,
			"result_id": priorResult,
		})
		s.newOutbox(sink, "").emit(interview.NewEndEvent("", priorResult, "", 0, map[string]interface{}{
			"reason":   "already_settled",
			"replayed": true,
		}))
		return nil
	}
	ticket := begin.Ticket

	now := s.now()
	err = s.writer.Open(ctx, &entity.SessionResult{
		Id:                  resultID,
		UserId:              userId,
		SessionId:           sessionID,
		JobKind:             kind.Name,
		ConsumptionRecordId: &ticket.RecordID,
	})
	if err != nil {
		if abortErr := s.ledger.Abort(ctx, ticket, err.Error()); abortErr != nil {
			s.logger.Error(interviewModule, "Abort after placeholder failure failed", map[string]interface{}{
				"record_id": ticket.RecordID,
				"error":     abortErr.Error(),
			})
		}
		return fmt.Errorf("open interview result: %w", err)
	}

	session := interview.NewSession(sessionID, userId, kind, now)
	session.Position = req.Position
	session.JobDescription = req.JobDescription
	session.ResumeText = req.ResumeText
	session.ResultID = resultID
	session.RecordID = ticket.RecordID
	session.Ticket = ticket

	session.AcquireWait()
	defer session.Release()
	s.store.Save(session)

	out := s.newOutbox(sink, sessionID)
	out.emit(interview.NewStartEvent(sessionID, resultID.String(), kind.TotalQuestions, map[string]interface{}{
		"jobKind":       kind.Name,
		"position":      req.Position,
		"targetMinutes": kind.MaxDurationMinutes,
	}))

	opening := kind.RenderOpening(req.Position)
	for _, delta := range strings.SplitAfter(opening, " ") {
		if delta != "" {
			out.emit(interview.NewQuestionEvent(sessionID, delta, 0, kind.TotalQuestions, true))
		}
	}
	out.emit(interview.NewQuestionEvent(sessionID, opening, 0, kind.TotalQuestions, false))

	_ = session.AppendTurn(interview.Turn{Speaker: generation.SpeakerInterviewer, Text: opening, Timestamp: now})
	s.persist(session, "append opening", s.writer.AppendTurn(ctx, resultID, entity.TranscriptEntry{
		Role:      entity.TranscriptRoleInterviewer,
		Text:      opening,
		Timestamp: now,
	}))
	s.mustTransition(session, interview.StateOpeningDelivered)
	s.mustTransition(session, interview.StateAwaitingAnswer)

	s.logger.Info(interviewModule, "Interview started", map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userId,
		"job_kind":   kind.Name,
		"record_id":  ticket.RecordID,
	})
	out.emit(interview.NewWaitingEvent(sessionID, 0, 0))
	return nil
}

// lockOwned fetches a session of the user and takes its turn lock.
func (s *interviewService) lockOwned(userId uuid.UUID, sessionId string, wait bool) (*interview.Session, error) {
	session, ok := s.store.Get(sessionId)
	if !ok || session.UserID != userId {
		return nil, interview.ErrSessionNotFound
	}
	if wait {
		session.AcquireWait()
	} else if err := session.Acquire(); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *interviewService) Answer(ctx context.Context, userId uuid.UUID, req dto.AnswerRequest, sink interview.Sink) error {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return dto.NewValidationError("content", "is required")
	}

	session, err := s.lockOwned(userId, req.SessionId, false)
	if err != nil {
		return err
	}
	defer session.Release()

	if !session.Active {
		return interview.ErrSessionInactive
	}
	if session.State != interview.StateAwaitingAnswer {
		return fmt.Errorf("%w: answer while %s", interview.ErrInvalidTransition, session.State)
	}
	s.store.Touch(session.ID)

	now := s.now()
	session.LastActivity = now
	if err := session.AppendTurn(interview.Turn{Speaker: generation.SpeakerCandidate, Text: content, Timestamp: now}); err != nil {
		return err
	}
	s.persist(session, "append answer", s.writer.AppendTurn(ctx, session.ResultID, entity.TranscriptEntry{
		Role:      entity.TranscriptRoleCandidate,
		Text:      content,
		Timestamp: now,
	}))

	out := s.newOutbox(sink, session.ID)
	switch {
	case session.TimedOut(now):
		s.mustTransition(session, interview.StateTimedOut)
		s.finish(ctx, session, out, interview.ReasonTimeout, "", -1, false)
	case session.QuestionLimitReached():
		s.mustTransition(session, interview.StateEnding)
		s.finish(ctx, session, out, interview.ReasonQuestionLimit, "", -1, false)
	default:
		s.mustTransition(session, interview.StateGenerating)
		s.generateTurn(ctx, session, out)
	}
	return nil
}

// generateTurn runs one metered generation: placeholder, stream, split, fill.
func (s *interviewService) generateTurn(ctx context.Context, session *interview.Session, out *outbox) {
	number := session.QuestionCount + 1
	total := session.Kind.TotalQuestions
	out.emit(interview.NewThinkingEvent(session.ID, number))

	index, err := s.writer.Reserve(ctx, session.ResultID)
	if err != nil {
		s.persist(session, "reserve question", err)
		index = -1
	}

	genCtx := context.WithoutCancel(ctx)
	if s.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(genCtx, s.cfg.GenerationTimeout)
		defer cancel()
	}
	genCtx, span := s.tracer.Start(genCtx, "interview.generate", trace.WithAttributes(
		attribute.String("session.id", session.ID),
		attribute.String("job.kind", session.Kind.Name),
		attribute.Int("question.number", number),
	))
	defer span.End()

	now := s.now()
	stream, err := s.gateway.Generate(genCtx, generation.PromptContext{
		JobKind:        session.Kind.Name,
		Position:       session.Position,
		JobDescription: session.JobDescription,
		ResumeText:     session.ResumeText,
		History:        session.GenerationHistory(),
		QuestionNumber: number,
		TotalQuestions: total,
		ElapsedMinutes: session.ElapsedMinutes(now),
		TargetMinutes:  session.Kind.MaxDurationMinutes,
	})
	if err != nil {
		s.fail(ctx, session, out, span, err)
		return
	}

	split := splitter.New(s.cfg.SegmentMarker)
	relay := func(events []splitter.Event) {
		for _, ev := range events {
			switch ev.Kind {
			case splitter.KindPrimary:
				out.emit(interview.NewQuestionEvent(session.ID, ev.Delta, number, total, true))
			case splitter.KindBoundary:
				out.emit(interview.NewQuestionEvent(session.ID, ev.Segment, number, total, false))
				if index >= 0 {
					s.persist(session, "fill question", s.writer.FillPrimary(ctx, session.ResultID, index, strings.TrimSpace(ev.Segment)))
				}
			case splitter.KindSecondary:
				out.emit(interview.NewReferenceAnswerEvent(session.ID, ev.Delta, number, true))
			}
		}
	}

	var outcome *generation.Outcome
	for ev := range stream {
		switch {
		case ev.Err != nil:
			s.fail(ctx, session, out, span, ev.Err)
			return
		case ev.Outcome != nil:
			outcome = ev.Outcome
		default:
			relay(split.Push(ev.Fragment))
		}
	}
	if outcome == nil {
		s.fail(ctx, session, out, span, errors.New("generation ended without an outcome"))
		return
	}
	relay(split.Close())

	// A closing remark that was not streamed is delivered once, as the end event content
	streamed := split.Found() || strings.TrimSpace(split.Primary()) != ""
	if split.Found() {
		out.emit(interview.NewReferenceAnswerEvent(session.ID, split.Secondary(), number, false))
	} else if streamed {
		out.emit(interview.NewQuestionEvent(session.ID, split.Primary(), number, total, false))
	}

	if outcome.EndFlag {
		span.SetAttributes(attribute.Bool("interview.end_flag", true))
		s.mustTransition(session, interview.StateEnding)
		s.finish(ctx, session, out, interview.ReasonCompleted, outcome.Primary, index, streamed)
		return
	}

	if index >= 0 {
		if !split.Found() {
			s.persist(session, "fill question", s.writer.FillPrimary(ctx, session.ResultID, index, outcome.Primary))
		}
		if outcome.Secondary != "" {
			s.persist(session, "fill reference answer", s.writer.FillSecondary(ctx, session.ResultID, index, outcome.Secondary))
		}
	}

	done := s.now()
	_ = session.AppendTurn(interview.Turn{
		Speaker:         generation.SpeakerInterviewer,
		Text:            outcome.Primary,
		ReferenceAnswer: outcome.Secondary,
		QuestionNumber:  number,
		Timestamp:       done,
	})
	session.QuestionCount = number
	session.LastActivity = done
	s.mustTransition(session, interview.StateAwaitingAnswer)
	out.emit(interview.NewWaitingEvent(session.ID, number, session.ElapsedMinutes(done)))
	// The idle window starts once the question is delivered
	s.store.Touch(session.ID)
}

// fail compensates a generation failure: refund, mark failed, one error event.
func (s *interviewService) fail(ctx context.Context, session *interview.Session, out *outbox, span trace.Span, cause error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	s.logger.Error(interviewModule, "Generation failed", map[string]interface{}{
		"session_id": session.ID,
		"record_id":  session.RecordID,
		"question":   session.QuestionCount + 1,
		"error":      cause.Error(),
	})

	refunded := true
	if err := s.ledger.Abort(ctx, session.Ticket, cause.Error()); err != nil {
		refunded = false
		s.logger.Error(interviewModule, "Abort after generation failure failed", map[string]interface{}{
			"session_id": session.ID,
			"record_id":  session.RecordID,
			"error":      err.Error(),
		})
	}

	session.EndReason = interview.ReasonFailed
	s.mustTransition(session, interview.StateFailed)
	s.persist(session, "finalize failed result", s.writer.Finalize(ctx, session.ResultID, entity.ResultStatusFailed, map[string]interface{}{
		"reason":         interview.ReasonFailed,
		"error":          cause.Error(),
		"question_count": session.QuestionCount,
		"refunded":       refunded,
	}))
	s.store.Expire(session.ID, s.cfg.EvictionGrace)

	message := "Failed to generate the next question. Your credit has been refunded."
	if !refunded {
		message = "Failed to generate the next question. Your credit will be restored by support."
	}
	meta := s.terminalMetadata(session, interview.ReasonFailed)
	meta["refunded"] = refunded
	out.emit(interview.NewErrorEvent(session.ID, message, meta))
}

// finish runs the closing transition into Completed. reserved is the transcript placeholder the
// closing remark fills, or -1 to append a new entry. announced means the remark already reached
// the client, so the end event leaves it out.
func (s *interviewService) finish(ctx context.Context, session *interview.Session, out *outbox, reason, closing string, reserved int, announced bool) {
	now := s.now()
	elapsed := session.ElapsedMinutes(now)
	if closing == "" {
		closing = session.Kind.RenderClosing(session.Position)
	}
	if strings.TrimSpace(closing) == "" {
		closing = defaultClosing
	}

	session.EndReason = reason
	_ = session.AppendTurn(interview.Turn{Speaker: generation.SpeakerInterviewer, Text: closing, Timestamp: now})
	if reserved >= 0 {
		s.persist(session, "fill closing", s.writer.FillClosing(ctx, session.ResultID, reserved, closing))
	} else {
		s.persist(session, "append closing", s.writer.AppendTurn(ctx, session.ResultID, entity.TranscriptEntry{
			Role:      entity.TranscriptRoleInterviewer,
			Text:      closing,
			Timestamp: now,
		}))
	}
	s.mustTransition(session, interview.StateCompleted)

	output := map[string]interface{}{
		"reason":          reason,
		"question_count":  session.QuestionCount,
		"elapsed_minutes": elapsed,
	}
	// Nothing was generated, so the unit is returned and the result is not a completed interview.
	refund := session.QuestionCount == 0 && reason == interview.ReasonCandidateEnded
	status := entity.ResultStatusCompleted
	if refund {
		status = entity.ResultStatusAbandoned
	}
	s.persist(session, "finalize result", s.writer.Finalize(ctx, session.ResultID, status, output))

	meta := s.terminalMetadata(session, reason)
	if refund {
		refunded := true
		if err := s.ledger.Abort(ctx, session.Ticket, "ended before first question"); err != nil {
			refunded = false
			s.logger.Error(interviewModule, "Abort after early end failed", map[string]interface{}{
				"session_id": session.ID,
				"record_id":  session.RecordID,
				"error":      err.Error(),
			})
		}
		meta["refunded"] = refunded
	} else if err := s.ledger.Settle(ctx, session.Ticket, map[string]interface{}{
		"result_id":       session.ResultID.String(),
		"reason":          reason,
		"question_count":  session.QuestionCount,
		"elapsed_minutes": elapsed,
	}); err != nil {
		s.logger.Error(interviewModule, "Settle failed", map[string]interface{}{
			"session_id": session.ID,
			"record_id":  session.RecordID,
			"error":      err.Error(),
		})
	}

	s.store.Expire(session.ID, s.cfg.EvictionGrace)
	s.publisher.PublishSessionCompleted(ctx, domainevents.SessionSummary{
		SessionID:      session.ID,
		ResultID:       session.ResultID,
		UserID:         session.UserID,
		JobKind:        session.Kind.Name,
		Reason:         reason,
		QuestionCount:  session.QuestionCount,
		ElapsedMinutes: elapsed,
	})
	s.logger.Info(interviewModule, "Interview completed", map[string]interface{}{
		"session_id": session.ID,
		"reason":     reason,
		"questions":  session.QuestionCount,
		"elapsed":    elapsed,
	})
	content := closing
	if announced {
		content = ""
	}
	out.emit(interview.NewEndEvent(session.ID, session.ResultID.String(), content, elapsed, meta))
}

func (s *interviewService) End(ctx context.Context, userId uuid.UUID, sessionId string, sink interview.Sink) error {
	session, err := s.lockOwned(userId, sessionId, false)
	if err != nil {
		return err
	}
	defer session.Release()

	if !session.Active {
		return interview.ErrSessionInactive
	}
	if err := session.Transition(interview.StateEnding); err != nil {
		return err
	}
	s.finish(ctx, session, s.newOutbox(sink, session.ID), interview.ReasonCandidateEnded, "", -1, false)
	return nil
}

// Attach replays the pending question to a reconnecting client.
func (s *interviewService) Attach(ctx context.Context, userId uuid.UUID, sessionId string, sink interview.Sink) error {
	session, err := s.lockOwned(userId, sessionId, true)
	if err != nil {
		return err
	}
	defer session.Release()

	if !session.Active {
		return interview.ErrSessionInactive
	}
	if session.State != interview.StateAwaitingAnswer {
		return fmt.Errorf("%w: attach while %s", interview.ErrInvalidTransition, session.State)
	}
	s.store.Touch(session.ID)

	out := s.newOutbox(sink, session.ID)
	out.emit(interview.NewStartEvent(session.ID, session.ResultID.String(), session.Kind.TotalQuestions, map[string]interface{}{
		"jobKind":  session.Kind.Name,
		"attached": true,
	}))
	if last, ok := session.LastInterviewerTurn(); ok {
		out.emit(interview.NewQuestionEvent(session.ID, last.Text, last.QuestionNumber, session.Kind.TotalQuestions, false))
	}
	out.emit(interview.NewWaitingEvent(session.ID, session.QuestionCount, session.ElapsedMinutes(s.now())))
	return nil
}

func (s *interviewService) HandleEviction(session *interview.Session) {
	session.AcquireWait()
	defer session.Release()

	if !session.Active {
		return
	}

	ctx := context.Background()
	now := s.now()
	elapsed := session.ElapsedMinutes(now)
	session.EndReason = interview.ReasonAbandoned
	s.mustTransition(session, interview.StateCompleted)

	if session.QuestionCount > 0 {
		if err := s.ledger.Settle(ctx, session.Ticket, map[string]interface{}{
			"result_id":      session.ResultID.String(),
			"reason":         interview.ReasonAbandoned,
			"question_count": session.QuestionCount,
		}); err != nil {
			s.logger.Error(interviewModule, "Settle of abandoned session failed", map[string]interface{}{
				"session_id": session.ID,
				"error":      err.Error(),
			})
		}
	} else if err := s.ledger.Abort(ctx, session.Ticket, "abandoned before first question"); err != nil {
		s.logger.Error(interviewModule, "Abort of abandoned session failed", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}

	s.persist(session, "finalize abandoned result", s.writer.Finalize(ctx, session.ResultID, entity.ResultStatusAbandoned, map[string]interface{}{
		"reason":          interview.ReasonAbandoned,
		"question_count":  session.QuestionCount,
		"elapsed_minutes": elapsed,
	}))
	s.publisher.PublishSessionCompleted(ctx, domainevents.SessionSummary{
		SessionID:      session.ID,
		ResultID:       session.ResultID,
		UserID:         session.UserID,
		JobKind:        session.Kind.Name,
		Reason:         interview.ReasonAbandoned,
		QuestionCount:  session.QuestionCount,
		ElapsedMinutes: elapsed,
	})
	s.logger.Info(interviewModule, "Idle session abandoned", map[string]interface{}{
		"session_id": session.ID,
		"questions":  session.QuestionCount,
	})
}

// GetSession waits out a running turn so the snapshot is consistent. A turn is bounded by the
// generation timeout.
func (s *interviewService) GetSession(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionStateResponse, error) {
	session, err := s.lockOwned(userId, sessionId, true)
	if err != nil {
		return nil, err
	}
	defer session.Release()

	history := make([]dto.SessionTurnResponse, len(session.History))
	for i, t := range session.History {
		history[i] = dto.SessionTurnResponse{
			Speaker:        string(t.Speaker),
			Text:           t.Text,
			QuestionNumber: t.QuestionNumber,
			Timestamp:      t.Timestamp,
		}
	}
	return &dto.SessionStateResponse{
		SessionId:         session.ID,
		JobKind:           session.Kind.Name,
		State:             string(session.State),
		Active:            session.Active,
		QuestionCount:     session.QuestionCount,
		TotalQuestions:    session.Kind.TotalQuestions,
		ElapsedMinutes:    session.ElapsedMinutes(s.now()),
		TargetMinutes:     session.Kind.MaxDurationMinutes,
		ResultId:          session.ResultID.String(),
		EndReason:         session.EndReason,
		PersistenceErrors: session.PersistenceErrors,
		History:           history,
	}, nil
}

func (s *interviewService) GetResult(ctx context.Context, userId uuid.UUID, resultId uuid.UUID) (*dto.SessionResultResponse, error) {
	result, err := s.writer.Load(ctx, resultId)
	if err != nil {
		return nil, err
	}
	if result.UserId != userId {
		return nil, recovery.ErrResultNotFound
	}
	return toSessionResultResponse(result), nil
}

func toSessionResultResponse(result *entity.SessionResult) *dto.SessionResultResponse {
	transcript := make([]dto.TranscriptEntryResponse, len(result.Transcript))
	for i, e := range result.Transcript {
		transcript[i] = dto.TranscriptEntryResponse{
			Role:            e.Role,
			Text:            e.Text,
			ReferenceAnswer: e.ReferenceAnswer,
			QuestionNumber:  e.QuestionNumber,
			Pending:         e.Pending,
			Timestamp:       e.Timestamp,
		}
	}
	return &dto.SessionResultResponse{
		Id:            result.Id.String(),
		SessionId:     result.SessionId,
		JobKind:       result.JobKind,
		Status:        string(result.Status),
		QuestionCount: result.QuestionCount,
		Transcript:    transcript,
		Output:        result.Output,
		CreatedAt:     result.CreatedAt,
		CompletedAt:   result.CompletedAt,
	}
}

func (s *interviewService) terminalMetadata(session *interview.Session, reason string) map[string]interface{} {
	meta := map[string]interface{}{
		"reason":         reason,
		"questionCount":  session.QuestionCount,
		"totalQuestions": session.Kind.TotalQuestions,
	}
	if len(session.PersistenceErrors) > 0 {
		meta["persistenceErrors"] = session.PersistenceErrors
	}
	return meta
}

// persist records a failed durable write on the session. It never fails the turn.
func (s *interviewService) persist(session *interview.Session, op string, err error) {
	if err == nil {
		return
	}
	session.NotePersistenceError(fmt.Errorf("%s: %w", op, err))
	s.logger.Warn(interviewModule, "Recovery write failed", map[string]interface{}{
		"session_id": session.ID,
		"result_id":  session.ResultID,
		"op":         op,
		"error":      err.Error(),
	})
}

func (s *interviewService) mustTransition(session *interview.Session, to interview.State) {
	if err := session.Transition(to); err != nil {
		s.logger.Error(interviewModule, "Unexpected state transition", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}
}
