package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-interview-be/internal/dto"
	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/pkg/domainevents"
	"ai-interview-be/pkg/ledger"
	"ai-interview-be/pkg/llm"
	"ai-interview-be/pkg/progress"
	"ai-interview-be/pkg/recovery"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const quizBatchSize = 5

// QuizLedger is the ledger as seen by a job running outside the request that debited it.
type QuizLedger interface {
	ConsumptionLedger
	Ticket(ctx context.Context, recordID uuid.UUID) (*ledger.Ticket, error)
}

// ProgressDelivery pushes progress events to the user's progress channel.
type ProgressDelivery interface {
	SendProgress(userID uuid.UUID, event progress.Event)
}

type IQuizWorker interface {
	Consume(ctx context.Context) error
}

type quizWorker struct {
	subscriber message.Subscriber
	topicName  string
	ledger     QuizLedger
	writer     *recovery.Writer
	provider   llm.LLMProvider
	delivery   ProgressDelivery
	publisher  domainevents.Publisher
	timeout    time.Duration
	logger     logger.ILogger
	tracer     trace.Tracer
}

func NewQuizWorker(
	subscriber message.Subscriber,
	topicName string,
	consumption QuizLedger,
	writer *recovery.Writer,
	provider llm.LLMProvider,
	delivery ProgressDelivery,
	publisher domainevents.Publisher,
	timeout time.Duration,
	log logger.ILogger,
) IQuizWorker {
	return &quizWorker{
		subscriber: subscriber,
		topicName:  topicName,
		ledger:     consumption,
		writer:     writer,
		provider:   provider,
		delivery:   delivery,
		publisher:  publisher,
		timeout:    timeout,
		logger:     log,
		tracer:     otel.Tracer("ai-interview-be/quiz"),
	}
}

func (w *quizWorker) Consume(ctx context.Context) error {
	messages, err := w.subscriber.Subscribe(ctx, w.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			w.processMessage(msg)
		}
	}()

	w.logger.Info(quizModule, "Quiz worker consuming", map[string]interface{}{"topic": w.topicName})
	return nil
}

type quizJob struct {
	dto.QuizJobMessage
	userID   uuid.UUID
	resultID uuid.UUID
	recordID uuid.UUID
}

func decodeQuizJob(payload []byte) (*quizJob, error) {
	var job quizJob
	if err := json.Unmarshal(payload, &job.QuizJobMessage); err != nil {
		return nil, fmt.Errorf("unmarshal quiz job: %w", err)
	}
	var err error
	if job.userID, err = uuid.Parse(job.UserId); err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	if job.resultID, err = uuid.Parse(job.ResultId); err != nil {
		return nil, fmt.Errorf("result id: %w", err)
	}
	if job.recordID, err = uuid.Parse(job.RecordId); err != nil {
		return nil, fmt.Errorf("record id: %w", err)
	}
	return &job, nil
}

func (w *quizWorker) processMessage(msg *message.Message) {
	job, err := decodeQuizJob(msg.Payload)
	if err != nil {
		// Redelivering a malformed payload cannot help
		w.logger.Error(quizModule, "Dropping malformed quiz job", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	ctx := context.Background()
	ticket, err := w.ledger.Ticket(ctx, job.recordID)
	if errors.Is(err, ledger.ErrTicketClosed) || errors.Is(err, ledger.ErrRecordNotFound) {
		w.logger.Warn(quizModule, "Quiz job already resolved", map[string]interface{}{
			"record_id": job.recordID,
			"error":     err.Error(),
		})
		msg.Ack()
		return
	}
	if err != nil {
		w.logger.Error(quizModule, "Failed to load quiz ticket", map[string]interface{}{"record_id": job.recordID, "error": err.Error()})
		msg.Nack()
		return
	}

	w.run(ctx, job, ticket)
	msg.Ack()
}

// run always resolves the ticket: settle on success, abort on any failure.
func (w *quizWorker) run(ctx context.Context, job *quizJob, ticket *ledger.Ticket) {
	emitter := progress.NewEmitter(progress.SinkFunc(func(_ context.Context, ev progress.Event) {
		if w.delivery != nil {
			w.delivery.SendProgress(job.userID, ev)
		}
	}), job.ResultId)

	ctx, span := w.tracer.Start(ctx, "quiz.generate", trace.WithAttributes(
		attribute.String("result.id", job.ResultId),
		attribute.Int("quiz.questions", job.QuestionCount),
	))
	defer span.End()

	emitter.Stage(ctx, progress.StagePrepare, 5, "Preparing quiz")
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	emitter.Stage(ctx, progress.StagePrepare, 10, "Building prompt")

	questions := make([]dto.QuizQuestion, 0, job.QuestionCount)
	for len(questions) < job.QuestionCount {
		n := job.QuestionCount - len(questions)
		if n > quizBatchSize {
			n = quizBatchSize
		}
		batch, err := w.generateBatch(ctx, job, n, questions)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			w.fail(ctx, job, ticket, emitter, err)
			return
		}
		questions = append(questions, batch...)
		emitter.Generating(ctx, len(questions), job.QuestionCount,
			fmt.Sprintf("Generated %d of %d questions", len(questions), job.QuestionCount))
	}

	emitter.Stage(ctx, progress.StageSaving, 90, "Saving quiz")
	var persistenceErrors []string
	err := w.writer.Finalize(ctx, job.resultID, entity.ResultStatusCompleted, map[string]interface{}{
		"topic":      job.Topic,
		"difficulty": job.Difficulty,
		"questions":  questions,
	})
	if err != nil {
		persistenceErrors = append(persistenceErrors, err.Error())
		w.logger.Warn(quizModule, "Failed to save quiz result", map[string]interface{}{
			"result_id": job.resultID,
			"error":     err.Error(),
		})
	}

	if err := w.ledger.Settle(ctx, ticket, map[string]interface{}{
		"result_id":      job.ResultId,
		"question_count": len(questions),
	}); err != nil {
		w.logger.Error(quizModule, "Settle failed", map[string]interface{}{"record_id": ticket.RecordID, "error": err.Error()})
	}
	w.publisher.PublishQuizCompleted(ctx, job.userID, job.resultID, job.Topic, len(questions))

	data := map[string]interface{}{
		"resultId":  job.ResultId,
		"questions": questions,
	}
	if len(persistenceErrors) > 0 {
		data["persistenceErrors"] = persistenceErrors
	}
	emitter.Complete(ctx, "Quiz ready", data)
	w.logger.Info(quizModule, "Quiz generated", map[string]interface{}{
		"result_id": job.resultID,
		"questions": len(questions),
	})
}

func (w *quizWorker) fail(ctx context.Context, job *quizJob, ticket *ledger.Ticket, emitter *progress.Emitter, cause error) {
	w.logger.Error(quizModule, "Quiz generation failed", map[string]interface{}{
		"result_id": job.resultID,
		"record_id": ticket.RecordID,
		"error":     cause.Error(),
	})

	label := "Quiz generation failed. Your credit has been refunded."
	if err := w.ledger.Abort(ctx, ticket, cause.Error()); err != nil {
		label = "Quiz generation failed. Your credit will be restored by support."
		w.logger.Error(quizModule, "Abort failed", map[string]interface{}{"record_id": ticket.RecordID, "error": err.Error()})
	}
	if err := w.writer.Finalize(ctx, job.resultID, entity.ResultStatusFailed, map[string]interface{}{
		"error": cause.Error(),
	}); err != nil {
		w.logger.Warn(quizModule, "Failed to finalize failed quiz", map[string]interface{}{"result_id": job.resultID, "error": err.Error()})
	}
	emitter.Fail(ctx, label, cause.Error())
}

func (w *quizWorker) generateBatch(ctx context.Context, job *quizJob, n int, existing []dto.QuizQuestion) ([]dto.QuizQuestion, error) {
	raw, err := w.provider.Generate(ctx, buildQuizPrompt(job, n, existing), llm.WithJSONMode(), llm.WithTemperature(0.4))
	if err != nil {
		return nil, fmt.Errorf("generate quiz questions: %w", err)
	}
	questions, err := parseQuizQuestions(raw)
	if err != nil {
		return nil, err
	}
	if len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}

func buildQuizPrompt(job *quizJob, n int, existing []dto.QuizQuestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d multiple-choice interview practice questions about %q at %s difficulty.\n", n, job.Topic, job.Difficulty)
	b.WriteString("Each question has exactly four options and one correct answer.\n")
	if job.SourceText != "" {
		fmt.Fprintf(&b, "\nBase the questions on this material:\n%s\n", truncateRunes(job.SourceText, 8000))
	}
	if len(existing) > 0 {
		b.WriteString("\nDo not repeat any of these questions:\n")
		for _, q := range existing {
			fmt.Fprintf(&b, "- %s\n", q.Question)
		}
	}
	b.WriteString("\nReply with JSON only, in this shape:\n")
	b.WriteString(`{"questions":[{"question":"...","options":["...","...","...","..."],"answerIndex":0,"explanation":"..."}]}`)
	return b.String()
}

// parseQuizQuestions accepts the requested object, a bare array, and either wrapped in a
// markdown code fence. Invalid questions are skipped.
func parseQuizQuestions(raw string) ([]dto.QuizQuestion, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var parsed []dto.QuizQuestion
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return nil, fmt.Errorf("parse quiz questions: %w", err)
		}
	} else {
		var wrapper struct {
			Questions []dto.QuizQuestion `json:"questions"`
		}
		if err := json.Unmarshal([]byte(text), &wrapper); err != nil {
			return nil, fmt.Errorf("parse quiz questions: %w", err)
		}
		parsed = wrapper.Questions
	}

	valid := make([]dto.QuizQuestion, 0, len(parsed))
	for _, q := range parsed {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" || len(q.Options) < 2 || q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Options) {
			continue
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, errors.New("generation returned no usable quiz questions")
	}
	return valid, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
