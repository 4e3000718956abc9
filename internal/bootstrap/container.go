package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-interview-be/internal/config"
	"ai-interview-be/internal/controller"
	"ai-interview-be/internal/handler"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/pkg/mailer"
	"ai-interview-be/internal/repository/memory"
	"ai-interview-be/internal/repository/unitofwork"
	"ai-interview-be/internal/service"
	"ai-interview-be/internal/websocket"
	"ai-interview-be/pkg/domainevents"
	"ai-interview-be/pkg/generation"
	"ai-interview-be/pkg/interview"
	"ai-interview-be/pkg/ledger"
	"ai-interview-be/pkg/llm/factory"
	pktNats "ai-interview-be/pkg/nats"
	"ai-interview-be/pkg/recovery"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	InterviewController controller.IInterviewController
	QuizController      controller.IQuizController
	CreditController    controller.ICreditController

	// Background Services (Exposed for main.go to run)
	QuizWorker          service.IQuizWorker
	NotificationService *service.NotificationService

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires the application. A nil db selects the in-memory store.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	realtimeLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogFilePath)
	c := &Container{Logger: sysLogger}

	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	} else {
		sysLogger.Warn("BOOT", "No database configured, using the in-memory store", nil)
		uowFactory = memory.NewStore()
	}

	var emailService mailer.IEmailService
	if cfg.SMTP.Host != "" {
		emailService = mailer.NewEmailService(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Email,
			cfg.SMTP.Password,
			cfg.SMTP.Email,
			sysLogger,
		)
	}

	// 2. Event Bus
	// Only a live publisher is handed on; a typed nil would defeat the bus nil check.
	var bus domainevents.Bus
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("BOOT", "Failed to connect to NATS publisher, domain events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			bus = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL, realtimeLogger)
		if err != nil {
			sysLogger.Warn("BOOT", "Failed to connect to NATS subscriber", map[string]interface{}{"error": err.Error()})
			natsSub = nil
		} else {
			c.closers = append(c.closers, natsSub.Close)
		}
	}
	eventPublisher := domainevents.NewNatsPublisher(bus, emailService, cfg.Ledger.OperatorEmail, sysLogger)

	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("BOOT", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			sysLogger.Warn("BOOT", "Failed to connect to Redis, progress stays on this instance", map[string]interface{}{"error": err.Error()})
			rdb.Close()
			rdb = nil
		} else {
			c.closers = append(c.closers, func() { rdb.Close() })
		}
	}

	// WebSocket Hub
	wsHub := websocket.NewHub(rdb, realtimeLogger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go wsHub.Run(hubCtx)
	c.closers = append(c.closers, stopHub)

	// 3. Domain
	consumption := ledger.New(uowFactory, ledger.Config{
		FreeCredits:   cfg.Ledger.FreeCredits,
		RefundRetries: cfg.Ledger.RefundRetries,
		RefundBackoff: cfg.Ledger.RefundBackoff,
	}, sysLogger, ledger.WithAlertPublisher(eventPublisher))
	writer := recovery.NewWriter(uowFactory, sysLogger)

	kinds, err := config.LoadJobKinds(cfg.Interview.JobKindsFile)
	if err != nil {
		return nil, err
	}
	quizKind, ok := kinds.Get(cfg.Interview.QuizJobKind)
	if !ok || quizKind.Mode != config.ModeOneShot {
		return nil, fmt.Errorf("quiz job kind %q is not a one_shot kind", cfg.Interview.QuizJobKind)
	}

	llmProvider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider: cfg.Ai.Provider,
		Model:    cfg.Ai.Model,
		BaseURL:  cfg.Ai.BaseURL,
		APIKey:   cfg.Ai.APIKey,
		Timeout:  cfg.Ai.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init LLM provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)

	gateway := generation.NewLLMGateway(llmProvider, generation.Config{
		SegmentMarker: cfg.Interview.SegmentMarker,
		EndToken:      cfg.Interview.EndToken,
		Temperature:   cfg.Ai.Temperature,
		MaxTokens:     cfg.Ai.MaxTokens,
	})

	sessionRepo := memory.NewSessionRepository(cfg.Interview.SessionIdleTTL, time.Minute)

	interviewService := service.NewInterviewService(
		consumption,
		sessionRepo,
		gateway,
		writer,
		kinds,
		eventPublisher,
		service.InterviewServiceConfig{
			EvictionGrace:     cfg.Interview.EvictionGrace,
			SegmentMarker:     cfg.Interview.SegmentMarker,
			GenerationTimeout: cfg.Ai.RequestTimeout,
		},
		sysLogger,
	)
	sessionRepo.OnEvicted(func(s *interview.Session) {
		go interviewService.HandleEviction(s)
	})

	publisherService := service.NewPublisherService(cfg.Interview.QuizTopic, pubSub)
	quizService := service.NewQuizService(consumption, writer, publisherService, quizKind, sysLogger)
	c.QuizWorker = service.NewQuizWorker(
		pubSub,
		cfg.Interview.QuizTopic,
		consumption,
		writer,
		llmProvider,
		wsHub, // Hub implements ProgressDelivery
		eventPublisher,
		cfg.Ai.RequestTimeout*3,
		sysLogger,
	)

	creditService := service.NewCreditService(
		consumption,
		uowFactory,
		service.NewSnapClient(cfg.Midtrans),
		cfg.Midtrans,
		eventPublisher,
		sysLogger,
	)

	// 3.5 Notification System Infrastructure
	if natsSub != nil {
		c.NotificationService = service.NewNotificationService(natsSub, wsHub, realtimeLogger) // Hub implements NotificationDelivery
	}

	// 4. Controllers
	c.InterviewController = controller.NewInterviewController(interviewService, sysLogger)
	c.QuizController = controller.NewQuizController(quizService)
	c.CreditController = controller.NewCreditController(creditService, sysLogger)
	c.NotificationHandler = handler.NewNotificationHandler(wsHub, realtimeLogger)
	c.WebSocketHub = wsHub
	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
