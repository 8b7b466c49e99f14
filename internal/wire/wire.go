// Package wire provides dependency injection for the frontdesk application.
// It creates singleton services with lazy initialization.
package wire

import (
	"database/sql"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/frontdesk/internal/adapters/alert"
	cliadapter "github.com/example/frontdesk/internal/adapters/cli"
	"github.com/example/frontdesk/internal/adapters/fallback"
	"github.com/example/frontdesk/internal/adapters/mcpserver"
	"github.com/example/frontdesk/internal/adapters/sqlite"
	"github.com/example/frontdesk/internal/adapters/voice"
	"github.com/example/frontdesk/internal/app"
	"github.com/example/frontdesk/internal/config"
	corenotification "github.com/example/frontdesk/internal/core/notification"
	"github.com/example/frontdesk/internal/db"
	"github.com/example/frontdesk/internal/metrics"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

// breakerCooldown is how long the voice breaker stays open after tripping.
const breakerCooldown = 30 * time.Second

var (
	cfg    = config.Default()
	logger = zap.NewNop()

	database            *sql.DB
	registry            *metrics.Metrics
	escalationService   *app.EscalationServiceImpl
	notificationService *app.NotificationServiceImpl
	knowledgeService    *app.KnowledgeServiceImpl
	agentService        *app.AgentServiceImpl
	dispatcher          *app.Dispatcher
	timeoutMonitor      *app.TimeoutMonitor
	voiceChannel        *voice.Breaker
	once                sync.Once
)

// Configure sets the configuration and logger used when services are first
// built. Calls after the first service access have no effect.
func Configure(c *config.Config, l *zap.Logger) {
	if c != nil {
		cfg = c
	}
	if l != nil {
		logger = l
	}
}

// Config returns the active configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the application logger.
func Logger() *zap.Logger {
	return logger
}

// DB returns the singleton database handle.
func DB() *sql.DB {
	once.Do(initServices)
	return database
}

// Metrics returns the singleton metrics registry.
func Metrics() *metrics.Metrics {
	once.Do(initServices)
	return registry
}

// EscalationService returns the singleton EscalationService instance.
func EscalationService() primary.EscalationService {
	once.Do(initServices)
	return escalationService
}

// NotificationService returns the singleton NotificationService instance.
func NotificationService() primary.NotificationService {
	once.Do(initServices)
	return notificationService
}

// KnowledgeService returns the singleton KnowledgeService instance.
func KnowledgeService() primary.KnowledgeService {
	once.Do(initServices)
	return knowledgeService
}

// AgentService returns the singleton AgentService instance.
func AgentService() primary.AgentService {
	once.Do(initServices)
	return agentService
}

// Dispatcher returns the singleton follow-up dispatcher.
func Dispatcher() *app.Dispatcher {
	once.Do(initServices)
	return dispatcher
}

// TimeoutMonitor returns the singleton timeout monitor.
func TimeoutMonitor() *app.TimeoutMonitor {
	once.Do(initServices)
	return timeoutMonitor
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	var err error
	database, err = db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	registry = metrics.New()
	quarantine := sqlite.NewQuarantine(logger, registry)

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	tx := sqlite.NewTransactor(database)
	escalationRepo := sqlite.NewEscalationRepository(database, quarantine)
	notificationRepo := sqlite.NewNotificationRepository(database, quarantine)
	knowledgeRepo := sqlite.NewKnowledgeRepository(database, quarantine)
	eventRepo := sqlite.NewEventRepository(database)
	attemptRepo := sqlite.NewAttemptRepository(database)
	logWriter := sqlite.NewLogWriterAdapter(eventRepo)

	voiceChannel = voice.NewBreaker(newVoice(), breakerCooldown, logger)
	policy := corenotification.RetryPolicy{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseDelay:   cfg.Dispatch.BackoffBase,
		MaxDelay:    cfg.Dispatch.BackoffMax,
	}

	// Create services (primary ports implementation)
	notificationService = app.NewNotificationService(notificationRepo, attemptRepo, logWriter, tx, policy, logger, registry)
	escalationService = app.NewEscalationService(
		escalationRepo, eventRepo, logWriter, notificationService, tx,
		newAlerter(), cfg.Escalation.TimeoutWindow, logger, registry,
	)
	knowledgeService = app.NewKnowledgeService(knowledgeRepo, tx, logger, registry)
	agentService = app.NewAgentService(knowledgeService, escalationService, newFallback(), logger, registry)

	dispatcher = app.NewDispatcher(notificationService, escalationService, knowledgeService, tx, voiceChannel, app.DispatcherConfig{
		CallerID:        cfg.CallerID,
		PollInterval:    cfg.Dispatch.PollInterval,
		DeliveryTimeout: cfg.Dispatch.DeliveryTimeout,
		ChannelHold:     breakerCooldown,
	}, logger, registry)
	timeoutMonitor = app.NewTimeoutMonitor(escalationService, voiceChannel, app.TimeoutMonitorConfig{
		CallerID:      cfg.CallerID,
		SweepInterval: cfg.Monitor.SweepInterval,
		Notify:        cfg.Monitor.TimeoutNotice,
		NoticeTimeout: cfg.Monitor.NoticeTimeout,
	}, logger)

	// Resolutions made in this process are delivered without waiting for a poll.
	escalationService.OnResolved(func(string) { dispatcher.Wake() })
}

func newVoice() secondary.VoiceChannel {
	if cfg.Voice.WebhookURL != "" {
		return voice.NewWebhook(cfg.Voice.WebhookURL)
	}
	return voice.NewConsole(os.Stdout)
}

func newFallback() secondary.FallbackSource {
	if cfg.Fallback.OllamaURL == "" {
		return fallback.None{}
	}
	return fallback.NewOllama(cfg.Fallback.OllamaURL, cfg.Fallback.Model)
}

func newAlerter() secondary.SupervisorAlerter {
	alerters := alert.Multi{alert.NewConsole(os.Stderr)}
	if cfg.Alerts.DiscordToken != "" {
		discord, err := alert.NewDiscord(cfg.Alerts.DiscordToken, cfg.Alerts.DiscordChannelID)
		if err != nil {
			logger.Warn("discord alerts disabled", zap.Error(err))
		} else {
			alerters = append(alerters, discord)
		}
	}
	return alerters
}

// VoiceState reports the voice channel breaker state.
func VoiceState() string {
	once.Do(initServices)
	return voiceChannel.State()
}

// Close releases the database handle if it was opened.
func Close() error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// EscalationAdapter returns a new EscalationAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func EscalationAdapter() *cliadapter.EscalationAdapter {
	return EscalationAdapterWithOutput(os.Stdout)
}

// EscalationAdapterWithOutput returns a new EscalationAdapter writing to the given output.
func EscalationAdapterWithOutput(out io.Writer) *cliadapter.EscalationAdapter {
	once.Do(initServices)
	return cliadapter.NewEscalationAdapter(escalationService, out)
}

// FollowUpAdapter returns a new FollowUpAdapter writing to stdout.
func FollowUpAdapter() *cliadapter.FollowUpAdapter {
	return FollowUpAdapterWithOutput(os.Stdout)
}

// FollowUpAdapterWithOutput returns a new FollowUpAdapter writing to the given output.
func FollowUpAdapterWithOutput(out io.Writer) *cliadapter.FollowUpAdapter {
	once.Do(initServices)
	return cliadapter.NewFollowUpAdapter(notificationService, out)
}

// KnowledgeAdapter returns a new KnowledgeAdapter writing to stdout.
func KnowledgeAdapter() *cliadapter.KnowledgeAdapter {
	return KnowledgeAdapterWithOutput(os.Stdout)
}

// KnowledgeAdapterWithOutput returns a new KnowledgeAdapter writing to the given output.
func KnowledgeAdapterWithOutput(out io.Writer) *cliadapter.KnowledgeAdapter {
	once.Do(initServices)
	return cliadapter.NewKnowledgeAdapter(knowledgeService, agentService, out)
}

// MCPServer returns the supervisor tool server.
func MCPServer() *mcpserver.Server {
	once.Do(initServices)
	return mcpserver.New(escalationService, notificationService, knowledgeService)
}
