package app_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/frontdesk/internal/adapters/sqlite"
	"github.com/example/frontdesk/internal/adapters/voice"
	"github.com/example/frontdesk/internal/app"
	corenotification "github.com/example/frontdesk/internal/core/notification"
	"github.com/example/frontdesk/internal/db"
	"github.com/example/frontdesk/internal/metrics"
	"github.com/example/frontdesk/internal/ports/primary"
)

var start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingVoice struct {
	mu    sync.Mutex
	lines []string
}

func (v *recordingVoice) Deliver(ctx context.Context, callerID, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lines = append(v.lines, callerID+": "+text)
	return nil
}

func (v *recordingVoice) spoken() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.lines...)
}

type stack struct {
	db          *sql.DB
	now         time.Time
	voice       *recordingVoice
	metrics     *metrics.Metrics
	escalations *app.EscalationServiceImpl
	queue       *app.NotificationServiceImpl
	knowledge   *app.KnowledgeServiceImpl
	agent       *app.AgentServiceImpl
	dispatcher  *app.Dispatcher
	monitor     *app.TimeoutMonitor
}

func (s *stack) clock() time.Time { return s.now }

func newStack(t *testing.T) *stack {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "frontdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	s := &stack{db: database, now: start, voice: &recordingVoice{}, metrics: metrics.New()}
	quarantine := sqlite.NewQuarantine(nil, s.metrics)
	tx := sqlite.NewTransactor(database)
	events := sqlite.NewEventRepository(database)
	logWriter := sqlite.NewLogWriterAdapter(events).WithClock(s.clock)

	s.queue = app.NewNotificationService(
		sqlite.NewNotificationRepository(database, quarantine),
		sqlite.NewAttemptRepository(database),
		logWriter, tx, corenotification.DefaultRetryPolicy(), nil, s.metrics,
	).WithClock(s.clock)
	s.escalations = app.NewEscalationService(
		sqlite.NewEscalationRepository(database, quarantine),
		events, logWriter, s.queue, tx, nil, 2*time.Hour, nil, s.metrics,
	).WithClock(s.clock)
	s.knowledge = app.NewKnowledgeService(sqlite.NewKnowledgeRepository(database, quarantine), tx, nil, s.metrics).WithClock(s.clock)
	s.agent = app.NewAgentService(s.knowledge, s.escalations, nil, nil, s.metrics)
	s.dispatcher = app.NewDispatcher(s.queue, s.escalations, s.knowledge, tx, s.voice, app.DispatcherConfig{
		PollInterval:    10 * time.Millisecond,
		DeliveryTimeout: time.Second,
	}, nil, s.metrics).WithClock(s.clock)
	s.monitor = app.NewTimeoutMonitor(s.escalations, s.voice, app.TimeoutMonitorConfig{
		Notify:        true,
		NoticeTimeout: time.Second,
	}, nil).WithClock(s.clock)
	return s
}

func TestEndToEnd_AnswerIsDeliveredAndLearned(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	reply, err := s.agent.Answer(ctx, primary.AnswerRequest{CallerID: "room-7", Utterance: "Do you take walk-ins on Sunday?"})
	require.NoError(t, err)
	require.Equal(t, primary.ReplySourceEscalated, reply.Source)
	require.Equal(t, "REQ-001", reply.EscalationID)

	s.now = start.Add(20 * time.Minute)
	require.NoError(t, s.escalations.ResolveEscalation(ctx, primary.ResolveEscalationRequest{
		EscalationID: reply.EscalationID,
		Answer:       "Yes, from 10am to 4pm.",
	}))

	delivered, err := s.dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"room-7: Good news! I heard back from my supervisor. Yes, from 10am to 4pm."}, s.voice.spoken())

	esc, err := s.escalations.GetEscalation(ctx, "REQ-001")
	require.NoError(t, err)
	assert.Equal(t, primary.EscalationStatusResolved, esc.Status)
	require.NotNil(t, esc.DeliveredAt)

	history, err := s.escalations.GetHistory(ctx, "REQ-001")
	require.NoError(t, err)
	var actions []string
	for _, e := range history {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"create", "resolve", "deliver"}, actions)

	// The next caller asking the same thing is answered directly.
	again, err := s.agent.Answer(ctx, primary.AnswerRequest{CallerID: "room-8", Utterance: "do you take walk-ins on sunday?"})
	require.NoError(t, err)
	assert.Equal(t, primary.ReplySourceKnowledge, again.Source)
	assert.Equal(t, "Yes, from 10am to 4pm.", again.Text)

	stats, err := s.escalations.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, primary.EscalationStats{Resolved: 1, Delivered: 1}, *stats)
}

func TestEndToEnd_TimeoutWinsOverLateAnswer(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	esc, err := s.escalations.CreateEscalation(ctx, primary.CreateEscalationRequest{CallerID: "room-7", Question: "Can I bring my dog?"})
	require.NoError(t, err)

	s.now = start.Add(2*time.Hour + time.Second)
	expired, err := s.monitor.SweepOnce(ctx)
	require.NoError(t, err)
	s.monitor.Wait()
	assert.Equal(t, []string{esc.ID}, expired)
	assert.Equal(t, []string{"room-7: Sorry, I wasn't able to get an answer to your question in time."}, s.voice.spoken())

	err = s.escalations.ResolveEscalation(ctx, primary.ResolveEscalationRequest{EscalationID: esc.ID, Answer: "Yes, on a leash."})
	assert.True(t, errors.Is(err, primary.ErrAlreadyTerminal), "got %v", err)

	_, found, err := s.knowledge.Lookup(ctx, "Can I bring my dog?")
	require.NoError(t, err)
	assert.False(t, found)

	entries, err := s.queue.ListNotifications(ctx, primary.NotificationFilters{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEndToEnd_LateAnswerBeforeSweepExpires(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	esc, err := s.escalations.CreateEscalation(ctx, primary.CreateEscalationRequest{CallerID: "room-7", Question: "Can I bring my dog?"})
	require.NoError(t, err)

	s.now = start.Add(3 * time.Hour)
	err = s.escalations.ResolveEscalation(ctx, primary.ResolveEscalationRequest{EscalationID: esc.ID, Answer: "Yes"})
	require.True(t, errors.Is(err, primary.ErrAlreadyTerminal), "got %v", err)

	got, err := s.escalations.GetEscalation(ctx, esc.ID)
	require.NoError(t, err)
	assert.Equal(t, primary.EscalationStatusExpired, got.Status)

	expired, err := s.monitor.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestEndToEnd_ResolveIsIdempotent(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	esc, err := s.escalations.CreateEscalation(ctx, primary.CreateEscalationRequest{CallerID: "room-7", Question: "Is there parking?"})
	require.NoError(t, err)

	require.NoError(t, s.escalations.ResolveEscalation(ctx, primary.ResolveEscalationRequest{EscalationID: esc.ID, Answer: "Behind the salon."}))
	err = s.escalations.ResolveEscalation(ctx, primary.ResolveEscalationRequest{EscalationID: esc.ID, Answer: "Across the street."})
	require.True(t, errors.Is(err, primary.ErrAlreadyTerminal), "got %v", err)

	entries, err := s.queue.ListNotifications(ctx, primary.NotificationFilters{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Behind the salon.", entries[0].Answer)
}

func TestEndToEnd_UnrecordableDeliveryIsSpokenOnce(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	for _, qa := range [][2]string{
		{"Is there parking?", "Behind the salon."},
		{"Do you sell gift cards?", "Yes, at the front desk."},
	} {
		esc, err := s.escalations.CreateEscalation(ctx, primary.CreateEscalationRequest{CallerID: "room-7", Question: qa[0]})
		require.NoError(t, err)
		require.NoError(t, s.escalations.ResolveEscalation(ctx, primary.ResolveEscalationRequest{EscalationID: esc.ID, Answer: qa[1]}))
	}
	_, err := s.db.Exec(`UPDATE escalations SET resolved_at = 'garbage' WHERE id = 'REQ-001'`)
	require.NoError(t, err)

	total := 0
	for i := 0; i < 3; i++ {
		s.now = s.now.Add(time.Minute)
		n, err := s.dispatcher.DispatchOnce(ctx)
		require.NoError(t, err)
		total += n
	}

	assert.Equal(t, 1, total)
	assert.Equal(t, []string{
		"room-7: Good news! I heard back from my supervisor. Behind the salon.",
		"room-7: Good news! I heard back from my supervisor. Yes, at the front desk.",
	}, s.voice.spoken())

	dead, err := s.queue.ListNotifications(ctx, primary.NotificationFilters{Status: primary.NotificationStatusDeadLetter})
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "REQ-001", dead[0].RequestID)
	assert.Contains(t, dead[0].LastError, "spoken but not recorded")

	again, err := s.agent.Answer(ctx, primary.AnswerRequest{CallerID: "room-8", Utterance: "Do you sell gift cards?"})
	require.NoError(t, err)
	assert.Equal(t, primary.ReplySourceKnowledge, again.Source)
}

type downVoice struct {
	mu    sync.Mutex
	calls int
}

func (v *downVoice) Deliver(ctx context.Context, callerID, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return errors.New("bridge unreachable")
}

func TestEndToEnd_OpenBreakerDoesNotSpendAttempts(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	inner := &downVoice{}
	breaker := voice.NewBreaker(inner, time.Hour, nil)
	dispatcher := app.NewDispatcher(s.queue, s.escalations, s.knowledge, sqlite.NewTransactor(s.db), breaker, app.DispatcherConfig{
		DeliveryTimeout: time.Second,
		ChannelHold:     30 * time.Second,
	}, nil, s.metrics).WithClock(s.clock)

	esc, err := s.escalations.CreateEscalation(ctx, primary.CreateEscalationRequest{CallerID: "room-7", Question: "Is there parking?"})
	require.NoError(t, err)
	require.NoError(t, s.escalations.ResolveEscalation(ctx, primary.ResolveEscalationRequest{EscalationID: esc.ID, Answer: "Behind the salon."}))

	for i := 0; i < 10; i++ {
		_, err := dispatcher.DispatchOnce(ctx)
		require.NoError(t, err)
		s.now = s.now.Add(time.Minute)
	}

	assert.Equal(t, 3, inner.calls, "breaker trips after three real calls")
	assert.Equal(t, "open", breaker.State())

	entries, err := s.queue.ListNotifications(ctx, primary.NotificationFilters{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, primary.NotificationStatusPending, entries[0].Status)
	assert.Equal(t, 3, entries[0].AttemptCount, "refused calls are not attempts")

	attempts, err := s.queue.GetAttempts(ctx, esc.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
}
