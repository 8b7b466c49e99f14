package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/frontdesk/internal/ctxutil"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ============================================================================
// Transactor / log writer
// ============================================================================

var _ secondary.Transactor = (*mockTransactor)(nil)

// mockTransactor runs fn directly; mocks do not roll back.
type mockTransactor struct {
	err error
}

func (m *mockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(ctx)
}

var _ secondary.LogWriter = (*mockLogWriter)(nil)

type loggedTransition struct {
	requestID string
	action    string
	actor     string
	detail    string
}

type mockLogWriter struct {
	mu      sync.Mutex
	entries []loggedTransition
}

func (m *mockLogWriter) LogTransition(ctx context.Context, requestID, action, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, loggedTransition{
		requestID: requestID,
		action:    action,
		actor:     ctxutil.ActorFromContext(ctx),
		detail:    detail,
	})
	return nil
}

func (m *mockLogWriter) actions(requestID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		if e.requestID == requestID {
			out = append(out, e.action)
		}
	}
	return out
}

// ============================================================================
// Escalation repository
// ============================================================================

var _ secondary.EscalationRepository = (*mockEscalationRepository)(nil)

// mockEscalationRepository implements secondary.EscalationRepository for testing.
type mockEscalationRepository struct {
	mu          sync.Mutex
	escalations map[string]*secondary.EscalationRecord
	nextID      int
	expireErr   map[string]error
	getErr      map[string]error
}

func newMockEscalationRepository() *mockEscalationRepository {
	return &mockEscalationRepository{
		escalations: make(map[string]*secondary.EscalationRecord),
		nextID:      1,
		expireErr:   make(map[string]error),
		getErr:      make(map[string]error),
	}
}

// failGet makes GetByID fail for id from now on.
func (m *mockEscalationRepository) failGet(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr[id] = err
}

func (m *mockEscalationRepository) put(r *secondary.EscalationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.escalations[r.ID] = &cp
}

func (m *mockEscalationRepository) get(id string) *secondary.EscalationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.escalations[id]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (m *mockEscalationRepository) Create(ctx context.Context, escalation *secondary.EscalationRecord) error {
	m.put(escalation)
	return nil
}

func (m *mockEscalationRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationRecord, error) {
	m.mu.Lock()
	err := m.getErr[id]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if r := m.get(id); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("%w: escalation %s", primary.ErrNotFound, id)
}

func (m *mockEscalationRepository) List(ctx context.Context, filters secondary.EscalationFilters) ([]*secondary.EscalationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.EscalationRecord
	for _, e := range m.escalations {
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		if filters.CallerID != "" && e.CallerID != filters.CallerID {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockEscalationRepository) ListDue(ctx context.Context, now time.Time) ([]*secondary.EscalationRecord, error) {
	all, _ := m.List(ctx, secondary.EscalationFilters{Status: "pending"})
	var due []*secondary.EscalationRecord
	for _, e := range all {
		if !e.TimeoutAt.After(now) {
			due = append(due, e)
		}
	}
	return due, nil
}

func (m *mockEscalationRepository) GetNextID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return fmt.Sprintf("REQ-%03d", id), nil
}

func (m *mockEscalationRepository) Resolve(ctx context.Context, id, answer, resolvedBy string, resolvedAt time.Time, expectedVersion int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escalations[id]
	if !ok || e.Status != "pending" || e.Version != expectedVersion {
		return false, nil
	}
	e.Status = "resolved"
	e.Answer = answer
	e.ResolvedBy = resolvedBy
	e.ResolvedAt = &resolvedAt
	e.Version++
	return true, nil
}

func (m *mockEscalationRepository) Expire(ctx context.Context, id, reason string, expiredAt time.Time, expectedVersion int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expireErr[id]; err != nil {
		return false, err
	}
	e, ok := m.escalations[id]
	if !ok || e.Status != "pending" || e.Version != expectedVersion {
		return false, nil
	}
	e.Status = "expired"
	e.ExpiryReason = reason
	e.ExpiredAt = &expiredAt
	e.Version++
	return true, nil
}

func (m *mockEscalationRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escalations[id]
	if !ok || e.Status != "resolved" || e.DeliveredAt != nil {
		return false, nil
	}
	e.DeliveredAt = &deliveredAt
	return true, nil
}

func (m *mockEscalationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range m.escalations {
		counts[e.Status]++
	}
	return counts, nil
}

// ============================================================================
// Notification repository
// ============================================================================

var _ secondary.NotificationRepository = (*mockNotificationRepository)(nil)

// mockNotificationRepository implements secondary.NotificationRepository for testing.
type mockNotificationRepository struct {
	mu      sync.Mutex
	entries       map[string]*secondary.NotificationRecord
	nextErr       error
	deadLetterErr error
}

func newMockNotificationRepository() *mockNotificationRepository {
	return &mockNotificationRepository{entries: make(map[string]*secondary.NotificationRecord)}
}

func (m *mockNotificationRepository) get(id string) *secondary.NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.entries[id]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (m *mockNotificationRepository) Create(ctx context.Context, entry *secondary.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.RequestID]; ok {
		return fmt.Errorf("%w: %s", primary.ErrAlreadyQueued, entry.RequestID)
	}
	cp := *entry
	m.entries[entry.RequestID] = &cp
	return nil
}

func (m *mockNotificationRepository) GetByRequestID(ctx context.Context, requestID string) (*secondary.NotificationRecord, error) {
	if r := m.get(requestID); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("%w: follow-up %s", primary.ErrNotFound, requestID)
}

func (m *mockNotificationRepository) NextDue(ctx context.Context, callerID string, now time.Time, skip []string) (*secondary.NotificationRecord, error) {
	if m.nextErr != nil {
		return nil, m.nextErr
	}
	pending, _ := m.List(ctx, secondary.NotificationFilters{Status: "pending", CallerID: callerID})
	for _, e := range pending {
		if slices.Contains(skip, e.RequestID) {
			continue
		}
		if !e.NextAttemptAt.After(now) {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockNotificationRepository) List(ctx context.Context, filters secondary.NotificationFilters) ([]*secondary.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.NotificationRecord
	for _, e := range m.entries {
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		if filters.CallerID != "" && e.CallerID != filters.CallerID {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].RequestID < result[j].RequestID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockNotificationRepository) MarkDelivered(ctx context.Context, requestID string, deliveredAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[requestID]
	if !ok || e.Status != "pending" {
		return false, nil
	}
	e.Status = "delivered"
	e.DeliveredAt = &deliveredAt
	return true, nil
}

func (m *mockNotificationRepository) RecordFailure(ctx context.Context, requestID string, attempts int, lastError string, nextAttemptAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[requestID]
	if !ok {
		return primary.ErrNotFound
	}
	e.AttemptCount = attempts
	e.LastError = lastError
	e.NextAttemptAt = nextAttemptAt
	return nil
}

func (m *mockNotificationRepository) DeadLetter(ctx context.Context, requestID string, attempts int, lastError string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deadLetterErr != nil {
		return m.deadLetterErr
	}
	e, ok := m.entries[requestID]
	if !ok {
		return primary.ErrNotFound
	}
	e.Status = "dead_letter"
	e.AttemptCount = attempts
	e.LastError = lastError
	e.DeadLetteredAt = &at
	return nil
}

func (m *mockNotificationRepository) Postpone(ctx context.Context, requestID string, nextAttemptAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[requestID]
	if !ok || e.Status != "pending" {
		return false, nil
	}
	e.NextAttemptAt = nextAttemptAt
	return true, nil
}

func (m *mockNotificationRepository) Requeue(ctx context.Context, requestID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[requestID]
	if !ok || e.Status != "dead_letter" {
		return false, nil
	}
	e.Status = "pending"
	e.AttemptCount = 0
	e.LastError = ""
	e.NextAttemptAt = at
	e.DeadLetteredAt = nil
	return true, nil
}

func (m *mockNotificationRepository) PruneDelivered(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.entries {
		if e.Status == "delivered" && e.DeliveredAt != nil && e.DeliveredAt.Before(before) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range m.entries {
		counts[e.Status]++
	}
	return counts, nil
}

// ============================================================================
// Knowledge / event / attempt repositories
// ============================================================================

var _ secondary.KnowledgeRepository = (*mockKnowledgeRepository)(nil)

type mockKnowledgeRepository struct {
	mu      sync.Mutex
	entries map[string]*secondary.KnowledgeRecord
	getErr  error
}

func newMockKnowledgeRepository() *mockKnowledgeRepository {
	return &mockKnowledgeRepository{entries: make(map[string]*secondary.KnowledgeRecord)}
}

func (m *mockKnowledgeRepository) Get(ctx context.Context, normalizedQuestion string) (*secondary.KnowledgeRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[normalizedQuestion]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: knowledge %q", primary.ErrNotFound, normalizedQuestion)
}

func (m *mockKnowledgeRepository) Upsert(ctx context.Context, entry *secondary.KnowledgeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries[entry.NormalizedQuestion] = &cp
	return nil
}

func (m *mockKnowledgeRepository) Delete(ctx context.Context, normalizedQuestion string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[normalizedQuestion]; !ok {
		return false, nil
	}
	delete(m.entries, normalizedQuestion)
	return true, nil
}

func (m *mockKnowledgeRepository) List(ctx context.Context, search string) ([]*secondary.KnowledgeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.KnowledgeRecord
	for k, e := range m.entries {
		if strings.Contains(k, search) {
			cp := *e
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NormalizedQuestion < result[j].NormalizedQuestion })
	return result, nil
}

var _ secondary.EventRepository = (*mockEventRepository)(nil)

type mockEventRepository struct {
	events []*secondary.EventRecord
}

func (m *mockEventRepository) Create(ctx context.Context, event *secondary.EventRecord) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventRepository) ListByRequest(ctx context.Context, requestID string) ([]*secondary.EventRecord, error) {
	var out []*secondary.EventRecord
	for _, e := range m.events {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ secondary.AttemptRepository = (*mockAttemptRepository)(nil)

type mockAttemptRepository struct {
	mu       sync.Mutex
	attempts []*secondary.AttemptRecord
}

func (m *mockAttemptRepository) Create(ctx context.Context, attempt *secondary.AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *mockAttemptRepository) ListByRequest(ctx context.Context, requestID string) ([]*secondary.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.AttemptRecord
	for _, a := range m.attempts {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ============================================================================
// External ports
// ============================================================================

var _ secondary.VoiceChannel = (*mockVoice)(nil)

type spoken struct {
	callerID string
	text     string
}

// mockVoice records deliveries and fails while failures > 0. With refuse set
// it turns every call away as an open breaker would.
type mockVoice struct {
	mu       sync.Mutex
	spoken   []spoken
	failures int
	block    bool
	refuse   bool
}

func (m *mockVoice) Deliver(ctx context.Context, callerID, text string) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refuse {
		return fmt.Errorf("%w: circuit breaker is open", secondary.ErrChannelUnavailable)
	}
	if m.failures > 0 {
		m.failures--
		return errors.New("line busy")
	}
	m.spoken = append(m.spoken, spoken{callerID: callerID, text: text})
	return nil
}

func (m *mockVoice) said() []spoken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]spoken(nil), m.spoken...)
}

var _ secondary.FallbackSource = (*mockFallback)(nil)

type mockFallback struct {
	reply string
	err   error
	calls int
}

func (m *mockFallback) Generate(ctx context.Context, question string) (string, error) {
	m.calls++
	return m.reply, m.err
}

var _ secondary.SupervisorAlerter = (*mockAlerter)(nil)

type mockAlerter struct {
	alerts []secondary.SupervisorAlert
	err    error
}

func (m *mockAlerter) Alert(ctx context.Context, alert secondary.SupervisorAlert) error {
	m.alerts = append(m.alerts, alert)
	return m.err
}

// ============================================================================
// Service fixture
// ============================================================================

// fixture wires the real services over in-memory repositories.
type fixture struct {
	clock         *fakeClock
	tx            *mockTransactor
	logs          *mockLogWriter
	escRepo       *mockEscalationRepository
	queueRepo     *mockNotificationRepository
	knowledgeRepo *mockKnowledgeRepository
	eventRepo     *mockEventRepository
	attemptRepo   *mockAttemptRepository
	alerter       *mockAlerter

	escalations *EscalationServiceImpl
	queue       *NotificationServiceImpl
	knowledge   *KnowledgeServiceImpl
}

func newFixture(maxAttempts int) *fixture {
	f := &fixture{
		clock:         newFakeClock(t0),
		tx:            &mockTransactor{},
		logs:          &mockLogWriter{},
		escRepo:       newMockEscalationRepository(),
		queueRepo:     newMockNotificationRepository(),
		knowledgeRepo: newMockKnowledgeRepository(),
		eventRepo:     &mockEventRepository{},
		attemptRepo:   &mockAttemptRepository{},
		alerter:       &mockAlerter{},
	}

	policy := testPolicy(maxAttempts)
	f.queue = NewNotificationService(f.queueRepo, f.attemptRepo, f.logs, f.tx, policy, nil, nil).WithClock(f.clock.Now)
	f.escalations = NewEscalationService(f.escRepo, f.eventRepo, f.logs, f.queue, f.tx, f.alerter, 2*time.Hour, nil, nil).WithClock(f.clock.Now)
	f.knowledge = NewKnowledgeService(f.knowledgeRepo, f.tx, nil, nil).WithClock(f.clock.Now)
	return f
}

// pending seeds a pending escalation created at t0.
func (f *fixture) pending(id, callerID, question string) {
	f.escRepo.put(&secondary.EscalationRecord{
		ID:        id,
		CallerID:  callerID,
		Question:  question,
		Status:    "pending",
		CreatedAt: t0,
		TimeoutAt: t0.Add(2 * time.Hour),
	})
}
