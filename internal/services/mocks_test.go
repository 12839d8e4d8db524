package services

import (
	"context"
	"sync"
	"time"

	"eventpass/internal/domain"
)

type mockEventRepository struct {
	events map[string]*domain.Event
	err    error
}

func (m *mockEventRepository) Create(ctx context.Context, event *domain.Event) error { return nil }

func (m *mockEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	ev, ok := m.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ev, nil
}

// mockRegistrationRepository keeps registrations in a map guarded by a
// mutex so the concurrency tests exercise a real compare-and-swap.
type mockRegistrationRepository struct {
	mu        sync.Mutex
	regs      map[string]*domain.Registration
	takenCode map[string]bool
	err       error
}

func newMockRegistrationRepository() *mockRegistrationRepository {
	return &mockRegistrationRepository{
		regs:      make(map[string]*domain.Registration),
		takenCode: make(map[string]bool),
	}
}

func (m *mockRegistrationRepository) add(reg *domain.Registration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[reg.ID] = reg
	if reg.UniqueCode != "" {
		m.takenCode[reg.UniqueCode] = true
	}
}

func (m *mockRegistrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	if m.err != nil {
		return m.err
	}
	m.add(reg)
	return nil
}

func (m *mockRegistrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (m *mockRegistrationRepository) GetByCode(ctx context.Context, code string) (*domain.Registration, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reg := range m.regs {
		if reg.UniqueCode == code {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockRegistrationRepository) ListActiveByEventID(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Registration
	for _, reg := range m.regs {
		if reg.EventID == eventID && reg.Status != domain.StatusCancelled {
			cp := *reg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRegistrationRepository) CountActiveByEventID(ctx context.Context, eventID string) (int, error) {
	regs, err := m.ListActiveByEventID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return len(regs), nil
}

func (m *mockRegistrationRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takenCode[code], nil
}

func (m *mockRegistrationRepository) AtomicTransition(ctx context.Context, id string, from, to domain.RegistrationStatus, meta *domain.ValidationMeta) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok || reg.Status != from {
		return false, nil
	}
	reg.Status = to
	if meta != nil {
		t := meta.ValidatedAt
		reg.ValidatedAt = &t
		reg.ValidatedChannel = meta.Channel
		reg.ValidatedBy = meta.ValidatedBy
	}
	reg.UpdatedAt = time.Now()
	return true, nil
}

type mockCodec struct {
	decoded   *domain.TokenPayload
	decodeErr error
	expired   bool
}

func (m *mockCodec) Issue(reg *domain.Registration) (string, error) {
	return "token-" + reg.ID, nil
}

func (m *mockCodec) Decode(serialized string) (*domain.TokenPayload, error) {
	if m.decodeErr != nil {
		return nil, m.decodeErr
	}
	return m.decoded, nil
}

func (m *mockCodec) IsExpired(payload *domain.TokenPayload, maxAge time.Duration) bool {
	return m.expired
}

type mockQueue struct {
	mu   sync.Mutex
	jobs []*domain.NotificationJob
}

func (m *mockQueue) Enqueue(job *domain.NotificationJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

func (m *mockQueue) ScheduleEventReminders(ctx context.Context, eventID string) error { return nil }

func (m *mockQueue) Status() domain.QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.QueueStatus{Pending: len(m.jobs)}
}

func (m *mockQueue) enqueued() []*domain.NotificationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.NotificationJob, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// mockMailer records sends and fails the first failSends attempts.
type mockMailer struct {
	mu        sync.Mutex
	failSends int
	err       error
	sent      []sentEmail
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

func (m *mockMailer) Send(to, subject, html, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSends > 0 {
		m.failSends--
		return m.err
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: text})
	return nil
}

func (m *mockMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockMailer) sentEmails() []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentEmail, len(m.sent))
	copy(out, m.sent)
	return out
}
