package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walkinq/queue-service/internal/config"
	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/repository"
)

type published struct {
	queueID string
	event   string
	ticket  *domain.Ticket
}

// recordingDispatcher captures broadcasts. An empty event marks a snapshot.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []published
}

func (d *recordingDispatcher) PublishSnapshot(queueID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, published{queueID: queueID})
}

func (d *recordingDispatcher) PublishEvent(queueID, event string, ticket *domain.Ticket) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, published{queueID: queueID, event: event, ticket: ticket.Clone()})
}

func (d *recordingDispatcher) take() []published {
	d.mu.Lock()
	defer d.mu.Unlock()
	sent := d.sent
	d.sent = nil
	return sent
}

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type fixture struct {
	store      *repository.MemoryStore
	tickets    *TicketService
	queues     *QueueService
	dispatcher *recordingDispatcher
	queue      *domain.Queue
	orgID      string
	admin      domain.Principal
	agent      domain.Principal
	outsider   domain.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := &stepClock{cur: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store.SetClock(clock.Now)

	orgID := "org-1"
	other := "org-2"
	f := &fixture{
		store:      store,
		dispatcher: &recordingDispatcher{},
		orgID:      orgID,
		admin:      domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin, OrgID: &orgID},
		agent:      domain.Principal{UserID: "agent-1", Role: domain.RoleAgent, OrgID: &orgID},
		outsider:   domain.Principal{UserID: "agent-9", Role: domain.RoleAgent, OrgID: &other},
	}
	access := NewQueueAccess(store.Queues())
	f.queues = NewQueueService(store.Queues(), access)
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo: store.Tickets(),
		EventRepo:  store.Events(),
		QueueRepo:  store.Queues(),
		Access:     access,
		Dispatcher: f.dispatcher,
		Clock:      clock.Now,
	})

	queue, err := f.queues.CreateQueue(context.Background(), f.admin, QueueCreateInput{Name: "Front desk"})
	require.NoError(t, err)
	f.queue = queue
	return f
}

func (f *fixture) create(t *testing.T, n int) []*domain.Ticket {
	t.Helper()
	result := make([]*domain.Ticket, 0, n)
	for i := 0; i < n; i++ {
		ticket, err := f.tickets.CreateTicket(context.Background(), f.admin, TicketCreateInput{QueueID: f.queue.ID})
		require.NoError(t, err)
		result = append(result, ticket)
	}
	f.dispatcher.take()
	return result
}

func testConfig() config.Config {
	return config.Config{Auth: config.AuthConfig{JWTSecret: "secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}}
}
