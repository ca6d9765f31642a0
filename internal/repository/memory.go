package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/walkinq/queue-service/internal/domain"
)

// MemoryStore keeps every entity in process memory. It backs development runs
// without POSTGRES_DSN and the service tests. Map access serializes on mu and is
// never held across a caller callback longer than one write. Ticket numbering
// additionally holds the queue's own sequence lock, so creations on one queue
// serialize while other queues only contend for the short map write.
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	seqs     map[string]*queueSequence
	orgs     map[string]*domain.Organization
	users    map[string]*domain.User
	queues   map[string]*domain.Queue
	services map[string]*domain.Service
	tickets  map[string]*domain.Ticket
	events   []domain.TicketEvent
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		seqs:     make(map[string]*queueSequence),
		orgs:     make(map[string]*domain.Organization),
		users:    make(map[string]*domain.User),
		queues:   make(map[string]*domain.Queue),
		services: make(map[string]*domain.Service),
		tickets:  make(map[string]*domain.Ticket),
	}
}

// SetClock overrides the time source used for stored timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// queueSequence is the per-queue number counter. next is written only while mu
// is held and may be read without it.
type queueSequence struct {
	mu   sync.Mutex
	next atomic.Int64
}

func (s *MemoryStore) sequence(queueID string) (*queueSequence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, ok := s.seqs[queueID]
	return seq, ok
}

func (s *MemoryStore) Queues() QueueRepository               { return memoryQueues{s} }
func (s *MemoryStore) Tickets() TicketRepository             { return memoryTickets{s} }
func (s *MemoryStore) Events() TicketEventRepository         { return memoryEvents{s} }
func (s *MemoryStore) Users() UserRepository                 { return memoryUsers{s} }
func (s *MemoryStore) Organizations() OrganizationRepository { return memoryOrgs{s} }

type memoryQueues struct{ s *MemoryStore }

func (r memoryQueues) Create(_ context.Context, queue *domain.Queue) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	queue.ID = uuid.NewString()
	queue.NextNumber = 1
	queue.CreatedAt = r.s.now()
	queue.Services = []domain.Service{}
	stored := *queue
	stored.OrgID = strings.Clone(queue.OrgID)
	stored.Name = strings.Clone(queue.Name)
	stored.Services = nil
	r.s.queues[queue.ID] = &stored
	seq := &queueSequence{}
	seq.next.Store(1)
	r.s.seqs[queue.ID] = seq
	return nil
}

func (r memoryQueues) GetByID(_ context.Context, id string) (*domain.Queue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.queues[id]
	if !ok {
		return nil, domain.ErrQueueNotFound
	}
	return r.withServices(q), nil
}

func (r memoryQueues) ListByOrg(_ context.Context, orgID string) ([]domain.Queue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.Queue{}
	for _, q := range r.s.queues {
		if q.OrgID == orgID {
			result = append(result, *r.withServices(q))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r memoryQueues) AddService(_ context.Context, service *domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.queues[service.QueueID]; !ok {
		return domain.ErrQueueNotFound
	}
	service.ID = uuid.NewString()
	service.CreatedAt = r.s.now()
	stored := *service
	stored.QueueID = strings.Clone(service.QueueID)
	stored.Name = strings.Clone(service.Name)
	r.s.services[service.ID] = &stored
	return nil
}

func (r memoryQueues) GetService(_ context.Context, id string) (*domain.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, domain.ErrServiceNotFound
	}
	c := *svc
	return &c, nil
}

// withServices must be called with the lock held.
func (r memoryQueues) withServices(q *domain.Queue) *domain.Queue {
	c := *q
	if seq, ok := r.s.seqs[q.ID]; ok {
		c.NextNumber = int(seq.next.Load())
	}
	c.Services = []domain.Service{}
	for _, svc := range r.s.services {
		if svc.QueueID == q.ID {
			c.Services = append(c.Services, *svc)
		}
	}
	sort.Slice(c.Services, func(i, j int) bool { return c.Services[i].CreatedAt.Before(c.Services[j].CreatedAt) })
	return &c
}

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) CreateNumbered(_ context.Context, ticket *domain.Ticket, created *domain.TicketEvent) error {
	seq, ok := r.s.sequence(ticket.QueueID)
	if !ok {
		return domain.ErrQueueNotFound
	}
	seq.mu.Lock()
	defer seq.mu.Unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket.Number = int(seq.next.Add(1) - 1)
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = r.s.now()
	r.s.tickets[ticket.ID] = ticket.Clone()
	if created != nil {
		created.TicketID = ticket.ID
		r.s.appendLocked(created)
	}
	return nil
}

func (r memoryTickets) ClaimNextWaiting(_ context.Context, queueID string, fn TransitionFunc) (*domain.Ticket, *domain.TicketEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	waiting := r.s.filterLocked(queueID, func(t *domain.Ticket) bool { return t.Status == domain.TicketStatusWaiting })
	if len(waiting) == 0 {
		return nil, nil, domain.ErrNoWaitingTickets
	}
	return r.s.applyLocked(waiting[0].ID, fn)
}

func (r memoryTickets) Transition(_ context.Context, id string, fn TransitionFunc) (*domain.Ticket, *domain.TicketEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return nil, nil, domain.ErrTicketNotFound
	}
	return r.s.applyLocked(id, fn)
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return t.Clone(), nil
}

func (r memoryTickets) ListByQueue(_ context.Context, queueID string, status *domain.TicketStatus) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.filterLocked(queueID, func(t *domain.Ticket) bool {
		return status == nil || t.Status == *status
	}), nil
}

func (r memoryTickets) CurrentActive(_ context.Context, queueID string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	active := r.s.filterLocked(queueID, func(t *domain.Ticket) bool { return t.Status.Active() })
	if len(active) == 0 {
		return nil, nil
	}
	sort.SliceStable(active, func(i, j int) bool {
		return compareDescNullsLast(lastActivity(&active[i]), lastActivity(&active[j])) < 0
	})
	return &active[0], nil
}

func (r memoryTickets) ListWaiting(_ context.Context, queueID string, limit int) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if limit <= 0 {
		limit = domain.SnapshotNextLimit
	}
	waiting := r.s.filterLocked(queueID, func(t *domain.Ticket) bool { return t.Status == domain.TicketStatusWaiting })
	if len(waiting) > limit {
		waiting = waiting[:limit]
	}
	return waiting, nil
}

// filterLocked returns copies of matching tickets ordered by creation.
func (s *MemoryStore) filterLocked(queueID string, keep func(*domain.Ticket) bool) []domain.Ticket {
	result := []domain.Ticket{}
	for _, t := range s.tickets {
		if t.QueueID == queueID && keep(t) {
			result = append(result, *t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Number < result[j].Number
	})
	return result
}

func (s *MemoryStore) applyLocked(id string, fn TransitionFunc) (*domain.Ticket, *domain.TicketEvent, error) {
	working := s.tickets[id].Clone()
	ev, err := fn(working)
	if err != nil {
		return nil, nil, err
	}
	s.tickets[working.ID] = working.Clone()
	if ev != nil {
		s.appendLocked(ev)
	}
	return working, ev, nil
}

func (s *MemoryStore) appendLocked(ev *domain.TicketEvent) {
	ev.ID = uuid.NewString()
	ev.CreatedAt = s.now()
	stored := *ev
	stored.TicketID = strings.Clone(ev.TicketID)
	stored.QueueID = strings.Clone(ev.QueueID)
	stored.ActorID = strings.Clone(ev.ActorID)
	s.events = append(s.events, stored)
}

// lastActivity is coalesce(servingAt, calledAt).
func lastActivity(t *domain.Ticket) *time.Time {
	if t.ServingAt != nil {
		return t.ServingAt
	}
	return t.CalledAt
}

// compareDescNullsLast orders later timestamps first and nils last.
func compareDescNullsLast(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.After(*b):
		return -1
	case b.After(*a):
		return 1
	}
	return 0
}

type memoryEvents struct{ s *MemoryStore }

func (r memoryEvents) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.TicketEvent{}
	for _, ev := range r.s.events {
		if ev.TicketID == ticketID {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (r memoryEvents) ListByQueue(_ context.Context, queueID string, limit int) ([]domain.TicketEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if limit <= 0 {
		limit = 500
	}
	result := []domain.TicketEvent{}
	for _, ev := range r.s.events {
		if ev.QueueID == queueID {
			result = append(result, ev)
		}
	}
	if len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = uuid.NewString()
	user.CreatedAt = r.s.now()
	stored := *user
	stored.Email = strings.Clone(user.Email)
	if user.OrgID != nil {
		orgID := strings.Clone(*user.OrgID)
		stored.OrgID = &orgID
	}
	r.s.users[user.ID] = &stored
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type memoryOrgs struct{ s *MemoryStore }

func (r memoryOrgs) Create(_ context.Context, org *domain.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	org.ID = uuid.NewString()
	org.CreatedAt = r.s.now()
	stored := *org
	stored.Name = strings.Clone(org.Name)
	r.s.orgs[org.ID] = &stored
	return nil
}

func (r memoryOrgs) FindByName(_ context.Context, name string) (*domain.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.orgs {
		if o.Name == name {
			c := *o
			return &c, nil
		}
	}
	return nil, nil
}
