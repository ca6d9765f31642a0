package service

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/events"
	apperrors "github.com/walkinq/queue-service/pkg/util/errorutil"
)

func TestServeLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{created[0].Number, created[1].Number, created[2].Number})

	counter := "4"
	called, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, &counter)
	require.NoError(t, err)
	assert.Equal(t, 1, called.Number)
	assert.Equal(t, domain.TicketStatusCalled, called.Status)
	require.NotNil(t, called.CounterNumber)
	assert.Equal(t, "4", *called.CounterNumber)
	assert.Equal(t, "agent-1", *called.AgentID)

	serving, err := f.tickets.MarkServing(ctx, f.agent, called.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusServing, serving.Status)

	done, err := f.tickets.Complete(ctx, f.agent, called.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.After(*done.ServingAt))
	assert.True(t, done.ServingAt.After(*done.CalledAt))

	snapshot, err := f.tickets.GetSnapshot(ctx, f.agent, f.queue.ID)
	require.NoError(t, err)
	assert.Nil(t, snapshot.Current)
	require.Len(t, snapshot.Next, 2)
	assert.Equal(t, 2, snapshot.Next[0].Number)
	assert.Equal(t, 3, snapshot.Next[1].Number)

	second, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Number)
	assert.Nil(t, second.CounterNumber)
}

func TestCallNextOnEmptyQueue(t *testing.T) {
	f := newFixture(t)
	_, err := f.tickets.CallNext(context.Background(), f.agent, f.queue.ID, nil)
	require.ErrorIs(t, err, domain.ErrNoWaitingTickets)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
	assert.Empty(t, f.dispatcher.take())
}

func TestRecallKeepsCalledAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, 1)
	called, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil)
	require.NoError(t, err)

	other := f.agent
	other.UserID = "agent-2"
	recalled, err := f.tickets.Recall(ctx, other, called.ID)
	require.NoError(t, err)
	assert.Equal(t, *called.CalledAt, *recalled.CalledAt)
	assert.Equal(t, "agent-2", *recalled.AgentID)
	assert.Equal(t, domain.TicketStatusCalled, recalled.Status)
}

func TestRecallFromServingReturnsToCalled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, 1)
	called, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil)
	require.NoError(t, err)
	_, err = f.tickets.MarkServing(ctx, f.agent, called.ID)
	require.NoError(t, err)

	recalled, err := f.tickets.Recall(ctx, f.agent, called.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCalled, recalled.Status)
	assert.NotNil(t, recalled.ServingAt)
}

func TestRecallRejectsWaitingTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t, 1)[0]
	_, err := f.tickets.Recall(context.Background(), f.agent, ticket.ID)
	assert.ErrorIs(t, err, domain.ErrTicketNotCalled)
}

func TestTerminalTicketsRejectTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tickets := f.create(t, 2)

	_, err := f.tickets.Complete(ctx, f.agent, tickets[0].ID)
	require.NoError(t, err)
	_, err = f.tickets.MarkNoShow(ctx, f.agent, tickets[1].ID)
	require.NoError(t, err)
	f.dispatcher.take()

	counter := "9"
	ops := map[string]func(id string) (*domain.Ticket, error){
		"recall":   func(id string) (*domain.Ticket, error) { return f.tickets.Recall(ctx, f.agent, id) },
		"serving":  func(id string) (*domain.Ticket, error) { return f.tickets.MarkServing(ctx, f.agent, id) },
		"complete": func(id string) (*domain.Ticket, error) { return f.tickets.Complete(ctx, f.agent, id) },
		"no-show":  func(id string) (*domain.Ticket, error) { return f.tickets.MarkNoShow(ctx, f.agent, id) },
		"transfer": func(id string) (*domain.Ticket, error) { return f.tickets.Transfer(ctx, f.agent, id, &counter) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			for _, ticket := range tickets {
				before, err := f.store.Tickets().GetByID(ctx, ticket.ID)
				require.NoError(t, err)
				_, err = op(ticket.ID)
				require.ErrorIs(t, err, domain.ErrTicketTerminal)
				after, err := f.store.Tickets().GetByID(ctx, ticket.ID)
				require.NoError(t, err)
				assert.Equal(t, before, after)
			}
		})
	}
	assert.Empty(t, f.dispatcher.take())
}

func TestCallNextSelectsOldestWaiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tickets := f.create(t, 4)

	// Serving #2 directly leaves #1, #3 and #4 waiting.
	_, err := f.tickets.MarkServing(ctx, f.agent, tickets[1].ID)
	require.NoError(t, err)

	var got []int
	for i := 0; i < 3; i++ {
		called, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil)
		require.NoError(t, err)
		got = append(got, called.Number)
	}
	assert.Equal(t, []int{1, 3, 4}, got)
}

func TestConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	f := newFixture(t)
	const n = 50

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := f.tickets.CreateTicket(context.Background(), f.admin, TicketCreateInput{QueueID: f.queue.ID})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, ticket.Number)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(numbers)
	require.Len(t, numbers, n)
	for i, number := range numbers {
		assert.Equal(t, i+1, number)
	}
}

func TestConcurrentCallNextNeverSharesATicket(t *testing.T) {
	f := newFixture(t)
	f.create(t, 10)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := f.tickets.CallNext(context.Background(), f.agent, f.queue.ID, nil)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[ticket.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 10)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestEveryTransitionWritesOneEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t, 1)[0]
	counter := "2"

	steps := []struct {
		kind domain.TicketEventKind
		run  func() (*domain.Ticket, error)
	}{
		{domain.EventCalled, func() (*domain.Ticket, error) { return f.tickets.CallNext(ctx, f.agent, f.queue.ID, &counter) }},
		{domain.EventRecalled, func() (*domain.Ticket, error) { return f.tickets.Recall(ctx, f.agent, ticket.ID) }},
		{domain.EventTransferred, func() (*domain.Ticket, error) { return f.tickets.Transfer(ctx, f.agent, ticket.ID, nil) }},
		{domain.EventServing, func() (*domain.Ticket, error) { return f.tickets.MarkServing(ctx, f.agent, ticket.ID) }},
		{domain.EventCompleted, func() (*domain.Ticket, error) { return f.tickets.Complete(ctx, f.agent, ticket.ID) }},
	}
	for i, step := range steps {
		updated, err := step.run()
		require.NoError(t, err)

		log, err := f.tickets.ListTicketEvents(ctx, f.agent, ticket.ID)
		require.NoError(t, err)
		require.Len(t, log, i+2)
		last := log[len(log)-1]
		assert.Equal(t, step.kind, last.Kind)
		assert.Equal(t, ticket.ID, last.TicketID)
		assert.Equal(t, f.queue.ID, last.QueueID)
		assert.Equal(t, "agent-1", last.ActorID)

		status, ok := domain.ReplayStatus(log)
		require.True(t, ok)
		assert.Equal(t, updated.Status, status)
	}

	log, err := f.tickets.ListTicketEvents(ctx, f.agent, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventCreated, log[0].Kind)
	assert.Equal(t, domain.CalledMeta{CounterNumber: &counter}, log[1].Meta)
	assert.Equal(t, domain.TransferredMeta{}, log[3].Meta)
}

func TestBroadcastsPerOperation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.CreateTicket(ctx, f.admin, TicketCreateInput{QueueID: f.queue.ID})
	require.NoError(t, err)
	assert.Equal(t, []published{{queueID: f.queue.ID}}, f.dispatcher.take())

	counter := "1"
	_, err = f.tickets.Transfer(ctx, f.agent, ticket.ID, &counter)
	require.NoError(t, err)
	assert.Equal(t, []published{{queueID: f.queue.ID}}, f.dispatcher.take())

	cases := []struct {
		event string
		run   func() (*domain.Ticket, error)
	}{
		{events.EventTicketCalled, func() (*domain.Ticket, error) { return f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil) }},
		{events.EventTicketCalled, func() (*domain.Ticket, error) { return f.tickets.Recall(ctx, f.agent, ticket.ID) }},
		{events.EventTicketServing, func() (*domain.Ticket, error) { return f.tickets.MarkServing(ctx, f.agent, ticket.ID) }},
		{events.EventTicketNoShow, func() (*domain.Ticket, error) { return f.tickets.MarkNoShow(ctx, f.agent, ticket.ID) }},
	}
	for _, tc := range cases {
		updated, err := tc.run()
		require.NoError(t, err)
		sent := f.dispatcher.take()
		require.Len(t, sent, 2)
		assert.Equal(t, published{queueID: f.queue.ID}, sent[0])
		assert.Equal(t, tc.event, sent[1].event)
		assert.Equal(t, updated, sent[1].ticket)
	}
}

func TestTransferSetsAndClearsCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t, 1)[0]

	counter := "7"
	moved, err := f.tickets.Transfer(ctx, f.agent, ticket.ID, &counter)
	require.NoError(t, err)
	assert.Equal(t, "7", *moved.CounterNumber)
	assert.Equal(t, domain.TicketStatusWaiting, moved.Status)

	called, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "7", *called.CounterNumber)

	cleared, err := f.tickets.Transfer(ctx, f.agent, ticket.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.CounterNumber)
	assert.Equal(t, domain.TicketStatusCalled, cleared.Status)
}

func TestSnapshotBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tickets := f.create(t, 8)

	snapshot, err := f.tickets.GetSnapshot(ctx, f.agent, f.queue.ID)
	require.NoError(t, err)
	assert.Nil(t, snapshot.Current)
	require.Len(t, snapshot.Next, domain.SnapshotNextLimit)
	for i, ticket := range snapshot.Next {
		assert.Equal(t, i+1, ticket.Number)
	}

	first, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil)
	require.NoError(t, err)
	_, err = f.tickets.MarkServing(ctx, f.agent, first.ID)
	require.NoError(t, err)
	second, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil)
	require.NoError(t, err)

	snapshot, err = f.tickets.GetSnapshot(ctx, f.agent, f.queue.ID)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Current)
	assert.Equal(t, second.ID, snapshot.Current.ID)
	assert.NotEqual(t, domain.TicketStatusWaiting, snapshot.Current.Status)
	assert.Equal(t, tickets[2].ID, snapshot.Next[0].ID)
	assert.Len(t, snapshot.Next, domain.SnapshotNextLimit)
}

func TestSnapshotCurrentFollowsLatestActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tickets := f.create(t, 2)

	called, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, tickets[0].ID, called.ID)

	served, err := f.tickets.MarkServing(ctx, f.agent, tickets[1].ID)
	require.NoError(t, err)
	assert.Nil(t, served.CalledAt)
	require.NotNil(t, served.ServingAt)
	assert.True(t, served.ServingAt.After(*called.CalledAt))

	snapshot, err := f.tickets.GetSnapshot(ctx, f.agent, f.queue.ID)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Current)
	assert.Equal(t, served.ID, snapshot.Current.ID)
	assert.Empty(t, snapshot.Next)
}

func TestListTicketsFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, 3)
	_, err := f.tickets.CallNext(ctx, f.agent, f.queue.ID, nil)
	require.NoError(t, err)

	all, err := f.tickets.ListTickets(ctx, f.agent, f.queue.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	waiting := domain.TicketStatusWaiting
	filtered, err := f.tickets.ListTickets(ctx, f.agent, f.queue.ID, &waiting)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, 2, filtered[0].Number)
}

func TestAccessScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t, 1)[0]

	_, err := f.tickets.CreateTicket(ctx, f.outsider, TicketCreateInput{QueueID: f.queue.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.tickets.MarkServing(ctx, f.outsider, ticket.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.tickets.GetSnapshot(ctx, f.outsider, f.queue.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.tickets.Complete(ctx, f.agent, "missing")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
	_, err = f.tickets.CallNext(ctx, f.agent, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrQueueNotFound)

	super := domain.Principal{UserID: "root", Role: domain.RoleSuperAdmin}
	_, err = f.tickets.MarkServing(ctx, super, ticket.ID)
	assert.NoError(t, err)
}

func TestCreateTicketWithService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, err := f.queues.AddService(ctx, f.admin, f.queue.ID, "Passports")
	require.NoError(t, err)

	ticket, err := f.tickets.CreateTicket(ctx, f.admin, TicketCreateInput{QueueID: f.queue.ID, ServiceID: &svc.ID})
	require.NoError(t, err)
	assert.Equal(t, svc.ID, *ticket.ServiceID)

	otherQueue, err := f.queues.CreateQueue(ctx, f.admin, QueueCreateInput{Name: "Back office"})
	require.NoError(t, err)
	_, err = f.tickets.CreateTicket(ctx, f.admin, TicketCreateInput{QueueID: otherQueue.ID, ServiceID: &svc.ID})
	assert.ErrorIs(t, err, domain.ErrServiceNotFound)
}
