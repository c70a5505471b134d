package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/skillswap/internal/errs"
	"github.com/ayush/skillswap/internal/models"
	"github.com/ayush/skillswap/internal/notify"
	"github.com/ayush/skillswap/internal/store"
)

type recordedEvent struct {
	user    models.UserID
	typ     string
	payload models.Notification
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Emit(_ context.Context, userID models.UserID, eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{user: userID, typ: eventType, payload: payload.(models.Notification)})
}

func (r *recorder) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

type fixture struct {
	svc           *Service
	events        *recorder
	ann, bob, cat models.UserID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := store.NewMemoryUsers()
	ids := make([]models.UserID, 0, 3)
	for _, name := range []string{"Ann", "Bob", "Cat"} {
		u, err := users.CreateUser(context.Background(), name, name+"@example.com", "hash")
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	rec := &recorder{}
	return &fixture{
		svc:    NewService(store.NewMemoryLedger(users), users, rec, zerolog.Nop()),
		events: rec,
		ann:    ids[0],
		bob:    ids[1],
		cat:    ids[2],
	}
}

func (f *fixture) submit(t *testing.T, from, to models.UserID) *models.ResolvedRequest {
	t.Helper()
	req, err := f.svc.Submit(context.Background(), from, SubmitInput{ToUser: to, SkillOffered: "Go", SkillWanted: "Piano"})
	require.NoError(t, err)
	return req
}

func TestSubmit_CreatesPendingAndNotifiesRecipient(t *testing.T) {
	f := newFixture(t)

	req, err := f.svc.Submit(context.Background(), f.ann, SubmitInput{
		ToUser: f.bob, SkillOffered: " Go ", SkillWanted: "Piano", Message: "Weekends work for me",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, "Ann", req.FromUser.Name)
	assert.Equal(t, "Bob", req.ToUser.Name)
	assert.Equal(t, "Go", req.SkillOffered)
	assert.Equal(t, "Weekends work for me", req.Message)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, f.bob, events[0].user)
	assert.Equal(t, models.EventNewRequest, events[0].typ)
	assert.Equal(t, "Ann sent you a skill swap request!", events[0].payload.Message)
	assert.Equal(t, req.ID, events[0].payload.Request.ID)
}

func TestSubmit_DuplicatePendingConflicts(t *testing.T) {
	f := newFixture(t)
	f.submit(t, f.ann, f.bob)

	_, err := f.svc.Submit(context.Background(), f.ann, SubmitInput{ToUser: f.bob, SkillOffered: "Rust", SkillWanted: "Chess"})
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Len(t, f.events.all(), 1, "a failed submit emits nothing")

	f.submit(t, f.bob, f.ann)
	assert.Len(t, f.events.all(), 2)
}

func TestSubmit_AlternateIDSpellingsShareOnePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.submit(t, f.ann, f.bob)

	upper := models.UserID(strings.ToUpper(f.bob.String()))
	braced := models.UserID("{" + f.bob.String() + "}")
	for _, to := range []models.UserID{upper, braced} {
		_, err := f.svc.Submit(ctx, f.ann, SubmitInput{ToUser: to, SkillOffered: "Go", SkillWanted: "Piano"})
		assert.ErrorIs(t, err, errs.ErrConflict, "to %s", to)
	}

	_, err := f.svc.Submit(ctx, f.bob, SubmitInput{ToUser: models.UserID(strings.ToUpper(f.bob.String())), SkillOffered: "Go", SkillWanted: "Piano"})
	assert.ErrorIs(t, err, errs.ErrSelfRequest)

	reqs, err := f.svc.List(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, first.ID, reqs[0].ID)
	assert.Len(t, f.events.all(), 1)
}

func TestSubmit_StoresCanonicalRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, f.ann, SubmitInput{
		ToUser: models.UserID(strings.ToUpper(f.bob.String())), SkillOffered: "Go", SkillWanted: "Piano",
	})
	require.NoError(t, err)
	assert.Equal(t, f.bob, req.ToUser.ID)
	assert.Equal(t, "Bob", req.ToUser.Name)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, f.bob, events[0].user)

	accepted, err := f.svc.Respond(ctx, f.bob, req.ID, models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)
}

func TestSubmit_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   models.UserID
		in      SubmitInput
		wantErr error
	}{
		{"to self", f.ann, SubmitInput{ToUser: f.ann, SkillOffered: "Go", SkillWanted: "Piano"}, errs.ErrSelfRequest},
		{"unknown recipient", f.ann, SubmitInput{ToUser: "ghost", SkillOffered: "Go", SkillWanted: "Piano"}, errs.ErrUserNotFound},
		{"unknown actor", "ghost", SubmitInput{ToUser: f.bob, SkillOffered: "Go", SkillWanted: "Piano"}, errs.ErrForbidden},
		{"blank skill", f.ann, SubmitInput{ToUser: f.bob, SkillOffered: "   ", SkillWanted: "Piano"}, errs.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tc.actor, tc.in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	assert.Empty(t, f.events.all())
	list, err := f.svc.List(ctx, f.ann)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRespond_AcceptNotifiesSender(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t, f.ann, f.bob)

	updated, err := f.svc.Respond(context.Background(), f.bob, created.ID, models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, updated.Status)

	events := f.events.all()
	require.Len(t, events, 2)
	ev := events[1]
	assert.Equal(t, f.ann, ev.user)
	assert.Equal(t, models.EventRequestUpdated, ev.typ)
	assert.Equal(t, "Your request to Bob was accepted!", ev.payload.Message)
	assert.Equal(t, models.StatusAccepted, ev.payload.Request.Status)

	list, err := f.svc.List(context.Background(), f.ann)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusAccepted, list[0].Status)
}

func TestRespond_RejectMessage(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t, f.ann, f.bob)

	_, err := f.svc.Respond(context.Background(), f.bob, created.ID, models.StatusRejected)
	require.NoError(t, err)

	events := f.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, "Your request to Bob was rejected!", events[1].payload.Message)
}

func TestRespond_OnlyRecipientMayRespond(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t, f.ann, f.bob)
	ctx := context.Background()

	for _, actor := range []models.UserID{f.ann, f.cat} {
		_, err := f.svc.Respond(ctx, actor, created.ID, models.StatusAccepted)
		assert.ErrorIs(t, err, errs.ErrForbidden)
	}

	list, err := f.svc.List(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusPending, list[0].Status)
	assert.Len(t, f.events.all(), 1)
}

func TestRespond_TerminalIsImmutable(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t, f.ann, f.bob)
	ctx := context.Background()

	_, err := f.svc.Respond(ctx, f.bob, created.ID, models.StatusAccepted)
	require.NoError(t, err)

	for _, st := range []models.Status{models.StatusRejected, models.StatusAccepted} {
		_, err = f.svc.Respond(ctx, f.bob, created.ID, st)
		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	}

	list, err := f.svc.List(ctx, f.ann)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, list[0].Status)
	assert.Len(t, f.events.all(), 2)
}

func TestRespond_UnknownRequestAndActor(t *testing.T) {
	f := newFixture(t)
	created := f.submit(t, f.ann, f.bob)
	ctx := context.Background()

	_, err := f.svc.Respond(ctx, f.bob, "missing", models.StatusAccepted)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.svc.Respond(ctx, "ghost", created.ID, models.StatusAccepted)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestList_ReturnsOnlyOwnRequestsNewestFirst(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUsers()
	svc := NewService(store.NewMemoryLedger(users), users, &recorder{}, zerolog.Nop())

	var ids []models.UserID
	for i := 0; i < 6; i++ {
		u, err := users.CreateUser(ctx, fmt.Sprintf("user%d", i), fmt.Sprintf("u%d@example.com", i), "hash")
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}

	var mine []models.RequestID
	for i := 1; i < 6; i++ {
		req, err := svc.Submit(ctx, ids[0], SubmitInput{ToUser: ids[i], SkillOffered: "a", SkillWanted: "b"})
		require.NoError(t, err)
		mine = append(mine, req.ID)
		// Traffic between other users.
		if i+1 < 6 {
			_, err = svc.Submit(ctx, ids[i], SubmitInput{ToUser: ids[i+1], SkillOffered: "c", SkillWanted: "d"})
			require.NoError(t, err)
		}
	}
	_, err := svc.Respond(ctx, ids[3], mine[2], models.StatusRejected)
	require.NoError(t, err)

	list, err := svc.List(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, list, len(mine))
	for i, r := range list {
		assert.Equal(t, mine[len(mine)-1-i], r.ID)
		assert.True(t, r.FromUser.ID == ids[0] || r.ToUser.ID == ids[0])
	}
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt))
	}
}

func TestSubmit_ConcurrentDuplicatesCreateOne(t *testing.T) {
	f := newFixture(t)

	const n = 32
	errsCh := make(chan error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Submit(context.Background(), f.ann, SubmitInput{ToUser: f.bob, SkillOffered: "Go", SkillWanted: "Piano"})
			errsCh <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errsCh)

	var created, conflicts int
	for err := range errsCh {
		switch {
		case err == nil:
			created++
		case errors.Is(err, errs.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)

	list, err := f.svc.List(context.Background(), f.bob)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, f.events.all(), 1)
}

type captureChannel struct {
	mu     sync.Mutex
	events []notify.Event
	done   chan struct{}
}

func (c *captureChannel) ID() string            { return "capture" }
func (c *captureChannel) Done() <-chan struct{} { return c.done }
func (c *captureChannel) Send(_ context.Context, ev notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func TestService_WithDispatcher(t *testing.T) {
	users := store.NewMemoryUsers()
	ctx := context.Background()
	ann, err := users.CreateUser(ctx, "Ann", "ann@example.com", "hash")
	require.NoError(t, err)
	bob, err := users.CreateUser(ctx, "Bob", "bob@example.com", "hash")
	require.NoError(t, err)

	reg := notify.NewRegistry()
	svc := NewService(store.NewMemoryLedger(users), users, notify.NewDispatcher(reg, zerolog.Nop()), zerolog.Nop())

	ch := &captureChannel{done: make(chan struct{})}
	t.Cleanup(func() { close(ch.done) })
	reg.Register(bob.ID, ch)

	req, err := svc.Submit(ctx, ann.ID, SubmitInput{ToUser: bob.ID, SkillOffered: "Go", SkillWanted: "Piano"})
	require.NoError(t, err)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	require.Len(t, ch.events, 1)
	assert.Equal(t, models.EventNewRequest, ch.events[0].Type)

	var got models.Notification
	require.NoError(t, json.Unmarshal(ch.events[0].Data, &got))
	assert.Equal(t, req.ID, got.Request.ID)

	// Ann has no open channel; the response still succeeds.
	_, err = svc.Respond(ctx, bob.ID, req.ID, models.StatusAccepted)
	require.NoError(t, err)
	assert.Len(t, ch.events, 1)
}
