package messaging_test

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruzztop/gruzztop/internal/apperr"
	"github.com/gruzztop/gruzztop/internal/messaging"
)

type fakeStore struct {
	convs    map[string]*messaging.Conversation
	messages []messaging.Message
	seq      int
	cutoff   time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{convs: map[string]*messaging.Conversation{}}
}

func (f *fakeStore) id(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func copyConv(c *messaging.Conversation) *messaging.Conversation {
	cp := *c
	cp.Participants = slices.Clone(c.Participants)
	cp.DeletedBy = slices.Clone(c.DeletedBy)
	return &cp
}

func (f *fakeStore) FindConversation(_ context.Context, a, b string, orderID *string) (*messaging.Conversation, error) {
	for _, c := range f.convs {
		if c.PermanentlyDeleted || len(c.Participants) != 2 || !c.HasParticipant(a) || !c.HasParticipant(b) {
			continue
		}
		sameOrder := (orderID == nil && c.OrderID == nil) || (orderID != nil && c.OrderID != nil && *orderID == *c.OrderID)
		if sameOrder {
			return copyConv(c), nil
		}
	}
	return nil, messaging.ErrConversationNotFound
}

func (f *fakeStore) CreateConversation(ctx context.Context, c *messaging.Conversation) error {
	if len(c.Participants) == 2 {
		if _, err := f.FindConversation(ctx, c.Participants[0], c.Participants[1], c.OrderID); err == nil {
			return messaging.ErrConversationExists
		}
	}
	c.ID = f.id("c")
	c.CreatedAt = time.Now()
	f.convs[c.ID] = copyConv(c)
	return nil
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*messaging.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, messaging.ErrConversationNotFound
	}
	return copyConv(c), nil
}

func (f *fakeStore) ListForUser(_ context.Context, userID string) ([]messaging.Conversation, error) {
	var out []messaging.Conversation
	for _, c := range f.convs {
		if c.VisibleTo(userID) {
			out = append(out, *copyConv(c))
		}
	}
	return out, nil
}

func (f *fakeStore) ListByState(_ context.Context, state messaging.State, _, _ int) ([]messaging.Conversation, error) {
	var out []messaging.Conversation
	for _, c := range f.convs {
		if state == "" || c.State() == state {
			out = append(out, *copyConv(c))
		}
	}
	return out, nil
}

func (f *fakeStore) Contacts(_ context.Context, userID string) ([]string, error) {
	var out []string
	for _, c := range f.convs {
		if c.HasParticipant(userID) && !c.PermanentlyDeleted {
			out = append(out, c.Others(userID)...)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m *messaging.Message) error {
	c, ok := f.convs[m.ConversationID]
	if !ok || c.PermanentlyDeleted {
		return messaging.ErrConversationClosed
	}
	now := time.Now()
	c.DeletedBy = []string{}
	c.LastMessageAt = &now
	m.ID = f.id("m")
	m.CreatedAt = now
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID string, _ *time.Time, _ int) ([]messaging.Message, error) {
	var out []messaging.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkRead(_ context.Context, conversationID, readerID string) (int64, error) {
	var n int64
	now := time.Now()
	for i := range f.messages {
		m := &f.messages[i]
		if m.ConversationID == conversationID && m.SenderID != readerID && m.ReadAt == nil {
			m.ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SoftDelete(_ context.Context, conversationID, userID string) error {
	c := f.convs[conversationID]
	if !slices.Contains(c.DeletedBy, userID) {
		c.DeletedBy = append(c.DeletedBy, userID)
	}
	return nil
}

func (f *fakeStore) Restore(_ context.Context, conversationID, userID string) error {
	c := f.convs[conversationID]
	c.DeletedBy = slices.DeleteFunc(c.DeletedBy, func(id string) bool { return id == userID })
	return nil
}

func (f *fakeStore) PermanentlyDelete(_ context.Context, conversationID, adminID string) error {
	c := f.convs[conversationID]
	if c.PermanentlyDeleted {
		return messaging.ErrConversationClosed
	}
	now := time.Now()
	c.PermanentlyDeleted = true
	c.PermanentlyDeletedAt = &now
	c.PermanentlyDeletedBy = &adminID
	return nil
}

func (f *fakeStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	var n int64
	for id, c := range f.convs {
		if c.PermanentlyDeleted && c.PermanentlyDeletedAt.Before(cutoff) {
			delete(f.convs, id)
			n++
		}
	}
	return n, nil
}

type published struct {
	userID string
	evt    messaging.Event
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *fakePublisher) Publish(userID string, evt messaging.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{userID, evt})
}

func (p *fakePublisher) typesFor(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, s := range p.sent {
		if s.userID == userID {
			out = append(out, s.evt.Type)
		}
	}
	return out
}

type fakeNotifier struct{ users []string }

func (n *fakeNotifier) Notify(_ context.Context, userID, _, _, _, _ string) error {
	n.users = append(n.users, userID)
	return nil
}

func newService(st *fakeStore) (*messaging.Service, *fakePublisher, *fakeNotifier) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	pub, n := &fakePublisher{}, &fakeNotifier{}
	return messaging.NewService(log, st, pub, n, 30*24*time.Hour), pub, n
}

func TestStart_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, _, _ := newService(st)

	c1, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)
	c2, err := svc.Start(ctx, "bob", messaging.StartRequest{ParticipantID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Len(t, st.convs, 1)

	_, err = svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "alice"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

// racingStore lets a concurrent request create the conversation between the
// caller's lookup and its insert.
type racingStore struct {
	*fakeStore
	raced bool
}

func (r *racingStore) FindConversation(ctx context.Context, a, b string, orderID *string) (*messaging.Conversation, error) {
	if !r.raced {
		r.raced = true
		winner := &messaging.Conversation{OrderID: orderID, Participants: []string{b, a}, DeletedBy: []string{}}
		if err := r.fakeStore.CreateConversation(ctx, winner); err != nil {
			return nil, err
		}
		return nil, messaging.ErrConversationNotFound
	}
	return r.fakeStore.FindConversation(ctx, a, b, orderID)
}

func TestStart_ConcurrentCreateReturnsWinner(t *testing.T) {
	ctx := context.Background()
	st := &racingStore{fakeStore: newFakeStore()}
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := messaging.NewService(log, st, &fakePublisher{}, &fakeNotifier{}, 30*24*time.Hour)

	c, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)
	require.Len(t, st.convs, 1)
	for id := range st.convs {
		assert.Equal(t, id, c.ID)
	}

	again, err := svc.Start(ctx, "bob", messaging.StartRequest{ParticipantID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Len(t, st.convs, 1)
}

func TestStart_RestoresHiddenConversation(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, _, _ := newService(st)

	c, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "alice", c.ID))
	assert.Equal(t, messaging.StateSoftDeleted, st.convs[c.ID].StateFor("alice"))

	again, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, messaging.StateActive, st.convs[c.ID].StateFor("alice"))
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, pub, notes := newService(st)
	c, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)

	m, err := svc.Send(ctx, "alice", c.ID, messaging.SendRequest{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "alice", m.SenderID)
	assert.Contains(t, pub.typesFor("bob"), messaging.EventMessageNew)
	assert.Contains(t, pub.typesFor("alice"), messaging.EventMessageNew)
	assert.Equal(t, []string{"bob"}, notes.users)

	_, err = svc.Send(ctx, "mallory", c.ID, messaging.SendRequest{Content: "hi"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Send(ctx, "alice", c.ID, messaging.SendRequest{Content: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Send(ctx, "alice", c.ID, messaging.SendRequest{FileURL: "https://cdn/x.pdf", FileName: "x.pdf"})
	assert.NoError(t, err, "a file alone is a valid message")
}

func TestSend_ReappearsForEveryone(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, _, _ := newService(st)
	c, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "alice", c.ID))
	require.NoError(t, svc.Delete(ctx, "bob", c.ID))
	assert.ElementsMatch(t, []string{"alice", "bob"}, st.convs[c.ID].DeletedBy)

	_, err = svc.Send(ctx, "bob", c.ID, messaging.SendRequest{Content: "still there?"})
	require.NoError(t, err)
	assert.Equal(t, messaging.StateActive, st.convs[c.ID].State())

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, _, _ := newService(st)
	c, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "alice", c.ID))
	require.NoError(t, svc.Delete(ctx, "alice", c.ID))
	assert.Equal(t, []string{"alice"}, st.convs[c.ID].DeletedBy)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = svc.List(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPermanentDelete(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, _, _ := newService(st)
	c, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, "alice", c.ID, messaging.SendRequest{Content: "evidence"})
	require.NoError(t, err)

	require.NoError(t, svc.PermanentlyDelete(ctx, "admin", c.ID))

	err = svc.PermanentlyDelete(ctx, "admin", c.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = svc.Send(ctx, "alice", c.ID, messaging.SendRequest{Content: "hello?"})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = svc.Messages(ctx, "alice", c.ID, nil, 50)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = svc.Delete(ctx, "bob", c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	msgs, err := svc.AdminMessages(ctx, c.ID, nil, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "evidence", msgs[0].Content)

	// A fresh conversation is opened instead of reviving the closed one.
	next, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, next.ID)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, _, _ := newService(st)

	old := time.Now().Add(-40 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	st.convs["old"] = &messaging.Conversation{ID: "old", Participants: []string{"a", "b"}, PermanentlyDeleted: true, PermanentlyDeletedAt: &old}
	st.convs["recent"] = &messaging.Conversation{ID: "recent", Participants: []string{"a", "c"}, PermanentlyDeleted: true, PermanentlyDeletedAt: &recent}
	st.convs["live"] = &messaging.Conversation{ID: "live", Participants: []string{"a", "d"}}

	n, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NotContains(t, st.convs, "old")
	assert.Contains(t, st.convs, "recent")
	assert.Contains(t, st.convs, "live")
	assert.WithinDuration(t, time.Now().Add(-30*24*time.Hour), st.cutoff, time.Minute)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, pub, _ := newService(st)
	c, err := svc.Start(ctx, "alice", messaging.StartRequest{ParticipantID: "bob"})
	require.NoError(t, err)
	for _, text := range []string{"one", "two"} {
		_, err := svc.Send(ctx, "alice", c.ID, messaging.SendRequest{Content: text})
		require.NoError(t, err)
	}

	n, err := svc.MarkRead(ctx, "bob", c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, pub.typesFor("alice"), messaging.EventMessageRead)

	n, err = svc.MarkRead(ctx, "bob", c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenForOrder(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, _, _ := newService(st)

	id, err := svc.OpenForOrder(ctx, "o1", "client", "exec")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "client", id))

	again, err := svc.OpenForOrder(ctx, "o1", "client", "exec")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Empty(t, st.convs[id].DeletedBy)

	other, err := svc.OpenForOrder(ctx, "o2", "client", "exec")
	require.NoError(t, err)
	assert.NotEqual(t, id, other, "each order gets its own thread")
}

func TestDeliverBroadcast(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc, pub, _ := newService(st)

	n, err := svc.DeliverBroadcast(ctx, "admin", "maintenance tonight", []string{"u1", "u2", "admin"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, st.messages, 2)
	assert.Contains(t, pub.typesFor("u1"), messaging.EventMessageNew)

	// Second broadcast reuses the same conversations.
	_, err = svc.DeliverBroadcast(ctx, "admin", "done", []string{"u1"})
	require.NoError(t, err)
	assert.Len(t, st.convs, 2)
}
