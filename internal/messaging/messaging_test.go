package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/bazaar/internal/api"
	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
	"github.com/sudo-init-do/bazaar/internal/logger"
	"github.com/sudo-init-do/bazaar/internal/marketplace"
	"github.com/sudo-init-do/bazaar/internal/middleware"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var (
	owner = identity.Account{ID: "owner-1", Email: "owner@example.com"}
	alice = identity.Account{ID: "alice", Email: "alice@example.com"}
	bob   = identity.Account{ID: "bob"}
)

type memStore struct {
	mu   sync.Mutex
	seq  int
	msgs []Message
}

func (s *memStore) Create(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	m.ID = fmt.Sprintf("msg-%03d", s.seq)
	m.CreatedAt = time.Unix(0, 0).Add(time.Duration(s.seq) * time.Second)
	s.msgs = append(s.msgs, *m)
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return Message{}, apperr.NotFound("message", nil)
}

func (s *memStore) ListForListing(_ context.Context, listingID string, limit, offset int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Message{}
	for _, m := range s.msgs {
		if m.ListingID == listingID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) ListForAccount(_ context.Context, accountID string, limit, offset int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Message{}
	for _, m := range s.msgs {
		if m.SenderID == accountID || m.RecipientID == accountID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) MarkRead(_ context.Context, id, accountID string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.msgs {
		if m.ID != id {
			continue
		}
		if m.RecipientID != accountID {
			return Message{}, apperr.Forbidden("only the recipient can mark a message read")
		}
		if m.ReadAt == nil {
			now := time.Now()
			s.msgs[i].ReadAt = &now
		}
		return s.msgs[i], nil
	}
	return Message{}, apperr.NotFound("message", nil)
}

func (s *memStore) UnreadCount(_ context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		if m.RecipientID == accountID && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

type memListings map[string]marketplace.Listing

func (l memListings) GetByID(_ context.Context, id string) (marketplace.Listing, error) {
	listing, ok := l[id]
	if !ok {
		return marketplace.Listing{}, apperr.NotFound("listing", nil)
	}
	return listing, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	seen []Message
}

func (n *recordingNotifier) MessageCreated(_ context.Context, m Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, m)
	return nil
}

func newService() (*Service, *memStore, *Hub, *recordingNotifier) {
	store := &memStore{}
	hub := NewHub(256)
	notifier := &recordingNotifier{}
	listings := memListings{"listing-1": {ID: "listing-1", OwnerID: owner.ID, Title: "Desk"}}
	return NewService(store, listings, hub, notifier), store, hub, notifier
}

func ptr(s string) *string { return &s }

// drain reads every frame already queued for c.
func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestRecipientPolicy(t *testing.T) {
	ctx := context.Background()
	svc, _, _, notifier := newService()

	m, err := svc.Send(ctx, alice, SendInput{ListingID: "listing-1", Content: "  Is it still available?  "})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, m.RecipientID)
	assert.Equal(t, "Is it still available?", m.Content)

	_, err = svc.Send(ctx, alice, SendInput{ListingID: "listing-1", Content: "hi", RecipientID: ptr("bob")})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = svc.Send(ctx, owner, SendInput{ListingID: "listing-1", Content: "Yes"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "owner must say who they are answering")

	reply, err := svc.Send(ctx, owner, SendInput{ListingID: "listing-1", Content: "Yes", ParentID: &m.ID})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, reply.RecipientID)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, m.ID, *reply.ParentID)

	direct, err := svc.Send(ctx, owner, SendInput{ListingID: "listing-1", Content: "Still here", RecipientID: ptr("bob")})
	require.NoError(t, err)
	assert.Equal(t, "bob", direct.RecipientID)

	_, err = svc.Send(ctx, owner, SendInput{ListingID: "listing-1", Content: "note to self", RecipientID: ptr(owner.ID)})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = svc.Send(ctx, alice, SendInput{ListingID: "listing-1", Content: "   "})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = svc.Send(ctx, alice, SendInput{ListingID: "missing", Content: "hello"})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	assert.Len(t, notifier.seen, 3)
}

func TestSendBroadcastsAndPushes(t *testing.T) {
	ctx := context.Background()
	svc, _, hub, _ := newService()
	room := hub.JoinListing("listing-1", nil)
	inbox := hub.JoinUser(owner.ID, nil)

	m, err := svc.Send(ctx, alice, SendInput{ListingID: "listing-1", Content: "hello"})
	require.NoError(t, err)

	frames := drain(room)
	require.Len(t, frames, 1)
	var out map[string]any
	require.NoError(t, json.Unmarshal(frames[0], &out))
	assert.Equal(t, "hello", out["message"])
	assert.Equal(t, alice.Email, out["sender"])
	assert.Equal(t, "listing-1", out["listing_id"])
	assert.Contains(t, out, "timestamp")

	pushed := drain(inbox)
	require.Len(t, pushed, 1)
	assert.Contains(t, string(pushed[0]), `"type":"message_new"`)
	assert.Contains(t, string(pushed[0]), m.ID)
}

func TestBroadcastOrderMatchesHistory(t *testing.T) {
	ctx := context.Background()
	svc, store, hub, _ := newService()
	room := hub.JoinListing("listing-1", nil)

	senders := []identity.Account{alice, bob, {ID: "carol"}, {ID: "dave"}}
	const perSender = 25
	var wg sync.WaitGroup
	for _, s := range senders {
		wg.Add(1)
		go func(acc identity.Account) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := svc.Send(ctx, acc, SendInput{ListingID: "listing-1", Content: fmt.Sprintf("%s-%d", acc.ID, i)})
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	history, err := store.ListForListing(ctx, "listing-1", 1000, 0)
	require.NoError(t, err)
	frames := drain(room)
	require.Len(t, frames, len(senders)*perSender)
	require.Len(t, history, len(frames))

	for i, b := range frames {
		var f OutboundFrame
		require.NoError(t, json.Unmarshal(b, &f))
		assert.Equal(t, history[i].ID, f.ID, "frame %d", i)
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(2)
	slow := hub.JoinListing("listing-1", nil)
	fast := hub.JoinListing("listing-1", nil)

	for i := 0; i < 3; i++ {
		hub.BroadcastListing("listing-1", OutboundFrame{Message: fmt.Sprint(i)})
		if i < 2 {
			drain(fast)
		}
	}
	drain(fast)

	assert.Equal(t, 1, hub.Subscribers("listing-1"))
	assert.Len(t, drain(slow), 2, "queued frames stay readable, then the queue is closed")
	_, open := <-slow.send
	assert.False(t, open)

	hub.Leave(slow)
	hub.Leave(fast)
	assert.Zero(t, hub.Subscribers("listing-1"))
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	svc, _, hub, _ := newService()
	m, err := svc.Send(ctx, alice, SendInput{ListingID: "listing-1", Content: "ping"})
	require.NoError(t, err)

	n, err := svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = svc.MarkRead(ctx, alice, m.ID)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	senderInbox := hub.JoinUser(alice.ID, nil)
	read, err := svc.MarkRead(ctx, owner, m.ID)
	require.NoError(t, err)
	assert.NotNil(t, read.ReadAt)
	assert.Len(t, drain(senderInbox), 1)

	n, err = svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func serve(h echo.HandlerFunc, method, body string, acc *identity.Account, name, value string) *httptest.ResponseRecorder {
	e := echo.New()
	api.Install(e)
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if name != "" {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}
	if acc != nil {
		middleware.SetAccount(c, *acc)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestMessageHandlers(t *testing.T) {
	svc, _, _, _ := newService()
	h := NewHandler(svc)

	rec := serve(h.SendMessage, http.MethodPost, `{"listing_id":"listing-1","content":"hi"}`, nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h.SendMessage, http.MethodPost, `{"listing_id":"listing-1"}`, &alice, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h.SendMessage, http.MethodPost, `{"listing_id":"listing-1","content":"hi"}`, &alice, "", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(h.ListListingMessages, http.MethodGet, "", &bob, "id", "listing-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Messages, 1)

	rec = serve(h.ListListingMessages, http.MethodGet, "", &bob, "id", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h.UnreadCount, http.MethodGet, "", &owner, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unread":1}`, rec.Body.String())
}

func TestListingSocket(t *testing.T) {
	svc, store, _, _ := newService()
	h := NewHandler(svc)

	e := echo.New()
	api.Install(e)
	e.GET("/ws/messages/:listing_id", func(c echo.Context) error {
		middleware.SetAccount(c, alice)
		return h.ListingSocket(c)
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/messages/listing-1"
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()

	require.Eventually(t, func() bool { return svc.hub.Subscribers("listing-1") == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, first.WriteJSON(inboundFrame{Message: "over the wire"}))

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var f OutboundFrame
		require.NoError(t, conn.ReadJSON(&f))
		assert.Equal(t, "over the wire", f.Message)
		assert.Equal(t, alice.Email, f.Sender)
		assert.Equal(t, "listing-1", f.ListingID)
	}

	history, _ := store.ListForListing(context.Background(), "listing-1", 10, 0)
	require.Len(t, history, 1)
	assert.Equal(t, owner.ID, history[0].RecipientID)
}
