package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
)

// ownTopics lets a caller watch only topics ending in their own user id.
type ownTopics struct{}

func (ownTopics) AuthorizeTopic(_ context.Context, caller identity.Identity, topic string) error {
	if strings.HasSuffix(topic, ":"+caller.UserID) {
		return nil
	}
	return apperr.Forbidden
}

func actorTopics(e *models.Event) []string {
	return []string{"actor:" + e.ActorID}
}

func newTestHub(t *testing.T) (*Hub, broker.Broker, *httptest.Server) {
	t.Helper()
	log := zap.NewNop().Sugar()
	b := broker.NewGoChannel(log)
	h := NewHub(b, ownTopics{}, actorTopics, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, h.Start(ctx))

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(ctx, conn, identity.Identity{UserID: r.URL.Query().Get("user"), Role: identity.RoleCustomer})
	}))
	t.Cleanup(srv.Close)
	return h, b, srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := read(t, conn)
	require.Equal(t, MessageConnected, msg.Type)
	return conn
}

type received struct {
	Type   MessageType            `json:"type"`
	Topics []string               `json:"topics"`
	Data   map[string]interface{} `json:"data"`
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_DeliversSubscribedTopics(t *testing.T) {
	_, b, srv := newTestHub(t)
	conn := dial(t, srv, "u1")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageSubscribe, Topics: []string{"actor:u1", "actor:u2"}}))

	denied := read(t, conn)
	assert.Equal(t, MessageError, denied.Type)
	assert.Equal(t, "actor:u2", denied.Data["topic"])
	assert.Equal(t, "forbidden", denied.Data["reason"])

	ack := read(t, conn)
	require.Equal(t, MessageSubscribed, ack.Type)
	assert.Equal(t, []string{"actor:u1"}, ack.Topics)

	require.NoError(t, b.Publish(context.Background(), &models.Event{ID: "e2", ActorID: "u2"}))
	require.NoError(t, b.Publish(context.Background(), &models.Event{ID: "e1", ActorID: "u1"}))

	msg := read(t, conn)
	assert.Equal(t, MessageEvent, msg.Type)
	assert.Equal(t, []string{"actor:u1"}, msg.Topics)
	assert.Equal(t, "e1", msg.Data["id"])
}

func TestHub_UnsubscribeAndPing(t *testing.T) {
	_, b, srv := newTestHub(t)
	conn := dial(t, srv, "u1")

	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageSubscribe, Topics: []string{"actor:u1"}}))
	require.Equal(t, MessageSubscribed, read(t, conn).Type)
	require.NoError(t, conn.WriteJSON(Inbound{Type: MessageUnsubscribe, Topics: []string{"actor:u1"}}))
	require.Equal(t, MessageUnsubscribed, read(t, conn).Type)

	require.NoError(t, b.Publish(context.Background(), &models.Event{ID: "e1", ActorID: "u1"}))
	require.NoError(t, conn.WriteJSON(Inbound{Type: MessagePing}))
	assert.Equal(t, MessagePong, read(t, conn).Type)
}

func TestHub_RejectsMalformedMessages(t *testing.T) {
	_, _, srv := newTestHub(t)
	conn := dial(t, srv, "u1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg := read(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, "invalid_message", msg.Data["reason"])

	require.NoError(t, conn.WriteJSON(Inbound{Type: "shout"}))
	msg = read(t, conn)
	assert.Equal(t, "unknown_type", msg.Data["reason"])
}

func TestHub_TracksClients(t *testing.T) {
	h, _, srv := newTestHub(t)
	conn := dial(t, srv, "u1")
	assert.Equal(t, 1, h.Clients())

	conn.Close()
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
