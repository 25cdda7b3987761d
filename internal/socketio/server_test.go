package socketio

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
	"roomchat/internal/chat"
	"roomchat/internal/hub"
	"roomchat/internal/metrics"
	"roomchat/internal/moderation"
	"roomchat/internal/store"
)

func newTestServer(t *testing.T) (string, *store.Directory) {
	t.Helper()
	log := zaptest.NewLogger(t)
	m := metrics.New()
	h := hub.New()
	dir := store.New()
	filter, err := moderation.NewFilter(moderation.DefaultWords)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	relay := chat.NewRelay(chat.Deps{Directory: dir, Emitter: h, Filter: filter, Logger: log, Metrics: m})
	srv := httptest.NewServer(NewServer(Deps{Relay: relay, Hub: h, Logger: log, Metrics: m}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?EIO=4&transport=websocket", dir
}

func waitForPrefix(t *testing.T, c *websocket.Conn, prefix string, timeout time.Duration) string {
	t.Helper()
	// A timed-out read leaves the connection unusable, so use one deadline
	// for the whole wait.
	_ = c.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				t.Fatalf("timeout waiting for %q", prefix)
			}
			t.Fatalf("ReadMessage: %v", err)
		}
		msg := string(data)
		if msg == "2" {
			_ = c.WriteMessage(websocket.TextMessage, []byte("3"))
			continue
		}
		if strings.HasPrefix(msg, prefix) {
			_ = c.SetReadDeadline(time.Time{})
			return msg
		}
	}
}

func dialAndConnect(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	_ = waitForPrefix(t, conn, "0{", 2*time.Second)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("40")); err != nil {
		t.Fatalf("WriteMessage(connect): %v", err)
	}
	_ = waitForPrefix(t, conn, "40{", 2*time.Second)
	return conn
}

func emit(t *testing.T, c *websocket.Conn, id int, event string, arg any) {
	t.Helper()
	data, err := json.Marshal([]any{event, arg})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := c.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("42%d%s", id, data))); err != nil {
		t.Fatalf("WriteMessage(%s): %v", event, err)
	}
}

func waitForAck(t *testing.T, c *websocket.Conn, id int) []any {
	t.Helper()
	prefix := fmt.Sprintf("43%d[", id)
	raw := waitForPrefix(t, c, prefix, 2*time.Second)
	var args []any
	if err := json.Unmarshal([]byte(raw[len(prefix)-1:]), &args); err != nil {
		t.Fatalf("unmarshal ack: %v (%s)", err, raw)
	}
	return args
}

// waitForEvent returns the first argument of the next event with the given name.
func waitForEvent(t *testing.T, c *websocket.Conn, event string) map[string]any {
	t.Helper()
	raw := waitForPrefix(t, c, `42["`+event+`"`, 2*time.Second)
	var arr []any
	if err := json.Unmarshal([]byte(raw[2:]), &arr); err != nil {
		t.Fatalf("unmarshal event: %v (%s)", err, raw)
	}
	if len(arr) < 2 {
		t.Fatalf("event without payload: %s", raw)
	}
	body, ok := arr[1].(map[string]any)
	if !ok {
		t.Fatalf("unexpected payload type %T", arr[1])
	}
	return body
}

func usernames(t *testing.T, roomData map[string]any) []string {
	t.Helper()
	users, ok := roomData["users"].([]any)
	if !ok {
		t.Fatalf("unexpected users: %v", roomData["users"])
	}
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.(map[string]any)["username"].(string))
	}
	return out
}

func TestSocketIOHandshake(t *testing.T) {
	wsURL, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	open := waitForPrefix(t, conn, "0{", 2*time.Second)
	if !strings.Contains(open, `"pingInterval":25000`) || !strings.Contains(open, `"upgrades":[]`) {
		t.Fatalf("unexpected open packet: %s", open)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`40{"token":"ignored"}`)); err != nil {
		t.Fatalf("WriteMessage(connect): %v", err)
	}
	connected := waitForPrefix(t, conn, "40", 2*time.Second)
	if !strings.HasPrefix(connected, `40{"sid":"`) {
		t.Fatalf("unexpected connect packet: %s", connected)
	}
}

func TestSocketIORejectsUnknownNamespace(t *testing.T) {
	wsURL, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = waitForPrefix(t, conn, "0{", 2*time.Second)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("40/admin,")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	msg := waitForPrefix(t, conn, "44", 2*time.Second)
	if msg != `44/admin,{"message":"Invalid namespace"}` {
		t.Fatalf("unexpected connect error: %s", msg)
	}
}

func TestSocketIORejectsPollingTransport(t *testing.T) {
	wsURL, _ := newTestServer(t)
	httpURL := "http" + strings.TrimPrefix(strings.Replace(wsURL, "transport=websocket", "transport=polling", 1), "ws")

	resp, err := http.Get(httpURL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSocketIOJoinMessageLeave(t *testing.T) {
	wsURL, dir := newTestServer(t)

	alice := dialAndConnect(t, wsURL)
	emit(t, alice, 1, "join", map[string]any{"username": "Alice", "room": "Lobby"})
	welcome := waitForEvent(t, alice, "message")
	if welcome["username"] != "Admin" || welcome["text"] != "Welcome!" {
		t.Fatalf("unexpected welcome: %v", welcome)
	}
	if got := usernames(t, waitForEvent(t, alice, "roomData")); strings.Join(got, ",") != "Alice" {
		t.Fatalf("unexpected roster: %v", got)
	}
	if args := waitForAck(t, alice, 1); len(args) != 0 {
		t.Fatalf("expected empty ack, got %v", args)
	}

	bob := dialAndConnect(t, wsURL)
	emit(t, bob, 1, "join", map[string]any{"username": "Bob", "room": "lobby"})
	_ = waitForAck(t, bob, 1)

	joined := waitForEvent(t, alice, "message")
	if joined["text"] != "Bob has joined!" {
		t.Fatalf("unexpected join notice: %v", joined)
	}
	if got := usernames(t, waitForEvent(t, alice, "roomData")); strings.Join(got, ",") != "Alice,Bob" {
		t.Fatalf("unexpected roster: %v", got)
	}

	emit(t, bob, 2, "sendMessage", "hello")
	for _, c := range []*websocket.Conn{alice, bob} {
		msg := waitForEvent(t, c, "message")
		if msg["username"] == "Admin" {
			msg = waitForEvent(t, c, "message")
		}
		if msg["username"] != "Bob" || msg["text"] != "hello" {
			t.Fatalf("unexpected message: %v", msg)
		}
		if _, ok := msg["createdAt"].(float64); !ok {
			t.Fatalf("missing createdAt: %v", msg)
		}
	}
	if args := waitForAck(t, bob, 2); len(args) != 0 {
		t.Fatalf("expected empty ack, got %v", args)
	}

	emit(t, bob, 3, "sendLocation", map[string]any{"latitude": 31.2304, "longitude": 121.4737})
	loc := waitForEvent(t, alice, "locationMessage")
	if loc["url"] != "https://www.google.com/maps?q=31.2304,121.4737" || loc["username"] != "Bob" {
		t.Fatalf("unexpected location: %v", loc)
	}

	_ = bob.WriteMessage(websocket.TextMessage, []byte("41"))
	left := waitForEvent(t, alice, "message")
	if left["text"] != "Bob has left!" {
		t.Fatalf("unexpected leave notice: %v", left)
	}
	if got := usernames(t, waitForEvent(t, alice, "roomData")); strings.Join(got, ",") != "Alice" {
		t.Fatalf("unexpected roster: %v", got)
	}
	if n := len(dir.UsersInRoom("lobby")); n != 1 {
		t.Fatalf("expected 1 user left, got %d", n)
	}
}

func TestSocketIOAckErrors(t *testing.T) {
	wsURL, _ := newTestServer(t)

	alice := dialAndConnect(t, wsURL)
	emit(t, alice, 1, "sendMessage", "hello")
	if args := waitForAck(t, alice, 1); len(args) != 1 || args[0] != "You must join a room first" {
		t.Fatalf("unexpected ack: %v", args)
	}

	emit(t, alice, 2, "join", map[string]any{"username": " ", "room": "Lobby"})
	if args := waitForAck(t, alice, 2); len(args) != 1 || args[0] != "Username and room are required" {
		t.Fatalf("unexpected ack: %v", args)
	}

	emit(t, alice, 3, "join", map[string]any{"username": "Alice", "room": "Lobby"})
	_ = waitForAck(t, alice, 3)

	other := dialAndConnect(t, wsURL)
	emit(t, other, 1, "join", map[string]any{"username": "alice", "room": "LOBBY"})
	if args := waitForAck(t, other, 1); len(args) != 1 || args[0] != "Username is in use" {
		t.Fatalf("unexpected ack: %v", args)
	}

	emit(t, alice, 4, "sendMessage", "oh shit")
	if args := waitForAck(t, alice, 4); len(args) != 1 || args[0] != "Profanity is not allowed!" {
		t.Fatalf("unexpected ack: %v", args)
	}

	emit(t, alice, 5, "sendMessage", "set it to NULL")
	if args := waitForAck(t, alice, 5); len(args) != 1 || args[0] != "NULL is not allowed!" {
		t.Fatalf("unexpected ack: %v", args)
	}

	emit(t, alice, 6, "sendLocation", map[string]any{"latitude": "north"})
	if args := waitForAck(t, alice, 6); len(args) != 1 || args[0] != "Location is invalid" {
		t.Fatalf("unexpected ack: %v", args)
	}
}
