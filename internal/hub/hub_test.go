package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := New(logging.NewNop())
	h.Authenticate = func(token string) string {
		// Test tokens are "ok:<recipient>".
		if rest, found := strings.CutPrefix(token, "ok:"); found {
			return rest
		}
		return ""
	}
	r := gin.New()
	r.GET("/ws", h.Attach)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return h, srv
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAttachRejectsBadToken(t *testing.T) {
	_, srv := newTestHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "bogus"), nil)
	if err == nil {
		t.Fatal("dial with bad token succeeded")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSendToRecipient(t *testing.T) {
	h, srv := newTestHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "ok:user-1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, "attach", func() bool { return h.Connected("user-1") })

	payload := models.NotificationPayload{Title: "Frost warning", Priority: "critical"}
	if n := h.SendToRecipient("user-1", payload); n != 1 {
		t.Fatalf("SendToRecipient wrote to %d connections, want 1", n)
	}
	if n := h.SendToRecipient("user-2", payload); n != 0 {
		t.Errorf("SendToRecipient for stranger wrote to %d connections, want 0", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame struct {
		Type  string `json:"type"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Type != models.MsgNotification || frame.Title != "Frost warning" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestBroadcastFarmHonorsSubscriptions(t *testing.T) {
	h, srv := newTestHub(t)

	sub, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "ok:farmer"), nil)
	if err != nil {
		t.Fatalf("dial subscriber: %v", err)
	}
	defer sub.Close()
	other, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "ok:bystander"), nil)
	if err != nil {
		t.Fatalf("dial bystander: %v", err)
	}
	defer other.Close()
	waitFor(t, "attach", func() bool { return h.Connected("farmer") && h.Connected("bystander") })

	ctl, _ := json.Marshal(models.ControlMessage{Action: models.ActionSubscribe, FarmID: "farm-1"})
	if err := sub.WriteMessage(websocket.TextMessage, ctl); err != nil {
		t.Fatalf("write control: %v", err)
	}

	// The control frame is handled asynchronously; broadcast until the
	// subscriber sees it.
	payload := models.NotificationPayload{Title: "Hail incoming"}
	sub.SetReadDeadline(time.Now().Add(2 * time.Second))
	received := make(chan []byte, 1)
	go func() {
		if _, data, err := sub.ReadMessage(); err == nil {
			received <- data
		}
	}()
	var data []byte
	waitFor(t, "broadcast delivery", func() bool {
		h.BroadcastFarm("farm-1", payload)
		select {
		case data = <-received:
			return true
		default:
			return false
		}
	})
	var frame struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Title != "Hail incoming" {
		t.Errorf("title = %q", frame.Title)
	}

	// The bystander never subscribed to the farm and gets nothing.
	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("bystander received a farm broadcast")
	}
}

func TestDisconnectDetaches(t *testing.T) {
	h, srv := newTestHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "ok:user-1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, "attach", func() bool { return h.Connected("user-1") })

	conn.Close()
	waitFor(t, "detach", func() bool { return !h.Connected("user-1") })
}
