package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscribeEcho upgrades the connection and answers every logsSubscribe with
// the given subscription ID, then forwards frames from notifs.
func subscribeEcho(t *testing.T, subID int64, notifs <-chan string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Method != "logsSubscribe" {
				continue
			}
			resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": subID}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
			go func() {
				for msg := range notifs {
					if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
						return
					}
				}
			}()
		}
	}
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWS_SubscribeLogs(t *testing.T) {
	notifs := make(chan string, 1)
	server := httptest.NewServer(subscribeEcho(t, 42, notifs))
	defer server.Close()

	client, err := DialWS(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"Authority1"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	notif := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "logsNotification",
		"params": map[string]interface{}{
			"subscription": 42,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": 555},
				"value": map[string]interface{}{
					"signature": "Sig1",
					"logs":      []string{"Program metaq invoke [1]"},
					"err":       nil,
				},
			},
		},
	}
	raw, _ := json.Marshal(notif)
	notifs <- string(raw)

	select {
	case got := <-ch:
		if got.Signature != "Sig1" {
			t.Errorf("Signature = %q, want Sig1", got.Signature)
		}
		if got.Slot != 555 {
			t.Errorf("Slot = %d, want 555", got.Slot)
		}
		if got.Err != nil {
			t.Errorf("Err = %v, want nil", got.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestWS_UnknownSubscriptionIgnored(t *testing.T) {
	notifs := make(chan string, 1)
	server := httptest.NewServer(subscribeEcho(t, 7, notifs))
	defer server.Close()

	client, err := DialWS(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"Authority1"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	// Notification for a subscription nobody owns.
	notifs <- `{"jsonrpc":"2.0","method":"logsNotification","params":{"subscription":99,"result":{"value":{"signature":"SigX","logs":[],"err":null}}}}`

	select {
	case got := <-ch:
		t.Errorf("unexpected delivery: %+v", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWS_CloseClosesSubscriptions(t *testing.T) {
	notifs := make(chan string)
	server := httptest.NewServer(subscribeEcho(t, 1, notifs))
	defer server.Close()

	client, err := DialWS(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"A"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel not closed")
	}

	// Double close is a no-op.
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWS_ReconnectResubscribes(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subID := int64(conns.Add(1))
		if err := conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": subID}); err != nil {
			return
		}
		if subID == 1 {
			// Drop the first connection right after confirming.
			return
		}

		// Repeat the notification so delivery cannot race the resubscription.
		notif := fmt.Sprintf(`{"jsonrpc":"2.0","method":"logsNotification","params":{"subscription":%d,"result":{"context":{"slot":777},"value":{"signature":"SigAfterReconnect","logs":["Program metaq invoke [1]"],"err":null}}}}`, subID)
		for {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(notif)); err != nil {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 100 * time.Millisecond

	client, err := DialWS(context.Background(), wsURL(server), &cfg)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"A"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "SigAfterReconnect" {
			t.Errorf("signature = %q, want %q", notif.Signature, "SigAfterReconnect")
		}
		if notif.Slot != 777 {
			t.Errorf("slot = %d, want 777", notif.Slot)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no notification after reconnect; subscription was not rebound")
	}

	if conns.Load() < 2 {
		t.Errorf("connections = %d, want at least 2", conns.Load())
	}
}
