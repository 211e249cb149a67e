package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	syncpkg "github.com/simplebaby/babysync/internal/sync"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer("127.0.0.1:0", log.New(io.Discard, "", 0))
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	// Give the server a moment to begin serving.
	time.Sleep(100 * time.Millisecond)

	return server
}

func dialTestClient(t *testing.T, server *Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	return conn
}

func TestServerStartStop(t *testing.T) {
	server := NewServer("127.0.0.1:0", log.New(io.Discard, "", 0))
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	if server.GetAddr() == "127.0.0.1:0" {
		t.Error("GetAddr should report the bound port after Start")
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("unexpected health status %q", body.Status)
	}
}

func TestClientConnectDisconnect(t *testing.T) {
	server := startTestServer(t)

	conn := dialTestClient(t, server)

	time.Sleep(100 * time.Millisecond)
	if n := server.ClientCount(); n != 1 {
		t.Errorf("expected 1 connected client, got %d", n)
	}

	conn.Close(websocket.StatusNormalClosure, "")

	time.Sleep(100 * time.Millisecond)
	if n := server.ClientCount(); n != 0 {
		t.Errorf("expected 0 clients after disconnect, got %d", n)
	}
}

func TestPublishReachesClient(t *testing.T) {
	server := startTestServer(t)

	conn := dialTestClient(t, server)
	defer conn.Close(websocket.StatusNormalClosure, "")

	time.Sleep(100 * time.Millisecond)

	report := &syncpkg.Report{
		UploadSuccess:   true,
		DownloadSuccess: true,
		Upload:          syncpkg.UploadStats{Succeeded: 2, TotalPending: 2},
	}
	server.Publish("diaper", report)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	if msg.Type != "sync_report" {
		t.Errorf("unexpected message type %q", msg.Type)
	}
	if msg.Table != "diaper" {
		t.Errorf("unexpected table %q", msg.Table)
	}

	var got syncpkg.Report
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("failed to unmarshal report payload: %v", err)
	}
	if got.Upload.Succeeded != 2 {
		t.Errorf("report payload lost stats: %+v", got)
	}
}

func TestPublishToMultipleClients(t *testing.T) {
	server := startTestServer(t)

	conn1 := dialTestClient(t, server)
	defer conn1.Close(websocket.StatusNormalClosure, "")
	conn2 := dialTestClient(t, server)
	defer conn2.Close(websocket.StatusNormalClosure, "")

	time.Sleep(100 * time.Millisecond)
	if n := server.ClientCount(); n != 2 {
		t.Fatalf("expected 2 connected clients, got %d", n)
	}

	server.Publish("sleep", &syncpkg.Report{UploadSuccess: true, DownloadSuccess: true})

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, data, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("client %d failed to read broadcast: %v", i+1, err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("client %d received malformed message: %v", i+1, err)
		}
		if msg.Table != "sleep" {
			t.Errorf("client %d: unexpected table %q", i+1, msg.Table)
		}
	}
}
