package dhandha

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// setupTestSession creates a new SocketSession with a mocked network
// connection (net.Pipe). It returns the session, the client-side of
// the connection, and the messages channel, with cleanup registered
// via t.Cleanup.
func setupTestSession(t *testing.T, identity string) (*SocketSession, net.Conn, chan SocketMessage) {
	serverConn, clientConn := net.Pipe()
	messages := make(chan SocketMessage, 10) // Buffered channel to avoid blocking in tests
	session := NewSocketSession(serverConn, identity, messages)
	session.Start()

	t.Cleanup(func() {
		session.Close()
		_ = clientConn.Close()
	})

	return session, clientConn, messages
}

func TestNewSocketSession(t *testing.T) {
	t.Run("should create a new session with all fields initialized", func(t *testing.T) {
		serverConn, clientConn := net.Pipe()
		defer func() {
			_ = clientConn.Close()
		}()

		messages := make(chan SocketMessage, 1)

		session := NewSocketSession(serverConn, "user-A", messages)

		if session.Identity() != "user-A" {
			t.Errorf("Expected identity to be user-A, got %v", session.Identity())
		}
		if session.ID() == "" {
			t.Error("Expected a non-empty session id")
		}
		if session.conn == nil {
			t.Error("Expected conn to be non-nil")
		}
		if session.send == nil {
			t.Error("Expected send channel to be non-nil")
		}
		if session.Messages == nil {
			t.Error("Expected Messages channel to be non-nil")
		}

		// Properly close the session to ensure goroutines exit and avoid test leaks.
		session.Close()
	})
	t.Run("should not read frames before Start", func(t *testing.T) {
		serverConn, clientConn := net.Pipe()
		messages := make(chan SocketMessage, 10)
		session := NewSocketSession(serverConn, "user-A", messages)
		t.Cleanup(func() {
			session.Close()
			_ = clientConn.Close()
		})

		frame := []byte(`{"event":"join_task_chat","data":"42"}`)
		written := make(chan error, 1)
		go func() {
			written <- wsutil.WriteClientText(clientConn, frame)
		}()

		select {
		case msg := <-messages:
			t.Fatalf("expected no dispatch before Start, got %v", msg.Type)
		case <-time.After(50 * time.Millisecond):
		}

		// Registration done; the frame goes through once the loops run.
		session.Start()
		if err := <-written; err != nil {
			t.Fatalf("Failed to write client message: %v", err)
		}
		select {
		case msg := <-messages:
			if msg.Type != Message {
				t.Fatalf("expected Message type, got %v", msg.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for forwarded message")
		}
	})
	t.Run("should assign distinct ids to distinct sessions", func(t *testing.T) {
		s1, _, _ := setupTestSession(t, "A")
		s2, _, _ := setupTestSession(t, "A")
		if s1.ID() == s2.ID() {
			t.Fatal("expected distinct session ids")
		}
	})
}

func TestSocketSession_ReadLoop(t *testing.T) {
	t.Run("should read a frame and forward it to the messages channel", func(t *testing.T) {
		session, clientConn, messages := setupTestSession(t, "user-A")

		frame := []byte(`{"event":"join_task_chat","data":"42"}`)
		if err := wsutil.WriteClientText(clientConn, frame); err != nil {
			t.Fatalf("Failed to write client message: %v", err)
		}

		select {
		case msg := <-messages:
			if msg.Type != Message {
				t.Fatalf("expected Message type, got %v", msg.Type)
			}
			if msg.Session.ID() != session.ID() {
				t.Fatal("expected the message to carry the originating session")
			}
			if !bytes.Equal(msg.Message, frame) {
				t.Fatalf("expected payload %s, got %s", frame, msg.Message)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for forwarded message")
		}
	})
	t.Run("should emit a disconnect message when the transport closes", func(t *testing.T) {
		session, clientConn, messages := setupTestSession(t, "user-A")

		if err := clientConn.Close(); err != nil {
			t.Fatal(err)
		}

		select {
		case msg := <-messages:
			if msg.Type != Disconnect {
				t.Fatalf("expected Disconnect type, got %v", msg.Type)
			}
			if msg.Session.ID() != session.ID() {
				t.Fatal("expected the disconnect to carry the originating session")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for disconnect message")
		}
	})
}

func TestSocketSession_Close(t *testing.T) {
	t.Run("should return promptly when the messages channel is full", func(t *testing.T) {
		serverConn, clientConn := net.Pipe()
		messages := make(chan SocketMessage, 1)
		messages <- SocketMessage{} // nobody is consuming
		session := NewSocketSession(serverConn, "user-A", messages)
		session.Start()

		_ = clientConn.Close()

		done := make(chan struct{})
		go func() {
			session.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Close blocked on an undeliverable disconnect message")
		}
	})
}

func TestSocketSession_Send(t *testing.T) {
	t.Run("should write a text frame readable by the client", func(t *testing.T) {
		session, clientConn, _ := setupTestSession(t, "user-A")

		payload := []byte(`{"event":"new_message","data":{"taskId":"42"}}`)
		session.Send(payload)

		got, op, err := wsutil.ReadServerData(clientConn)
		if err != nil {
			t.Fatalf("Failed to read server frame: %v", err)
		}
		if op != ws.OpText {
			t.Fatalf("expected a text frame, got %v", op)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("expected payload %s, got %s", payload, got)
		}
	})
	t.Run("should drop rather than block when the client stops reading", func(t *testing.T) {
		session, _, _ := setupTestSession(t, "user-A")

		// The client never reads, so the write loop stalls on the first
		// frame and the buffer fills behind it.
		done := make(chan struct{})
		go func() {
			for i := 0; i < cap(session.send)+16; i++ {
				session.Send([]byte("backlog"))
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Send blocked on a full send buffer")
		}
	})
	t.Run("should not block after close", func(t *testing.T) {
		session, clientConn, _ := setupTestSession(t, "user-A")
		session.Close()
		_ = clientConn.Close()

		done := make(chan struct{})
		go func() {
			session.Send([]byte("late"))
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Send blocked on a closed session")
		}
	})
}
