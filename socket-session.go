package dhandha

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

type SocketMessageType int

const (
	Disconnect SocketMessageType = iota - 1
	_
	Message
)

type SocketMessage struct {
	Session Sessioner
	Type    SocketMessageType
	Message []byte
}

// SocketSession is one live client connection. Its identity is fixed
// at handshake time and never changes afterwards.
type SocketSession struct {
	// The key bit - the web-socket connection
	conn net.Conn
	// The reference bits
	id       string
	identity string

	// The message bits
	send     chan []byte
	Messages chan SocketMessage

	// The concurrency bits
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSocketSession(conn net.Conn, identity string, messages chan SocketMessage) *SocketSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &SocketSession{
		conn:     conn,
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, 255),
		Messages: messages,
		ctx:      ctx,
		cancel:   cancel,
		wg:       sync.WaitGroup{},
	}
	return s
}

// Start launches the read and write loops. Callers register the
// session everywhere it must be reachable before calling Start, so no
// inbound frame can race ahead of those memberships.
func (s *SocketSession) Start() {
	s.wg.Add(1)
	go func() {
		s.ReadLoop()
		s.wg.Done()
	}()
	s.wg.Add(1)
	go func() {
		s.WriteLoop()
		s.wg.Done()
	}()
}

func (s *SocketSession) ID() string {
	return s.id
}

func (s *SocketSession) Identity() string {
	return s.identity
}

func (s *SocketSession) Close() {
	s.cancel()
	s.conn.Close()
	s.wg.Wait()
}

func (s *SocketSession) ReadLoop() {
	sl := slog.With("func", "socket.ReadLoop", "user", s.identity)
	sl.Debug("starting", "session", s.id)
	defer func() {
		s.conn.Close()
		s.cancel()
		sl.Debug("ReadLoop exited", "session", s.id)
	}()
	for {
		msg, _, err := wsutil.ReadClientData(s.conn)
		if err != nil {
			var er wsutil.ClosedError
			if errors.As(err, &er) {
				sl.Debug("ReadLoop closing", "session", s.id, "reason", er.Reason)
			} else {
				sl.Error("ReadLoop error", "session", s.id, "err", err)
			}
			// send the disconnect message for ANY error that terminates
			// the loop, unless the session itself is being torn down, so
			// Close never waits on a hub that stopped consuming.
			select {
			case s.Messages <- s.disconnectMessage():
			case <-s.ctx.Done():
			}
			return
		}
		sl.Debug("ReadLoop message", "session", s.id, "message", string(msg))

		s.Messages <- SocketMessage{
			Session: s,
			Type:    Message,
			Message: msg,
		}
	}
}

func (s *SocketSession) WriteLoop() {
	sl := slog.With("func", "socket.WriteLoop", "user", s.identity)
	sl.Debug("starting", "session", s.id)
	ticker := time.NewTicker(time.Second * 10)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.cancel()
		sl.Debug("WriteLoop exited", "session", s.id)
	}()
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			wsutil.WriteServerText(s.conn, msg)
		case <-ticker.C:
			sl.Log(context.Background(), slog.Level(-8), "ping", "session", s.id)
			wsutil.WriteServerMessage(s.conn, ws.OpPing, []byte("ping"))
		case <-s.ctx.Done():
			// EXIT AND CLOSE SOCKET SENT FROM ABOVE
			return
		}
	}
}

func (s *SocketSession) disconnectMessage() SocketMessage {
	return SocketMessage{
		Session: s,
		Type:    Disconnect,
		Message: nil,
	}
}

// Send never blocks the caller: fan-out runs on the hub's dispatch
// goroutine, so a slow client must not be able to stall every room.
func (s *SocketSession) Send(message []byte) {
	select {
	case s.send <- message:
	case <-s.ctx.Done():
		// session is tearing down; the write is discarded
	default:
		// the client stopped reading and its buffer is full
		slog.Debug("send buffer full, dropping message", "session", s.id, "user", s.identity)
	}
}
