package dhandha

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type handlerFunc func(origin Sessioner, data json.RawMessage) error

// Hub owns one registry and dispatches every inbound socket event.
// Events are consumed from a single channel by a single goroutine, so
// events from one connection are handled in arrival order and no
// handler overlaps another.
type Hub struct {
	registry *Registry
	messages chan SocketMessage
	handlers map[string]handlerFunc
	now      func() time.Time

	// Concurrency
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Logging
	Slogger *slog.Logger
}

type Options struct {
	// Now overrides the message timestamp source.
	Now func() time.Time

	Slogger *slog.Logger
}

func NewHub(parentCtx context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parentCtx)
	hub := &Hub{
		messages: make(chan SocketMessage, 255),
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		wg:       sync.WaitGroup{},
	}
	if hub.now == nil {
		hub.now = time.Now
	}
	if opts.Slogger != nil {
		hub.Slogger = opts.Slogger
	} else {
		hub.Slogger = slog.Default()
	}
	hub.registry = NewRegistry(hub.Slogger)

	hub.handlers = map[string]handlerFunc{
		EventJoinTaskChat:  hub.handleJoinTaskChat,
		EventLeaveTaskChat: hub.handleLeaveTaskChat,
		EventSendMessage:   hub.handleSendMessage,
		EventTaskUpdate:    hub.handleTaskUpdate,
		EventTypingStart:   hub.typingHandler(true),
		EventTypingStop:    hub.typingHandler(false),
	}
	return hub
}

// Registry exposes the hub's membership table for read-side callers.
func (hub *Hub) Registry() *Registry {
	return hub.registry
}

func (hub *Hub) Start() {
	sl := hub.Slogger.With("func", "hub.Start")
	sl.Debug("starting")
	defer sl.Info("stopped")
	for {
		select {
		case <-hub.ctx.Done():
			sl.Debug("stopping")
			return
		case msg := <-hub.messages:
			switch msg.Type {
			case Disconnect:
				hub.registry.DropSession(msg.Session)
				sl.Info("user disconnected", "user", msg.Session.Identity())
			case Message:
				hub.dispatch(msg.Session, msg.Message)
			}
		}
	}
}

func (hub *Hub) Stop() {
	sl := hub.Slogger.With("func", "hub.Stop")
	sl.Debug("closing", "status", "started")
	for _, s := range hub.registry.Sessions() {
		sl.Debug("closing session", "session", s.ID())
		s.Close() // blocking
		hub.registry.DropSession(s)
	}
	hub.cancel()
	sl.Debug("hub closed", "status", "completed")
}

// Connect admits an authenticated session: it joins its personal room
// before any of its events are dispatched.
func (hub *Hub) Connect(s Sessioner) {
	hub.registry.Join(PersonalRoom(s.Identity()), s)
	hub.Slogger.Info("user connected", "user", s.Identity())
}

func (hub *Hub) dispatch(origin Sessioner, raw []byte) {
	sl := hub.Slogger.With("func", "hub.dispatch")
	env, err := decodeEnvelope(raw)
	if err != nil {
		sl.Warn("rejected event", "user", origin.Identity(), "err", err)
		return
	}
	handler, ok := hub.handlers[env.Event]
	if !ok {
		sl.Warn("rejected event", "user", origin.Identity(),
			"err", &ValidationError{Event: env.Event, Reason: "unknown event"})
		return
	}
	if origin.Identity() == "" {
		// The handshake gate makes this unreachable; drop without reply.
		sl.Debug("dropped event from unauthenticated session", "event", env.Event, "session", origin.ID())
		return
	}
	if err := handler(origin, env.Data); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			sl.Warn("rejected event", "user", origin.Identity(), "err", verr)
			return
		}
		sl.Error("handler error", "event", env.Event, "user", origin.Identity(), "err", err)
	}
}

func (hub *Hub) handleJoinTaskChat(origin Sessioner, data json.RawMessage) error {
	taskID, err := decodeTaskID(EventJoinTaskChat, data)
	if err != nil {
		return err
	}
	hub.registry.Join(TaskRoom(taskID), origin)
	hub.Slogger.Info("user joined task chat", "user", origin.Identity(), "task", taskID)
	return nil
}

func (hub *Hub) handleLeaveTaskChat(origin Sessioner, data json.RawMessage) error {
	taskID, err := decodeTaskID(EventLeaveTaskChat, data)
	if err != nil {
		return err
	}
	hub.registry.Leave(TaskRoom(taskID), origin)
	hub.Slogger.Info("user left task chat", "user", origin.Identity(), "task", taskID)
	return nil
}

// handleSendMessage fans a chat message out to the task room and the
// receiver's personal room. The sender id always comes from the
// origin's authenticated identity, never from the payload, and the
// origin never receives its own echo.
func (hub *Hub) handleSendMessage(origin Sessioner, data json.RawMessage) error {
	p, err := decodeSendMessage(data)
	if err != nil {
		return err
	}
	out := marshalEvent(EventNewMessage, NewMessagePayload{
		TaskID:    p.TaskID,
		SenderID:  origin.Identity(),
		Content:   p.Content,
		Timestamp: hub.now(),
	})
	hub.registry.Fanout(out, origin, TaskRoom(p.TaskID), PersonalRoom(p.ReceiverID))
	return nil
}

// handleTaskUpdate relays the payload verbatim to the task room.
func (hub *Hub) handleTaskUpdate(origin Sessioner, data json.RawMessage) error {
	p, err := decodeTaskUpdate(data)
	if err != nil {
		return err
	}
	out := marshalEvent(EventTaskUpdated, p)
	hub.registry.Fanout(out, origin, TaskRoom(p.TaskID))
	return nil
}

// typingHandler signals typing state to the receiver's personal room
// only. Nothing is stored: a client that stops typing without sending
// typing_stop leaves the receiver's UI to time out on its own.
func (hub *Hub) typingHandler(typing bool) handlerFunc {
	event := EventTypingStop
	if typing {
		event = EventTypingStart
	}
	return func(origin Sessioner, data json.RawMessage) error {
		p, err := decodeTyping(event, data)
		if err != nil {
			return err
		}
		out := marshalEvent(EventUserTyping, UserTypingPayload{
			TaskID: p.TaskID,
			UserID: origin.Identity(),
			Typing: typing,
		})
		hub.registry.Fanout(out, origin, PersonalRoom(p.ReceiverID))
		return nil
	}
}
