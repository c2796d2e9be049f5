package dhandha

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client -> server event names.
const (
	EventJoinTaskChat  = "join_task_chat"
	EventLeaveTaskChat = "leave_task_chat"
	EventSendMessage   = "send_message"
	EventTaskUpdate    = "task_update"
	EventTypingStart   = "typing_start"
	EventTypingStop    = "typing_stop"
)

// Server -> client event names.
const (
	EventNewMessage  = "new_message"
	EventTaskUpdated = "task_updated"
	EventUserTyping  = "user_typing"
)

// Envelope is the JSON frame exchanged in both directions.
// Data carries the event-specific payload; join/leave carry a bare
// JSON string (the task id) rather than an object.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type SendMessagePayload struct {
	TaskID     string `json:"taskId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

type TaskUpdatePayload struct {
	TaskID  string `json:"taskId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type TypingPayload struct {
	TaskID     string `json:"taskId"`
	ReceiverID string `json:"receiverId"`
}

type NewMessagePayload struct {
	TaskID    string    `json:"taskId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type UserTypingPayload struct {
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

// ValidationError rejects a single malformed inbound event. The
// connection itself survives; only the offending event is dropped.
type ValidationError struct {
	Event  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %q event: %s", e.Event, e.Reason)
}

func decodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ValidationError{Event: "unknown", Reason: err.Error()}
	}
	if env.Event == "" {
		return nil, &ValidationError{Event: "unknown", Reason: "missing event name"}
	}
	return &env, nil
}

func decodeTaskID(event string, data json.RawMessage) (string, error) {
	var taskID string
	if err := json.Unmarshal(data, &taskID); err != nil {
		return "", &ValidationError{Event: event, Reason: err.Error()}
	}
	if taskID == "" {
		return "", &ValidationError{Event: event, Reason: "missing taskId"}
	}
	return taskID, nil
}

func decodeSendMessage(data json.RawMessage) (SendMessagePayload, error) {
	var p SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, &ValidationError{Event: EventSendMessage, Reason: err.Error()}
	}
	if p.TaskID == "" {
		return p, &ValidationError{Event: EventSendMessage, Reason: "missing taskId"}
	}
	if p.ReceiverID == "" {
		return p, &ValidationError{Event: EventSendMessage, Reason: "missing receiverId"}
	}
	return p, nil
}

func decodeTaskUpdate(data json.RawMessage) (TaskUpdatePayload, error) {
	var p TaskUpdatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, &ValidationError{Event: EventTaskUpdate, Reason: err.Error()}
	}
	if p.TaskID == "" {
		return p, &ValidationError{Event: EventTaskUpdate, Reason: "missing taskId"}
	}
	return p, nil
}

func decodeTyping(event string, data json.RawMessage) (TypingPayload, error) {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, &ValidationError{Event: event, Reason: err.Error()}
	}
	if p.TaskID == "" {
		return p, &ValidationError{Event: event, Reason: "missing taskId"}
	}
	if p.ReceiverID == "" {
		return p, &ValidationError{Event: event, Reason: "missing receiverId"}
	}
	return p, nil
}

func marshalEvent(event string, data any) []byte {
	raw, _ := json.Marshal(data)
	out, _ := json.Marshal(Envelope{Event: event, Data: raw})
	return out
}
