package feed

import (
	"net/http"
	"strings"
	"time"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
	All    ChangeType = "*"
)

func ParseChangeType(s string) (ChangeType, bool) {
	switch t := ChangeType(strings.ToUpper(s)); t {
	case Insert, Update, Delete, All:
		return t, true
	}
	return "", false
}

// Change notifies that a row of a table changed. It carries only what a
// listener needs to decide to refetch.
type Change struct {
	Topic     string     `json:"topic"`
	Type      ChangeType `json:"type"`
	RecordId  int64      `json:"record_id,omitempty"`
	ActorId   string     `json:"actor_id,omitempty"`
	Source    string     `json:"source,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Subscribe   *Subscribe   `json:"subscribe,omitempty"`
	Unsubscribe *Unsubscribe `json:"unsubscribe,omitempty"`
}

type Subscribe struct {
	Topic  string       `json:"topic"`
	Events []ChangeType `json:"events,omitempty"`
}

type Unsubscribe struct {
	Topic string `json:"topic"`
}

type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	Change   *Change   `json:"change,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func response(id, code int, errMsg string, data any) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errMsg,
			Data:         data,
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func NoErrOK(id int, data any) *ServerMessage {
	return response(id, http.StatusOK, "", data)
}

func ErrTopicNotFound(id int) *ServerMessage {
	return response(id, http.StatusNotFound, "topic not found", nil)
}

func ErrNotSubscribed(id int) *ServerMessage {
	return response(id, http.StatusNotFound, "not subscribed", nil)
}

func ErrInvalidMessage(id int) *ServerMessage {
	return response(id, http.StatusBadRequest, "invalid message format", nil)
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return response(id, http.StatusServiceUnavailable, "service unavailable", nil)
}

func changeMessage(c Change) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Change: &c,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
