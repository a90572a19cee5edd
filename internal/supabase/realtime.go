package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/diayouth/internal/retry"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	heartbeatInterval = 30 * time.Second
	realtimeWriteWait = 10 * time.Second
)

// RemoteChange is one postgres_changes notification.
type RemoteChange struct {
	Table     string
	Type      string
	Record    gjson.Result
	OldRecord gjson.Result
}

// Row is the record the change is about: the new row, or the old one for
// deletes.
func (c RemoteChange) Row() gjson.Result {
	if c.Type == "DELETE" {
		return c.OldRecord
	}
	return c.Record
}

type phxMessage struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Ref     string `json:"ref"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// Realtime keeps a connection to the realtime service joined to one
// channel per table, reconnecting until its context ends.
type Realtime struct {
	url       string
	tables    []string
	handler   func(RemoteChange)
	log       *logrus.Logger
	dialer    *websocket.Dialer
	heartbeat time.Duration
	backoff   retry.Policy
	ref       atomic.Uint64
}

func (c *Client) Realtime(tables []string, handler func(RemoteChange)) *Realtime {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	return &Realtime{
		url:       u + "/realtime/v1/websocket?apikey=" + c.key + "&vsn=1.0.0",
		tables:    tables,
		handler:   handler,
		log:       c.log,
		dialer:    &websocket.Dialer{HandshakeTimeout: defaultTimeout},
		heartbeat: heartbeatInterval,
		backoff: retry.Policy{
			InitialBackoff: time.Second,
			MaxBackoff:     time.Minute,
			Multiplier:     2,
			Jitter:         0.2,
		},
	}
}

func channelTopic(table string) string { return "realtime:public:" + table }

func (r *Realtime) nextRef() string {
	return strconv.FormatUint(r.ref.Add(1), 10)
}

// Run blocks until ctx is done.
func (r *Realtime) Run(ctx context.Context) {
	b := r.backoff.NewBackOff()
	for {
		joined, err := r.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if joined {
			b.Reset()
		}

		wait := b.NextBackOff()
		r.log.WithError(err).WithField("retry_in", wait).Warn("realtime connection lost")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection. It reports whether the channels were joined.
func (r *Realtime) session(ctx context.Context) (bool, error) {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	for _, table := range r.tables {
		join := phxMessage{
			Topic: channelTopic(table),
			Event: "phx_join",
			Payload: map[string]any{
				"config": map[string]any{
					"postgres_changes": []changeFilter{{Event: "*", Schema: "public", Table: table}},
				},
			},
			Ref: r.nextRef(),
		}
		if err := r.write(conn, join); err != nil {
			return false, err
		}
	}
	r.log.WithField("tables", r.tables).Info("realtime channels joined")

	errc := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				errc <- err
				return
			}
			r.dispatch(raw)
		}
	}()

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case err := <-errc:
			return true, err
		case <-ticker.C:
			hb := phxMessage{Topic: "phoenix", Event: "heartbeat", Payload: struct{}{}, Ref: r.nextRef()}
			if err := r.write(conn, hb); err != nil {
				return true, err
			}
		case <-ctx.Done():
			for _, table := range r.tables {
				r.write(conn, phxMessage{Topic: channelTopic(table), Event: "phx_leave", Payload: struct{}{}, Ref: r.nextRef()})
			}
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(realtimeWriteWait))
			return true, nil
		}
	}
}

func (r *Realtime) write(conn *websocket.Conn, msg phxMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (r *Realtime) dispatch(raw []byte) {
	msg := gjson.ParseBytes(raw)
	topic := msg.Get("topic").String()

	switch msg.Get("event").String() {
	case "postgres_changes":
		data := msg.Get("payload.data")
		change := RemoteChange{
			Table:     data.Get("table").String(),
			Type:      strings.ToUpper(data.Get("type").String()),
			Record:    data.Get("record"),
			OldRecord: data.Get("old_record"),
		}
		if change.Table == "" {
			r.log.WithField("topic", topic).Debug("ignoring change without table")
			return
		}
		r.handler(change)
	case "phx_reply":
		if status := msg.Get("payload.status").String(); status != "ok" {
			r.log.WithFields(logrus.Fields{
				"topic":  topic,
				"status": status,
			}).Warn("realtime request rejected: " + msg.Get("payload.response").Raw)
		}
	case "phx_error":
		r.log.WithField("topic", topic).Error("realtime channel error")
	case "system":
		r.log.WithField("topic", topic).Debug(msg.Get("payload.message").String())
	}
}

var errNoTables = errors.New("supabase: realtime needs at least one table")

// Validate reports configuration problems before Run is started.
func (r *Realtime) Validate() error {
	if len(r.tables) == 0 {
		return errNoTables
	}
	if r.handler == nil {
		return errors.New("supabase: realtime handler is required")
	}
	return nil
}
