package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

type Client struct {
	conn     *websocket.Conn
	hub      *Hub
	log      *logrus.Entry
	userId   string
	send     chan *ServerMessage
	subs     map[string]*Subscription
	subsLock sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(userId string, conn *websocket.Conn, hub *Hub, l *logrus.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:   conn,
		hub:    hub,
		log:    l.WithField("user_id", userId),
		userId: userId,
		send:   make(chan *ServerMessage, 256),
		subs:   make(map[string]*Subscription),
		ctx:    ctx,
		cancel: cancel,
		stop:   make(chan struct{}),
	}
}

// Register adds the client to the hub. It reports false when the hub is
// shut down.
func (c *Client) Register() bool {
	return c.hub.register(c)
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.WithError(err).Error("failed to serialize message")
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.sendMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debug("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("ws: read")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.WithError(err).Debug("error parsing message")
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}
		msg.Timestamp = Now()

		c.handle(&msg)
	}
}

func (c *Client) handle(msg *ClientMessage) {
	switch {
	case msg.Subscribe != nil:
		c.subscribe(msg)
	case msg.Unsubscribe != nil:
		c.unsubscribe(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) subscribe(msg *ClientMessage) {
	topic := msg.Subscribe.Topic
	for _, t := range msg.Subscribe.Events {
		if _, ok := ParseChangeType(string(t)); !ok {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}
	}

	sub, err := c.hub.Subscribe(c.ctx, topic, msg.Subscribe.Events...)
	if err != nil {
		if errors.Is(err, ErrUnknownTopic) {
			c.queueMessage(ErrTopicNotFound(msg.Id))
		} else {
			c.queueMessage(ErrServiceUnavailable(msg.Id))
		}
		return
	}

	c.subsLock.Lock()
	prev := c.subs[topic]
	c.subs[topic] = sub
	c.subsLock.Unlock()

	// Re-subscribing replaces the event filter.
	if prev != nil {
		prev.Close()
	}

	go c.forward(sub)

	c.log.WithField("topic", topic).Debug("subscribed")
	c.queueMessage(NoErrOK(msg.Id, map[string]any{"topic": topic}))
}

func (c *Client) unsubscribe(msg *ClientMessage) {
	topic := msg.Unsubscribe.Topic

	c.subsLock.Lock()
	sub, ok := c.subs[topic]
	delete(c.subs, topic)
	c.subsLock.Unlock()

	if !ok {
		c.queueMessage(ErrNotSubscribed(msg.Id))
		return
	}

	sub.Close()
	c.queueMessage(NoErrOK(msg.Id, map[string]any{"topic": topic}))
}

func (c *Client) forward(sub *Subscription) {
	for change := range sub.Changes() {
		c.queueMessage(changeMessage(change))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.WithError(err).Warn("write message")
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanup releases every subscription of the client, whatever ended the
// connection.
func (c *Client) cleanup() {
	c.cancel()

	c.subsLock.Lock()
	subs := c.subs
	c.subs = make(map[string]*Subscription)
	c.subsLock.Unlock()

	for _, sub := range subs {
		sub.Close()
	}

	c.hub.deRegister(c)
	c.stopClient()
}
