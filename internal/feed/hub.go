// Package feed fans table change notifications out to in-process listeners
// and WebSocket clients.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/npezzotti/diayouth/internal/stats"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownTopic = errors.New("feed: unknown topic")
	ErrHubClosed    = errors.New("feed: hub closed")
)

const (
	subscriptionBuffer = 16

	metricClients       = "ws_clients"
	metricSubscriptions = "feed_subscriptions"
	metricDropped       = "feed_changes_dropped"
)

// Subscription receives the changes of one topic until it is closed. It is
// closed by Close, by the end of the context it was created with, or by hub
// shutdown, whichever happens first.
type Subscription struct {
	hub    *Hub
	topic  string
	types  map[ChangeType]struct{}
	ch     chan Change
	once   sync.Once
	closed chan struct{}
}

func (s *Subscription) Topic() string { return s.topic }

// Changes is closed once the subscription ends.
func (s *Subscription) Changes() <-chan Change { return s.ch }

// Close releases the subscription. It is safe to call more than once and
// from any goroutine.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.closed)
		select {
		case s.hub.unsubscribeChan <- s:
		case <-s.hub.done:
		}
	})
}

func (s *Subscription) matches(t ChangeType) bool {
	if len(s.types) == 0 {
		return true
	}
	if _, ok := s.types[All]; ok {
		return true
	}
	_, ok := s.types[t]
	return ok
}

type stopReq struct {
	done chan struct{}
}

type Hub struct {
	log             *logrus.Logger
	stats           stats.StatsProvider
	topics          map[string]struct{}
	subs            map[string]map[*Subscription]struct{}
	clients         map[*Client]struct{}
	subscribeChan   chan *Subscription
	unsubscribeChan chan *Subscription
	publishChan     chan Change
	registerChan    chan *Client
	deRegisterChan  chan *Client
	stop            chan stopReq
	done            chan struct{}
}

// NewHub creates a hub serving the given topics.
func NewHub(logger *logrus.Logger, st stats.StatsProvider, topics []string) *Hub {
	h := &Hub{
		log:             logger,
		stats:           st,
		topics:          make(map[string]struct{}, len(topics)),
		subs:            make(map[string]map[*Subscription]struct{}),
		clients:         make(map[*Client]struct{}),
		subscribeChan:   make(chan *Subscription),
		unsubscribeChan: make(chan *Subscription),
		publishChan:     make(chan Change, 256),
		registerChan:    make(chan *Client),
		deRegisterChan:  make(chan *Client),
		stop:            make(chan stopReq),
		done:            make(chan struct{}),
	}
	for _, t := range topics {
		h.topics[t] = struct{}{}
	}

	st.RegisterMetric(metricClients)
	st.RegisterMetric(metricSubscriptions)
	st.RegisterMetric(metricDropped)

	return h
}

func (h *Hub) HasTopic(topic string) bool {
	_, ok := h.topics[topic]
	return ok
}

// Topics returns the topics the hub serves.
func (h *Hub) Topics() []string {
	topics := make([]string, 0, len(h.topics))
	for t := range h.topics {
		topics = append(topics, t)
	}
	return topics
}

func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.subscribeChan:
			subs, ok := h.subs[sub.topic]
			if !ok {
				subs = make(map[*Subscription]struct{})
				h.subs[sub.topic] = subs
			}
			subs[sub] = struct{}{}
			h.stats.Incr(metricSubscriptions)
		case sub := <-h.unsubscribeChan:
			h.removeSubscription(sub)
		case change := <-h.publishChan:
			h.broadcast(change)
		case client := <-h.registerChan:
			h.log.WithField("user_id", client.userId).Debug("adding ws connection")
			h.clients[client] = struct{}{}
			h.stats.Incr(metricClients)
		case client := <-h.deRegisterChan:
			if _, ok := h.clients[client]; ok {
				h.log.WithField("user_id", client.userId).Debug("removing ws connection")
				delete(h.clients, client)
				h.stats.Decr(metricClients)
			}
		case req := <-h.stop:
			h.log.Info("closing change feed subscriptions")
			for c := range h.clients {
				c.stopClient()
			}
			for _, subs := range h.subs {
				for sub := range subs {
					close(sub.ch)
				}
			}
			h.subs = nil

			close(h.done)
			close(req.done)
			return
		}
	}
}

func (h *Hub) removeSubscription(sub *Subscription) {
	subs := h.subs[sub.topic]
	if _, ok := subs[sub]; !ok {
		return
	}

	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, sub.topic)
	}
	close(sub.ch)
	h.stats.Decr(metricSubscriptions)
}

func (h *Hub) broadcast(change Change) {
	for sub := range h.subs[change.Topic] {
		if !sub.matches(change.Type) {
			continue
		}

		select {
		case sub.ch <- change:
		default:
			// A change still queued for this subscriber already triggers a
			// refetch, so dropping this one loses nothing.
			h.stats.Incr(metricDropped)
			h.log.WithField("topic", change.Topic).Debug("subscriber buffer full, dropping change")
		}
	}
}

// Subscribe registers a subscription to topic for the given change types (all
// types when none are given). The subscription ends when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, topic string, types ...ChangeType) (*Subscription, error) {
	if !h.HasTopic(topic) {
		return nil, ErrUnknownTopic
	}

	sub := &Subscription{
		hub:    h,
		topic:  topic,
		ch:     make(chan Change, subscriptionBuffer),
		closed: make(chan struct{}),
	}
	if len(types) > 0 {
		sub.types = make(map[ChangeType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	select {
	case h.subscribeChan <- sub:
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closed:
		case <-h.done:
		}
	}()

	return sub, nil
}

// Publish queues change for delivery. It reports false once the hub is shut
// down.
func (h *Hub) Publish(change Change) bool {
	if change.Timestamp.IsZero() {
		change.Timestamp = Now()
	}

	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.publishChan <- change:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.registerChan <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) deRegister(c *Client) {
	select {
	case h.deRegisterChan <- c:
	case <-h.done:
	}
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Info("shutting down change feed hub")
	req := stopReq{done: make(chan struct{})}

	select {
	case h.stop <- req:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
