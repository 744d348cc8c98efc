// Package changefeed fans row-change notifications out to named, scoped
// subscriptions.
package changefeed

import (
	"encoding/json"
	"errors"
	"sync"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("changefeed")

var ErrNameInUse = errors.New("subscription name already in use")

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	OpAny    Op = "*"
)

// Event is one row change.
type Event struct {
	Op        Op              `json:"event"`
	Relation  string          `json:"relation"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
}

func (e Event) DecodeNew(v interface{}) error {
	if len(e.New) == 0 || string(e.New) == "null" {
		return errors.New("event has no new row")
	}
	return json.Unmarshal(e.New, v)
}

func (e Event) DecodeOld(v interface{}) error {
	if len(e.Old) == 0 || string(e.Old) == "null" {
		return errors.New("event has no old row")
	}
	return json.Unmarshal(e.Old, v)
}

// Filter selects events by operation and relation.
type Filter struct {
	Op       Op
	Relation string
}

func (f Filter) Matches(e Event) bool {
	if f.Relation != "" && f.Relation != e.Relation {
		return false
	}
	return f.Op == "" || f.Op == OpAny || f.Op == e.Op
}

type Handler func(Event)

const defaultBuffer = 64

// Option configures a subscription.
type Option func(*Subscription)

// WithResync sets fn to run when the subscription overflowed and events were
// dropped. Queued events are discarded first, so fn should reload whatever
// state the handler maintains.
func WithResync(fn func()) Option {
	return func(s *Subscription) { s.resync = fn }
}

// Broker routes events to subscriptions. Each subscription drains its own
// queue so a slow handler only delays itself.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]*Subscription), buffer: defaultBuffer}
}

// Subscribe registers handler under a unique name. The caller owns the
// returned handle and must Close it.
func (b *Broker) Subscribe(name string, filter Filter, handler Handler, opts ...Option) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[name]; ok {
		return nil, ErrNameInUse
	}

	sub := &Subscription{
		name:    name,
		filter:  filter,
		handler: handler,
		queue:   make(chan Event, b.buffer),
		lagged:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		broker:  b,
	}
	for _, opt := range opts {
		opt(sub)
	}
	b.subs[name] = sub
	go sub.run()

	log.Debugf("subscribed %s", name)
	return sub, nil
}

// Publish hands e to every matching subscription without blocking. A
// subscription whose queue is full is marked lagging instead.
func (b *Broker) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.filter.Matches(e) {
			continue
		}
		select {
		case sub.queue <- e:
		default:
			log.Warningf("dropping %s %s event for subscription %s", e.Op, e.Relation, sub.name)
			select {
			case sub.lagged <- struct{}{}:
			default:
			}
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) remove(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, name)
}

// Subscription is a scoped handle on a broker registration.
type Subscription struct {
	name      string
	filter    Filter
	handler   Handler
	queue     chan Event
	lagged    chan struct{}
	resync    func()
	done      chan struct{}
	closeOnce sync.Once
	broker    *Broker
}

func (s *Subscription) Name() string { return s.name }

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.lagged:
			s.catchUp()
		case e := <-s.queue:
			s.handler(e)
		}
	}
}

// catchUp discards the backlog and hands over to the resync callback.
func (s *Subscription) catchUp() {
	dropped := 0
drain:
	for {
		select {
		case <-s.queue:
			dropped++
		default:
			break drain
		}
	}
	log.Warningf("subscription %s lagged, discarded %d queued events", s.name, dropped)
	if s.resync != nil {
		s.resync()
	}
}

// Close unregisters the subscription. Queued events are discarded. Safe to
// call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.broker.remove(s.name)
		close(s.done)
		log.Debugf("unsubscribed %s", s.name)
	})
	return nil
}
