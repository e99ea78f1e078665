// Package pubsub provides typed broadcast topics with last-value semantics.
//
// A subscriber receives the current value synchronously while subscribing,
// then every later value in publish order on its own delivery goroutine, so
// a slow subscriber never blocks the publisher or other subscribers.
package pubsub

import "sync"

// Topic broadcasts values of type T.
type Topic[T any] struct {
	mu      sync.Mutex
	current T
	has     bool
	closed  bool
	nextID  int
	subs    map[int]*subscriber[T]
}

// New creates a topic with an initial value.
func New[T any](initial T) *Topic[T] {
	return &Topic[T]{current: initial, has: true, subs: make(map[int]*subscriber[T])}
}

// NewEmpty creates a topic with no value yet.
func NewEmpty[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[int]*subscriber[T])}
}

// Current returns the last published value and whether there is one.
func (t *Topic[T]) Current() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.has
}

// Publish stores v as the current value and queues it for every
// subscriber. Publishing on a closed topic is a no-op.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.current, t.has = v, true
	for _, s := range t.subs {
		s.push(v)
	}
}

// Subscribe registers fn. If the topic has a value, fn is called with it
// before Subscribe returns. The returned function cancels the subscription;
// values already queued for fn may still be delivered.
func (t *Topic[T]) Subscribe(fn func(T)) (cancel func()) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return func() {}
	}
	id := t.nextID
	t.nextID++
	s := newSubscriber(fn)
	t.subs[id] = s
	current, has := t.current, t.has
	// Deliver the current value while holding the lock so that no publish
	// can overtake it.
	if has {
		fn(current)
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
			s.stop()
		})
	}
}

// Close stops all subscribers. Queued values are still delivered.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, s := range t.subs {
		s.stop()
		delete(t.subs, id)
	}
}

// subscriber is a mailbox drained by one goroutine.
type subscriber[T any] struct {
	fn func(T)

	mu      sync.Mutex
	queue   []T
	stopped bool
	signal  chan struct{}
	done    chan struct{}
}

func newSubscriber[T any](fn func(T)) *subscriber[T] {
	s := &subscriber[T]{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) loop() {
	defer close(s.done)
	for range s.signal {
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				stopped := s.stopped
				s.mu.Unlock()
				if stopped {
					return
				}
				break
			}
			v := s.queue[0]
			var zero T
			s.queue[0] = zero
			s.queue = s.queue[1:]
			s.mu.Unlock()
			s.fn(v)
		}
	}
}
