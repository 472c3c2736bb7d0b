package coordinator

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/pkg/tss"
)

type subscription struct {
	id      string
	master  string
	handler func(tss.Event)
	closed  atomic.Bool
	stop    chan struct{}
	c       *Coordinator
}

func (s *subscription) ID() string { return s.id }

func (s *subscription) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.stop)
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	delete(s.c.watchers[s.master], s.id)
	log.Debugf("subscription %s closed", s.id)
	return nil
}

// Watch registers handler for the group's events. Handlers run on the
// goroutine that caused the event, after the coordinator's state is updated.
// The subscription also ends when ctx is done.
func (c *Coordinator) Watch(ctx context.Context, masterKey []byte, handler func(tss.Event)) (tss.Subscription, error) {
	if handler == nil {
		return nil, errors.Wrap(tss.ErrInvalidParameters, "nil handler")
	}
	c.mu.Lock()
	if _, err := c.group(masterKey); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	sub := &subscription{
		id:      uuid.NewString(),
		master:  string(masterKey),
		handler: handler,
		stop:    make(chan struct{}),
		c:       c,
	}
	if c.watchers[sub.master] == nil {
		c.watchers[sub.master] = make(map[string]*subscription)
	}
	c.watchers[sub.master][sub.id] = sub
	c.mu.Unlock()

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				sub.Close()
			case <-sub.stop:
			}
		}()
	}
	return sub, nil
}

func (c *Coordinator) emit(masterKey []byte, ev tss.Event) {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.watchers[string(masterKey)]))
	for _, s := range c.watchers[string(masterKey)] {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		if !s.closed.Load() {
			s.handler(ev)
		}
	}
}
