package storage

import (
	"context"
	"sync"
)

// localEvents шина уведомлений в пределах процесса, используется без Redis.
// Медленный подписчик теряет сообщения, публикация никогда не блокируется
type localEvents struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

func NewLocalEvents() EventBus {
	return &localEvents{subs: make(map[string]map[chan []byte]struct{})}
}

func (l *localEvents) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := encodeEvent(message)
	if err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for ch := range l.subs[channel] {
		select {
		case ch <- data:
		default:
		}
	}

	return nil
}

func (l *localEvents) Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error) {
	ch := make(chan []byte, 64)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		close(ch)
		return ch, func() error { return nil }, nil
	}
	if l.subs[channel] == nil {
		l.subs[channel] = make(map[chan []byte]struct{})
	}
	l.subs[channel][ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	cancel := func() error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if _, ok := l.subs[channel][ch]; ok {
				delete(l.subs[channel], ch)
				close(ch)
			}
		})
		return nil
	}

	return ch, cancel, nil
}

func (l *localEvents) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	for channel, subs := range l.subs {
		for ch := range subs {
			close(ch)
		}
		delete(l.subs, channel)
	}

	return nil
}
