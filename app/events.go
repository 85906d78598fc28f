package app

import (
	"sync"

	"ytcr.app/receiver/sender"
)

type listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners[T]) emit(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.fns))
	for i := 0; i < l.next; i++ {
		if fn, ok := l.fns[i]; ok {
			fns = append(fns, fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

type events struct {
	senderConnect    listeners[sender.Sender]
	senderDisconnect listeners[sender.Sender]
	errs             listeners[error]
	terminate        listeners[error]
}

// OnSenderConnect registers fn for newly connected senders. Call the returned
// func to unsubscribe.
func (a *App) OnSenderConnect(fn func(sender.Sender)) func() {
	return a.events.senderConnect.add(fn)
}

// OnSenderDisconnect registers fn for senders that left, including those
// dropped by Stop.
func (a *App) OnSenderDisconnect(fn func(sender.Sender)) func() {
	return a.events.senderDisconnect.add(fn)
}

// OnError registers fn for recoverable errors.
func (a *App) OnError(fn func(error)) func() {
	return a.events.errs.add(fn)
}

// OnTerminate registers fn for the error that stopped a running app.
func (a *App) OnTerminate(fn func(error)) func() {
	return a.events.terminate.add(fn)
}
