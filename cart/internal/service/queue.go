package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type lane struct {
	sem  chan struct{}
	refs int

	mu  sync.Mutex
	gen uint64
}

func (l *lane) generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

func (l *lane) bump() {
	l.mu.Lock()
	l.gen++
	l.mu.Unlock()
}

// ifCurrent runs fn only while no write committed since gen was read. Writes
// wait for fn before moving the generation on.
func (l *lane) ifCurrent(gen uint64, fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return false
	}
	fn()
	return true
}

// mutationQueue runs the cart writes of one user one after another, across
// every Store of the process. Each lane counts the writes committed in it.
// Lanes are dropped once nobody waits on or pins them.
type mutationQueue struct {
	mu    sync.Mutex
	lanes map[uuid.UUID]*lane
}

func newMutationQueue() *mutationQueue {
	return &mutationQueue{lanes: map[uuid.UUID]*lane{}}
}

func (q *mutationQueue) acquire(userID uuid.UUID) *lane {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.lanes[userID]
	if !ok {
		l = &lane{sem: make(chan struct{}, 1)}
		q.lanes[userID] = l
	}
	l.refs++
	return l
}

func (q *mutationQueue) release(userID uuid.UUID, l *lane) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(q.lanes, userID)
	}
}

// pin keeps the lane of userID alive without entering it, so a reader can
// tell whether a write committed while it was reading. Callers release the
// lane when done.
func (q *mutationQueue) pin(userID uuid.UUID) *lane {
	return q.acquire(userID)
}

// Do waits for the lane of userID and runs fn in it. It gives up with the
// context error when c is done before the lane frees up.
func (q *mutationQueue) Do(c context.Context, userID uuid.UUID, fn func(l *lane) error) error {
	l := q.acquire(userID)
	defer q.release(userID, l)

	select {
	case l.sem <- struct{}{}:
	case <-c.Done():
		return c.Err()
	}
	defer func() { <-l.sem }()

	return fn(l)
}

func (q *mutationQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
