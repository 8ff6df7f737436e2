package client

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// NoticeKind tells a success notice from a failure.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// DefaultNoticeLimit is how many notices a Notices keeps.
const DefaultNoticeLimit = 20

// Notice is a transient message about the outcome of an operation.
type Notice struct {
	ID      string
	Kind    NoticeKind
	Title   string
	Message string
	At      time.Time
}

// Notices is a bounded, newest-last list of notices with subscribers.
// Subscribers are called synchronously, outside the lock.
type Notices struct {
	mu     sync.Mutex
	limit  int
	items  []Notice
	subs   map[int]func(Notice)
	nextID int
	now    func() time.Time
}

// NewNotices keeps at most limit notices; limit <= 0 means DefaultNoticeLimit.
func NewNotices(limit int) *Notices {
	if limit <= 0 {
		limit = DefaultNoticeLimit
	}
	return &Notices{
		limit: limit,
		subs:  make(map[int]func(Notice)),
		now:   time.Now,
	}
}

// Subscribe registers fn for every later notice and returns a function
// that removes it.
func (n *Notices) Subscribe(fn func(Notice)) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// Push records a notice and delivers it to subscribers.
func (n *Notices) Push(kind NoticeKind, title, message string) Notice {
	notice := Notice{
		ID:      ulid.Make().String(),
		Kind:    kind,
		Title:   title,
		Message: message,
	}

	n.mu.Lock()
	notice.At = n.now()
	n.items = append(n.items, notice)
	if over := len(n.items) - n.limit; over > 0 {
		n.items = append([]Notice(nil), n.items[over:]...)
	}
	subs := make([]func(Notice), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn(notice)
	}
	return notice
}

// List returns a copy of the retained notices, oldest first.
func (n *Notices) List() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.items...)
}

// Dismiss removes the notice with id. It reports whether one was removed.
func (n *Notices) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, item := range n.items {
		if item.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return true
		}
	}
	return false
}
