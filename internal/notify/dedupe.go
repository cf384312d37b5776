// ABOUTME: Suppresses repeated activity events within a time window
// ABOUTME: Wraps a Notifier so a task toggled to done twice in a minute is announced once

package notify

import (
	"container/list"
	"context"
	"io"
	"sync"
	"time"
)

// DefaultDedupeWindow is how long an event key stays suppressed.
const DefaultDedupeWindow = time.Minute

const defaultDedupeSize = 1024

type seenEntry struct {
	key string
	at  time.Time
}

// Deduper forwards events to the wrapped Notifier unless an event with the
// same kind and subject was forwarded within the window. Safe for concurrent use.
type Deduper struct {
	next    Notifier
	window  time.Duration
	maxSize int
	now     func() time.Time

	mu    sync.Mutex
	seen  map[string]*list.Element
	order *list.List // oldest mark at the front
}

// NewDeduper wraps next. A window <= 0 uses DefaultDedupeWindow.
func NewDeduper(next Notifier, window time.Duration) *Deduper {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &Deduper{
		next:    next,
		window:  window,
		maxSize: defaultDedupeSize,
		now:     time.Now,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
}

func eventKey(ev Event) string {
	subject := ev.TaskID
	if subject == "" {
		subject = ev.ProjectID
	}
	return string(ev.Kind) + ":" + subject
}

// Notify implements Notifier.
func (d *Deduper) Notify(ctx context.Context, ev Event) error {
	if d.checkAndMark(eventKey(ev)) {
		return nil
	}
	return d.next.Notify(ctx, ev)
}

// checkAndMark reports whether key was marked within the window, marking it
// if not.
func (d *Deduper) checkAndMark(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.pruneLocked(now)

	if _, ok := d.seen[key]; ok {
		return true
	}

	if d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(*seenEntry).key)
	}
	d.seen[key] = d.order.PushBack(&seenEntry{key: key, at: now})
	return false
}

// pruneLocked drops expired marks. Marks are appended in time order, so it
// stops at the first live one.
func (d *Deduper) pruneLocked(now time.Time) {
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		e := el.Value.(*seenEntry)
		if now.Sub(e.at) < d.window {
			return
		}
		d.order.Remove(el)
		delete(d.seen, e.key)
	}
}

// Close closes the wrapped Notifier if it holds resources.
func (d *Deduper) Close() error {
	if c, ok := d.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
