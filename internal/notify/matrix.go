// ABOUTME: Matrix room notifier built on mautrix
// ABOUTME: Queues events and posts them as text messages from a background worker

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// ErrQueueFull is returned when the notifier cannot keep up.
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("notifier closed")

// sendTimeout bounds a single Matrix send.
const sendTimeout = 30 * time.Second

// textSender is the part of *mautrix.Client the notifier uses.
type textSender interface {
	SendText(ctx context.Context, roomID id.RoomID, text string) (*mautrix.RespSendEvent, error)
}

// MatrixConfig holds the Matrix connection settings.
type MatrixConfig struct {
	Homeserver  string
	UserID      string
	AccessToken string
	RoomID      string
	QueueSize   int
}

// MatrixNotifier posts events to a single Matrix room.
type MatrixNotifier struct {
	client textSender
	room   id.RoomID
	logger *slog.Logger

	queue  chan string
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewMatrixNotifier creates a Matrix client and starts the send worker.
func NewMatrixNotifier(cfg MatrixConfig) (*MatrixNotifier, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return newMatrixNotifier(client, id.RoomID(cfg.RoomID), cfg.QueueSize), nil
}

func newMatrixNotifier(client textSender, room id.RoomID, queueSize int) *MatrixNotifier {
	if queueSize <= 0 {
		queueSize = 64
	}
	n := &MatrixNotifier{
		client: client,
		room:   room,
		logger: slog.Default().With("component", "notify", "room", room.String()),
		queue:  make(chan string, queueSize),
		done:   make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Notify queues an event for delivery. It never blocks on the network.
func (n *MatrixNotifier) Notify(ctx context.Context, ev Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}

	select {
	case n.queue <- ev.Text():
		return nil
	default:
		return ErrQueueFull
	}
}

func (n *MatrixNotifier) run() {
	defer n.wg.Done()
	for {
		select {
		case text := <-n.queue:
			n.send(text)
		case <-n.done:
			// flush what is already queued
			for {
				select {
				case text := <-n.queue:
					n.send(text)
				default:
					return
				}
			}
		}
	}
}

func (n *MatrixNotifier) send(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if _, err := n.client.SendText(ctx, n.room, text); err != nil {
		n.logger.Error("failed to send notification", "error", err)
	}
}

// Close stops accepting events, delivers anything queued, and waits for the worker.
func (n *MatrixNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.done)
	n.mu.Unlock()

	n.wg.Wait()
	return nil
}
