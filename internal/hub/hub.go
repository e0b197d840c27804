// Package hub keeps the registry of live sessions. Like the dispatcher it is
// an actor: every read and write goes through its inbox.
package hub

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/DoyleJ11/aibird-bridge/internal/dispatcher"
)

var (
	ErrSessionLimit = errors.New("session limit reached")
	ErrDuplicate    = errors.New("session already registered")
	ErrHubClosed    = errors.New("hub closed")
)

type HubMsg interface{ isHubMsg() }

type Register struct {
	ID         string
	RemoteAddr string
	Transport  string
	// Stop is called when the hub shuts down while the session is live.
	Stop  func()
	Reply chan error
}

type Unregister struct {
	ID    string
	Reply chan struct{} // closed once the slot is free, may be nil
}

type Update struct {
	ID   string
	Snap dispatcher.Snapshot
}

type GetSession struct {
	ID    string
	Reply chan *Entry // nil if unknown
}

type ListSessions struct {
	Reply chan []Entry
}

type ShutdownHub struct{}

func (Register) isHubMsg()     {}
func (Unregister) isHubMsg()   {}
func (Update) isHubMsg()       {}
func (GetSession) isHubMsg()   {}
func (ListSessions) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

// Entry is what the hub knows about one session.
type Entry struct {
	ID         string
	RemoteAddr string
	Transport  string
	StartedAt  time.Time
	Snapshot   dispatcher.Snapshot
	stop       func()
}

type Hub struct {
	inbox       chan HubMsg
	sessions    map[string]*Entry
	maxSessions int
	now         func() time.Time
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHub starts the registry. maxSessions <= 0 means no limit.
func NewHub(parent context.Context, maxSessions int) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:       make(chan HubMsg, 64),
		sessions:    make(map[string]*Entry),
		maxSessions: maxSessions,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Register:
				msg.Reply <- h.register(msg)

			case Unregister:
				delete(h.sessions, msg.ID)
				if msg.Reply != nil {
					close(msg.Reply)
				}

			case Update:
				if e := h.sessions[msg.ID]; e != nil {
					e.Snapshot = msg.Snap
				}

			case GetSession:
				if e := h.sessions[msg.ID]; e != nil {
					cp := *e
					msg.Reply <- &cp
					break
				}
				msg.Reply <- nil

			case ListSessions:
				out := make([]Entry, 0, len(h.sessions))
				for _, e := range h.sessions {
					out = append(out, *e)
				}
				sort.Slice(out, func(i, j int) bool {
					if out[i].StartedAt.Equal(out[j].StartedAt) {
						return out[i].ID < out[j].ID
					}
					return out[i].StartedAt.Before(out[j].StartedAt)
				})
				msg.Reply <- out

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) register(msg Register) error {
	if _, ok := h.sessions[msg.ID]; ok {
		return ErrDuplicate
	}
	if h.maxSessions > 0 && len(h.sessions) >= h.maxSessions {
		return ErrSessionLimit
	}
	h.sessions[msg.ID] = &Entry{
		ID:         msg.ID,
		RemoteAddr: msg.RemoteAddr,
		Transport:  msg.Transport,
		StartedAt:  h.now(),
		stop:       msg.Stop,
	}
	return nil
}

func (h *Hub) shutdown() {
	for _, e := range h.sessions {
		if e.stop != nil {
			e.stop()
		}
	}
	clear(h.sessions)
	h.cancel()
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	if h.ctx.Err() != nil {
		return ErrHubClosed
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register claims a slot for a new session.
func (h *Hub) Register(ctx context.Context, id, remote, transport string, stop func()) error {
	reply := make(chan error, 1)
	if err := h.send(ctx, Register{ID: id, RemoteAddr: remote, Transport: transport, Stop: stop, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister frees the session's slot and returns once a new Register can
// take it.
func (h *Hub) Unregister(id string) {
	done := make(chan struct{})
	if err := h.send(context.Background(), Unregister{ID: id, Reply: done}); err != nil {
		return
	}
	select {
	case <-done:
	case <-h.ctx.Done():
	}
}

// Notify returns a dispatcher callback that records snapshots for id.
func (h *Hub) Notify(id string) func(dispatcher.Snapshot) {
	return func(s dispatcher.Snapshot) {
		_ = h.send(context.Background(), Update{ID: id, Snap: s})
	}
}

func (h *Hub) Get(ctx context.Context, id string) (*Entry, error) {
	reply := make(chan *Entry, 1)
	if err := h.send(ctx, GetSession{ID: id, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case e := <-reply:
		return e, nil
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) List(ctx context.Context) ([]Entry, error) {
	reply := make(chan []Entry, 1)
	if err := h.send(ctx, ListSessions{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case out := <-reply:
		return out, nil
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }
