package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"learnhub.io/notifier/internal/domain"
	"learnhub.io/notifier/internal/pkg/logger"
	"learnhub.io/notifier/internal/realtime"
)

func init() {
	_ = logger.Init("error", "json")
}

type fakeConn struct {
	frames    chan realtime.Envelope
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written []realtime.Envelope
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan realtime.Envelope, 16), closed: make(chan struct{})}
}

func (f *fakeConn) ReadJSON(v any) error {
	select {
	case env := <-f.frames:
		*(v.(*realtime.Envelope)) = env
		return nil
	case <-f.closed:
		return io.EOF
	}
}

func (f *fakeConn) WriteJSON(v any) error {
	select {
	case <-f.closed:
		return io.ErrClosedPipe
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, v.(realtime.Envelope))
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) sent() []realtime.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]realtime.Envelope(nil), f.written...)
}

func (f *fakeConn) push(n domain.Notification) {
	f.frames <- realtime.Envelope{Event: realtime.EventNew, Notification: &n}
}

// fakeDialer hands out conns in order; once exhausted, every dial fails.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context, _, ticket string) (FrameConn, error) {
	d.dials.Add(1)
	if ticket == "" {
		return nil, errors.New("missing ticket")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func okTickets(context.Context) (string, error) { return "ticket", nil }

type fakeAPI struct {
	mu            sync.Mutex
	list          []domain.Notification
	listCalls     int
	listErr       error
	markReadErr   error
	markReadIDs   []string
	markAllCalls  int
	markAllErr    error
	ticketCalls   int
	ticketErr     error
	markReadBlock chan struct{}
}

func (a *fakeAPI) setList(list ...domain.Notification) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.list = list
}

func (a *fakeAPI) List(context.Context, int) (ListResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listCalls++
	if a.listErr != nil {
		return ListResponse{}, a.listErr
	}
	out := append([]domain.Notification(nil), a.list...)
	return ListResponse{Notifications: out, UnreadCount: countUnread(out)}, nil
}

func (a *fakeAPI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listCalls
}

func (a *fakeAPI) MarkRead(ctx context.Context, id string) (domain.Notification, error) {
	if a.markReadBlock != nil {
		select {
		case <-a.markReadBlock:
		case <-ctx.Done():
			return domain.Notification{}, ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markReadIDs = append(a.markReadIDs, id)
	return domain.Notification{ID: id, Read: true}, a.markReadErr
}

func (a *fakeAPI) markedRead() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.markReadIDs...)
}

func (a *fakeAPI) MarkAllRead(context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markAllCalls++
	return 0, a.markAllErr
}

func (a *fakeAPI) markAllCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.markAllCalls
}

func (a *fakeAPI) SocketTicket(context.Context) (TicketResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ticketCalls++
	if a.ticketErr != nil {
		return TicketResponse{}, a.ticketErr
	}
	return TicketResponse{Token: "ticket"}, nil
}
