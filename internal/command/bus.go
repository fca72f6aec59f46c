package command

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/log"
)

// DefaultBufferSize is the bus queue length used when none is given.
const DefaultBufferSize = 64

var (
	ErrBusFull = errors.New("command bus full")
	ErrClosed  = errors.New("command bus closed")
)

// Sender is what a session needs from the transport.
type Sender interface {
	// Send queues a fire-and-forget command.
	Send(msg Message) error
	// RequestClick asks for a trusted click at (x, y). reply is called once,
	// from the bus goroutine, with the outcome.
	RequestClick(x, y float64, reply func(Response)) error
}

// Handler executes commands taken off the bus.
type Handler interface {
	HandleCommand(ctx context.Context, msg Message) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) Response

// HandleCommand calls f.
func (f HandlerFunc) HandleCommand(ctx context.Context, msg Message) Response {
	return f(ctx, msg)
}

type envelope struct {
	payload []byte
	reply   func(Response)
}

// Bus is a buffered in-process transport. Sends never block: when the queue
// is full the command is dropped and ErrBusFull returned.
type Bus struct {
	mu     sync.RWMutex
	queue  chan envelope
	done   chan struct{}
	closed bool
	log    zerolog.Logger
}

var _ Sender = (*Bus)(nil)

// NewBus creates a bus with the given queue length.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{
		queue: make(chan envelope, size),
		done:  make(chan struct{}),
		log:   log.WithComponent("bus"),
	}
}

// Send queues msg.
func (b *Bus) Send(msg Message) error {
	return b.enqueue(msg, nil)
}

// RequestClick queues a TrustedSkipClick request.
func (b *Bus) RequestClick(x, y float64, reply func(Response)) error {
	if reply == nil {
		reply = func(Response) {}
	}
	return b.enqueue(Message{Action: TrustedSkipClick, X: x, Y: y}, reply)
}

func (b *Bus) enqueue(msg Message, reply func(Response)) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.queue <- envelope{payload: payload, reply: reply}:
		return nil
	default:
		return ErrBusFull
	}
}

// Close stops accepting commands. Serve drains what is already queued and
// returns.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

// Serve dispatches queued commands to h one at a time until ctx is done or
// the bus is closed. Requests still queued when ctx ends are answered with
// a failure so their callers are not left waiting.
func (b *Bus) Serve(ctx context.Context, h Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			b.abandon(err)
			return err
		}
		select {
		case <-ctx.Done():
			b.abandon(ctx.Err())
			return ctx.Err()
		case <-b.done:
			b.drain(ctx, h)
			return nil
		case env := <-b.queue:
			b.dispatch(ctx, h, env)
		}
	}
}

func (b *Bus) drain(ctx context.Context, h Handler) {
	for {
		select {
		case env := <-b.queue:
			b.dispatch(ctx, h, env)
		default:
			return
		}
	}
}

func (b *Bus) abandon(err error) {
	for {
		select {
		case env := <-b.queue:
			if env.reply != nil {
				env.reply(Failed(err))
			}
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, env envelope) {
	msg, err := Decode(env.payload)
	if err != nil {
		b.log.Error().Err(err).Msg("dropping malformed command")
		if env.reply != nil {
			env.reply(Failed(err))
		}
		return
	}
	resp := h.HandleCommand(ctx, msg)
	if env.reply != nil {
		env.reply(resp)
	}
}

// Reason maps a send error to a short metric label.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusFull):
		return "full"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrUnknownAction), errors.Is(err, ErrInvalidCoordinate):
		return "invalid"
	default:
		return "error"
	}
}
