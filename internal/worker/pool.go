// Package worker runs engine work on a pool of threads, each an event loop
// with its own GL state, and delivers results back to the main thread.
//
// Threads talk only through posted messages (see pkg/protocol). Messages
// between two threads arrive in the order they were sent; messages from
// different threads interleave freely, so the dispatcher matches completions
// to jobs by id.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
	"github.com/woxQAQ/skwasm-bridge/pkg/protocol"
)

// Config holds pool settings.
type Config struct {
	// Count is the number of workers Start spawns.
	Count int `mapstructure:"count"`
	// SerializeMessages sends every message through the wire encoding, the
	// way a structured clone would.
	SerializeMessages bool `mapstructure:"serialize_messages"`
	// AutoListen registers message listeners between the main thread and
	// each worker at spawn. Engine builds that call
	// skwasm_registerMessageListener themselves can turn it off.
	AutoListen bool `mapstructure:"auto_listen"`
}

// DefaultConfig returns the default pool settings.
func DefaultConfig() Config {
	return Config{Count: 2, SerializeMessages: true, AutoListen: true}
}

// Pool owns the main thread and the workers.
type Pool struct {
	config  Config
	logger  *zap.Logger
	factory gl.Factory
	attrs   gl.Attributes

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu      sync.RWMutex
	threads map[ThreadID]*Thread
	nextID  ThreadID
	handler Handler
	onError func(ThreadID, error)
	started bool
	closed  bool

	main       *Thread
	dispatcher *Dispatcher
	images     *Associated[*canvas.Bitmap]
	canvases   atomic.Uint32
	closeOnce  sync.Once
}

// NewPool creates a pool with its main thread. Workers are spawned by
// Start. factory creates the GL devices of every thread; attrs are used for
// the contexts of offscreen and transferred canvases.
func NewPool(config Config, factory gl.Factory, attrs gl.Attributes, logger *zap.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		config:  config,
		logger:  logger.With(zap.String("component", "worker-pool")),
		factory: factory,
		attrs:   attrs,
		ctx:     ctx,
		cancel:  cancel,
		threads: make(map[ThreadID]*Thread),
		nextID:  MainThread + 1,
		images:  NewAssociated[*canvas.Bitmap](),
	}
	p.dispatcher = newDispatcher(p, logger)
	p.main = newThread(p, MainThread)
	p.threads[MainThread] = p.main
	return p
}

// SetHandler installs the executor of render and rasterize jobs.
func (p *Pool) SetHandler(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// OnError installs a hook called with every recovered worker crash. Crashes
// are logged either way.
func (p *Pool) OnError(fn func(ThreadID, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

// Dispatcher returns the job dispatcher of the main thread.
func (p *Pool) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// Images returns the registry of bitmaps associated with threads.
func (p *Pool) Images() *Associated[*canvas.Bitmap] {
	return p.images
}

// Main returns the main thread.
func (p *Pool) Main() *Thread {
	return p.main
}

// Start runs the main loop and spawns the configured workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Go(p.main.run)
	for i := 0; i < p.config.Count; i++ {
		if _, err := p.Spawn(); err != nil {
			return err
		}
	}
	p.logger.Info("Worker pool started", zap.Int("workers", p.config.Count))
	return nil
}

// Spawn starts a new worker thread.
func (p *Pool) Spawn() (*Thread, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	id := p.nextID
	p.nextID++
	t := newThread(p, id)
	p.threads[id] = t
	p.mu.Unlock()

	if p.config.AutoListen {
		t.Listen(MainThread)
		p.main.Listen(id)
	}
	p.wg.Go(t.run)

	p.logger.Debug("Spawned worker", zap.Uint32("thread", uint32(id)))
	return t, nil
}

// Thread returns a live thread.
func (p *Pool) Thread(id ThreadID) (*Thread, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	t, ok := p.threads[id]
	if !ok {
		return nil, &UnknownThreadError{Thread: id}
	}
	return t, nil
}

// Workers returns the ids of the live workers.
func (p *Pool) Workers() []ThreadID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]ThreadID, 0, len(p.threads))
	for id := range p.threads {
		if id != MainThread {
			ids = append(ids, id)
		}
	}
	return ids
}

// Kill stops a worker. Its loop exits after the message in progress and it
// posts cleanupThread to the main thread.
func (p *Pool) Kill(id ThreadID) error {
	if id == MainThread {
		return &UnknownThreadError{Thread: id}
	}
	t, err := p.Thread(id)
	if err != nil {
		return err
	}
	t.inbox.close()
	t.cancelInFlight()
	t.stop()
	return nil
}

// remove forgets an exited worker.
func (p *Pool) remove(id ThreadID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id != MainThread {
		delete(p.threads, id)
	}
}

func (p *Pool) handlerOrErr() Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.handler == nil {
		return missingHandler{}
	}
	return p.handler
}

func (p *Pool) crash(id ThreadID, err error) {
	p.logger.Error("Worker crashed", zap.Uint32("thread", uint32(id)), zap.Error(err))
	p.mu.RLock()
	fn := p.onError
	p.mu.RUnlock()
	if fn != nil {
		fn(id, err)
	}
}

func (p *Pool) canvasID() uint32 {
	return p.canvases.Add(1)
}

// post delivers msg from one thread to another.
func (p *Pool) post(from, to ThreadID, msg *protocol.Message) error {
	t, err := p.Thread(to)
	if err != nil {
		return err
	}
	if p.config.SerializeMessages {
		if msg, err = protocol.Clone(msg); err != nil {
			return err
		}
	} else if err := msg.Validate(); err != nil {
		return err
	}
	if !t.inbox.push(envelope{from: from, msg: msg}) {
		return &UnknownThreadError{Thread: to}
	}
	return nil
}

// Post sends msg from the main thread to thread to.
func (p *Pool) Post(to ThreadID, msg *protocol.Message) error {
	return p.post(MainThread, to, msg)
}

// Proxy queues fn on thread to's mailbox and wakes the thread. Calls run in
// the order they were queued.
func (p *Pool) Proxy(to ThreadID, fn func(ctx context.Context)) error {
	t, err := p.Thread(to)
	if err != nil {
		return err
	}
	if !t.mailbox.push(fn) {
		return &UnknownThreadError{Thread: to}
	}
	return p.post(MainThread, to, &protocol.Message{Cmd: protocol.CmdCheckMailbox, TargetThread: uint32(to)})
}

// Call runs fn on thread to and waits for it. It returns ErrCrashed when fn
// panics. Calling it from thread to's own loop blocks until ctx ends.
func (p *Pool) Call(ctx context.Context, to ThreadID, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	err := p.Proxy(to, func(ctx context.Context) {
		result := ErrCrashed
		defer func() { done <- result }()
		result = fn(ctx)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel asks a worker to abandon the job it is running. It does not wait:
// the worker may finish the job or process further messages first.
func (p *Pool) Cancel(id ThreadID) error {
	t, err := p.Thread(id)
	if err != nil {
		return err
	}
	t.cancelInFlight()
	return p.post(MainThread, id, &protocol.Message{Cmd: protocol.CmdCancelThread, Thread: uint32(id)})
}

// TransferCanvas moves control of c to thread to and creates a GL context
// for it there. It returns the context handle, which is only meaningful on
// that thread, or the null handle when no context could be created.
func (p *Pool) TransferCanvas(ctx context.Context, c *canvas.Canvas, to ThreadID) (handle.Handle, error) {
	if c == nil {
		return handle.Null, gl.ErrNilCanvas
	}
	t, err := p.Thread(to)
	if err != nil {
		return handle.Null, err
	}
	if err := c.TransferControlToOffscreen(uint32(to)); err != nil {
		return handle.Null, err
	}

	var h handle.Handle
	err = p.Call(ctx, to, func(context.Context) error {
		var err error
		h, err = t.AdoptCanvas(c)
		return err
	})
	return h, err
}

// SyncTimeOrigin tells thread to the main thread's time origin so the
// times it reports are on the main thread clock.
func (p *Pool) SyncTimeOrigin(to ThreadID) error {
	return p.post(MainThread, to, &protocol.Message{S: protocol.SyncTimeOrigin, TimeOrigin: p.main.originMillis()})
}

// DisposeSurface asks thread to release a surface it renders into.
func (p *Pool) DisposeSurface(thread ThreadID, surface uint32) error {
	return p.post(MainThread, thread, &protocol.Message{S: protocol.DisposeSurface, Surface: surface})
}

// SetAssociated hands b to thread owner under id. Ownership of the bitmap
// moves with the message.
func (p *Pool) SetAssociated(owner ThreadID, id uint32, b *canvas.Bitmap) error {
	return p.post(MainThread, owner, &protocol.Message{
		S:        protocol.SetAssociatedObject,
		ObjectID: id,
		Transfer: []any{b},
	})
}

// DisposeAssociated asks thread owner to close and forget id.
func (p *Pool) DisposeAssociated(owner ThreadID, id uint32) error {
	return p.post(MainThread, owner, &protocol.Message{S: protocol.DisposeAssociatedObject, ObjectID: id})
}

// Close stops every thread and rejects pending jobs with ErrClosed. It
// waits for the loops to exit or for ctx to end.
func (p *Pool) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		threads := make([]*Thread, 0, len(p.threads))
		for _, t := range p.threads {
			threads = append(threads, t)
		}
		started := p.started
		p.mu.Unlock()

		// Inboxes close first so failures of cancelled jobs are not delivered.
		for _, t := range threads {
			t.inbox.close()
		}
		for _, t := range threads {
			t.cancelInFlight()
		}
		p.cancel()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if !started {
			p.main.release()
		}

		p.dispatcher.abandon(ErrClosed)
		p.logger.Info("Worker pool closed")
	})
	return err
}
