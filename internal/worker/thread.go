package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
	"github.com/woxQAQ/skwasm-bridge/pkg/protocol"
)

// ThreadID identifies a pool thread. The main thread is 0.
type ThreadID uint32

// MainThread is the thread that dispatches jobs and receives completions.
const MainThread ThreadID = 0

type envelope struct {
	from ThreadID
	msg  *protocol.Message
}

// bitmapList collects the bitmaps captured during one render job.
type bitmapList struct {
	bitmaps []*canvas.Bitmap
}

// Thread is one event loop of the pool. Messages and proxied calls run one
// at a time on the loop goroutine, in the order they were posted.
//
// Each thread has its own GL state and its own handle tables. Handles it
// issues mean nothing on another thread.
type Thread struct {
	ID ThreadID
	GL *gl.Thread

	pool   *Pool
	logger *zap.Logger
	ctx    context.Context
	stop   context.CancelFunc

	inbox   *queue[envelope]
	mailbox *queue[func(context.Context)]

	// objects holds host values engine code refers to by handle: captured
	// bitmap lists, bitmaps and completion payloads.
	objects *handle.Table[any]

	mu        sync.Mutex
	canvases  map[handle.Handle]*canvas.Canvas
	listeners map[ThreadID]bool
	cancelJob context.CancelFunc

	origin time.Time
	offset atomic.Uint64
	done   chan struct{}
}

func newThread(p *Pool, id ThreadID) *Thread {
	logger := p.logger.With(zap.Uint32("thread", uint32(id)))
	t := &Thread{
		ID:        id,
		GL:        gl.NewThread(uint32(id), p.factory, p.logger),
		pool:      p,
		logger:    logger,
		inbox:     newQueue[envelope](),
		mailbox:   newQueue[func(context.Context)](),
		objects:   handle.New[any](handle.KindObject),
		canvases:  make(map[handle.Handle]*canvas.Canvas),
		listeners: make(map[ThreadID]bool),
		origin:    time.Now(),
		done:      make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(p.ctx)
	t.ctx = gl.WithThread(WithThread(ctx, t), t.GL)
	t.stop = cancel
	return t
}

type threadKey struct{}

// WithThread returns a context whose host calls run on behalf of t.
func WithThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// ThreadFrom returns the thread bound to ctx.
func ThreadFrom(ctx context.Context) (*Thread, bool) {
	t, ok := ctx.Value(threadKey{}).(*Thread)
	return t, ok
}

// MustThread returns the thread bound to ctx and panics with *NoThreadError
// when there is none.
func MustThread(ctx context.Context, function string) *Thread {
	t, ok := ThreadFrom(ctx)
	if !ok {
		panic(&NoThreadError{Function: function})
	}
	return t
}

// Context returns the context calls on this thread run under. It carries
// the thread and its GL state.
func (t *Thread) Context() context.Context {
	return t.ctx
}

// Now returns milliseconds on the main thread clock. Until the time origin
// is synchronized it uses this thread's own origin.
func (t *Thread) Now() float64 {
	local := float64(time.Since(t.origin)) / float64(time.Millisecond)
	return local + math.Float64frombits(t.offset.Load())
}

func (t *Thread) originMillis() float64 {
	return float64(t.origin.UnixNano()) / float64(time.Millisecond)
}

// Listen routes engine messages from source to this thread's handlers.
func (t *Thread) Listen(source ThreadID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners[source] = true
}

// Listening reports whether engine messages from source are handled.
func (t *Thread) Listening(source ThreadID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listeners[source]
}

// Canvas returns the canvas behind a context handle.
func (t *Thread) Canvas(h handle.Handle) (*canvas.Canvas, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.canvases[h]
	return c, ok
}

// AdoptCanvas creates a GL context on c and returns its handle. The canvas
// is addressed by that handle afterwards. It returns the null handle when no
// GL context is available for c.
func (t *Thread) AdoptCanvas(c *canvas.Canvas) (handle.Handle, error) {
	h, err := t.GL.CreateContext(c, t.pool.attrs)
	if err != nil {
		return handle.Null, err
	}
	if h == handle.Null {
		return handle.Null, nil
	}
	t.mu.Lock()
	t.canvases[h] = c
	t.mu.Unlock()
	return h, nil
}

// CreateCanvas creates a canvas owned by this thread with a GL context on it.
func (t *Thread) CreateCanvas(width, height int) (handle.Handle, error) {
	if err := canvas.CheckSize(width, height); err != nil {
		return handle.Null, err
	}
	return t.AdoptCanvas(canvas.New(t.pool.canvasID(), width, height, uint32(t.ID)))
}

// Object returns the host value behind h.
func (t *Thread) Object(h handle.Handle) (any, bool) {
	return t.objects.Get(h)
}

// AddObject stores v and returns the handle engine code uses for it.
func (t *Thread) AddObject(v any) handle.Handle {
	return t.objects.Insert(v)
}

// TakeObject removes and returns the host value behind h.
func (t *Thread) TakeObject(h handle.Handle) (any, bool) {
	return t.objects.Delete(h)
}

// Capture snapshots the canvas behind context handle h into the bitmap list
// list, creating the list when list is null. It returns the list handle.
func (t *Thread) Capture(h handle.Handle, width, height int, list handle.Handle) (handle.Handle, error) {
	c, ok := t.Canvas(h)
	if !ok {
		return list, fmt.Errorf("no canvas for context %d", h)
	}
	if err := c.Check(uint32(t.ID)); err != nil {
		return list, err
	}

	if list == handle.Null {
		list = t.objects.Insert(&bitmapList{})
	}
	v, _ := t.objects.Get(list)
	l, ok := v.(*bitmapList)
	if !ok {
		return list, fmt.Errorf("object %d is not a bitmap list", list)
	}
	l.bitmaps = append(l.bitmaps, c.Capture(width, height))
	return list, nil
}

// PostRenderComplete sends the bitmaps of a finished render job to the main
// thread. Ownership of the bitmaps moves with the message.
func (t *Thread) PostRenderComplete(surface, callbackID uint32, bitmaps []*canvas.Bitmap, rasterStart float64) error {
	transfer := make([]any, len(bitmaps))
	for i, b := range bitmaps {
		transfer[i] = b
	}
	t.pool.dispatcher.advance(callbackID, StateCompletionPosted)
	return t.pool.post(t.ID, MainThread, &protocol.Message{
		S:           protocol.OnRenderComplete,
		Surface:     surface,
		CallbackID:  callbackID,
		RasterStart: rasterStart,
		RasterEnd:   t.Now(),
		Transfer:    transfer,
	})
}

// PostRasterizeComplete sends the result of a finished rasterize job to the
// main thread.
func (t *Thread) PostRasterizeComplete(surface, callbackID, data uint32) error {
	t.pool.dispatcher.advance(callbackID, StateCompletionPosted)
	return t.pool.post(t.ID, MainThread, &protocol.Message{
		S:          protocol.OnRasterizeComplete,
		Surface:    surface,
		CallbackID: callbackID,
		Data:       data,
	})
}

func (t *Thread) postFailure(tag string, surface, callbackID uint32, err error) {
	t.pool.dispatcher.advance(callbackID, StateCompletionPosted)
	msg := &protocol.Message{S: tag, Surface: surface, CallbackID: callbackID, Error: err.Error()}
	if perr := t.pool.post(t.ID, MainThread, msg); perr != nil {
		t.logger.Error("Failed to post job failure", zap.Uint32("id", callbackID), zap.Error(perr))
	}
}

// run is the event loop.
func (t *Thread) run() {
	defer close(t.done)
	defer t.exit()

	t.logger.Debug("Thread started")
	for {
		env, ok := t.inbox.pop(t.ctx)
		if !ok {
			return
		}
		t.handle(env)
	}
}

func (t *Thread) handle(env envelope) {
	var pc panics.Catcher
	pc.Try(func() { t.dispatch(env) })
	if r := pc.Recovered(); r != nil {
		t.pool.crash(t.ID, r.AsError())
	}
}

func (t *Thread) dispatch(env envelope) {
	msg := env.msg
	if msg.IsCommand() {
		t.command(env)
		return
	}

	if !t.Listening(env.from) {
		t.logger.Warn("Dropping message without a listener",
			zap.String("message", msg.S),
			zap.Uint32("from", uint32(env.from)),
		)
		closeTransfer(msg)
		return
	}

	switch msg.S {
	case protocol.SyncTimeOrigin:
		t.offset.Store(math.Float64bits(t.originMillis() - msg.TimeOrigin))
	case protocol.RenderPictures:
		t.renderPictures(msg)
	case protocol.RasterizeImage:
		t.rasterizeImage(msg)
	case protocol.DisposeSurface:
		err := t.runJob(func(ctx context.Context) error {
			return t.pool.handlerOrErr().DisposeSurface(ctx, t, msg.Surface)
		})
		if err != nil {
			t.logger.Error("Failed to dispose surface", zap.Uint32("surface", msg.Surface), zap.Error(err))
		}
	case protocol.SetAssociatedObject:
		t.receiveObject(msg)
	case protocol.DisposeAssociatedObject:
		t.disposeObject(msg.ObjectID)
	case protocol.OnRenderComplete:
		t.pool.dispatcher.completeRender(t.ctx, t, msg)
	case protocol.OnRasterizeComplete:
		t.pool.dispatcher.completeRasterize(t.ctx, t, msg)
	default:
		t.logger.Warn("Unrecognized message", zap.String("message", msg.S))
	}
}

func (t *Thread) command(env envelope) {
	msg := env.msg
	switch msg.Cmd {
	case protocol.CmdCheckMailbox:
		t.drainMailbox()
	case protocol.CmdCancelThread:
		t.logger.Debug("Cancellation requested")
		t.cancelInFlight()
	case protocol.CmdSpawnThread:
		if _, err := t.pool.Spawn(); err != nil {
			t.logger.Error("Failed to spawn thread", zap.Error(err))
		}
	case protocol.CmdKillThread:
		if err := t.pool.Kill(ThreadID(msg.Thread)); err != nil {
			t.logger.Warn("Failed to kill thread", zap.Uint32("target", msg.Thread), zap.Error(err))
		}
	case protocol.CmdCleanupThread:
		t.pool.remove(ThreadID(msg.Thread))
	default:
		t.logger.Warn("Unrecognized command", zap.String("cmd", msg.Cmd))
	}
}

// runJob runs fn under a context Cancel can abort.
func (t *Thread) runJob(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(t.ctx)
	t.mu.Lock()
	t.cancelJob = cancel
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.cancelJob = nil
		t.mu.Unlock()
		cancel()
	}()
	return fn(ctx)
}

func (t *Thread) cancelInFlight() {
	t.mu.Lock()
	cancel := t.cancelJob
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (t *Thread) renderPictures(msg *protocol.Message) {
	t.pool.dispatcher.advance(msg.CallbackID, StateRasterizing)
	job := RenderJob{
		Thread:      t.ID,
		Surface:     msg.Surface,
		Pictures:    msg.Pictures,
		Count:       msg.PictureCount,
		CallbackID:  msg.CallbackID,
		RasterStart: t.Now(),
	}
	err := t.runJob(func(ctx context.Context) error {
		return t.pool.handlerOrErr().RenderPictures(ctx, t, job)
	})
	if err != nil {
		t.logger.Error("Render job failed", zap.Uint32("id", job.CallbackID), zap.Error(err))
		t.postFailure(protocol.OnRenderComplete, job.Surface, job.CallbackID, err)
	}
}

func (t *Thread) rasterizeImage(msg *protocol.Message) {
	t.pool.dispatcher.advance(msg.CallbackID, StateRasterizing)
	job := RasterJob{
		Thread:     t.ID,
		Surface:    msg.Surface,
		Image:      msg.Image,
		Format:     msg.Format,
		CallbackID: msg.CallbackID,
	}
	err := t.runJob(func(ctx context.Context) error {
		return t.pool.handlerOrErr().RasterizeImage(ctx, t, job)
	})
	if err != nil {
		t.logger.Error("Rasterize job failed", zap.Uint32("id", job.CallbackID), zap.Error(err))
		t.postFailure(protocol.OnRasterizeComplete, job.Surface, job.CallbackID, err)
	}
}

func (t *Thread) receiveObject(msg *protocol.Message) {
	if len(msg.Transfer) != 1 {
		t.logger.Error("Associated object message without exactly one object",
			zap.Uint32("id", msg.ObjectID),
			zap.Int("transfer", len(msg.Transfer)),
		)
		closeTransfer(msg)
		return
	}
	b, ok := msg.Transfer[0].(*canvas.Bitmap)
	if !ok {
		t.logger.Error("Associated object is not a bitmap", zap.Uint32("id", msg.ObjectID))
		return
	}

	ref := t.objects.Insert(b)
	if old, replaced := t.pool.images.store(t.ID, msg.ObjectID, b, ref); replaced {
		t.objects.Delete(old.ref)
	}
}

func (t *Thread) disposeObject(id uint32) {
	e, err := t.pool.images.remove(t.ID, id)
	if err != nil {
		t.logger.Warn("Failed to dispose associated object", zap.Uint32("id", id), zap.Error(err))
		return
	}
	t.objects.Delete(e.ref)
	e.value.Close()
}

func (t *Thread) drainMailbox() {
	for _, fn := range t.mailbox.drain() {
		var pc panics.Catcher
		pc.Try(func() {
			_ = t.runJob(func(ctx context.Context) error {
				fn(ctx)
				return nil
			})
		})
		if r := pc.Recovered(); r != nil {
			t.pool.crash(t.ID, r.AsError())
		}
	}
}

// exit releases what the thread owns and tells the main thread it is gone.
func (t *Thread) exit() {
	t.release()
	if t.ID == MainThread {
		return
	}
	err := t.pool.post(t.ID, MainThread, &protocol.Message{Cmd: protocol.CmdCleanupThread, Thread: uint32(t.ID)})
	if err != nil && !errors.Is(err, ErrClosed) {
		t.logger.Warn("Failed to post thread cleanup", zap.Error(err))
	}
}

func (t *Thread) release() {
	t.mu.Lock()
	canvases := t.canvases
	t.canvases = make(map[handle.Handle]*canvas.Canvas)
	t.mu.Unlock()

	for h := range canvases {
		t.GL.DestroyContext(h)
	}
	for _, e := range t.pool.images.removeOwned(t.ID) {
		e.value.Close()
	}
	t.objects.Each(func(h handle.Handle, v any) bool {
		closeObject(v)
		t.objects.Delete(h)
		return true
	})
	t.logger.Debug("Thread released")
}

func closeObject(v any) {
	switch o := v.(type) {
	case *canvas.Bitmap:
		o.Close()
	case *bitmapList:
		for _, b := range o.bitmaps {
			b.Close()
		}
	case *RenderResult:
		o.Close()
	}
}

func closeTransfer(msg *protocol.Message) {
	for _, v := range msg.Transfer {
		closeObject(v)
	}
}
