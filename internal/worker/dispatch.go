package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/pkg/protocol"
)

// JobKind names the work a job carries.
type JobKind uint8

const (
	JobRender JobKind = iota + 1
	JobRasterize
)

func (k JobKind) String() string {
	switch k {
	case JobRender:
		return "render"
	case JobRasterize:
		return "rasterize"
	default:
		return "unknown"
	}
}

// JobState is the progress of a dispatched job. States only move forward.
type JobState uint8

const (
	StateCreated JobState = iota + 1
	StateDispatched
	StateRasterizing
	StateCompletionPosted
	StateResolved
)

var stateNames = [...]string{
	StateCreated:          "created",
	StateDispatched:       "dispatched",
	StateRasterizing:      "rasterizing",
	StateCompletionPosted: "completion-posted",
	StateResolved:         "resolved",
}

func (s JobState) String() string {
	if int(s) < len(stateNames) && stateNames[s] != "" {
		return stateNames[s]
	}
	return "unknown"
}

// nativeIDLimit splits the completion id space: ids below it are issued by
// engine code, ids from it upwards by the dispatcher.
const nativeIDLimit = 1 << 31

// RenderJob asks a worker to draw pictures into a surface.
type RenderJob struct {
	Thread     ThreadID
	Surface    uint32
	Pictures   uint32 // guest pointer to an array of picture handles
	Count      uint32
	CallbackID uint32
	// RasterStart is set by the worker when it starts the job, in
	// milliseconds on the main thread clock.
	RasterStart float64
}

// RasterJob asks a worker to encode an image.
type RasterJob struct {
	Thread     ThreadID
	Surface    uint32
	Image      uint32
	Format     uint32
	CallbackID uint32
}

// RenderResult is the payload of a completed render job.
type RenderResult struct {
	Surface     uint32
	CallbackID  uint32
	Bitmaps     []*canvas.Bitmap
	RasterStart float64
	RasterEnd   float64
}

// Close releases the bitmaps.
func (r *RenderResult) Close() {
	for _, b := range r.Bitmaps {
		b.Close()
	}
}

// RasterResult is the payload of a completed rasterize job. Data points to
// the encoded bytes in guest memory.
type RasterResult struct {
	Surface    uint32
	CallbackID uint32
	Data       uint32
}

// Future is the pending result of a job.
type Future[T any] struct {
	id   uint32
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any](id uint32) *Future[T] {
	return &Future[T]{id: id, done: make(chan struct{})}
}

// ID returns the completion id of the job.
func (f *Future[T]) ID() uint32 {
	return f.id
}

// Done is closed when the job resolves or is rejected.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the result. A job whose completion never arrives never
// resolves; bound the wait with ctx.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) settle(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

type job struct {
	id      uint32
	kind    JobKind
	thread  ThreadID
	surface uint32
	native  bool
	state   JobState

	render *Future[*RenderResult]
	raster *Future[*RasterResult]
}

func (j *job) reject(err error) {
	if j.render != nil {
		j.render.settle(nil, err)
	}
	if j.raster != nil {
		j.raster.settle(nil, err)
	}
}

// Dispatcher tracks jobs handed to workers until their completion message
// reaches the main thread. Completions are matched by id, so workers may
// finish in any order.
type Dispatcher struct {
	pool   *Pool
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[uint32]*job
	next uint32
	sink CompletionSink
}

func newDispatcher(pool *Pool, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		pool:   pool,
		logger: logger.With(zap.String("component", "dispatcher")),
		jobs:   make(map[uint32]*job),
		next:   nativeIDLimit,
	}
}

// SetSink installs the receiver of completions for jobs engine code
// dispatched.
func (d *Dispatcher) SetSink(sink CompletionSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

// issueLocked returns an unused dispatcher id.
func (d *Dispatcher) issueLocked() uint32 {
	for {
		id := d.next
		d.next++
		if d.next == 0 {
			d.next = nativeIDLimit
		}
		if _, busy := d.jobs[id]; !busy {
			return id
		}
	}
}

// register assigns j its id and tracks it. attach runs before j becomes
// visible to completions and abandon.
func (d *Dispatcher) register(j *job, attach func(id uint32)) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if j.id == 0 {
		j.id = d.issueLocked()
	} else if _, dup := d.jobs[j.id]; dup {
		return 0, &DuplicateJobError{ID: j.id}
	}
	attach(j.id)
	j.state = StateCreated
	d.jobs[j.id] = j
	return j.id, nil
}

func (d *Dispatcher) post(j *job, msg *protocol.Message) error {
	if err := d.pool.post(MainThread, j.thread, msg); err != nil {
		d.mu.Lock()
		delete(d.jobs, j.id)
		d.mu.Unlock()
		return err
	}
	d.advance(j.id, StateDispatched)
	d.logger.Debug("Dispatched job",
		zap.Stringer("kind", j.kind),
		zap.Uint32("id", j.id),
		zap.Uint32("thread", uint32(j.thread)),
	)
	return nil
}

// Render hands job to its worker. A zero CallbackID gets a fresh id.
func (d *Dispatcher) Render(job RenderJob) (*Future[*RenderResult], error) {
	return d.render(job, false)
}

func (d *Dispatcher) render(rj RenderJob, native bool) (*Future[*RenderResult], error) {
	j := &job{id: rj.CallbackID, kind: JobRender, thread: rj.Thread, surface: rj.Surface, native: native}
	id, err := d.register(j, func(id uint32) { j.render = newFuture[*RenderResult](id) })
	if err != nil {
		return nil, err
	}

	err = d.post(j, &protocol.Message{
		S:            protocol.RenderPictures,
		Surface:      rj.Surface,
		Pictures:     rj.Pictures,
		PictureCount: rj.Count,
		CallbackID:   id,
	})
	if err != nil {
		return nil, err
	}
	return j.render, nil
}

// Rasterize hands job to its worker. A zero CallbackID gets a fresh id.
func (d *Dispatcher) Rasterize(job RasterJob) (*Future[*RasterResult], error) {
	return d.rasterize(job, false)
}

func (d *Dispatcher) rasterize(rj RasterJob, native bool) (*Future[*RasterResult], error) {
	j := &job{id: rj.CallbackID, kind: JobRasterize, thread: rj.Thread, surface: rj.Surface, native: native}
	id, err := d.register(j, func(id uint32) { j.raster = newFuture[*RasterResult](id) })
	if err != nil {
		return nil, err
	}

	err = d.post(j, &protocol.Message{
		S:          protocol.RasterizeImage,
		Surface:    rj.Surface,
		Image:      rj.Image,
		Format:     rj.Format,
		CallbackID: id,
	})
	if err != nil {
		return nil, err
	}
	return j.raster, nil
}

// State reports the progress of a pending job. Resolved jobs are forgotten.
func (d *Dispatcher) State(id uint32) (JobState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if j, ok := d.jobs[id]; ok {
		return j.state, true
	}
	return 0, false
}

// Pending returns the number of unresolved jobs.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

func (d *Dispatcher) advance(id uint32, state JobState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if j, ok := d.jobs[id]; ok && state > j.state {
		j.state = state
	}
}

// finish removes the job a completion refers to.
func (d *Dispatcher) finish(id uint32, kind JobKind) (*job, CompletionSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[id]
	if !ok || j.kind != kind {
		return nil, nil
	}
	j.state = StateResolved
	delete(d.jobs, id)
	return j, d.sink
}

func (d *Dispatcher) completeRender(ctx context.Context, t *Thread, msg *protocol.Message) {
	res := &RenderResult{
		Surface:     msg.Surface,
		CallbackID:  msg.CallbackID,
		RasterStart: msg.RasterStart,
		RasterEnd:   msg.RasterEnd,
	}
	for _, v := range msg.Transfer {
		if b, ok := v.(*canvas.Bitmap); ok {
			res.Bitmaps = append(res.Bitmaps, b)
		}
	}

	j, sink := d.finish(msg.CallbackID, JobRender)
	if j == nil {
		d.logger.Warn("Dropping render completion for an unknown job", zap.Uint32("id", msg.CallbackID))
		res.Close()
		return
	}
	if msg.Error != "" {
		j.render.settle(nil, &JobError{ID: j.id, Kind: j.kind, Thread: j.thread, Err: errors.New(msg.Error)})
		return
	}
	if j.native && sink != nil {
		if err := sink.RenderComplete(ctx, t, res); err != nil {
			d.logger.Error("Failed to deliver render completion",
				zap.Uint32("id", j.id),
				zap.Error(err),
			)
		}
	}
	j.render.settle(res, nil)
}

func (d *Dispatcher) completeRasterize(ctx context.Context, t *Thread, msg *protocol.Message) {
	j, sink := d.finish(msg.CallbackID, JobRasterize)
	if j == nil {
		d.logger.Warn("Dropping rasterize completion for an unknown job", zap.Uint32("id", msg.CallbackID))
		return
	}
	if msg.Error != "" {
		j.raster.settle(nil, &JobError{ID: j.id, Kind: j.kind, Thread: j.thread, Err: errors.New(msg.Error)})
		return
	}

	res := &RasterResult{Surface: msg.Surface, CallbackID: msg.CallbackID, Data: msg.Data}
	if j.native && sink != nil {
		if err := sink.RasterizeComplete(ctx, t, res); err != nil {
			d.logger.Error("Failed to deliver rasterize completion",
				zap.Uint32("id", j.id),
				zap.Error(err),
			)
		}
	}
	j.raster.settle(res, nil)
}

// abandon rejects every pending job with err.
func (d *Dispatcher) abandon(err error) {
	d.mu.Lock()
	jobs := d.jobs
	d.jobs = make(map[uint32]*job)
	d.mu.Unlock()

	for _, j := range jobs {
		j.reject(err)
	}
}
