// Package protocol defines the messages exchanged between the main thread and
// worker threads.
//
// A message is tagged either by Cmd, for runtime thread management, or by S,
// for engine work. Exactly one of the two is set.
package protocol

// Runtime commands carried in Cmd.
const (
	CmdSpawnThread   = "spawnThread"
	CmdCleanupThread = "cleanupThread"
	CmdKillThread    = "killThread"
	CmdCheckMailbox  = "checkMailbox"
	CmdCancelThread  = "cancelThread"
)

// Engine messages carried in S.
const (
	RenderPictures          = "renderPictures"
	OnRenderComplete        = "onRenderComplete"
	RasterizeImage          = "rasterizeImage"
	OnRasterizeComplete     = "onRasterizeComplete"
	SetAssociatedObject     = "setAssociatedObject"
	DisposeAssociatedObject = "disposeAssociatedObject"
	DisposeSurface          = "disposeSurface"
	SyncTimeOrigin          = "syncTimeOrigin"
)

// Message is one posted message. Transfer holds objects whose ownership moves
// with the message; they are never encoded.
type Message struct {
	Cmd string `json:"cmd,omitempty"`
	S   string `json:"s,omitempty"`

	// Thread is the thread a runtime command refers to.
	Thread uint32 `json:"thread,omitempty"`
	// TargetThread routes a checkMailbox through the main thread.
	TargetThread uint32 `json:"targetThread,omitempty"`

	Surface      uint32 `json:"surface,omitempty"`
	CallbackID   uint32 `json:"callbackId,omitempty"`
	Pictures     uint32 `json:"pictures,omitempty"`
	PictureCount uint32 `json:"pictureCount,omitempty"`
	Image        uint32 `json:"image,omitempty"`
	Format       uint32 `json:"format,omitempty"`
	Data         uint32 `json:"data,omitempty"`
	ObjectID     uint32 `json:"objectId,omitempty"`

	// Times are milliseconds on the receiving thread's clock.
	TimeOrigin  float64 `json:"timeOrigin,omitempty"`
	RasterStart float64 `json:"rasterStart,omitempty"`
	RasterEnd   float64 `json:"rasterEnd,omitempty"`

	Error string `json:"error,omitempty"`

	Transfer []any `json:"-"`
}

// Tag returns the discriminator of m.
func (m *Message) Tag() string {
	if m.Cmd != "" {
		return m.Cmd
	}
	return m.S
}

// IsCommand reports whether m is a runtime command.
func (m *Message) IsCommand() bool {
	return m.Cmd != ""
}

var known = map[string]bool{
	CmdSpawnThread:          true,
	CmdCleanupThread:        true,
	CmdKillThread:           true,
	CmdCheckMailbox:         true,
	CmdCancelThread:         true,
	RenderPictures:          true,
	OnRenderComplete:        true,
	RasterizeImage:          true,
	OnRasterizeComplete:     true,
	SetAssociatedObject:     true,
	DisposeAssociatedObject: true,
	DisposeSurface:          true,
	SyncTimeOrigin:          true,
}

// Known reports whether tag names a message this package defines.
func Known(tag string) bool {
	return known[tag]
}
