package recording

import (
	"sync"

	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// ContextHolder holds the resolved recording context between the moment the
// capture screen becomes active and the upload call. The lifecycle is
// explicit: Set once on screen activation, Take once at upload time, Clear on
// every exit path (cancel, error, successful save). A context left behind
// would leak into the next recording.
type ContextHolder struct {
	mu     sync.Mutex
	ctx    *Context
	logger *logger.Logger
}

// NewContextHolder creates an empty context holder
func NewContextHolder(log *logger.Logger) *ContextHolder {
	return &ContextHolder{
		logger: log.Named("ctx-holder"),
	}
}

// Set stores the resolved context, replacing any previous one
func (h *ContextHolder) Set(ctx Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx != nil {
		h.logger.Warn("Replacing unconsumed recording context",
			logger.String("previous_type", string(h.ctx.Type)))
	}
	h.ctx = &ctx
}

// Get returns the current context without consuming it
func (h *ContextHolder) Get() (Context, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx == nil {
		return Context{}, false
	}
	return *h.ctx, true
}

// Take returns and clears the current context. The upload path uses Take so
// the context cannot be consumed twice.
func (h *ContextHolder) Take() (Context, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx == nil {
		return Context{}, false
	}
	ctx := *h.ctx
	h.ctx = nil
	return ctx, true
}

// Clear drops the current context, if any
func (h *ContextHolder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx = nil
}
