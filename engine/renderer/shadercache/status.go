package shadercache

import (
	"sync"

	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type CompileStatus int

const (
	CompileStatusSuccess CompileStatus = iota
	CompileStatusError
)

func (s CompileStatus) String() string {
	if s == CompileStatusSuccess {
		return "success"
	}
	return "error"
}

// StatusCallback observes every stage compile. It must not call back into the cache,
// replacing the hook it was called from is fine.
type StatusCallback func(key string, status CompileStatus, diagnostic string, stage metadata.ShaderStage)

/**
 * @brief Holds an optional StatusCallback that tooling may replace from any
 * goroutine while compiles run on the render thread.
 */
type StatusHook struct {
	mu sync.Mutex
	cb StatusCallback
}

func NewStatusHook(cb StatusCallback) *StatusHook {
	return &StatusHook{cb: cb}
}

func (h *StatusHook) Set(cb StatusCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cb = cb
}

func (h *StatusHook) Clear() {
	h.Set(nil)
}

func (h *StatusHook) Notify(key string, status CompileStatus, diagnostic string, stage metadata.ShaderStage) {
	if h == nil {
		return
	}
	h.mu.Lock()
	cb := h.cb
	h.mu.Unlock()
	// called unlocked so the callback may Set or Clear the hook
	if cb != nil {
		cb(key, status, diagnostic, stage)
	}
}
