package dispatcher

import (
	"sync"

	"github.com/harun/pdfbot/pkg/session"
)

// inflight tracks the conversations with an event being handled, the
// operation each running transform belongs to, and the files that left the
// session but are still in use: inputs of a running transform and results
// waiting for Release.
type inflight struct {
	mu         sync.Mutex
	events     map[string]int
	transforms map[string]session.Operation
	files      map[string]string // path -> conversation id
}

func newInflight() *inflight {
	return &inflight{
		events:     make(map[string]int),
		transforms: make(map[string]session.Operation),
		files:      make(map[string]string),
	}
}

func (f *inflight) begin(conversationID string) {
	f.mu.Lock()
	f.events[conversationID]++
	f.mu.Unlock()
}

func (f *inflight) end(conversationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events[conversationID]--
	if f.events[conversationID] <= 0 {
		delete(f.events, conversationID)
	}
}

// active reports whether an event of conversationID is being handled
func (f *inflight) active(conversationID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[conversationID] > 0
}

func (f *inflight) startTransform(conversationID string, op session.Operation) {
	f.mu.Lock()
	f.transforms[conversationID] = op
	f.mu.Unlock()
}

func (f *inflight) endTransform(conversationID string) {
	f.mu.Lock()
	delete(f.transforms, conversationID)
	f.mu.Unlock()
}

func (f *inflight) transforming(conversationID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.transforms[conversationID]
	return ok
}

func (f *inflight) hold(conversationID string, paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		if p != "" {
			f.files[p] = conversationID
		}
	}
}

func (f *inflight) drop(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		delete(f.files, p)
	}
}

// held adds every file in use to refs
func (f *inflight) held(refs map[string]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for p := range f.files {
		refs[p] = true
	}
}
