package watch

import "sync"

// watcher is the live state for one registered key. Its status is written
// only by the owning run goroutine and by an explicit stop; both go through
// the mutex.
type watcher struct {
	cfg    Config
	key    Key
	stream Stream

	mu        sync.Mutex
	status    Status
	triggered bool
	stopped   bool
}

func newWatcher(cfg Config) *watcher {
	return &watcher{
		cfg:    cfg,
		key:    cfg.Key(),
		status: StatusConnecting,
	}
}

func (w *watcher) setStatus(s Status) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}

// arm marks the watcher triggered. It succeeds at most once, and never
// after a stop was requested.
func (w *watcher) arm() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.triggered || w.stopped {
		return false
	}
	w.triggered = true
	return true
}

// stop requests termination and closes the stream. Safe to call
// concurrently and more than once; a pipeline already in flight is left to
// complete but takes no further side-effecting step.
func (w *watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	if w.stream != nil {
		w.stream.Close()
	}
}

func (w *watcher) stopRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// discardCredentials drops the key material once the watcher is finished.
func (w *watcher) discardCredentials() {
	if w.cfg.Credentials != nil {
		w.cfg.Credentials.Zero()
		w.cfg.Credentials = nil
	}
}
