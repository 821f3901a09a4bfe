package service

import (
	"sync"

	"go.uber.org/zap"
)

// Cue is a fire-and-forget signal for the presentation layer.
type Cue string

const (
	CueTaskCreated   Cue = "task-created"
	CueTaskCompleted Cue = "task-completed"
	CueTaskDeleted   Cue = "task-deleted"
	CueUIClick       Cue = "ui-click"
)

// Notifier receives cues. Implementations may be slow or fail; callers never wait.
type Notifier interface {
	Notify(cue Cue)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Cue)

func (f NotifierFunc) Notify(cue Cue) { f(cue) }

type nopNotifier struct{}

func (nopNotifier) Notify(Cue) {}

// NopNotifier drops every cue.
var NopNotifier Notifier = nopNotifier{}

type delivery struct {
	to  Notifier
	cue Cue
}

// Feedback delivers cues on a single background goroutine. A full queue drops
// the cue; a panicking notifier is logged and skipped.
type Feedback struct {
	mu     sync.RWMutex
	closed bool
	queue  chan delivery
	done   chan struct{}
	log    *zap.Logger
}

func NewFeedback(log *zap.Logger, buffer int) *Feedback {
	if log == nil {
		log = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	f := &Feedback{
		queue: make(chan delivery, buffer),
		done:  make(chan struct{}),
		log:   log,
	}
	go f.run()
	return f
}

// For returns a Notifier that hands cues for n to the background goroutine.
func (f *Feedback) For(n Notifier) Notifier {
	return NotifierFunc(func(cue Cue) { f.send(delivery{to: n, cue: cue}) })
}

// Close stops accepting cues and waits for queued ones to be delivered.
func (f *Feedback) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()
	<-f.done
}

func (f *Feedback) send(d delivery) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- d:
	default:
		f.log.Warn("feedback queue full, cue dropped", zap.String("cue", string(d.cue)))
	}
}

func (f *Feedback) run() {
	defer close(f.done)
	for d := range f.queue {
		f.deliver(d)
	}
}

func (f *Feedback) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("feedback notifier panicked", zap.String("cue", string(d.cue)), zap.Any("panic", r))
		}
	}()
	d.to.Notify(d.cue)
}
