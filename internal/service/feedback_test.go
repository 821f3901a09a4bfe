package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFeedback_DeliversInOrder(t *testing.T) {
	f := NewFeedback(zap.NewNop(), 8)
	rec := &cueRecorder{}
	n := f.For(rec)

	n.Notify(CueTaskCreated)
	n.Notify(CueTaskCompleted)
	f.Close()

	assert.Equal(t, []Cue{CueTaskCreated, CueTaskCompleted}, rec.All())
}

func TestFeedback_PanickingNotifierIsSkipped(t *testing.T) {
	f := NewFeedback(nil, 8)
	rec := &cueRecorder{}
	bad := f.For(NotifierFunc(func(Cue) { panic("speaker unplugged") }))
	good := f.For(rec)

	assert.NotPanics(t, func() {
		bad.Notify(CueTaskDeleted)
		good.Notify(CueTaskDeleted)
		f.Close()
	})
	assert.Equal(t, []Cue{CueTaskDeleted}, rec.All())
}

func TestFeedback_FullQueueDropsWithoutBlocking(t *testing.T) {
	f := NewFeedback(nil, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	blocker := f.For(NotifierFunc(func(Cue) {
		close(started)
		<-release
	}))
	rec := &cueRecorder{}
	n := f.For(rec)

	blocker.Notify(CueUIClick)
	<-started
	n.Notify(CueTaskCreated)
	n.Notify(CueTaskCreated)
	n.Notify(CueTaskCreated)
	close(release)
	f.Close()

	assert.Equal(t, []Cue{CueTaskCreated}, rec.All())
}

func TestFeedback_SendAfterCloseIsIgnored(t *testing.T) {
	f := NewFeedback(nil, 1)
	f.Close()
	f.Close()
	assert.NotPanics(t, func() { f.For(NopNotifier).Notify(CueUIClick) })
}
