package browser

import (
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// Lifecycle event names emitted by Page.lifecycleEvent.
const (
	eventInit             = "init"
	eventDOMContentLoaded = "DOMContentLoaded"
	eventNetworkIdle      = "networkIdle"
)

// lifecycle turns main-frame lifecycle events into channels that close once.
// Events that arrive before the first navigation commits are ignored so the
// blank start page cannot satisfy a wait.
type lifecycle struct {
	frame cdp.FrameID

	mu      sync.Mutex
	started bool

	domReady     chan struct{}
	domReadyOnce sync.Once
	idle         chan struct{}
	idleOnce     sync.Once
}

func newLifecycle(frame cdp.FrameID) *lifecycle {
	return &lifecycle{
		frame:    frame,
		domReady: make(chan struct{}),
		idle:     make(chan struct{}),
	}
}

// Listen is an event handler for chromedp.ListenTarget.
func (l *lifecycle) Listen(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok || e.FrameID != l.frame {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch e.Name {
	case eventInit:
		l.started = true
	case eventDOMContentLoaded:
		if l.started {
			l.domReadyOnce.Do(func() { close(l.domReady) })
			slog.Debug("lifecycle: DOM content loaded")
		}
	case eventNetworkIdle:
		if l.started {
			l.idleOnce.Do(func() { close(l.idle) })
			slog.Debug("lifecycle: network idle")
		}
	}
}

// DOMReady is closed once the main document has been parsed.
func (l *lifecycle) DOMReady() <-chan struct{} {
	return l.domReady
}

// NetworkIdle is closed once the main frame reports no network activity.
func (l *lifecycle) NetworkIdle() <-chan struct{} {
	return l.idle
}
