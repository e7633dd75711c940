package browser

import (
	"context"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

var (
	methodTargetCrashed  = proto.TargetTargetCrashed{}.ProtoEvent()
	methodTargetDetached = proto.TargetDetachedFromTarget{}.ProtoEvent()
	methodInspectorGone  = proto.InspectorDetached{}.ProtoEvent()
)

// drainer consumes every inbound protocol event for the life of a session.
// An unconsumed subscription buffers without bound and eventually stalls
// the connection, so it must run until the session is closed.
type drainer struct {
	cancel context.CancelFunc
	done   chan struct{}

	seen    atomic.Int64
	crashes atomic.Int64
}

func startDrainer(events <-chan *rod.Message) *drainer {
	ctx, cancel := context.WithCancel(context.Background())
	d := &drainer{cancel: cancel, done: make(chan struct{})}
	go d.run(ctx, events)
	return d
}

func (d *drainer) run(ctx context.Context, events <-chan *rod.Message) {
	defer close(d.done)
	defer func() {
		if r := recover(); r != nil {
			L_error("browser: event drainer panicked", "panic", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				L_debug("browser: event stream closed", "events", d.seen.Load())
				return
			}
			d.seen.Add(1)
			d.observe(msg)
		}
	}
}

func (d *drainer) observe(msg *rod.Message) {
	if msg == nil {
		return
	}
	switch msg.Method {
	case methodTargetCrashed:
		d.crashes.Add(1)
		L_warn("browser: target crashed", "session", msg.SessionID)
	case methodTargetDetached:
		L_debug("browser: target detached", "session", msg.SessionID)
	case methodInspectorGone:
		L_warn("browser: inspector detached", "session", msg.SessionID)
	}
}

// stop halts the drainer and waits for it to exit. Safe to call twice.
func (d *drainer) stop() {
	d.cancel()
	<-d.done
}
