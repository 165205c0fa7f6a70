package notify

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/alfredjeanlab/feedpulse/internal/model"
)

// deliver hands ev to reg inside a failure boundary and reports whether reg
// is still connected afterwards.
func (e *Engine) deliver(ctx context.Context, reg *registration, ev model.Event) bool {
	e.mu.RLock()
	current := e.registry.current(reg)
	e.mu.RUnlock()
	if !current {
		return false
	}

	delivered, derr := e.invoke(ctx, reg, ev)
	if derr != nil {
		e.fault(reg, ev, derr)
		return false
	}
	if delivered {
		e.cfg.recorder.Delivered(ev)
	}
	return true
}

// invoke evaluates the filter and runs the handler, converting errors,
// panics and overrun deadlines into a *DeliveryError.
func (e *Engine) invoke(ctx context.Context, reg *registration, ev model.Event) (delivered bool, derr *DeliveryError) {
	newErr := func() *DeliveryError {
		return &DeliveryError{
			SubscriberID: reg.sub.ID,
			ProjectID:    reg.sub.ProjectID,
			EventID:      ev.ID,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			derr = newErr()
			derr.Panic = r
			derr.Stack = debug.Stack()
			delivered = false
		}
	}()

	ev = detach(ev)
	if f := reg.sub.Filter; f != nil && !f.Match(ev) {
		return false, nil
	}

	hctx := ctx
	if e.cfg.handlerTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, e.cfg.handlerTimeout)
		defer cancel()
	}

	err := reg.sub.Handler.Handle(hctx, ev)
	if err == nil && e.cfg.handlerTimeout > 0 && errors.Is(hctx.Err(), context.DeadlineExceeded) {
		err = ErrHandlerTimeout
	}
	if err != nil {
		derr = newErr()
		derr.Err = err
		return false, derr
	}
	return true, nil
}

// fault disconnects reg after a handler fault.
func (e *Engine) fault(reg *registration, ev model.Event, derr *DeliveryError) {
	e.mu.Lock()
	removed := e.registry.remove(reg)
	active := e.registry.count(reg.sub.ProjectID)
	e.mu.Unlock()

	if derr.Panicked() {
		e.cfg.logger.Error("notify: subscriber handler panicked",
			"subscriber_id", reg.sub.ID,
			"project_id", reg.sub.ProjectID,
			"event_id", ev.ID,
			"panic", derr.Panic,
			"stack", string(derr.Stack))
	} else {
		e.cfg.logger.Warn("notify: subscriber handler failed",
			"subscriber_id", reg.sub.ID,
			"project_id", reg.sub.ProjectID,
			"event_id", ev.ID,
			"err", derr.Err)
	}

	e.cfg.recorder.Faulted(ev, derr)
	if removed {
		e.cfg.recorder.SubscribersChanged(reg.sub.ProjectID, active)
		notifyDisconnect(reg, derr)
	}
}

// notifyDisconnect runs the subscriber's OnDisconnect callback, if any,
// without letting it escape.
func notifyDisconnect(reg *registration, err error) {
	if reg.sub.OnDisconnect == nil {
		return
	}
	defer func() { _ = recover() }()
	reg.sub.OnDisconnect(err)
}
