package admin

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/xxl-executor/internal/log"
)

// DefaultHeartbeatInterval matches the admin's registry beat period.
const DefaultHeartbeatInterval = 30 * time.Second

// Registrar is the part of the admin client the heartbeat needs.
type Registrar interface {
	Register(ctx context.Context) error
	Deregister(ctx context.Context) error
}

// Heartbeat registers on start and then on every tick until stopped. Stop
// deregisters exactly once.
type Heartbeat struct {
	registrar Registrar
	interval  time.Duration
	logger    *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewHeartbeat creates a heartbeat. A non-positive interval uses
// DefaultHeartbeatInterval.
func NewHeartbeat(registrar Registrar, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		registrar: registrar,
		interval:  interval,
		logger:    log.WithComponent("heartbeat"),
	}
}

// Start launches the registration loop. Calling it again is a no-op.
func (h *Heartbeat) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		ctx, h.cancel = context.WithCancel(ctx)
		h.done = make(chan struct{})
		go h.loop(ctx)
	})
}

func (h *Heartbeat) loop(ctx context.Context) {
	defer close(h.done)

	registered := false
	beat := func() {
		if err := h.registrar.Register(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Warn("registration failed", "error", err)
			registered = false
			return
		}
		if !registered {
			h.logger.Info("registered with admin")
			registered = true
			return
		}
		h.logger.Debug("heartbeat sent")
	}

	beat()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

// Stop ends the loop, waits for it and deregisters. Only the first call has
// any effect; a heartbeat that never started does not deregister.
func (h *Heartbeat) Stop(ctx context.Context) {
	h.stopOnce.Do(func() {
		h.startOnce.Do(func() {}) // a later Start must not launch a loop
		if h.cancel == nil {
			return
		}
		h.cancel()
		<-h.done

		if err := h.registrar.Deregister(ctx); err != nil {
			h.logger.Warn("deregistration failed", "error", err)
			return
		}
		h.logger.Info("deregistered from admin")
	})
}
