package notify

import (
	"context"
	"sync"

	"github.com/familyboard/core/internal/ports"
)

// DeferredRegistrar runs the wrapped registrar's Init once in the background;
// Login and AddTag wait for it to finish before calling through.
type DeferredRegistrar struct {
	inner ports.DeviceRegistrar

	once    sync.Once
	ready   chan struct{}
	initErr error
}

var _ ports.DeviceRegistrar = (*DeferredRegistrar)(nil)

// NewDeferredRegistrar wraps inner.
func NewDeferredRegistrar(inner ports.DeviceRegistrar) *DeferredRegistrar {
	return &DeferredRegistrar{inner: inner, ready: make(chan struct{})}
}

// Start begins initialization without waiting for it.
func (d *DeferredRegistrar) Start(ctx context.Context) {
	d.once.Do(func() {
		go func() {
			d.initErr = d.inner.Init(ctx)
			close(d.ready)
		}()
	})
}

// Init starts initialization if needed and waits for the result.
func (d *DeferredRegistrar) Init(ctx context.Context) error {
	d.Start(context.WithoutCancel(ctx))
	return d.wait(ctx)
}

func (d *DeferredRegistrar) Login(ctx context.Context, externalID string) error {
	if err := d.wait(ctx); err != nil {
		return err
	}
	return d.inner.Login(ctx, externalID)
}

func (d *DeferredRegistrar) AddTag(ctx context.Context, externalID, key, value string) error {
	if err := d.wait(ctx); err != nil {
		return err
	}
	return d.inner.AddTag(ctx, externalID, key, value)
}

func (d *DeferredRegistrar) wait(ctx context.Context) error {
	select {
	case <-d.ready:
		return d.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
