package service

import (
	"context"
	"fmt"
	"runtime"

	"github.com/CZERTAINLY/osal/internal/model"
)

// Unsupported is the strategy of platforms without a service control
// plane. It only validates the descriptor.
type Unsupported struct{}

func (Unsupported) Install(_ context.Context, d model.ServiceDescriptor) error {
	return unsupported(d)
}

func (Unsupported) Uninstall(_ context.Context, d model.ServiceDescriptor) error {
	return unsupported(d)
}

func (Unsupported) Start(_ context.Context, d model.ServiceDescriptor) error {
	return unsupported(d)
}

func (Unsupported) Stop(_ context.Context, d model.ServiceDescriptor) error {
	return unsupported(d)
}

func (Unsupported) Restart(_ context.Context, d model.ServiceDescriptor) error {
	return unsupported(d)
}

func (Unsupported) Query(_ context.Context, d model.ServiceDescriptor) error {
	return unsupported(d)
}

func unsupported(d model.ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return fmt.Errorf("service control on %s: %w", runtime.GOOS, model.ErrNotSupported)
}
