package storage

import (
	"context"

	"montage/internal/ports"
)

// Provider is the storage contract shared by the api and the worker.
type Provider = ports.StorageProvider

type pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the backend behind p. Providers without a health probe are
// reported healthy.
func Ping(ctx context.Context, p Provider) error {
	if pp, ok := p.(pinger); ok {
		return pp.Ping(ctx)
	}
	return nil
}
