package ops

import (
	"github.com/rs/zerolog"

	"github.com/born-ml/kernels/internal/tensor"
)

// placed is satisfied by anything that reports where its memory lives.
type placed interface {
	Device() tensor.Device
}

// Resolver resolves which backend owns a buffer so mixed host/device
// arguments dispatch to the right implementation.
//
// Resolver holds no mutable state and is safe for concurrent use.
type Resolver struct {
	host   Ops
	device Ops
	logger zerolog.Logger
}

// NewResolver creates a resolver over a host backend and an optional device
// backend (nil when no device is available).
func NewResolver(host, device Ops, logger zerolog.Logger) *Resolver {
	if host == nil {
		panic("ops: resolver requires a host backend")
	}
	return &Resolver{
		host:   host,
		device: device,
		logger: logger.With().Str("component", "resolver").Logger(),
	}
}

// Host returns the host backend.
func (r *Resolver) Host() Ops {
	return r.host
}

// Device returns the device backend, or nil when none is configured.
func (r *Resolver) Device() Ops {
	return r.device
}

// Default returns the preferred backend: the device when present, else the host.
func (r *Resolver) Default() Ops {
	if r.device != nil {
		return r.device
	}
	return r.host
}

// Module returns the backend that owns x. Device-placed tensors and foreign
// handles resolve to the device backend when it serves their placement;
// everything else, including unrecognized values, resolves to the host.
func (r *Resolver) Module(x any) Ops {
	if r.device == nil {
		return r.host
	}

	var where tensor.Device
	switch v := x.(type) {
	case *tensor.RawTensor:
		if v == nil {
			return r.host
		}
		where = v.Device()
	case tensor.Foreign:
		where = v.Device()
	case placed:
		where = v.Device()
	default:
		r.logger.Debug().Type("buffer", x).Msg("unrecognized buffer, using host backend")
		return r.host
	}

	if where != tensor.CPU && where == r.device.Device() {
		return r.device
	}
	return r.host
}
