// Package ops defines the numeric operation contract shared by the host and
// device backends, the validation performed at the dispatch boundary, and the
// Resolver that picks the backend owning a given buffer.
//
// Every backend implements Ops with identical semantics; a caller selects one
// through a Resolver (or injects one directly) and never branches on device.
//
//	r := ops.NewResolver(cpu.New(), gpu, logger)
//	xp := r.Module(X)
//	Y, err := xp.Relu(X)
package ops
