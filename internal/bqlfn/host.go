// Package bqlfn implements the model-operator scalar functions that the
// compiler's emitted SQL calls into, and their registration with the
// engine.
//
// The functions are registered process-wide, once (the engine registers
// user functions globally). Each call's first argument is a connection
// handle baked in by the compiler; a process-wide registry maps handles
// to their host connection. Everything an operator needs during a call —
// backends, model lists, prefetched population data — is served by the
// Host from memory: the connection is busy stepping the outer statement,
// so operators must never issue SQL.
package bqlfn

import (
	"sync"

	"github.com/inferlab/bqldb/pkg/backend"
)

// Host is the slice of a connection the operators see. All methods must
// answer from state cached before the statement started.
type Host interface {
	// GenBackend resolves the backend serving a generator.
	GenBackend(genID int64) (backend.Backend, error)

	// GenModels lists a generator's model indices.
	GenModels(genID int64) ([]int, error)

	// PopData returns the prefetched column data of a population.
	PopData(popID int64) (*PopData, error)

	// GenPopData returns the population data backing a generator, when
	// prefetched; nil otherwise.
	GenPopData(genID int64) (*PopData, error)

	// Memo returns the per-statement predict memo.
	Memo() *PredictMemo

	// Interrupted reports the connection's interrupt flag.
	Interrupted() bool
}

// PopData is a snapshot of a population's modeled columns, aligned by
// row. The executor loads it before stepping statements that need data
// statistics.
type PopData struct {
	Stattypes map[int]string            // varno → stattype
	Cols      map[int][]backend.Value   // varno → values, row-aligned
}

// conns maps connection handles to hosts. Handles are issued by
// NextHandle at connection open and retired at close.
var conns sync.Map

var handleSeq struct {
	mu   sync.Mutex
	next int64
}

// NextHandle issues a fresh process-unique connection handle.
func NextHandle() int64 {
	handleSeq.mu.Lock()
	defer handleSeq.mu.Unlock()
	handleSeq.next++
	return handleSeq.next
}

// Attach registers a host under its handle.
func Attach(handle int64, h Host) {
	conns.Store(handle, h)
}

// Detach removes a host; its handle is never reused.
func Detach(handle int64) {
	conns.Delete(handle)
}

// host resolves a handle to its connection.
func host(handle int64) (Host, error) {
	v, ok := conns.Load(handle)
	if !ok {
		return nil, errorf("no connection for handle %d", handle)
	}
	return v.(Host), nil
}
