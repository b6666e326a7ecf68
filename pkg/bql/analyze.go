package bql

import (
	"context"
	"log/slog"
	"time"

	"github.com/inferlab/bqldb/pkg/backend"
	"github.com/inferlab/bqldb/pkg/bqlerr"
	"github.com/inferlab/bqldb/pkg/parser"
)

// The ANALYZE driver loops over checkpoint-bounded chunks, committing an
// internal transaction after each so progress survives interruption.
// ANALYZE owns its transactions and therefore cannot run inside a
// user-started one. The interrupt flag is honored between chunks.

// defaultTimedChunk is the per-chunk iteration count for wall-clock
// budgets with no CHECKPOINT clause.
const defaultTimedChunk = 1

func (b *BDB) analyze(ctx context.Context, n *parser.Analyze) error {
	if b.inTxn {
		return &bqlerr.TransactionError{Message: "ANALYZE inside a transaction"}
	}
	gen, err := b.cat.GeneratorByName(ctx, b.conn, n.Generator)
	if err != nil {
		return err
	}
	be, ok := b.registry.Lookup(gen.Backend)
	if !ok {
		return &bqlerr.NameError{Kind: bqlerr.KindBackend, Name: gen.Backend}
	}
	if err := be.Load(ctx, b.conn, gen.ID); err != nil {
		return err
	}

	existing, err := b.cat.Models(ctx, b.conn, gen.ID)
	if err != nil {
		return err
	}
	have := make(map[int]bool, len(existing))
	var modelnos []int
	for _, m := range existing {
		have[m.Modelno] = true
	}
	if n.Models == nil {
		for _, m := range existing {
			modelnos = append(modelnos, m.Modelno)
		}
	} else {
		for _, i := range n.Models.Indices() {
			if !have[i] {
				return bqlerr.Schemaf("no model %d in generator %q", i, gen.Name)
			}
			modelnos = append(modelnos, i)
		}
	}
	if len(modelnos) == 0 {
		return bqlerr.Schemaf("generator %q has no models; INITIALIZE first", gen.Name)
	}

	program := backend.AnalysisProgram{Clauses: n.Program}

	// Chunk sizing: iteration budgets split on the checkpoint's
	// iteration count; wall-clock budgets run fixed-size chunks until
	// time is up. A zero budget admits the program without training.
	chunkIters := 0
	switch n.Budget.Unit {
	case parser.UnitIterations:
		chunkIters = n.Budget.Value
	default:
		chunkIters = defaultTimedChunk
	}
	if n.Checkpoint != nil && n.Checkpoint.Unit == parser.UnitIterations && n.Checkpoint.Value > 0 {
		chunkIters = n.Checkpoint.Value
	}

	deadline := time.Time{}
	switch n.Budget.Unit {
	case parser.UnitSeconds:
		deadline = time.Now().Add(time.Duration(n.Budget.Value) * time.Second)
	case parser.UnitMinutes:
		deadline = time.Now().Add(time.Duration(n.Budget.Value) * time.Minute)
	}
	runChunk := func(chunk int) error {
		return b.inInternalTxn(ctx, func() error {
			if err := be.AnalyzeModels(ctx, b.conn, gen.ID, modelnos, chunk, program); err != nil {
				return err
			}
			return b.cat.BumpIterations(ctx, b.conn, gen.ID, modelnos, chunk)
		})
	}

	start := time.Now()
	remaining := n.Budget.Value
	for {
		if err := b.checkInterrupt(); err != nil {
			return err
		}

		chunk := chunkIters
		if n.Budget.Unit == parser.UnitIterations {
			if chunk > remaining {
				chunk = remaining
			}
		} else if !time.Now().Before(deadline) {
			break
		}

		if err := runChunk(chunk); err != nil {
			return err
		}
		b.logger.Debug("analyze checkpoint",
			slog.String("generator", gen.Name),
			slog.Int("iterations", chunk),
			slog.Duration("elapsed", time.Since(start)))

		if n.Budget.Unit == parser.UnitIterations {
			remaining -= chunk
			if remaining <= 0 {
				break
			}
		}
	}

	b.invalidateGenerator(gen.ID)
	return nil
}
