package bql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inferlab/bqldb/internal/bqlfn"
	"github.com/inferlab/bqldb/internal/compile"
	"github.com/inferlab/bqldb/pkg/bqlerr"
	"github.com/inferlab/bqldb/pkg/parser"
)

// Execute parses and runs exactly one BQL phrase. Query phrases return a
// live cursor; everything else returns an empty, already-exhausted one.
// Parameters are positional; pass one map[string]any to bind named
// parameters.
func (b *BDB) Execute(ctx context.Context, text string, params ...any) (*Cursor, error) {
	phrase, err := parser.ParsePhrase(text)
	if err != nil {
		return nil, err
	}
	return b.executePhrase(ctx, phrase, params)
}

// ExecuteScript runs a multi-phrase script in order, discarding result
// rows. The first error aborts the remainder.
func (b *BDB) ExecuteScript(ctx context.Context, text string, params ...any) error {
	phrases, err := parser.Parse(text)
	if err != nil {
		return err
	}
	for _, phrase := range phrases {
		cur, err := b.executePhrase(ctx, phrase, params)
		if err != nil {
			return err
		}
		if err := cur.drain(); err != nil {
			return err
		}
	}
	return nil
}

// executePhrase dispatches one parsed phrase.
func (b *BDB) executePhrase(ctx context.Context, phrase parser.Phrase, params []any) (cur *Cursor, err error) {
	if err := b.checkInterrupt(); err != nil {
		return nil, err
	}
	b.memo.Reset()
	// Data snapshots must reflect this phrase's view of the database.
	b.popData = make(map[int64]*bqlfn.PopData)

	defer func() {
		if err != nil {
			b.logger.Debug("phrase failed", slog.String("error", err.Error()))
		}
	}()

	switch n := phrase.(type) {
	case *parser.Begin:
		return emptyCursor(b), b.begin(ctx)
	case *parser.Commit:
		return emptyCursor(b), b.commit(ctx)
	case *parser.Rollback:
		return emptyCursor(b), b.rollback(ctx)

	case *parser.CreateTableAs:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.createTableAs(ctx, n, params)
		})
	case *parser.DropTable:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.dropTable(ctx, n)
		})
	case *parser.AlterTable:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.alterTable(ctx, n)
		})

	case *parser.CreatePopulation:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.createPopulation(ctx, n)
		})
	case *parser.AlterPopulation:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.alterPopulation(ctx, n)
		})
	case *parser.DropPopulation:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.dropPopulation(ctx, n)
		})
	case *parser.CreateGenerator:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.createGenerator(ctx, n)
		})
	case *parser.AlterGenerator:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.alterGenerator(ctx, n)
		})
	case *parser.DropGenerator:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.dropGenerator(ctx, n)
		})
	case *parser.Initialize:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.initializeModels(ctx, n)
		})
	case *parser.DropModels:
		return emptyCursor(b), b.inInternalTxn(ctx, func() error {
			return b.dropModels(ctx, n)
		})
	case *parser.Analyze:
		return emptyCursor(b), b.analyze(ctx, n)

	case parser.Query:
		return b.executeQuery(ctx, n, params)

	default:
		return nil, bqlerr.Internalf("unhandled phrase %T", phrase)
	}
}

// executeQuery compiles and steps a query phrase.
func (b *BDB) executeQuery(ctx context.Context, q parser.Query, params []any) (*Cursor, error) {
	out, err := b.compileQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := b.prepareOperators(ctx, out); err != nil {
		return nil, err
	}

	positional, named := splitParams(params)
	if out.Sim != nil {
		sql, err := b.materializeSimulation(ctx, out.Sim, positional, named)
		if err != nil {
			b.dropTempTables(ctx)
			return nil, err
		}
		out.SQL = sql
	}

	b.logger.Debug("executing", slog.String("sql", out.SQL))
	rows, err := b.conn.QueryContext(ctx, out.SQL, bindArgs(positional, named)...)
	if err != nil {
		b.dropTempTables(ctx)
		return nil, queryError(err)
	}
	return newCursor(b, rows), nil
}

// compileQuery lowers a query against the current catalog.
func (b *BDB) compileQuery(ctx context.Context, q parser.Query) (*compile.Output, error) {
	env := &compile.Env{
		Ctx:        ctx,
		Ex:         b.conn,
		Cat:        b.cat,
		Handle:     b.handle,
		WizardMode: b.cfg.WizardMode,
	}
	return compile.Query(env, q)
}

// prepareOperators warms every cache a statement's operators will read:
// generator state, model lists, population data.
func (b *BDB) prepareOperators(ctx context.Context, out *compile.Output) error {
	for _, genID := range out.Generators {
		if err := b.ensureGenerator(ctx, genID); err != nil {
			return err
		}
		// ensureGenerator prefetches on first load only; the data
		// snapshot is per-phrase.
		if gi, ok := b.gens[genID]; ok {
			if err := b.prefetchPopData(ctx, gi.gen.PopulationID); err != nil {
				return err
			}
		}
	}
	for _, popID := range out.NeedsData {
		if err := b.prefetchPopData(ctx, popID); err != nil {
			return err
		}
	}
	if out.Sim != nil {
		if err := b.ensureGenerator(ctx, out.Sim.Gen.ID); err != nil {
			return err
		}
	}
	return nil
}

// checkInterrupt consumes a pending interrupt, rolling back any open
// user transaction.
func (b *BDB) checkInterrupt() error {
	if !b.interrupt.CompareAndSwap(true, false) {
		return nil
	}
	if b.inTxn {
		_, _ = b.conn.ExecContext(context.Background(), "ROLLBACK")
		b.inTxn = false
		b.invalidateAll()
	}
	return bqlerr.ErrCancelled
}

// splitParams separates positional parameters from an optional single
// map of named ones.
func splitParams(params []any) ([]any, map[string]any) {
	var positional []any
	named := map[string]any{}
	for _, p := range params {
		if m, ok := p.(map[string]any); ok {
			for k, v := range m {
				named[k] = v
			}
			continue
		}
		positional = append(positional, p)
	}
	return positional, named
}

// bindArgs builds the driver argument list: positional values in order,
// named values via sql.Named.
func bindArgs(positional []any, named map[string]any) []any {
	args := make([]any, 0, len(positional)+len(named))
	args = append(args, positional...)
	for k, v := range named {
		args = append(args, sql.Named(k, v))
	}
	return args
}

// queryError folds engine-reported operator failures back into their
// typed kinds where the driver flattened them to strings.
func queryError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), bqlerr.ErrCancelled.Error()) {
		return bqlerr.ErrCancelled
	}
	return fmt.Errorf("query failed: %w", err)
}
