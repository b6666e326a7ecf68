package bql

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/inferlab/bqldb/internal/compile"
	"github.com/inferlab/bqldb/pkg/backend"
	"github.com/inferlab/bqldb/pkg/bqlerr"
)

// SIMULATE has no table-valued function to lower onto, so the executor
// draws the requested rows through the backend, stores them in a private
// temp table inside the current transaction, and rewrites the query to
// read from it. Each simulated row comes from exactly one model, chosen
// uniformly.

func (b *BDB) materializeSimulation(ctx context.Context, plan *compile.SimPlan, positional []any, named map[string]any) (string, error) {
	limitVal, err := compile.EvalConst(plan.Limit, positional, named)
	if err != nil {
		return "", err
	}
	limit, ok := asInt(limitVal)
	if !ok {
		return "", bqlerr.Schemaf("SIMULATE LIMIT must be an integer, got %v", limitVal)
	}
	if limit < 0 {
		return "", bqlerr.Schemaf("SIMULATE LIMIT must be nonnegative, got %d", limit)
	}

	gi, ok := b.gens[plan.Gen.ID]
	if !ok {
		return "", bqlerr.Internalf("generator %d not loaded for simulation", plan.Gen.ID)
	}
	models := plan.Models
	if models == nil {
		models = gi.models
	}
	if len(models) == 0 {
		return "", bqlerr.Schemaf("generator %q has no models; INITIALIZE first", plan.Gen.Name)
	}

	constraints := make([]backend.Target, 0, len(plan.Given))
	for _, g := range plan.Given {
		v, err := compile.EvalConst(g.Value, positional, named)
		if err != nil {
			return "", err
		}
		constraints = append(constraints, backend.Target{Varno: g.Var.Varno, Value: v})
	}
	targets := make([]int, len(plan.Targets))
	for i, v := range plan.Targets {
		targets[i] = v.Varno
	}

	table := "bql_simtmp_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	cols := make([]string, len(plan.Targets))
	for i, v := range plan.Targets {
		cols[i] = quoted(v.Name)
	}
	create := fmt.Sprintf("CREATE TEMP TABLE %s (%s)", quoted(table), strings.Join(cols, ", "))
	if _, err := b.conn.ExecContext(ctx, create); err != nil {
		return "", err
	}
	b.tempTables = append(b.tempTables, table)

	// Assign each requested row to a model uniformly, then draw per
	// model in one batch.
	perModel := make(map[int]int, len(models))
	for i := int64(0); i < limit; i++ {
		perModel[models[rand.IntN(len(models))]]++
	}

	placeholders := "(" + strings.Repeat("?, ", len(cols)-1) + "?)"
	insert := fmt.Sprintf("INSERT INTO %s VALUES %s", quoted(table), placeholders)
	for _, m := range models {
		n := perModel[m]
		if n == 0 {
			continue
		}
		if err := b.checkInterrupt(); err != nil {
			return "", err
		}
		rows, err := gi.backend.SimulateJoint(ctx, plan.Gen.ID, m, targets, constraints, n)
		if err != nil {
			return "", err
		}
		for _, row := range rows {
			if _, err := b.conn.ExecContext(ctx, insert, row...); err != nil {
				return "", err
			}
		}
	}

	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoted(table)), nil
}

// dropTempTables removes the statement's materialization tables.
func (b *BDB) dropTempTables(ctx context.Context) {
	for _, t := range b.tempTables {
		_, _ = b.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted(t))
	}
	b.tempTables = nil
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	}
	return 0, false
}
