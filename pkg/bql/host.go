package bql

import (
	"context"
	"fmt"
	"strings"

	"github.com/inferlab/bqldb/internal/bqlfn"
	"github.com/inferlab/bqldb/internal/catalog"
	"github.com/inferlab/bqldb/pkg/backend"
	"github.com/inferlab/bqldb/pkg/bqlerr"
)

// hostView adapts a BDB to the model operators' Host interface. Every
// method answers from caches warmed before the statement started: the
// engine connection is busy stepping the statement while operators run.
type hostView BDB

func (h *hostView) GenBackend(genID int64) (backend.Backend, error) {
	gi, ok := h.gens[genID]
	if !ok {
		return nil, bqlerr.Internalf("generator %d not loaded before statement", genID)
	}
	return gi.backend, nil
}

func (h *hostView) GenModels(genID int64) ([]int, error) {
	gi, ok := h.gens[genID]
	if !ok {
		return nil, bqlerr.Internalf("generator %d not loaded before statement", genID)
	}
	return gi.models, nil
}

func (h *hostView) PopData(popID int64) (*bqlfn.PopData, error) {
	pd, ok := h.popData[popID]
	if !ok {
		return nil, bqlerr.Internalf("population %d data not prefetched", popID)
	}
	return pd, nil
}

func (h *hostView) GenPopData(genID int64) (*bqlfn.PopData, error) {
	gi, ok := h.gens[genID]
	if !ok {
		return nil, nil
	}
	return h.popData[gi.gen.PopulationID], nil
}

func (h *hostView) Memo() *bqlfn.PredictMemo {
	return h.memo
}

func (h *hostView) Interrupted() bool {
	return h.interrupt.Load()
}

// ---------- cache warming ----------

// ensureGenerator loads a generator's backend state and model list into
// the connection caches, plus its population's data for prediction
// stattypes.
func (b *BDB) ensureGenerator(ctx context.Context, genID int64) error {
	if _, ok := b.gens[genID]; ok {
		return nil
	}
	gen, err := b.cat.GeneratorByID(ctx, b.conn, genID)
	if err != nil {
		return err
	}
	be, ok := b.registry.Lookup(gen.Backend)
	if !ok {
		return &bqlerr.NameError{Kind: bqlerr.KindBackend, Name: gen.Backend}
	}
	if err := be.Load(ctx, b.conn, genID); err != nil {
		return err
	}
	models, err := b.cat.Models(ctx, b.conn, genID)
	if err != nil {
		return err
	}
	indices := make([]int, len(models))
	for i, m := range models {
		indices[i] = m.Modelno
	}
	b.gens[genID] = &genInfo{gen: gen, backend: be, models: indices}
	return b.prefetchPopData(ctx, gen.PopulationID)
}

// invalidateGenerator drops a generator's cached state, forcing a reload
// on next use.
func (b *BDB) invalidateGenerator(genID int64) {
	delete(b.gens, genID)
}

// invalidateAll clears every operator-facing cache. Used after ROLLBACK,
// when cached state may describe undone work.
func (b *BDB) invalidateAll() {
	b.gens = make(map[int64]*genInfo)
	b.popData = make(map[int64]*bqlfn.PopData)
	b.cat.InvalidateCache()
}

// prefetchPopData snapshots a population's modeled columns for the data
// statistics and prediction stattypes.
func (b *BDB) prefetchPopData(ctx context.Context, popID int64) error {
	if _, ok := b.popData[popID]; ok {
		return nil
	}
	pop, err := popByID(ctx, b, popID)
	if err != nil {
		return err
	}
	vars, err := b.cat.Variables(ctx, b.conn, popID)
	if err != nil {
		return err
	}

	pd := &bqlfn.PopData{
		Stattypes: make(map[int]string, len(vars)),
		Cols:      make(map[int][]backend.Value, len(vars)),
	}
	var manifest []*catalog.Variable
	for _, v := range vars {
		pd.Stattypes[v.Varno] = v.Stattype
		if v.Colno >= 0 {
			manifest = append(manifest, v)
		}
	}
	if len(manifest) > 0 {
		cols := make([]string, len(manifest))
		for i, v := range manifest {
			cols[i] = `"` + strings.ReplaceAll(v.Name, `"`, `""`) + `"`
		}
		q := fmt.Sprintf(`SELECT %s FROM "%s"`,
			strings.Join(cols, ", "),
			strings.ReplaceAll(pop.TableName, `"`, `""`))
		rows, err := b.conn.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		vals := make([]backend.Value, len(manifest))
		dest := make([]any, len(manifest))
		for i := range vals {
			dest[i] = &vals[i]
		}
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			for i, v := range manifest {
				pd.Cols[v.Varno] = append(pd.Cols[v.Varno], vals[i])
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}
	b.popData[popID] = pd
	return nil
}

// popByID resolves a population id; the catalog API is name-keyed, so
// this goes straight to the table.
func popByID(ctx context.Context, b *BDB, popID int64) (*catalog.Population, error) {
	p := &catalog.Population{}
	err := b.conn.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.table_id, t.name
		FROM bayesdb_population p
		JOIN bayesdb_table t ON t.id = p.table_id
		WHERE p.id = ?`,
		popID).Scan(&p.ID, &p.Name, &p.TableID, &p.TableName)
	if err != nil {
		return nil, bqlerr.Internalf("population %d vanished: %v", popID, err)
	}
	return p, nil
}
