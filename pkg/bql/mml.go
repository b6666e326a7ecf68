package bql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/inferlab/bqldb/pkg/backend"
	"github.com/inferlab/bqldb/pkg/bqlerr"
	"github.com/inferlab/bqldb/pkg/parser"
)

// Execution of DDL and model-definition phrases. Each runs inside a
// transaction (the user's, or an internal one per phrase).

// stattypes the core itself understands. Backends may bring more; those
// require wizard mode so typos fail loudly in normal operation.
var knownStattypes = map[string]bool{
	"numerical": true,
	"nominal":   true,
	"count":     true,
	"magnitude": true,
	"cyclic":    true,
}

func (b *BDB) checkStattype(st string) error {
	if knownStattypes[strings.ToLower(st)] || b.cfg.WizardMode {
		return nil
	}
	return bqlerr.Schemaf("unknown statistical type %q", st)
}

// ---------- DDL ----------

func (b *BDB) createTableAs(ctx context.Context, n *parser.CreateTableAs, params []any) error {
	out, err := b.compileQuery(ctx, n.Query)
	if err != nil {
		return err
	}
	if err := b.prepareOperators(ctx, out); err != nil {
		return err
	}
	positional, named := splitParams(params)
	if out.Sim != nil {
		sql, err := b.materializeSimulation(ctx, out.Sim, positional, named)
		if err != nil {
			return err
		}
		out.SQL = sql
		defer b.dropTempTables(ctx)
	}

	var sb strings.Builder
	sb.WriteString("CREATE ")
	if n.Temp {
		sb.WriteString("TEMP ")
	}
	sb.WriteString("TABLE ")
	if n.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(quoted(n.Name))
	sb.WriteString(" AS ")
	sb.WriteString(out.SQL)
	_, err = b.conn.ExecContext(ctx, sb.String(), bindArgs(positional, named)...)
	return err
}

func (b *BDB) dropTable(ctx context.Context, n *parser.DropTable) error {
	if tbl, err := b.cat.TableByName(ctx, b.conn, n.Name); err == nil {
		if err := b.cat.DropTable(ctx, b.conn, tbl.ID); err != nil {
			return err
		}
	}
	stmt := "DROP TABLE "
	if n.IfExists {
		stmt += "IF EXISTS "
	}
	_, err := b.conn.ExecContext(ctx, stmt+quoted(n.Name))
	return err
}

func (b *BDB) alterTable(ctx context.Context, n *parser.AlterTable) error {
	name := n.Table
	for _, cmd := range n.Cmds {
		switch c := cmd.(type) {
		case *parser.RenameTable:
			if _, err := b.conn.ExecContext(ctx,
				fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoted(name), quoted(c.To))); err != nil {
				return err
			}
			if tbl, err := b.cat.TableByName(ctx, b.conn, name); err == nil {
				if err := b.cat.RenameTable(ctx, b.conn, tbl.ID, c.To); err != nil {
					return err
				}
			}
			name = c.To
		case *parser.RenameColumn:
			if _, err := b.conn.ExecContext(ctx,
				fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
					quoted(name), quoted(c.Old), quoted(c.New))); err != nil {
				return err
			}
			if tbl, err := b.cat.TableByName(ctx, b.conn, name); err == nil {
				if err := b.cat.RenameColumn(ctx, b.conn, tbl.ID, c.Old, c.New); err != nil {
					return err
				}
			}
		case *parser.SetDefaultGenerator:
			if !b.cfg.WizardMode {
				return bqlerr.Schemaf("SET DEFAULT GENERATOR requires wizard mode")
			}
			tbl, err := b.cat.TableByName(ctx, b.conn, name)
			if err != nil {
				return err
			}
			gen, err := b.cat.GeneratorByName(ctx, b.conn, c.Generator)
			if err != nil {
				return err
			}
			if err := b.cat.SetDefaultGenerator(ctx, b.conn, tbl.ID, &gen.ID); err != nil {
				return err
			}
		case *parser.UnsetDefaultGenerator:
			if !b.cfg.WizardMode {
				return bqlerr.Schemaf("UNSET DEFAULT GENERATOR requires wizard mode")
			}
			tbl, err := b.cat.TableByName(ctx, b.conn, name)
			if err != nil {
				return err
			}
			if err := b.cat.SetDefaultGenerator(ctx, b.conn, tbl.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// ---------- Populations ----------

func (b *BDB) createPopulation(ctx context.Context, n *parser.CreatePopulation) error {
	if n.IfNotExists {
		if _, err := b.cat.PopulationByName(ctx, b.conn, n.Name); err == nil {
			return nil
		}
	}
	tbl, err := b.cat.EnsureTable(ctx, b.conn, n.Table)
	if err != nil {
		return err
	}
	cols, err := b.cat.Columns(ctx, b.conn, tbl.ID)
	if err != nil {
		return err
	}

	// Walk the schema clauses, then guess anything a GUESS clause
	// claimed. Columns that no clause covers are left out of the population.
	modeled := map[string]string{} // column → stattype
	ignored := map[string]bool{}
	var guessAll bool
	var guessCols []string
	have := map[string]bool{}
	for _, c := range cols {
		have[strings.ToLower(c)] = true
	}
	requireCol := func(name string) error {
		if !have[strings.ToLower(name)] {
			return &bqlerr.NameError{Kind: bqlerr.KindColumn, Name: name}
		}
		return nil
	}

	for _, clause := range n.Schema {
		switch c := clause.(type) {
		case *parser.ModelVars:
			if err := b.checkStattype(c.Stattype); err != nil {
				return err
			}
			for _, name := range c.Names {
				if err := requireCol(name); err != nil {
					return err
				}
				modeled[strings.ToLower(name)] = strings.ToLower(c.Stattype)
			}
		case *parser.IgnoreVars:
			for _, name := range c.Names {
				if err := requireCol(name); err != nil {
					return err
				}
				ignored[strings.ToLower(name)] = true
			}
		case *parser.GuessVars:
			if c.Star {
				guessAll = true
				continue
			}
			for _, name := range c.Names {
				if err := requireCol(name); err != nil {
					return err
				}
				guessCols = append(guessCols, name)
			}
		}
	}

	if guessAll {
		for _, col := range cols {
			k := strings.ToLower(col)
			if _, done := modeled[k]; !done && !ignored[k] {
				guessCols = append(guessCols, col)
			}
		}
	}
	for _, col := range guessCols {
		st, err := b.guessStattype(ctx, n.Table, col)
		if err != nil {
			return err
		}
		if st == "" {
			ignored[strings.ToLower(col)] = true
			continue
		}
		modeled[strings.ToLower(col)] = st
	}

	pop, err := b.cat.CreatePopulation(ctx, b.conn, n.Name, tbl.ID)
	if err != nil {
		return err
	}
	for colno, col := range cols {
		st, ok := modeled[strings.ToLower(col)]
		if !ok {
			continue
		}
		if _, err := b.cat.AddVariable(ctx, b.conn, pop.ID, col, st, colno, nil); err != nil {
			return err
		}
	}
	return nil
}

// Stattype guessing heuristics: constant or empty columns carry no
// information and are ignored; a column holding any non-numeric value is
// nominal; a numeric column is numerical if it holds any real value or has
// more than guessNominalCutoff distinct values; small all-integer domains
// are nominal.
const guessNominalCutoff = 20

func (b *BDB) guessStattype(ctx context.Context, table, col string) (string, error) {
	var distinct, total, numeric, floats int
	err := b.conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(DISTINCT %[1]s),
		       COUNT(%[1]s),
		       COUNT(CASE WHEN typeof(%[1]s) IN ('integer', 'real') THEN 1 END),
		       COUNT(CASE WHEN typeof(%[1]s) = 'real' THEN 1 END)
		FROM %[2]s`,
		quoted(col), quoted(table))).Scan(&distinct, &total, &numeric, &floats)
	if err != nil {
		return "", err
	}
	switch {
	case distinct <= 1:
		return "", nil // constant or empty: nothing to model
	case numeric < total:
		return "nominal", nil
	case floats > 0 || distinct > guessNominalCutoff:
		return "numerical", nil
	default:
		// small all-integer domains read as codes
		return "nominal", nil
	}
}

func (b *BDB) alterPopulation(ctx context.Context, n *parser.AlterPopulation) error {
	pop, err := b.cat.PopulationByName(ctx, b.conn, n.Population)
	if err != nil {
		return err
	}
	for _, cmd := range n.Cmds {
		switch c := cmd.(type) {
		case *parser.AddVariable:
			tbl, err := b.cat.TableByName(ctx, b.conn, pop.TableName)
			if err != nil {
				return err
			}
			colno, err := b.cat.ColnoOf(ctx, b.conn, tbl.ID, c.Name)
			if err != nil {
				return err
			}
			st := c.Stattype
			if st == "" {
				st, err = b.guessStattype(ctx, pop.TableName, c.Name)
				if err != nil {
					return err
				}
				if st == "" {
					return bqlerr.Schemaf("cannot guess a statistical type for %q", c.Name)
				}
			}
			if err := b.checkStattype(st); err != nil {
				return err
			}
			if _, err := b.cat.AddVariable(ctx, b.conn, pop.ID, c.Name, st, colno, nil); err != nil {
				return err
			}
		case *parser.SetStattypes:
			if err := b.checkStattype(c.Stattype); err != nil {
				return err
			}
			if err := b.cat.SetStattype(ctx, b.conn, pop.ID, c.Names, c.Stattype); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *BDB) dropPopulation(ctx context.Context, n *parser.DropPopulation) error {
	pop, err := b.cat.PopulationByName(ctx, b.conn, n.Name)
	if err != nil {
		if n.IfExists && isNameErr(err) {
			return nil
		}
		return err
	}
	inUse, err := b.cat.HasGenerators(ctx, b.conn, pop.ID)
	if err != nil {
		return err
	}
	if inUse {
		return bqlerr.Schemaf("population %q has generators; drop them first", pop.Name)
	}
	return b.cat.DropPopulation(ctx, b.conn, pop.ID)
}

// ---------- Generators ----------

// genSchema is the persisted form of a generator's opaque schema.
type genSchema struct {
	Backend string   `msgpack:"backend"`
	Clauses []string `msgpack:"clauses"`
}

func (b *BDB) createGenerator(ctx context.Context, n *parser.CreateGenerator) error {
	if n.IfNotExists {
		if _, err := b.cat.GeneratorByName(ctx, b.conn, n.Name); err == nil {
			return nil
		}
	}
	pop, err := b.cat.PopulationByName(ctx, b.conn, n.Population)
	if err != nil {
		return err
	}
	be, ok := b.registry.Lookup(n.Backend)
	if !ok {
		return &bqlerr.NameError{Kind: bqlerr.KindBackend, Name: n.Backend}
	}

	blob, err := msgpack.Marshal(&genSchema{Backend: n.Backend, Clauses: n.Schema})
	if err != nil {
		return err
	}
	gen, err := b.cat.CreateGenerator(ctx, b.conn, n.Name, pop.ID, be.Name(), blob)
	if err != nil {
		return err
	}

	vars, err := b.cat.Variables(ctx, b.conn, pop.ID)
	if err != nil {
		return err
	}
	bvars := make([]backend.Variable, 0, len(vars))
	for _, v := range vars {
		if v.Colno < 0 {
			continue
		}
		bvars = append(bvars, backend.Variable{
			Varno:    v.Varno,
			Name:     v.Name,
			Stattype: v.Stattype,
			Colno:    v.Colno,
		})
	}
	if err := be.CreateGenerator(ctx, b.conn, gen.ID, pop.TableName, bvars, n.Schema); err != nil {
		return err
	}
	b.logger.Info("created generator",
		slog.String("generator", n.Name),
		slog.String("backend", be.Name()),
		slog.String("population", pop.Name))
	return nil
}

func (b *BDB) alterGenerator(ctx context.Context, n *parser.AlterGenerator) error {
	if !b.cfg.WizardMode {
		return bqlerr.Schemaf("ALTER GENERATOR requires wizard mode")
	}
	gen, err := b.cat.GeneratorByName(ctx, b.conn, n.Generator)
	if err != nil {
		return err
	}
	for _, cmd := range n.Cmds {
		switch c := cmd.(type) {
		case *parser.RenameGenerator:
			if err := b.cat.RenameGenerator(ctx, b.conn, gen.ID, c.To); err != nil {
				return err
			}
		}
	}
	b.invalidateGenerator(gen.ID)
	return nil
}

func (b *BDB) dropGenerator(ctx context.Context, n *parser.DropGenerator) error {
	gen, err := b.cat.GeneratorByName(ctx, b.conn, n.Name)
	if err != nil {
		if n.IfExists && isNameErr(err) {
			return nil
		}
		return err
	}
	be, ok := b.registry.Lookup(gen.Backend)
	if !ok {
		return &bqlerr.NameError{Kind: bqlerr.KindBackend, Name: gen.Backend}
	}
	if err := be.Load(ctx, b.conn, gen.ID); err != nil {
		return err
	}
	models, err := b.cat.Models(ctx, b.conn, gen.ID)
	if err != nil {
		return err
	}
	if len(models) > 0 {
		modelnos := make([]int, len(models))
		for i, m := range models {
			modelnos[i] = m.Modelno
		}
		if err := be.DropModels(ctx, b.conn, gen.ID, modelnos); err != nil {
			return err
		}
		if err := b.cat.DropModels(ctx, b.conn, gen.ID, modelnos); err != nil {
			return err
		}
	}
	if err := be.DropGenerator(ctx, b.conn, gen.ID); err != nil {
		return err
	}
	if err := b.cat.DropGenerator(ctx, b.conn, gen.ID); err != nil {
		return err
	}
	b.invalidateGenerator(gen.ID)
	return nil
}

// ---------- Models ----------

func (b *BDB) initializeModels(ctx context.Context, n *parser.Initialize) error {
	gen, err := b.cat.GeneratorByName(ctx, b.conn, n.Generator)
	if err != nil {
		return err
	}
	if n.N <= 0 {
		return bqlerr.Schemaf("INITIALIZE requires a positive model count")
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
	for _, m := range existing {
		have[m.Modelno] = true
	}
	var modelnos []int
	for i := 0; i < n.N; i++ {
		if have[i] {
			if !n.IfNotExists {
				return bqlerr.Schemaf("generator %q already has model %d", gen.Name, i)
			}
			continue
		}
		modelnos = append(modelnos, i)
	}
	if len(modelnos) == 0 {
		return nil
	}
	if err := be.InitializeModels(ctx, b.conn, gen.ID, modelnos); err != nil {
		return err
	}
	if err := b.cat.AddModels(ctx, b.conn, gen.ID, modelnos); err != nil {
		return err
	}
	b.invalidateGenerator(gen.ID)
	return nil
}

func (b *BDB) dropModels(ctx context.Context, n *parser.DropModels) error {
	gen, err := b.cat.GeneratorByName(ctx, b.conn, n.Generator)
	if err != nil {
		return err
	}
	be, ok := b.registry.Lookup(gen.Backend)
	if !ok {
		return &bqlerr.NameError{Kind: bqlerr.KindBackend, Name: gen.Backend}
	}
	existing, err := b.cat.Models(ctx, b.conn, gen.ID)
	if err != nil {
		return err
	}
	have := make(map[int]bool, len(existing))
	for _, m := range existing {
		have[m.Modelno] = true
	}

	var modelnos []int
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
		return nil
	}
	if err := be.Load(ctx, b.conn, gen.ID); err != nil {
		return err
	}
	if err := be.DropModels(ctx, b.conn, gen.ID, modelnos); err != nil {
		return err
	}
	if err := b.cat.DropModels(ctx, b.conn, gen.ID, modelnos); err != nil {
		return err
	}
	b.invalidateGenerator(gen.ID)
	return nil
}

func quoted(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isNameErr(err error) bool {
	var ne *bqlerr.NameError
	return errors.As(err, &ne)
}
