// Package gauss implements a closed-form reference backend: every
// numerical variable is modeled as an independent Gaussian fitted by
// maximum likelihood, every nominal variable as an independent empirical
// categorical. Variables are mutually independent, so the backend declares
// zero dependence and zero cross-column mutual information.
//
// The backend exists to exercise the full protocol with exactly
// computable answers; it is also a usable baseline for sanity checks.
package gauss

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inferlab/bqldb/pkg/backend"
)

// Name is the registry name of this backend.
const Name = "diag_gauss"

// varianceFloor keeps degenerate columns (constant data) integrable.
const varianceFloor = 1e-6

// Backend is the diagonal-Gaussian backend. One instance serves any
// number of generators across one connection.
type Backend struct {
	mu   sync.Mutex
	gens map[int64]*genState
}

// New creates a fresh backend instance.
func New() *Backend {
	return &Backend{gens: make(map[int64]*genState)}
}

// Name implements backend.Backend.
func (*Backend) Name() string { return Name }

type genState struct {
	Table  string
	Vars   []backend.Variable
	models map[int]*modelState

	// column data snapshot keyed varno → rowid → value, for row
	// similarity and refitting
	data map[int]map[int64]backend.Value
}

type colModel struct {
	Stattype string             `msgpack:"stattype"`
	Mean     float64            `msgpack:"mean"`
	Var      float64            `msgpack:"var"`
	Counts   map[string]float64 `msgpack:"counts"`
	Total    float64            `msgpack:"total"`
}

type modelState struct {
	Iterations int               `msgpack:"iterations"`
	Cols       map[int]*colModel `msgpack:"cols"`
}

type genMeta struct {
	Table string             `msgpack:"table"`
	Vars  []backend.Variable `msgpack:"vars"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS bqldb_gauss_generator (
	generator_id INTEGER PRIMARY KEY,
	meta BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS bqldb_gauss_model (
	generator_id INTEGER NOT NULL REFERENCES bqldb_gauss_generator (generator_id),
	modelno INTEGER NOT NULL,
	state BLOB NOT NULL,
	PRIMARY KEY (generator_id, modelno)
)
`

func (b *Backend) ensureSchema(ctx context.Context, ex backend.Executor) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return &backend.Error{Backend: Name, Op: "ensure schema", Err: err}
		}
	}
	return nil
}

// CreateGenerator implements backend.Backend. Schema clauses are
// accepted but this backend has nothing to configure; any clause other
// than a SUBSAMPLE hint is rejected so typos fail loudly.
func (b *Backend) CreateGenerator(ctx context.Context, ex backend.Executor, genID int64, table string, vars []backend.Variable, schema []string) error {
	for _, clause := range schema {
		word := strings.ToUpper(strings.Fields(clause)[0])
		if word != "SUBSAMPLE" {
			return backend.Errorf(Name, "create generator", "unknown schema clause %q", clause)
		}
	}
	if err := b.ensureSchema(ctx, ex); err != nil {
		return err
	}
	meta, err := msgpack.Marshal(&genMeta{Table: table, Vars: vars})
	if err != nil {
		return &backend.Error{Backend: Name, Op: "create generator", Err: err}
	}
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO bqldb_gauss_generator (generator_id, meta) VALUES (?, ?)`,
		genID, meta); err != nil {
		return &backend.Error{Backend: Name, Op: "create generator", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.gens[genID] = &genState{
		Table:  table,
		Vars:   vars,
		models: make(map[int]*modelState),
	}
	return b.loadDataLocked(ctx, ex, genID)
}

// DropGenerator implements backend.Backend.
func (b *Backend) DropGenerator(ctx context.Context, ex backend.Executor, genID int64) error {
	if err := b.ensureSchema(ctx, ex); err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM bqldb_gauss_model WHERE generator_id = ?`, genID); err != nil {
		return &backend.Error{Backend: Name, Op: "drop generator", Err: err}
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM bqldb_gauss_generator WHERE generator_id = ?`, genID); err != nil {
		return &backend.Error{Backend: Name, Op: "drop generator", Err: err}
	}
	b.mu.Lock()
	delete(b.gens, genID)
	b.mu.Unlock()
	return nil
}

// Load implements backend.Backend: restores generator metadata, model
// states, and the data snapshot from the database.
func (b *Backend) Load(ctx context.Context, ex backend.Executor, genID int64) error {
	if err := b.ensureSchema(ctx, ex); err != nil {
		return err
	}
	var blob []byte
	err := ex.QueryRowContext(ctx,
		`SELECT meta FROM bqldb_gauss_generator WHERE generator_id = ?`, genID).Scan(&blob)
	if err != nil {
		return &backend.Error{Backend: Name, Op: "load", Err: err}
	}
	var meta genMeta
	if err := msgpack.Unmarshal(blob, &meta); err != nil {
		return &backend.Error{Backend: Name, Op: "load", Err: err}
	}

	g := &genState{Table: meta.Table, Vars: meta.Vars, models: make(map[int]*modelState)}

	rows, err := ex.QueryContext(ctx,
		`SELECT modelno, state FROM bqldb_gauss_model WHERE generator_id = ?`, genID)
	if err != nil {
		return &backend.Error{Backend: Name, Op: "load", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var modelno int
		var state []byte
		if err := rows.Scan(&modelno, &state); err != nil {
			return &backend.Error{Backend: Name, Op: "load", Err: err}
		}
		var m modelState
		if err := msgpack.Unmarshal(state, &m); err != nil {
			return &backend.Error{Backend: Name, Op: "load", Err: err}
		}
		g.models[modelno] = &m
	}
	if err := rows.Err(); err != nil {
		return &backend.Error{Backend: Name, Op: "load", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.gens[genID] = g
	return b.loadDataLocked(ctx, ex, genID)
}

// loadDataLocked snapshots the base table's modeled columns.
func (b *Backend) loadDataLocked(ctx context.Context, ex backend.Executor, genID int64) error {
	g := b.gens[genID]
	cols := make([]string, 0, len(g.Vars)+1)
	cols = append(cols, `_rowid_`)
	for _, v := range g.Vars {
		cols = append(cols, `"`+strings.ReplaceAll(v.Name, `"`, `""`)+`"`)
	}
	q := fmt.Sprintf(`SELECT %s FROM "%s"`, strings.Join(cols, ", "),
		strings.ReplaceAll(g.Table, `"`, `""`))
	rows, err := ex.QueryContext(ctx, q)
	if err != nil {
		return &backend.Error{Backend: Name, Op: "load data", Err: err}
	}
	defer rows.Close()

	g.data = make(map[int]map[int64]backend.Value, len(g.Vars))
	for _, v := range g.Vars {
		g.data[v.Varno] = make(map[int64]backend.Value)
	}
	dest := make([]any, len(cols))
	var rowid int64
	vals := make([]backend.Value, len(g.Vars))
	dest[0] = &rowid
	for i := range vals {
		dest[i+1] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return &backend.Error{Backend: Name, Op: "load data", Err: err}
		}
		for i, v := range g.Vars {
			g.data[v.Varno][rowid] = vals[i]
		}
	}
	if err := rows.Err(); err != nil {
		return &backend.Error{Backend: Name, Op: "load data", Err: err}
	}
	return nil
}

// InitializeModels implements backend.Backend. Models are fitted at
// initialization; ANALYZE refits and counts iterations.
func (b *Backend) InitializeModels(ctx context.Context, ex backend.Executor, genID int64, modelnos []int) error {
	if err := b.ensureSchema(ctx, ex); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gens[genID]
	if !ok {
		return backend.Errorf(Name, "initialize models", "unknown generator %d", genID)
	}
	for _, modelno := range modelnos {
		m := g.fit()
		g.models[modelno] = m
		if err := b.persistModelLocked(ctx, ex, genID, modelno, m); err != nil {
			return err
		}
	}
	return nil
}

// DropModels implements backend.Backend.
func (b *Backend) DropModels(ctx context.Context, ex backend.Executor, genID int64, modelnos []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gens[genID]
	if !ok {
		return backend.Errorf(Name, "drop models", "unknown generator %d", genID)
	}
	for _, modelno := range modelnos {
		delete(g.models, modelno)
		if _, err := ex.ExecContext(ctx,
			`DELETE FROM bqldb_gauss_model WHERE generator_id = ? AND modelno = ?`,
			genID, modelno); err != nil {
			return &backend.Error{Backend: Name, Op: "drop models", Err: err}
		}
	}
	return nil
}

// analyzeClauses this backend admits; anything else is a program error.
var analyzeClauses = map[string]bool{
	"VARIABLES": true, "SKIP": true, "ROWS": true,
	"SUBPROBLEMS": true, "OPTIMIZED": true, "QUIET": true,
}

// AnalyzeModels implements backend.Backend: refits from the current data
// snapshot and advances the iteration counters.
func (b *Backend) AnalyzeModels(ctx context.Context, ex backend.Executor, genID int64, modelnos []int, iterations int, program backend.AnalysisProgram) error {
	for _, clause := range program.Clauses {
		word := strings.ToUpper(strings.Fields(clause)[0])
		if !analyzeClauses[word] {
			return backend.Errorf(Name, "analyze", "unknown program clause %q", clause)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gens[genID]
	if !ok {
		return backend.Errorf(Name, "analyze", "unknown generator %d", genID)
	}
	if err := b.loadDataLocked(ctx, ex, genID); err != nil {
		return err
	}
	for _, modelno := range modelnos {
		old, ok := g.models[modelno]
		if !ok {
			return backend.Errorf(Name, "analyze", "no model %d in generator %d", modelno, genID)
		}
		m := g.fit()
		m.Iterations = old.Iterations + iterations
		g.models[modelno] = m
		if err := b.persistModelLocked(ctx, ex, genID, modelno, m); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) persistModelLocked(ctx context.Context, ex backend.Executor, genID int64, modelno int, m *modelState) error {
	blob, err := msgpack.Marshal(m)
	if err != nil {
		return &backend.Error{Backend: Name, Op: "persist model", Err: err}
	}
	if _, err := ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO bqldb_gauss_model (generator_id, modelno, state) VALUES (?, ?, ?)`,
		genID, modelno, blob); err != nil {
		return &backend.Error{Backend: Name, Op: "persist model", Err: err}
	}
	return nil
}

// fit computes per-column ML estimates from the data snapshot.
func (g *genState) fit() *modelState {
	m := &modelState{Cols: make(map[int]*colModel, len(g.Vars))}
	for _, v := range g.Vars {
		cm := &colModel{Stattype: strings.ToLower(v.Stattype)}
		if cm.Stattype == "nominal" {
			cm.Counts = make(map[string]float64)
			for _, val := range g.data[v.Varno] {
				if val == nil {
					continue
				}
				cm.Counts[categoryKey(val)]++
				cm.Total++
			}
		} else {
			var xs []float64
			for _, val := range g.data[v.Varno] {
				if f, ok := toFloat(val); ok {
					xs = append(xs, f)
				}
			}
			if len(xs) > 0 {
				mean := stat.Mean(xs, nil)
				cm.Mean = mean
				cm.Var = math.Max(stat.PopVariance(xs, nil), varianceFloor)
			} else {
				cm.Var = varianceFloor
			}
		}
		m.Cols[v.Varno] = cm
	}
	return m
}

// ---------- Query methods (in-memory only) ----------

func (b *Backend) model(genID int64, modelno int) (*genState, *modelState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gens[genID]
	if !ok {
		return nil, nil, backend.Errorf(Name, "query", "unknown generator %d", genID)
	}
	m, ok := g.models[modelno]
	if !ok {
		return nil, nil, backend.Errorf(Name, "query", "no model %d in generator %d", modelno, genID)
	}
	return g, m, nil
}

// LogpdfJoint implements backend.Backend. Variables are independent, so
// constraints never shift the density and the joint is a sum of
// marginals.
func (b *Backend) LogpdfJoint(genID int64, modelno int, targets, constraints []backend.Target) (float64, error) {
	_, m, err := b.model(genID, modelno)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, t := range targets {
		cm, ok := m.Cols[t.Varno]
		if !ok {
			return 0, backend.Errorf(Name, "logpdf", "unknown variable %d", t.Varno)
		}
		lp, err := cm.logpdf(t.Value)
		if err != nil {
			return 0, err
		}
		total += lp
	}
	return total, nil
}

func (cm *colModel) logpdf(v backend.Value) (float64, error) {
	if v == nil {
		return 0, backend.Errorf(Name, "logpdf", "null target value")
	}
	if cm.Stattype == "nominal" {
		if cm.Total == 0 {
			return math.Inf(-1), nil
		}
		count := cm.Counts[categoryKey(v)]
		if count == 0 {
			return math.Inf(-1), nil
		}
		return math.Log(count / cm.Total), nil
	}
	x, ok := toFloat(v)
	if !ok {
		return 0, backend.Errorf(Name, "logpdf", "non-numeric value %v for numerical variable", v)
	}
	d := distuv.Normal{Mu: cm.Mean, Sigma: math.Sqrt(cm.Var)}
	return d.LogProb(x), nil
}

// SimulateJoint implements backend.Backend. Constrained targets echo
// their constraint; everything else draws from its marginal.
func (b *Backend) SimulateJoint(ctx context.Context, genID int64, modelno int, targets []int, constraints []backend.Target, n int) ([][]backend.Value, error) {
	_, m, err := b.model(genID, modelno)
	if err != nil {
		return nil, err
	}
	pinned := make(map[int]backend.Value, len(constraints))
	for _, c := range constraints {
		pinned[c.Varno] = c.Value
	}
	out := make([][]backend.Value, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make([]backend.Value, len(targets))
		for j, varno := range targets {
			if v, ok := pinned[varno]; ok {
				row[j] = v
				continue
			}
			cm, ok := m.Cols[varno]
			if !ok {
				return nil, backend.Errorf(Name, "simulate", "unknown variable %d", varno)
			}
			row[j] = cm.sample()
		}
		out = append(out, row)
	}
	return out, nil
}

func (cm *colModel) sample() backend.Value {
	if cm.Stattype == "nominal" {
		if cm.Total == 0 {
			return nil
		}
		u := rand.Float64() * cm.Total
		for cat, count := range cm.Counts {
			u -= count
			if u <= 0 {
				return cat
			}
		}
		for cat := range cm.Counts {
			return cat
		}
		return nil
	}
	d := distuv.Normal{Mu: cm.Mean, Sigma: math.Sqrt(cm.Var)}
	return d.Rand()
}

// ColumnDependenceProbability implements backend.Backend: variables are
// independent by construction.
func (b *Backend) ColumnDependenceProbability(genID int64, modelno int, v0, v1 int) (float64, error) {
	if _, _, err := b.model(genID, modelno); err != nil {
		return 0, err
	}
	if v0 == v1 {
		return 1, nil
	}
	return 0, nil
}

// ColumnMutualInformation implements backend.Backend: zero across
// distinct columns; the column entropy in bits on the diagonal.
func (b *Backend) ColumnMutualInformation(genID int64, modelno int, v0, v1 int, constraints []backend.Target, nsamples int) (float64, error) {
	_, m, err := b.model(genID, modelno)
	if err != nil {
		return 0, err
	}
	if v0 != v1 {
		return 0, nil
	}
	cm, ok := m.Cols[v0]
	if !ok {
		return 0, backend.Errorf(Name, "mutual information", "unknown variable %d", v0)
	}
	if cm.Stattype == "nominal" {
		h := 0.0
		for _, count := range cm.Counts {
			p := count / cm.Total
			h -= p * math.Log2(p)
		}
		return h, nil
	}
	// Differential entropy of a Gaussian, in bits.
	h := 0.5 * math.Log2(2*math.Pi*math.E*cm.Var)
	return math.Max(h, 0), nil
}

// RowSimilarity implements backend.Backend: similarity decays with the
// standardized distance between the rows' context-column values.
func (b *Backend) RowSimilarity(genID int64, modelno int, r0, r1 int64, contextVarno int) (float64, error) {
	g, m, err := b.model(genID, modelno)
	if err != nil {
		return 0, err
	}
	cm, ok := m.Cols[contextVarno]
	if !ok {
		return 0, backend.Errorf(Name, "row similarity", "unknown variable %d", contextVarno)
	}
	col := g.data[contextVarno]
	x0, ok0 := toFloat(col[r0])
	x1, ok1 := toFloat(col[r1])
	if cm.Stattype == "nominal" {
		if col[r0] == nil || col[r1] == nil {
			return 0, nil
		}
		if categoryKey(col[r0]) == categoryKey(col[r1]) {
			return 1, nil
		}
		return 0, nil
	}
	if !ok0 || !ok1 {
		return 0, nil
	}
	sigma := math.Sqrt(cm.Var)
	return math.Exp(-math.Abs(x0-x1) / (sigma + varianceFloor)), nil
}

// ColumnValues implements backend.Backend.
func (b *Backend) ColumnValues(genID int64, varno int) ([]backend.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gens[genID]
	if !ok {
		return nil, backend.Errorf(Name, "column values", "unknown generator %d", genID)
	}
	for _, v := range g.Vars {
		if v.Varno == varno && strings.ToLower(v.Stattype) == "nominal" {
			seen := map[string]bool{}
			var out []backend.Value
			for _, val := range g.data[varno] {
				if val == nil {
					continue
				}
				k := categoryKey(val)
				if !seen[k] {
					seen[k] = true
					out = append(out, k)
				}
			}
			return out, nil
		}
	}
	return nil, nil
}

// categoryKey normalizes a database value to a category label.
func categoryKey(v backend.Value) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// toFloat coerces a database value to float64.
func toFloat(v backend.Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case []byte:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
