package catalog

import "strings"

// cache holds per-connection name resolutions. BQL names are
// case-insensitive, so keys are lowercased. Any catalog mutation
// invalidates the whole cache; resolutions are cheap to rebuild and a
// coarse flush cannot go stale.
type cache struct {
	tables      map[string]*Table
	populations map[string]*Population
	generators  map[string]*Generator
}

func newCache() *cache {
	c := &cache{}
	c.invalidate()
	return c
}

func (c *cache) invalidate() {
	c.tables = make(map[string]*Table)
	c.populations = make(map[string]*Population)
	c.generators = make(map[string]*Generator)
}

func key(name string) string {
	return strings.ToLower(name)
}

func (c *cache) table(name string) (*Table, bool) {
	t, ok := c.tables[key(name)]
	return t, ok
}

func (c *cache) putTable(t *Table) {
	c.tables[key(t.Name)] = t
}

func (c *cache) population(name string) (*Population, bool) {
	p, ok := c.populations[key(name)]
	return p, ok
}

func (c *cache) putPopulation(p *Population) {
	c.populations[key(p.Name)] = p
}

func (c *cache) generator(name string) (*Generator, bool) {
	g, ok := c.generators[key(name)]
	return g, ok
}

func (c *cache) putGenerator(g *Generator) {
	c.generators[key(g.Name)] = g
}
