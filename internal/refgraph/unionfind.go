package refgraph

// unionFind is a disjoint-set over file paths with path compression and
// union by rank.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// find returns the representative of x's set, adding x as a singleton if new.
func (uf *unionFind) find(x string) string {
	p, ok := uf.parent[x]
	if !ok {
		uf.parent[x] = x
		return x
	}
	if p != x {
		uf.parent[x] = uf.find(p)
	}
	return uf.parent[x]
}

func (uf *unionFind) union(x, y string) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	switch {
	case uf.rank[rx] < uf.rank[ry]:
		uf.parent[rx] = ry
	case uf.rank[rx] > uf.rank[ry]:
		uf.parent[ry] = rx
	default:
		uf.parent[ry] = rx
		uf.rank[rx]++
	}
}

// groups returns the members of each set keyed by representative.
func (uf *unionFind) groups() map[string][]string {
	out := make(map[string][]string)
	for x := range uf.parent {
		root := uf.find(x)
		out[root] = append(out[root], x)
	}
	return out
}
