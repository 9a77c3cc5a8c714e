package refgraph

import (
	"sort"

	"github.com/papapumpkin/stratum/internal/stability"
)

// Cluster is a connected group of files and its combined PageRank.
type Cluster struct {
	Files      []string
	Importance float64
}

// Clusters groups files connected by references in either direction and
// orders the groups by descending importance, ties broken by first file.
func (g *Graph) Clusters() []Cluster {
	uf := newUnionFind()
	for from, refs := range g.out {
		uf.find(from)
		for to := range refs {
			uf.union(from, to)
		}
	}

	rank := g.PageRank(DefaultPageRankOptions())
	groups := uf.groups()
	clusters := make([]Cluster, 0, len(groups))
	for _, files := range groups {
		sort.Strings(files)
		var importance float64
		for _, f := range files {
			importance += rank[f]
		}
		clusters = append(clusters, Cluster{Files: files, Importance: importance})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Importance != clusters[j].Importance {
			return clusters[i].Importance > clusters[j].Importance
		}
		return clusters[i].Files[0] < clusters[j].Files[0]
	})
	return clusters
}

// AssignOptions controls how clusters are spread over tiers.
type AssignOptions struct {
	// Tiers receive clusters in order, most important first. Defaults to
	// L1, L2, L3; L0 is left to earn its place organically.
	Tiers []stability.Tier

	// Key maps a file path to the tracker key seeded for it. Defaults to
	// stability.SymbolKey.
	Key func(path string) string
}

// Assign splits the ranked clusters into contiguous, near-equal runs, one
// per tier, giving the most important run to the most stable tier.
func Assign(g *Graph, opts AssignOptions) []stability.Cluster {
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = []stability.Tier{stability.L1, stability.L2, stability.L3}
	}
	key := opts.Key
	if key == nil {
		key = stability.SymbolKey
	}

	ranked := g.Clusters()
	n, k := len(ranked), len(tiers)
	out := make([]stability.Cluster, 0, n)
	for i, tier := range tiers {
		start := (i*n + k - 1) / k
		end := ((i+1)*n + k - 1) / k
		for _, c := range ranked[start:end] {
			keys := make([]string, len(c.Files))
			for j, f := range c.Files {
				keys[j] = key(f)
			}
			out = append(out, stability.Cluster{Tier: tier, Keys: keys})
		}
	}
	return out
}
