package refgraph

import "math"

// PageRankOptions configures the iterative PageRank algorithm.
type PageRankOptions struct {
	Damping       float64 // damping factor; typically 0.85
	Epsilon       float64 // convergence threshold
	MaxIterations int     // upper bound on iterations
}

// DefaultPageRankOptions returns damping 0.85, epsilon 1e-6, max 100 iterations.
func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{
		Damping:       0.85,
		Epsilon:       1e-6,
		MaxIterations: 100,
	}
}

// PageRank scores every file. Importance flows along references: a file
// referenced by many important files scores higher. Files that reference
// nothing redistribute their rank uniformly. Scores sum to about 1.
func (g *Graph) PageRank(opts PageRankOptions) map[string]float64 {
	n := len(g.nodes)
	if n == 0 {
		return make(map[string]float64)
	}

	nf := float64(n)
	base := (1.0 - opts.Damping) / nf

	rank := make(map[string]float64, n)
	for id := range g.nodes {
		rank[id] = 1.0 / nf
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		var danglingSum float64
		for id := range g.nodes {
			if len(g.out[id]) == 0 {
				danglingSum += rank[id]
			}
		}
		danglingShare := opts.Damping * danglingSum / nf

		next := make(map[string]float64, n)
		for v := range g.nodes {
			var sum float64
			for u := range g.reverse[v] {
				sum += rank[u] / float64(len(g.out[u]))
			}
			next[v] = base + opts.Damping*sum + danglingShare
		}

		maxDelta := 0.0
		for id := range g.nodes {
			maxDelta = math.Max(maxDelta, math.Abs(next[id]-rank[id]))
		}
		rank = next
		if maxDelta < opts.Epsilon {
			break
		}
	}
	return rank
}
