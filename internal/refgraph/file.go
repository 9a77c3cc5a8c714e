package refgraph

import (
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// graphFile is the on-disk TOML form:
//
//	files = ["README.md"]
//
//	[[ref]]
//	from = "cmd/root.go"
//	to = "internal/config/config.go"
type graphFile struct {
	Files []string   `toml:"files"`
	Refs  []refEntry `toml:"ref"`
}

type refEntry struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// Parse decodes a TOML reference graph.
func Parse(r io.Reader) (*Graph, error) {
	var gf graphFile
	if err := toml.NewDecoder(r).Decode(&gf); err != nil {
		return nil, fmt.Errorf("refgraph: decode: %w", err)
	}
	g := New()
	for _, f := range gf.Files {
		if f != "" {
			g.AddFile(f)
		}
	}
	for i, ref := range gf.Refs {
		if ref.From == "" || ref.To == "" {
			return nil, fmt.Errorf("refgraph: ref %d: from and to are required", i)
		}
		g.AddReference(ref.From, ref.To)
	}
	return g, nil
}

// LoadFile reads a TOML reference graph from path.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("refgraph: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
