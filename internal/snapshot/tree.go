package snapshot

import (
	"fmt"
	"sort"
	"strings"
)

// collapseThreshold is the maximum number of entries (files + dirs) before
// a nested directory is summarised on one line.
const collapseThreshold = 20

// omittedMarker closes a listing that hit its byte budget.
const omittedMarker = "... (listing truncated)\n"

// dirNode is one directory of the listing.
type dirNode struct {
	name  string
	dirs  map[string]*dirNode
	files []string
}

func newDirNode(name string) *dirNode {
	return &dirNode{name: name, dirs: make(map[string]*dirNode)}
}

// buildTree folds forward-slash paths into a directory hierarchy.
func buildTree(files []string) *dirNode {
	root := newDirNode(".")
	for _, f := range files {
		node := root
		parts := strings.Split(f, "/")
		for _, dir := range parts[:len(parts)-1] {
			child, ok := node.dirs[dir]
			if !ok {
				child = newDirNode(dir)
				node.dirs[dir] = child
			}
			node = child
		}
		node.files = append(node.files, parts[len(parts)-1])
	}
	return root
}

// fileCount returns the number of files at or below n.
func (n *dirNode) fileCount() int {
	total := len(n.files)
	for _, d := range n.dirs {
		total += d.fileCount()
	}
	return total
}

// treeWriter renders a listing while tracking its byte budget.
type treeWriter struct {
	b        strings.Builder
	maxDepth int
	maxBytes int
	full     bool
}

// renderTree renders root as an indented listing. Directories come before
// files and both are sorted, so identical input gives byte-identical output.
// maxDepth limits nesting (0 = root's entries only); maxBytes caps the size.
func renderTree(root *dirNode, maxDepth, maxBytes int) string {
	w := &treeWriter{maxDepth: maxDepth, maxBytes: maxBytes}
	w.node(root, 0)
	return w.b.String()
}

func (w *treeWriter) line(s string) bool {
	if w.full {
		return false
	}
	if w.b.Len()+len(s) > w.maxBytes {
		w.full = true
		if w.b.Len()+len(omittedMarker) <= w.maxBytes {
			w.b.WriteString(omittedMarker)
		}
		return false
	}
	w.b.WriteString(s)
	return true
}

func (w *treeWriter) node(n *dirNode, depth int) {
	if depth > w.maxDepth {
		return
	}
	indent := strings.Repeat("  ", depth)

	names := make([]string, 0, len(n.dirs))
	for name := range n.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	files := append([]string(nil), n.files...)
	sort.Strings(files)

	for _, name := range names {
		child := n.dirs[name]
		entries := len(child.dirs) + len(child.files)
		if entries > collapseThreshold || depth+1 > w.maxDepth {
			if !w.line(fmt.Sprintf("%s%s/ (%d files)\n", indent, name, child.fileCount())) {
				return
			}
			continue
		}
		if !w.line(fmt.Sprintf("%s%s/\n", indent, name)) {
			return
		}
		w.node(child, depth+1)
		if w.full {
			return
		}
	}
	for _, f := range files {
		if !w.line(indent + f + "\n") {
			return
		}
	}
}
