// Package export crawls the school hierarchy and writes it out as a
// markdown outline or an SVG tree diagram.
package export

import (
	"context"
	"errors"

	"github.com/vanderheijden86/philoview/pkg/hierarchy"
	"github.com/vanderheijden86/philoview/pkg/model"
)

// Entry is one school in depth-first server order.
type Entry struct {
	ID          string
	Name        string
	Depth       int
	HasChildren bool
	Loaded      bool
	Parent      int // index of the parent entry, -1 for roots
}

// Outline is a flattened hierarchy snapshot.
type Outline struct {
	Entries  []Entry
	MaxDepth int
	Roots    int
	Unloaded int // schools with children that were never fetched
}

// Crawl loads the hierarchy level by level until every reachable school
// is loaded or maxDepth levels were expanded (0 means unlimited). Fetch
// failures are collected and returned joined; the store keeps whatever
// loaded.
func Crawl(ctx context.Context, store *hierarchy.Store, workers, maxDepth int) error {
	level := make([]string, 0)
	for _, r := range store.Roots() {
		level = append(level, r.ID)
	}

	var errs []error
	for depth := 0; len(level) > 0; depth++ {
		if maxDepth > 0 && depth >= maxDepth {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := store.LoadAll(ctx, level, workers); err != nil {
			errs = append(errs, err)
		}

		var next []string
		for _, id := range level {
			children, err := store.Children(id)
			if err != nil {
				continue
			}
			for _, c := range children {
				if c.HasChildren && !c.Loaded {
					next = append(next, c.ID)
				}
			}
		}
		level = next
	}
	return errors.Join(errs...)
}

// Collect snapshots the store, including collapsed subtrees.
func Collect(store *hierarchy.Store) Outline {
	var out Outline
	var stack []int // stack[d] is the index of the last entry at depth d
	store.Walk(func(n model.Node, depth int) {
		parent := -1
		if depth > 0 && depth-1 < len(stack) {
			parent = stack[depth-1]
		}
		out.Entries = append(out.Entries, Entry{
			ID:          n.ID,
			Name:        n.DisplayName,
			Depth:       depth,
			HasChildren: n.HasChildren,
			Loaded:      n.Loaded,
			Parent:      parent,
		})
		stack = append(stack[:depth], len(out.Entries)-1)
		if depth > out.MaxDepth {
			out.MaxDepth = depth
		}
		if depth == 0 {
			out.Roots++
		}
		if !n.Loaded && n.HasChildren {
			out.Unloaded++
		}
	})
	return out
}
