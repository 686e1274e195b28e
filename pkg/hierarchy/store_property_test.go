package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/philoview/pkg/model"
)

// genTree builds a random forest where node ids are "n<k>" and every
// non-root has exactly one parent.
func genTree(t *rapid.T) (roots []model.NodeRef, children map[string][]model.NodeRef, ids []string) {
	size := rapid.IntRange(1, 25).Draw(t, "size")
	children = make(map[string][]model.NodeRef)
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("n%d", i)
		ids = append(ids, id)
		r := model.NodeRef{ID: model.ID(id), DisplayName: id}
		if i == 0 || rapid.Bool().Draw(t, "root"+id) {
			roots = append(roots, r)
			continue
		}
		parent := ids[rapid.IntRange(0, i-1).Draw(t, "parent"+id)]
		children[parent] = append(children[parent], r)
	}
	return roots, children, ids
}

func checkInvariants(t *rapid.T, s *Store) {
	s.Walk(func(n model.Node, depth int) {
		if n.Expanded && !n.Loaded {
			t.Fatalf("node %s expanded but not loaded", n.ID)
		}
		if n.Expanded && !n.HasChildren {
			t.Fatalf("node %s expanded without children", n.ID)
		}
	})
}

func TestStoreInvariantsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		roots, tree, ids := genTree(t)
		loader := newFakeLoader(tree)
		s := New(loader)
		s.SetRoots(roots)
		ctx := context.Background()

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(ids).Draw(t, "id")
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				if rapid.Bool().Draw(t, "fail") {
					loader.mu.Lock()
					loader.failing[id] = errors.New("flaky")
					loader.mu.Unlock()
				}
				_, err := s.EnsureChildrenLoaded(ctx, id)
				loader.mu.Lock()
				delete(loader.failing, id)
				loader.mu.Unlock()
				if err != nil && !errors.Is(err, ErrUnknownNode) {
					var fe *FetchError
					if !errors.As(err, &fe) {
						t.Fatalf("unexpected error type %T: %v", err, err)
					}
					if n, ok := s.Node(id); ok && n.Loaded {
						t.Fatalf("failed load left %s marked loaded", id)
					}
				}
			case 1:
				_ = s.SetExpanded(id, rapid.Bool().Draw(t, "expanded"))
			case 2:
				_ = s.SetHighlighted(id, rapid.Bool().Draw(t, "highlighted"))
			case 3:
				before := loader.callCount(id)
				n, known := s.Node(id)
				_, _ = s.EnsureChildrenLoaded(ctx, id)
				if known && n.Loaded && loader.callCount(id) != before {
					t.Fatalf("loaded node %s was refetched", id)
				}
			}
			checkInvariants(t, s)
		}

		// Every loaded node's children match the server exactly once.
		var loaded []model.Node
		s.Walk(func(n model.Node, depth int) {
			if n.Loaded {
				loaded = append(loaded, n)
			}
		})
		for _, n := range loaded {
			got, _ := s.Children(n.ID)
			if len(got) != len(tree[n.ID]) {
				t.Fatalf("node %s has %d children, server has %d", n.ID, len(got), len(tree[n.ID]))
			}
			for i, c := range got {
				if c.ID != tree[n.ID][i].ID.String() {
					t.Fatalf("node %s child %d out of server order", n.ID, i)
				}
			}
		}
	})
}
