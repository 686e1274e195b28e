// Package hierarchy holds the lazily loaded school tree: which nodes exist,
// which have had their children fetched, and their expand/highlight state.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/philoview/pkg/model"
)

// ChildrenLoader fetches the direct children of a node in server order.
type ChildrenLoader interface {
	Children(ctx context.Context, parentID string) ([]model.NodeRef, error)
}

// LoaderFunc adapts a function to ChildrenLoader.
type LoaderFunc func(ctx context.Context, parentID string) ([]model.NodeRef, error)

func (f LoaderFunc) Children(ctx context.Context, parentID string) ([]model.NodeRef, error) {
	return f(ctx, parentID)
}

var (
	// ErrUnknownNode is returned for ids the store has never seen.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNotLoaded is returned when expanding a node whose children were never fetched.
	ErrNotLoaded = errors.New("children not loaded")
	// ErrLeaf is returned when expanding a node without children.
	ErrLeaf = errors.New("node has no children")
	// ErrNotFound is returned by Find when the id is nowhere in the hierarchy.
	ErrNotFound = errors.New("node not found in hierarchy")
)

// FetchError reports a failed children load. The node stays unloaded and
// the next interaction may retry.
type FetchError struct {
	NodeID string
	Cause  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load children of %s: %v", e.NodeID, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

type entry struct {
	node     model.Node
	parent   string
	children []string

	// prefetched holds children fetched by Lookahead that are not yet
	// part of the tree; peeked reports whether it is valid.
	prefetched []model.NodeRef
	peeked     bool
}

// Store is the authoritative cache of fetched nodes. It is safe for
// concurrent use.
type Store struct {
	loader ChildrenLoader
	log    *zap.SugaredLogger

	mu    sync.RWMutex
	nodes map[string]*entry
	roots []string

	flights singleflight.Group
	fetches atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) { s.log = l }
}

// New creates an empty store backed by loader.
func New(loader ChildrenLoader, opts ...Option) *Store {
	s := &Store{
		loader: loader,
		log:    zap.NewNop().Sugar(),
		nodes:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRoots replaces the whole forest with fresh, unloaded roots.
func (s *Store) SetRoots(refs []model.NodeRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*entry, len(refs))
	s.roots = s.roots[:0]
	for _, ref := range refs {
		id := ref.ID.String()
		if id == "" || s.nodes[id] != nil {
			continue
		}
		s.nodes[id] = &entry{node: model.NodeFromRef(ref)}
		s.roots = append(s.roots, id)
	}
}

// EnsureChildrenLoaded returns the children of id, fetching them once if
// needed. Concurrent calls for the same id share a single request; once
// loaded, calls return the cached children without touching the network.
// Children prefetched by Lookahead are applied without a new request.
func (s *Store) EnsureChildrenLoaded(ctx context.Context, id string) ([]model.Node, error) {
	s.mu.RLock()
	e, ok := s.nodes[id]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if e.node.Loaded {
		out := s.childrenLocked(e)
		s.mu.RUnlock()
		return out, nil
	}
	peeked, refs := e.peeked, e.prefetched
	s.mu.RUnlock()

	if !peeked {
		var err error
		if refs, err = s.fetch(ctx, id); err != nil {
			return nil, err
		}
	}
	s.apply(id, refs)
	return s.Children(id)
}

// fetch loads the children refs of id through the shared flight for id.
// It returns nil refs if id became loaded before the request started.
func (s *Store) fetch(ctx context.Context, id string) ([]model.NodeRef, error) {
	// The shared fetch must not die with whichever waiter started it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(id, func() (any, error) {
		if s.isLoaded(id) {
			return []model.NodeRef(nil), nil
		}
		s.fetches.Add(1)
		return s.loader.Children(fetchCtx, id)
	})

	select {
	case <-ctx.Done():
		return nil, &FetchError{NodeID: id, Cause: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			s.log.Warnw("children load failed", "node", id, "error", res.Err)
			return nil, &FetchError{NodeID: id, Cause: res.Err}
		}
		refs, _ := res.Val.([]model.NodeRef)
		return refs, nil
	}
}

// prefetch records refs for id and derives HasChildren from them, leaving
// the node unloaded.
func (s *Store) prefetch(id string, refs []model.NodeRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.nodes[id]
	if !ok || e.node.Loaded {
		return
	}
	e.prefetched = refs
	e.peeked = true
	e.node.HasChildren = false
	for _, ref := range refs {
		if ref.ID.String() != "" {
			e.node.HasChildren = true
			break
		}
	}
}

func (s *Store) isLoaded(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.nodes[id]
	return ok && e.node.Loaded
}

// apply stores fetched children under id. It is a no-op if id was loaded
// in the meantime, so children are never inserted twice.
func (s *Store) apply(id string, refs []model.NodeRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.nodes[id]
	if !ok || e.node.Loaded {
		return
	}
	for _, ref := range refs {
		cid := ref.ID.String()
		if cid == "" {
			continue
		}
		if s.nodes[cid] != nil {
			// Each node has exactly one parent; a repeat id would create a
			// second owner or a cycle.
			s.log.Warnw("ignoring duplicate child", "parent", id, "child", cid)
			continue
		}
		s.nodes[cid] = &entry{node: model.NodeFromRef(ref), parent: id}
		e.children = append(e.children, cid)
	}
	e.node.Loaded = true
	e.node.HasChildren = len(e.children) > 0
	e.prefetched, e.peeked = nil, false
	s.log.Debugw("children loaded", "node", id, "count", len(e.children))
}

func (s *Store) childrenLocked(e *entry) []model.Node {
	out := make([]model.Node, 0, len(e.children))
	for _, cid := range e.children {
		out = append(out, s.nodes[cid].node)
	}
	return out
}

// SetExpanded sets the expanded flag. Expanding requires loaded children.
func (s *Store) SetExpanded(id string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if expanded {
		if !e.node.Loaded {
			return fmt.Errorf("expand %s: %w", id, ErrNotLoaded)
		}
		if !e.node.HasChildren {
			return fmt.Errorf("expand %s: %w", id, ErrLeaf)
		}
	}
	e.node.Expanded = expanded
	return nil
}

// SetHighlighted sets the highlighted flag.
func (s *Store) SetHighlighted(id string, highlighted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	e.node.Highlighted = highlighted
	return nil
}

// ClearHighlights removes the highlight from every node not in keep.
func (s *Store) ClearHighlights(keep map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.nodes {
		if !keep[id] {
			e.node.Highlighted = false
		}
	}
}

// Node returns a copy of the node's state.
func (s *Store) Node(id string) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.nodes[id]
	if !ok {
		return model.Node{}, false
	}
	return e.node, true
}

// Children returns the cached children of id (empty if not loaded).
func (s *Store) Children(id string) ([]model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return s.childrenLocked(e), nil
}

// Roots returns the root nodes in order.
func (s *Store) Roots() []model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Node, 0, len(s.roots))
	for _, id := range s.roots {
		out = append(out, s.nodes[id].node)
	}
	return out
}

// Parent returns the parent id of id; ok is false for roots and unknown ids.
func (s *Store) Parent(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.nodes[id]
	if !ok || e.parent == "" {
		return "", false
	}
	return e.parent, true
}

// Ancestors returns the ids from id's parent up to its root.
func (s *Store) Ancestors(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	e, ok := s.nodes[id]
	for ok && e.parent != "" {
		out = append(out, e.parent)
		e, ok = s.nodes[e.parent]
	}
	return out
}

// Row is one line of the visible tree.
type Row struct {
	Node  model.Node
	Depth int
	Last  bool   // last among its siblings
	Rails []bool // Rails[d] is true when the ancestor at depth d has later siblings
}

// Visible walks the forest in pre-order, descending only into expanded
// nodes.
func (s *Store) Visible() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []Row
	var walk func(ids []string, depth int, rails []bool)
	walk = func(ids []string, depth int, rails []bool) {
		for i, id := range ids {
			e := s.nodes[id]
			last := i == len(ids)-1
			rows = append(rows, Row{
				Node:  e.node,
				Depth: depth,
				Last:  last,
				Rails: append([]bool(nil), rails...),
			})
			if e.node.Expanded {
				walk(e.children, depth+1, append(rails, !last))
			}
		}
	}
	walk(s.roots, 0, nil)
	return rows
}

// Lookahead fetches the children of every id with at most workers requests
// in flight, so each node's HasChildren is known before it is first opened.
// The nodes stay unloaded; the first EnsureChildrenLoaded adopts the
// fetched children without another request. Failures leave the affected
// node untouched and are returned joined.
func (s *Store) Lookahead(ctx context.Context, ids []string, workers int) error {
	return s.fanOut(ctx, ids, workers, func(ctx context.Context, id string) error {
		if s.isLoaded(id) {
			return nil
		}
		refs, err := s.fetch(ctx, id)
		if err != nil {
			return err
		}
		s.prefetch(id, refs)
		return nil
	})
}

// LoadAll loads the children of every id with at most workers requests in
// flight. Failures leave the affected node unloaded and are returned joined.
func (s *Store) LoadAll(ctx context.Context, ids []string, workers int) error {
	return s.fanOut(ctx, ids, workers, func(ctx context.Context, id string) error {
		_, err := s.EnsureChildrenLoaded(ctx, id)
		return err
	})
}

func (s *Store) fanOut(ctx context.Context, ids []string, workers int, fn func(context.Context, string) error) error {
	if workers <= 0 {
		workers = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	var errs []error
	for _, id := range ids {
		g.Go(func() error {
			if err := fn(gctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Find locates id anywhere in the hierarchy, loading subtrees depth-first
// as needed. It returns the path from the root to id inclusive.
func (s *Store) Find(ctx context.Context, id string) ([]string, error) {
	if _, ok := s.Node(id); ok {
		return append(reverse(s.Ancestors(id)), id), nil
	}

	var search func(cur string) ([]string, error)
	search = func(cur string) ([]string, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cur == id {
			return []string{cur}, nil
		}
		children, err := s.EnsureChildrenLoaded(ctx, cur)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// An unreachable subtree is skipped, not fatal to the search.
			s.log.Warnw("find: skipping subtree", "node", cur, "error", err)
			return nil, nil
		}
		for _, child := range children {
			path, err := search(child.ID)
			if err != nil {
				return nil, err
			}
			if path != nil {
				return append([]string{cur}, path...), nil
			}
		}
		return nil, nil
	}

	for _, root := range s.Roots() {
		path, err := search(root.ID)
		if err != nil {
			return nil, err
		}
		if path != nil {
			return path, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Reveal expands every ancestor on path (all but the last element).
func (s *Store) Reveal(path []string) error {
	for i := 0; i < len(path)-1; i++ {
		if err := s.SetExpanded(path[i], true); err != nil {
			return err
		}
	}
	return nil
}

// Stats summarizes the store for status lines and tests.
type Stats struct {
	Nodes   int
	Loaded  int
	Fetches int64
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Nodes: len(s.nodes), Fetches: s.fetches.Load()}
	for _, e := range s.nodes {
		if e.node.Loaded {
			st.Loaded++
		}
	}
	return st
}

// Walk visits every known node depth-first in server order, including
// collapsed subtrees. fn runs under the read lock and must not call back
// into the store.
func (s *Store) Walk(fn func(n model.Node, depth int)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			e := s.nodes[id]
			fn(e.node, depth)
			walk(e.children, depth+1)
		}
	}
	walk(s.roots, 0)
}

func reverse(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
