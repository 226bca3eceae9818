// Copyright 2024 The dstruct Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package graph implements an adjacency-list graph on top of
// hashmap.Map: each vertex maps to the list of vertices adjacent to it.
// Edge operations look up the per-vertex list and scan it linearly, so
// they cost O(degree) on top of the map's O(1) lookup.
//
// A Graph is NOT goroutine-safe.
package graph

import "github.com/w0rp/dstruct/hashmap"

// Graph is a directed or undirected graph over vertices of type V. In an
// undirected graph every edge is mirrored into both endpoints' adjacency
// lists, except for self-loops which are stored once.
type Graph[V comparable] struct {
	adjacent *hashmap.Map[V, []V]
	directed bool
}

// NewDirected constructs an empty directed graph.
func NewDirected[V comparable]() *Graph[V] {
	return &Graph[V]{adjacent: hashmap.New[V, []V](0), directed: true}
}

// NewUndirected constructs an empty undirected graph.
func NewUndirected[V comparable]() *Graph[V] {
	return &Graph[V]{adjacent: hashmap.New[V, []V](0)}
}

// IsDirected reports whether the graph is directed.
func (g *Graph[V]) IsDirected() bool {
	return g.directed
}

// AddVertex adds a vertex with no edges. Adding a vertex already present
// is a noop.
func (g *Graph[V]) AddVertex(vertex V) {
	g.adjacent.GetOrPut(vertex, func() []V { return nil })
}

// HasVertex reports whether the vertex is present.
func (g *Graph[V]) HasVertex(vertex V) bool {
	_, ok := g.adjacent.Get(vertex)
	return ok
}

// RemoveVertex removes a vertex and every edge incident to it, reporting
// whether the vertex was present. Cost is O(V+E): every adjacency list
// is scanned for references to the removed vertex.
func (g *Graph[V]) RemoveVertex(vertex V) bool {
	if !g.adjacent.Delete(vertex) {
		return false
	}
	// Collect the remaining vertices first; rewriting a list via Put is
	// an update of an existing key, but collecting keeps the scan clear
	// of the traversal.
	var vertices []V
	g.adjacent.All(func(v V, _ []V) bool {
		vertices = append(vertices, v)
		return true
	})
	for _, v := range vertices {
		list, _ := g.adjacent.Get(v)
		if filtered := removeAll(list, vertex); len(filtered) != len(list) {
			g.adjacent.Put(v, filtered)
		}
	}
	return true
}

// AddEdge adds an edge from one vertex to another, creating either
// vertex if it is not already present. Parallel edges are not stored:
// adding an edge that already exists is a noop. In an undirected graph
// the edge is also added in the reverse direction.
func (g *Graph[V]) AddEdge(from, to V) {
	if g.HasEdge(from, to) {
		return
	}
	// Create both vertices up front so the appends below cannot trigger
	// a resize that would move the adjacency slots mid-update.
	g.AddVertex(from)
	g.AddVertex(to)

	list := g.adjacent.GetOrPut(from, func() []V { return nil })
	*list = append(*list, to)
	if !g.directed && from != to {
		list := g.adjacent.GetOrPut(to, func() []V { return nil })
		*list = append(*list, from)
	}
}

// HasEdge reports whether an edge from one vertex to another is present.
// For an undirected graph the direction is irrelevant.
func (g *Graph[V]) HasEdge(from, to V) bool {
	list, ok := g.adjacent.Get(from)
	if !ok {
		return false
	}
	for _, v := range list {
		if v == to {
			return true
		}
	}
	return false
}

// RemoveEdge removes an edge, reporting whether it was present. In an
// undirected graph the mirrored edge is removed as well.
func (g *Graph[V]) RemoveEdge(from, to V) bool {
	list, ok := g.adjacent.Get(from)
	if !ok {
		return false
	}
	filtered, found := removeOne(list, to)
	if !found {
		return false
	}
	g.adjacent.Put(from, filtered)
	if !g.directed && from != to {
		reverse, _ := g.adjacent.Get(to)
		reverse, _ = removeOne(reverse, from)
		g.adjacent.Put(to, reverse)
	}
	return true
}

// VertexCount returns the number of vertices.
func (g *Graph[V]) VertexCount() int {
	return g.adjacent.Len()
}

// EdgeCount returns the number of edges, derived by summing adjacency
// list lengths. In an undirected graph a mirrored pair counts as one
// edge and a self-loop (stored once) also counts as one.
func (g *Graph[V]) EdgeCount() int {
	var total, selfLoops int
	g.adjacent.All(func(v V, list []V) bool {
		total += len(list)
		for _, w := range list {
			if w == v {
				selfLoops++
			}
		}
		return true
	})
	if g.directed {
		return total
	}
	return (total + selfLoops) / 2
}

// Vertices calls yield sequentially for each vertex. If yield returns
// false, iteration stops. The graph must not be mutated during the
// traversal.
func (g *Graph[V]) Vertices(yield func(vertex V) bool) {
	g.adjacent.All(func(v V, _ []V) bool {
		return yield(v)
	})
}

// AdjacentTo returns a copy of the adjacency list for a vertex, or nil if
// the vertex is not present.
func (g *Graph[V]) AdjacentTo(vertex V) []V {
	list, ok := g.adjacent.Get(vertex)
	if !ok || len(list) == 0 {
		return nil
	}
	out := make([]V, len(list))
	copy(out, list)
	return out
}

// removeOne removes the first occurrence of target from list in place,
// reporting whether one was found.
func removeOne[V comparable](list []V, target V) ([]V, bool) {
	for i, v := range list {
		if v == target {
			last := len(list) - 1
			list[i] = list[last]
			var zero V
			list[last] = zero
			return list[:last], true
		}
	}
	return list, false
}

// removeAll removes every occurrence of target from list in place.
func removeAll[V comparable](list []V, target V) []V {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	// Zero the tail so removed vertices are not retained.
	var zero V
	for i := len(out); i < len(list); i++ {
		list[i] = zero
	}
	return out
}
