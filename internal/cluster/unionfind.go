package cluster

import "sort"

// UnionFind tracks connected components over record IDs with path
// compression and union by rank.
type UnionFind struct {
	parent []int
	rank   []int
	index  map[string]int
	ids    []string
}

// NewUnionFind creates an empty union-find structure.
func NewUnionFind() *UnionFind {
	return &UnionFind{index: make(map[string]int)}
}

// Add registers an ID as its own component. Adding an existing ID is a
// no-op.
func (u *UnionFind) Add(id string) {
	if _, ok := u.index[id]; ok {
		return
	}
	u.index[id] = len(u.ids)
	u.ids = append(u.ids, id)
	u.parent = append(u.parent, len(u.parent))
	u.rank = append(u.rank, 0)
}

// Union merges the components of a and b, registering unseen IDs first.
func (u *UnionFind) Union(a, b string) {
	u.Add(a)
	u.Add(b)

	ra := u.find(u.index[a])
	rb := u.find(u.index[b])
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

// Connected reports whether a and b are in the same component.
func (u *UnionFind) Connected(a, b string) bool {
	ia, ok := u.index[a]
	if !ok {
		return false
	}
	ib, ok := u.index[b]
	if !ok {
		return false
	}
	return u.find(ia) == u.find(ib)
}

// Components returns every component with at least two members. Members
// are sorted lexicographically and components are ordered by their
// smallest member, so the output does not depend on union order.
func (u *UnionFind) Components() [][]string {
	byRoot := make(map[int][]string)
	for i, id := range u.ids {
		root := u.find(i)
		byRoot[root] = append(byRoot[root], id)
	}

	var components [][]string
	for _, members := range byRoot {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		components = append(components, members)
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}

func (u *UnionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}
