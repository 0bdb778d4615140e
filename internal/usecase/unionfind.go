package usecase

import "sort"

// unionFind is a disjoint-set structure keyed by product ID. Union by rank
// with path compression; rank ties pick the lexically smaller root so
// union(a, b) and union(b, a) land on the same root.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind(ids []string) *unionFind {
	u := &unionFind{
		parent: make(map[string]string, len(ids)),
		rank:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		u.parent[id] = id
	}
	return u
}

func (u *unionFind) find(id string) string {
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[id] != root {
		u.parent[id], id = root, u.parent[id]
	}
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	case ra < rb:
		u.parent[rb] = ra
		u.rank[ra]++
	default:
		u.parent[ra] = rb
		u.rank[rb]++
	}
}

// clusters returns the current partition as root -> sorted member IDs.
func (u *unionFind) clusters() map[string][]string {
	out := make(map[string][]string)
	for id := range u.parent {
		root := u.find(id)
		out[root] = append(out[root], id)
	}
	for _, members := range out {
		sort.Strings(members)
	}
	return out
}
