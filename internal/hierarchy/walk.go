package hierarchy

import "voxellands.ai/internal/land"

// Lookup resolves claim ids. *registry.Registry takes its read lock per call and
// returns copies; *registry.TxContext takes none, returns live instances and is the
// one to use inside a transaction body.
type Lookup interface {
	Lookup(id land.ID) *land.Claim
}

// Iter yields claims on demand. It is finite and cannot be restarted once exhausted.
type Iter struct {
	next func() *land.Claim
	done bool
}

func (it *Iter) Next() (*land.Claim, bool) {
	if it.done {
		return nil, false
	}
	c := it.next()
	if c == nil {
		it.done = true
		return nil, false
	}
	return c, true
}

// All drains the iterator.
func (it *Iter) All() []*land.Claim {
	var out []*land.Claim
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		out = append(out, c)
	}
	return out
}

// Ancestors walks from c's parent up to its root.
func Ancestors(l Lookup, c *land.Claim) *Iter {
	cur, steps := c, 0
	return &Iter{next: func() *land.Claim {
		if cur == nil || !cur.HasParent() || steps > land.HardDepthCap {
			return nil
		}
		steps++
		cur = l.Lookup(cur.ParentID())
		return cur
	}}
}

// Descendants walks c's subtree depth first in child order, excluding c.
func Descendants(l Lookup, c *land.Claim) *Iter {
	var stack []land.ID
	push := func(x *land.Claim) {
		ch := x.Children()
		for i := len(ch) - 1; i >= 0; i-- {
			stack = append(stack, ch[i])
		}
	}
	push(c)
	return &Iter{next: func() *land.Claim {
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if x := l.Lookup(id); x != nil {
				push(x)
				return x
			}
		}
		return nil
	}}
}

// Root returns the top of c's tree, c itself when it has no parent.
func Root(l Lookup, c *land.Claim) *land.Claim {
	root := c
	it := Ancestors(l, c)
	for a, ok := it.Next(); ok; a, ok = it.Next() {
		root = a
	}
	return root
}

// FamilyTree returns the root of c's tree followed by all of its descendants.
func FamilyTree(l Lookup, c *land.Claim) []*land.Claim {
	root := Root(l, c)
	return append([]*land.Claim{root}, Descendants(l, root).All()...)
}

// updateLevels re-stamps the cached depth of root's subtree, root getting base.
func updateLevels(l Lookup, root *land.Claim, base int) {
	type item struct {
		c     *land.Claim
		depth int
	}
	stack := []item{{root, base}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		it.c.SetCachedDepth(it.depth)
		for _, id := range it.c.Children() {
			if ch := l.Lookup(id); ch != nil {
				stack = append(stack, item{ch, it.depth + 1})
			}
		}
	}
}
