// Package qs reads and writes the nested bracket query-string format used
// by the storefront URLs and by the content API filters, e.g.
//
//	priceRange[min]=10&priceRange[max]=97&categories[0][key]=abc
//
// Only keys are written with literal brackets; values are percent-encoded.
package qs

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Node is one level of a parsed query string. A leaf carries Value; an
// inner node carries children in first-seen order.
type Node struct {
	Value    string
	children map[string]*Node
	order    []string
}

func newNode() *Node {
	return &Node{children: map[string]*Node{}}
}

// Parse never fails: undecodable escapes are kept verbatim and malformed
// bracket keys are treated as plain keys.
func Parse(raw string) *Node {
	root := newNode()
	raw = strings.TrimPrefix(raw, "?")
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key := unescape(k)
		if key == "" {
			continue
		}
		root.insert(splitKey(key), unescape(v))
	}
	return root
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// splitKey turns "a[b][c]" into ["a", "b", "c"].
func splitKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 {
		return []string{key}
	}
	path := []string{key[:open]}
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{key}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{key}
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return path
}

func (n *Node) insert(path []string, value string) {
	cur := n
	for _, seg := range path {
		if seg == "" {
			seg = strconv.Itoa(len(cur.order))
		}
		next, ok := cur.children[seg]
		if !ok {
			next = newNode()
			cur.children[seg] = next
			cur.order = append(cur.order, seg)
		}
		cur = next
	}
	cur.Value = value
}

// Get walks path and returns the node there, or nil. Nil-safe.
func (n *Node) Get(path ...string) *Node {
	cur := n
	for _, seg := range path {
		if cur == nil {
			return nil
		}
		cur = cur.children[seg]
	}
	return cur
}

// Lookup returns the leaf value at path.
func (n *Node) Lookup(path ...string) (string, bool) {
	node := n.Get(path...)
	if node == nil {
		return "", false
	}
	return node.Value, true
}

func (n *Node) Has(path ...string) bool {
	return n.Get(path...) != nil
}

func (n *Node) Keys() []string {
	if n == nil {
		return nil
	}
	return slices.Clone(n.order)
}

// Indexed returns the children whose keys are array indexes, ordered by
// index. Gaps are allowed: categories[0]…&categories[3]… yields two nodes.
func (n *Node) Indexed() []*Node {
	if n == nil {
		return nil
	}
	type entry struct {
		idx  int
		node *Node
	}
	var items []entry
	for _, k := range n.order {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			continue
		}
		items = append(items, entry{i, n.children[k]})
	}
	slices.SortStableFunc(items, func(a, b entry) int { return a.idx - b.idx })
	out := make([]*Node, len(items))
	for i, it := range items {
		out[i] = it.node
	}
	return out
}

// Builder collects key paths and values in insertion order.
type Builder struct {
	parts []string
}

func (b *Builder) Add(value string, path ...string) {
	if len(path) == 0 {
		return
	}
	var key strings.Builder
	key.WriteString(path[0])
	for _, seg := range path[1:] {
		key.WriteByte('[')
		key.WriteString(seg)
		key.WriteByte(']')
	}
	b.parts = append(b.parts, key.String()+"="+Escape(value))
}

func (b *Builder) AddInt(value int, path ...string) {
	b.Add(strconv.Itoa(value), path...)
}

func (b *Builder) AddFloat(value float64, path ...string) {
	b.Add(strconv.FormatFloat(value, 'f', -1, 64), path...)
}

func (b *Builder) Len() int {
	return len(b.parts)
}

func (b *Builder) Encode() string {
	return strings.Join(b.parts, "&")
}

// Escape percent-encodes a value; spaces become %20 rather than '+'.
func Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
