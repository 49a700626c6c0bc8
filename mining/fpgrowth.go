package mining

import (
	"math"
	"sort"
	"strings"

	"github.com/rushteam/shoprec/core"
)

// Itemset 是一个频繁项集，Items 升序
type Itemset struct {
	Items   []string
	Support float64
}

// Key 返回项集的规范化 key
func (s Itemset) Key() string {
	return itemsKey(s.Items)
}

func itemsKey(items []string) string {
	return strings.Join(items, "\x00")
}

type fpNode struct {
	item     int
	count    int
	parent   *fpNode
	children map[int]*fpNode
	next     *fpNode
}

type fpTree struct {
	root   *fpNode
	heads  map[int]*fpNode
	counts map[int]int
	order  []int // 频繁项按计数降序、下标升序
}

func buildTree(paths [][]int, weights []int, minCount int) *fpTree {
	counts := make(map[int]int)
	for i, p := range paths {
		for _, it := range p {
			counts[it] += weights[i]
		}
	}
	t := &fpTree{
		root:   &fpNode{item: -1, children: make(map[int]*fpNode)},
		heads:  make(map[int]*fpNode),
		counts: make(map[int]int),
	}
	for it, c := range counts {
		if c >= minCount {
			t.order = append(t.order, it)
			t.counts[it] = c
		}
	}
	sort.Slice(t.order, func(i, j int) bool {
		a, b := t.order[i], t.order[j]
		if t.counts[a] != t.counts[b] {
			return t.counts[a] > t.counts[b]
		}
		return a < b
	})
	rank := make(map[int]int, len(t.order))
	for r, it := range t.order {
		rank[it] = r
	}

	for i, p := range paths {
		items := make([]int, 0, len(p))
		for _, it := range p {
			if _, ok := rank[it]; ok {
				items = append(items, it)
			}
		}
		sort.Slice(items, func(a, b int) bool { return rank[items[a]] < rank[items[b]] })
		t.insert(items, weights[i])
	}
	return t
}

func (t *fpTree) insert(items []int, count int) {
	node := t.root
	for _, it := range items {
		child, ok := node.children[it]
		if !ok {
			child = &fpNode{item: it, parent: node, children: make(map[int]*fpNode)}
			node.children[it] = child
			child.next = t.heads[it]
			t.heads[it] = child
		}
		child.count += count
		node = child
	}
}

func (t *fpTree) mine(suffix []int, minCount int, emit func(items []int, count int)) {
	for i := len(t.order) - 1; i >= 0; i-- {
		it := t.order[i]
		set := make([]int, 0, len(suffix)+1)
		set = append(set, it)
		set = append(set, suffix...)
		emit(set, t.counts[it])

		var paths [][]int
		var weights []int
		for n := t.heads[it]; n != nil; n = n.next {
			var path []int
			for p := n.parent; p != nil && p.item >= 0; p = p.parent {
				path = append(path, p.item)
			}
			if len(path) > 0 {
				paths = append(paths, path)
				weights = append(weights, n.count)
			}
		}
		if len(paths) == 0 {
			continue
		}
		if cond := buildTree(paths, weights, minCount); len(cond.order) > 0 {
			cond.mine(set, minCount, emit)
		}
	}
}

// FPGrowth 返回支持度 >= minSupport 的全部频繁项集。
//
// 输出顺序确定：先按项集大小升序，再按商品 ID 字典序。
// minSupport 必须在 (0,1]；没有购物篮时返回空结果。
func FPGrowth(table *TransactionTable, minSupport float64) ([]Itemset, error) {
	if minSupport <= 0 || minSupport > 1 || math.IsNaN(minSupport) {
		return nil, core.NewDomainError(core.ModuleMining, core.ErrorCodeInvalidInput, "mining: min support must be in (0,1]")
	}
	n := table.Len()
	if n == 0 {
		return nil, nil
	}
	minCount := int(math.Ceil(minSupport*float64(n) - 1e-9))
	if minCount < 1 {
		minCount = 1
	}

	txs := table.transactions()
	weights := make([]int, len(txs))
	for i := range weights {
		weights[i] = 1
	}
	tree := buildTree(txs, weights, minCount)

	var out []Itemset
	tree.mine(nil, minCount, func(set []int, count int) {
		items := make([]string, len(set))
		for i, j := range set {
			items[i] = table.Items[j]
		}
		sort.Strings(items)
		out = append(out, Itemset{Items: items, Support: float64(count) / float64(n)})
	})
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Items) != len(out[j].Items) {
			return len(out[i].Items) < len(out[j].Items)
		}
		return out[i].Key() < out[j].Key()
	})
	return out, nil
}
