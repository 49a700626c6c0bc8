// Package mining 实现购物篮关联规则挖掘：事务编码、FP-growth 频繁项集、规则推导。
package mining

import (
	"sort"

	"github.com/rushteam/shoprec/core"
)

// TransactionTable 是购物篮的布尔编码：Items 为排序后的商品词表，
// Rows[i][j] 表示第 i 个购物篮是否包含 Items[j]。
type TransactionTable struct {
	Items []string
	Rows  [][]bool
	index map[string]int
}

// NewTransactionTable 编码购物篮；购物篮内重复的商品只计一次，空购物篮保留为全 false 行。
func NewTransactionTable(baskets []core.Basket) *TransactionTable {
	vocab := make(map[string]struct{})
	for _, b := range baskets {
		for _, id := range b {
			vocab[id] = struct{}{}
		}
	}
	items := make([]string, 0, len(vocab))
	for id := range vocab {
		items = append(items, id)
	}
	sort.Strings(items)

	t := &TransactionTable{
		Items: items,
		Rows:  make([][]bool, len(baskets)),
		index: make(map[string]int, len(items)),
	}
	for i, id := range items {
		t.index[id] = i
	}
	for i, b := range baskets {
		row := make([]bool, len(items))
		for _, id := range b {
			row[t.index[id]] = true
		}
		t.Rows[i] = row
	}
	return t
}

// Len 购物篮数量
func (t *TransactionTable) Len() int {
	return len(t.Rows)
}

// Support 返回商品集合的支持度（包含该集合的购物篮比例）
func (t *TransactionTable) Support(items ...string) float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	cols := make([]int, 0, len(items))
	for _, id := range items {
		j, ok := t.index[id]
		if !ok {
			return 0
		}
		cols = append(cols, j)
	}
	n := 0
	for _, row := range t.Rows {
		all := true
		for _, j := range cols {
			if !row[j] {
				all = false
				break
			}
		}
		if all {
			n++
		}
	}
	return float64(n) / float64(len(t.Rows))
}

// transactions 返回每行包含的商品下标
func (t *TransactionTable) transactions() [][]int {
	out := make([][]int, len(t.Rows))
	for i, row := range t.Rows {
		var tx []int
		for j, ok := range row {
			if ok {
				tx = append(tx, j)
			}
		}
		out[i] = tx
	}
	return out
}
