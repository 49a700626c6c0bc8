package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式过滤：表达式为 false 的物品被过滤掉。
//
//	f, _ := filter.NewExprFilter(`product.price < 100.0`)
type ExprFilter struct {
	expr *dsl.Expr
}

// NewExprFilter 编译表达式
func NewExprFilter(expr string) (*ExprFilter, error) {
	e, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{expr: e}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	ok, err := f.expr.MatchItem(item, rctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
