package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/shoprec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("product", cel.DynType),
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Expr 是编译后的过滤表达式，使用 CEL (Common Expression Language) 语法。
// 编译一次、并发求值。
//
// 可用变量：
//   - product：id / name / brand / category / price / rating / has_rating / features / status
//   - item：id / score / features / meta
//   - label：label.recall_source 等（值为 Label.Value）
//   - rctx：user_id / strategy / params
//
// 示例：
//   - `product.price < 100.0 && product.brand == "acme"`
//   - `product.has_rating && product.rating >= 4.0`
//   - `"color" in product.features && product.features.color == "red"`
//   - `label.recall_source.contains("content")`
type Expr struct {
	source string
	prg    cel.Program
}

// Compile 编译表达式；空表达式返回 nil（视为恒真）
func Compile(expr string) (*Expr, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, core.WrapDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, "compile error", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, "program error", err)
	}
	return &Expr{source: expr, prg: prg}, nil
}

// String 返回原始表达式
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.source
}

// MatchProduct 对商品求值
func (e *Expr) MatchProduct(p *core.Product) (bool, error) {
	if e == nil {
		return true, nil
	}
	return e.eval(map[string]any{
		"product": productInput(p),
		"item":    map[string]any{},
		"label":   map[string]any{},
		"rctx":    map[string]any{},
	})
}

// MatchItem 对推荐链路中的 Item 求值；Item 已加载商品时同时提供 product 变量
func (e *Expr) MatchItem(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if e == nil {
		return true, nil
	}
	input := map[string]any{
		"product": productInput(item.Product),
		"item": map[string]any{
			"id":       item.ID,
			"score":    item.Score,
			"features": item.Features,
			"meta":     item.Meta,
		},
		"label": labelInput(item),
		"rctx":  rctxInput(rctx),
	}
	return e.eval(input)
}

func (e *Expr) eval(input map[string]any) (bool, error) {
	out, _, err := e.prg.Eval(input)
	if err != nil {
		// 访问不存在的 key 会报错，应先用 "key" in map 检查
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

func productInput(p *core.Product) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return map[string]any{
		"id":         p.ID,
		"name":       p.Name,
		"brand":      p.Brand,
		"category":   p.Category,
		"price":      p.Price,
		"rating":     p.RatingValue(),
		"has_rating": p.HasRating(),
		"features":   p.Features.Map(),
		"status":     p.Status,
	}
}

func labelInput(item *core.Item) map[string]any {
	out := make(map[string]any, len(item.Labels))
	for k, v := range item.Labels {
		out[k] = v.Value
	}
	return out
}

func rctxInput(rctx *core.RecommendContext) map[string]any {
	if rctx == nil {
		return map[string]any{}
	}
	params := rctx.Params
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{
		"user_id":  rctx.UserID,
		"strategy": rctx.Strategy,
		"params":   params,
	}
}
