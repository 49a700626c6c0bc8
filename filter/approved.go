package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// ApprovedOnly 过滤掉目录中已不存在或未上架的商品。
// 缓存行由批任务写入，可能早于商品下架；item.Product 为空时按 ID 回查目录并回填。
type ApprovedOnly struct {
	Catalog core.Catalog
}

func (f *ApprovedOnly) Name() string {
	return "filter.approved"
}

func (f *ApprovedOnly) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	p := item.Product
	if p == nil {
		if f.Catalog == nil {
			return false, core.NotConfigured(core.ModuleCatalog, "catalog")
		}
		var err error
		p, err = f.Catalog.Product(ctx, item.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		item.Product = p
	}
	return !p.Approved(), nil
}
