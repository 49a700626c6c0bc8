// Package lazy 提供“首次使用时构造”的重资源句柄（向量索引、品类/品牌全集等）。
//
// 并发的首次调用共享同一次构造；构造成功后结果被缓存，失败不缓存，下一次调用重试。
package lazy

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Value 是类型 T 的惰性句柄，零值不可用，使用 New 创建。
type Value[T any] struct {
	build func(ctx context.Context) (T, error)
	group singleflight.Group
	val   atomic.Pointer[T]
}

// New 创建惰性句柄
func New[T any](build func(ctx context.Context) (T, error)) *Value[T] {
	return &Value[T]{build: build}
}

// Get 返回已构造的值；尚未构造时执行 build。
//
// 构造不随任何单个调用方的 ctx 取消；调用方 ctx 结束时只是自己提前返回，
// 其余等待者仍拿到同一次构造的结果。构造期间 Set 换入的值优先于构造结果。
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	if p := v.val.Load(); p != nil {
		return *p, nil
	}
	ch := v.group.DoChan("build", func() (any, error) {
		if p := v.val.Load(); p != nil {
			return *p, nil
		}
		t, err := v.build(context.WithoutCancel(ctx))
		if err != nil {
			return t, err
		}
		if !v.val.CompareAndSwap(nil, &t) {
			if p := v.val.Load(); p != nil {
				return *p, nil
			}
		}
		return t, nil
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Loaded 是否已构造
func (v *Value[T]) Loaded() bool {
	return v.val.Load() != nil
}

// Set 直接替换当前值（批任务重建后换入）
func (v *Value[T]) Set(t T) {
	v.val.Store(&t)
}

// Reset 丢弃当前值，下一次 Get 重新构造
func (v *Value[T]) Reset() {
	v.val.Store(nil)
}
