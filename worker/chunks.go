// Package worker 提供按样本区间切分的并行执行工具。
// 区间边界只由样本数和分段数决定，因此并行归约的合并顺序是确定的。
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/errgroup"
)

// ErrTaskPanic 表示分段任务内部发生 panic 并已被恢复。
var ErrTaskPanic = errors.New("worker task panic recovered")

// Range 表示样本区间 [Lo, Hi)。
type Range struct {
	Lo int
	Hi int
}

// Len 返回区间长度。
func (r Range) Len() int { return r.Hi - r.Lo }

// Split 把 [0, n) 切成至多 parts 段，长度相差不超过 1。
func Split(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	ranges := make([]Range, parts)
	for k := range parts {
		ranges[k] = Range{Lo: k * n / parts, Hi: (k + 1) * n / parts}
	}
	return ranges
}

// ForEachChunk 对每个区间调用 fn，各区间应只写入自己负责的那部分输出。
// workers <= 1 时在调用方 goroutine 中顺序执行。
func ForEachChunk(n, workers int, fn func(r Range)) error {
	ranges := Split(n, workers)
	if len(ranges) <= 1 {
		for _, r := range ranges {
			fn(r)
		}
		return nil
	}

	var wg conc.WaitGroup
	for _, r := range ranges {
		wg.Go(func() { fn(r) })
	}
	if rec := wg.WaitAndRecover(); rec != nil {
		slog.Error("Worker task panic recovered", "panic", rec.Value)
		return fmt.Errorf("%w: %w", ErrTaskPanic, rec.AsError())
	}
	return nil
}

// MapChunks 对每个区间并行求出一个部分结果，返回值按区间顺序排列，
// 调用方据此做确定性的归并。
func MapChunks[T any](ctx context.Context, n, workers int, fn func(ctx context.Context, r Range) (T, error)) ([]T, error) {
	ranges := Split(n, workers)
	out := make([]T, len(ranges))
	if len(ranges) <= 1 {
		for k, r := range ranges {
			v, err := fn(ctx, r)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(ranges))
	for k, r := range ranges {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("Worker task panic recovered", "panic", rec)
					err = fmt.Errorf("%w: %v", ErrTaskPanic, rec)
				}
			}()
			v, err := fn(gctx, r)
			if err != nil {
				return err
			}
			out[k] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
