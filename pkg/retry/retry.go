// Package retry 提供有上限的重试与指数退避。
package retry

import (
	"context"
	"time"
)

// Backoff 返回第 n 次重试（从 1 开始）之前需要等待的时长。
type Backoff func(n int) time.Duration

// Exponential 返回 base·2^(n+shift) 的退避，max 大于 0 时作为上限。
func Exponential(base time.Duration, shift int, max time.Duration) Backoff {
	return func(n int) time.Duration {
		exp := n + shift
		if exp < 0 {
			exp = 0
		}
		d := base << uint(exp)
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Do 最多调用 fn 1+maxRetries 次，直到返回 nil。
// fn 的参数是当前尝试序号（从 0 开始）。ctx 被取消时立即返回 ctx.Err()，否则返回最后一次的错误。
func Do(ctx context.Context, maxRetries int, backoff Backoff, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt)
			if wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return ctx.Err()
				case <-t.C:
				}
			} else if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if err = fn(attempt); err == nil {
			return nil
		}
	}
	return err
}
