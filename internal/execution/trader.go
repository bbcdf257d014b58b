package execution

import "context"

// Trader 抽象调度器接口，方便在上层替换为测试实现。
type Trader interface {
	Dispatch(ctx context.Context, req Request) Report
}

var _ Trader = (*Dispatcher)(nil)
