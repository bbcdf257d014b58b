package venue

import (
	"errors"
	"fmt"
)

var (
	// ErrQuoteUnavailable 表示交易所没有该标的的行情，扫描时跳过即可。
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrVenueUnreachable 表示网络、超时或熔断导致交易所不可达。
	ErrVenueUnreachable = errors.New("venue unreachable")
	// ErrOrderRejected 表示交易所在业务层面拒绝了委托。
	ErrOrderRejected = errors.New("order rejected")
)

// RejectedError 携带交易所给出的拒单原因。
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return ErrOrderRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrOrderRejected.Error(), e.Reason)
}

// Is 使 errors.Is(err, ErrOrderRejected) 成立。
func (e *RejectedError) Is(target error) bool {
	return target == ErrOrderRejected
}

// Rejected 构造拒单错误。
func Rejected(reason string) error {
	return &RejectedError{Reason: reason}
}

// Unreachable 将底层错误标记为交易所不可达。
func Unreachable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrVenueUnreachable, err)
}

// Unavailable 将底层错误标记为无行情。
func Unavailable(symbol string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", symbol, ErrQuoteUnavailable)
	}
	return fmt.Errorf("%s: %w: %v", symbol, ErrQuoteUnavailable, err)
}

// Reason 提取适合展示给用户的失败原因。
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Reason != "" {
		return rejected.Reason
	}
	return err.Error()
}
