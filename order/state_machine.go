package order

import "fmt"

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// 合法的状态转换；终态（FILLED, CANCELED, REJECTED）不能再转换
var legalTransitions = map[StateTransition]bool{
	{StatusNew, StatusFilled}:   true,
	{StatusNew, StatusCanceled}: true,
	{StatusNew, StatusRejected}: true,
}

// ValidateTransition 验证状态转换是否合法
func ValidateTransition(from, to Status) error {
	// 相同状态允许（幂等性）
	if from == to {
		return nil
	}
	if !legalTransitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// IsFinalState 判断是否是终态
func IsFinalState(status Status) bool {
	switch status {
	case StatusFilled, StatusCanceled, StatusRejected:
		return true
	default:
		return false
	}
}
