package order

import (
	"fmt"
	"sync"
)

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// StateMachine 订单状态机，约束生命周期内的合法转换。
type StateMachine struct {
	transitions map[StateTransition]bool
	mu          sync.RWMutex
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[StateTransition]bool),
	}
	sm.initializeTransitions()
	return sm
}

func (sm *StateMachine) initializeTransitions() {
	legalTransitions := []StateTransition{
		// 从NEW可以转到
		{StatusNew, StatusPlaced},
		{StatusNew, StatusRejected},

		// 从PLACED可以转到
		{StatusPlaced, StatusPartial},
		{StatusPlaced, StatusFilled},
		{StatusPlaced, StatusCancelled},
		{StatusPlaced, StatusExpired},

		// 从PARTIALLY_FILLED可以转到
		{StatusPartial, StatusPartial}, // 多次部分成交
		{StatusPartial, StatusFilled},
		{StatusPartial, StatusCancelled},
		{StatusPartial, StatusExpired},

		// 终态不能转换（FILLED, CANCELLED, EXPIRED, REJECTED）
	}

	for _, t := range legalTransitions {
		sm.transitions[t] = true
	}
}

// ValidateTransition 验证状态转换是否合法
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	// 相同状态允许（幂等性）
	if from == to {
		return nil
	}

	if !sm.transitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// AllowedTransitions 返回当前状态所有合法的目标状态
func (sm *StateMachine) AllowedTransitions(current Status) []Status {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	allowed := make([]Status, 0)
	for transition := range sm.transitions {
		if transition.From == current {
			allowed = append(allowed, transition.To)
		}
	}
	return allowed
}

// IsMatchable 该状态下订单是否可能产生成交。
func (sm *StateMachine) IsMatchable(status Status) bool {
	switch status {
	case StatusPlaced, StatusPartial:
		return true
	default:
		return false
	}
}
