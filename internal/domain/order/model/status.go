package model

import (
	"fmt"
	"strings"
)

// Status 订单状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// AllStatuses 按生命周期排列的全部状态
var AllStatuses = []Status{StatusPending, StatusPaid, StatusShipped, StatusCompleted, StatusCanceled}

// RealizedStatuses 已实现收入的订单状态
var RealizedStatuses = []Status{StatusPaid, StatusCompleted}

// 状态流转表，没有自环
var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCanceled},
	StatusPaid:      {StatusShipped},
	StatusShipped:   {StatusCompleted},
	StatusCompleted: {},
	StatusCanceled:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo 是否允许从 s 流转到 to
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions 返回 s 可以流转到的状态
func (s Status) AllowedTransitions() []Status {
	return append([]Status(nil), transitions[s]...)
}

// IsTerminal 终态不可再流转
func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// ParseStatus 解析状态字符串
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", v)}
	}
	return s, nil
}
