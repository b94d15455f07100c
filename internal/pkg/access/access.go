// Package access 以组合规则的方式描述接口权限
package access

import (
	"errors"
	"slices"
)

// ErrForbidden 调用方无权执行该操作
var ErrForbidden = errors.New("forbidden")

type Role string

const (
	RoleMember   Role = "member"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleMerchant, RoleAdmin:
		return true
	}
	return false
}

// Principal 已认证的调用方
type Principal struct {
	UserID     string
	Role       Role
	MemberID   string
	MerchantID string
}

// Resource 被访问的对象
// OwnerMemberID 为订单所属会员，MerchantIDs 为订单商品所属店铺的商家
type Resource struct {
	OwnerMemberID string
	MerchantIDs   []string
}

// Rule 权限判定
type Rule func(p Principal, r Resource) bool

// Any 任一规则通过即通过，按顺序短路求值
func Any(rules ...Rule) Rule {
	return func(p Principal, r Resource) bool {
		for _, rule := range rules {
			if rule(p, r) {
				return true
			}
		}
		return false
	}
}

// All 所有规则通过才通过，按顺序短路求值
func All(rules ...Rule) Rule {
	return func(p Principal, r Resource) bool {
		for _, rule := range rules {
			if !rule(p, r) {
				return false
			}
		}
		return true
	}
}

// Check 执行规则，不通过返回 ErrForbidden
func Check(p Principal, r Resource, rule Rule) error {
	if rule == nil || !rule(p, r) {
		return ErrForbidden
	}
	return nil
}

func IsMember(p Principal, _ Resource) bool {
	return p.Role == RoleMember && p.MemberID != ""
}

func IsMerchant(p Principal, _ Resource) bool {
	return p.Role == RoleMerchant && p.MerchantID != ""
}

func IsAdmin(p Principal, _ Resource) bool {
	return p.Role == RoleAdmin
}

// OwnsOrder 订单属于当前会员
func OwnsOrder(p Principal, r Resource) bool {
	return IsMember(p, r) && r.OwnerMemberID == p.MemberID
}

// MerchantInOrder 订单中包含当前商家店铺的商品
func MerchantInOrder(p Principal, r Resource) bool {
	return IsMerchant(p, r) && slices.Contains(r.MerchantIDs, p.MerchantID)
}
