package model

import (
	"marketplace/internal/pkg/access"
	baseModel "marketplace/pkg/model"
)

// User 登录账号，由认证服务维护
type User struct {
	baseModel.BaseModel
	Username string      `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Role     access.Role `gorm:"size:20;not null" json:"role"`
}

// Member 消费者
type Member struct {
	baseModel.BaseModel
	UserID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"userId"`
	Name   string `gorm:"size:100;not null" json:"name"`
}

// Merchant 商家
type Merchant struct {
	baseModel.BaseModel
	UserID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"userId"`
}
