package domain

import "time"

// User 表示被搜索邮件的所属账户（搜索编译阶段只读）。
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string    `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`                         // 显示名称
	Address   string    `json:"address" gorm:"type:varchar(255);uniqueIndex;not null"` // 主投递地址，小写
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
