package domain

import (
	"time"
)

// SpecialUse 邮箱的特殊用途标记（RFC 6154）。
type SpecialUse string

const (
	SpecialUseNone    SpecialUse = ""
	SpecialUseArchive SpecialUse = `\Archive`
	SpecialUseDrafts  SpecialUse = `\Drafts`
	SpecialUseJunk    SpecialUse = `\Junk`
	SpecialUseSent    SpecialUse = `\Sent`
	SpecialUseTrash   SpecialUse = `\Trash`
)

// InboxPath 收件箱路径
const InboxPath = "INBOX"

// UnsearchableSpecialUses 返回默认不参与全局搜索的特殊用途（垃圾邮件与废纸篓）。
func UnsearchableSpecialUses() []SpecialUse {
	return []SpecialUse{SpecialUseJunk, SpecialUseTrash}
}

// Mailbox 表示用户名下的一个邮件文件夹。
type Mailbox struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string     `json:"userId" gorm:"type:varchar(36);not null;uniqueIndex:idx_mailbox_user_path;index:idx_mailbox_user_special"`
	Path       string     `json:"path" gorm:"type:varchar(512);not null;uniqueIndex:idx_mailbox_user_path"`
	SpecialUse SpecialUse `json:"specialUse,omitempty" gorm:"type:varchar(20);not null;default:'';index:idx_mailbox_user_special"`
	UIDNext    int64      `json:"uidNext" gorm:"not null;default:1"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Searchable 判断邮箱中的邮件是否默认参与全局搜索。
func (m *Mailbox) Searchable() bool {
	for _, su := range UnsearchableSpecialUses() {
		if m.SpecialUse == su {
			return false
		}
	}
	return true
}

// MailboxQuery 按特殊用途筛选邮箱。两个列表都为空时匹配全部邮箱。
type MailboxQuery struct {
	SpecialUse        []SpecialUse // 仅匹配这些特殊用途
	ExcludeSpecialUse []SpecialUse // 排除这些特殊用途
}
