package domain

import "time"

// 可被过滤器引用的邮件字段名称
const (
	FieldID             = "id"
	FieldUser           = "user"
	FieldMailbox        = "mailbox"
	FieldUID            = "uid"
	FieldThread         = "thread"
	FieldFlagged        = "flagged"
	FieldUnseen         = "unseen"
	FieldSearchable     = "searchable"
	FieldInternalDate   = "internalDate"
	FieldSize           = "size"
	FieldHasAttachments = "hasAttachments"
	FieldText           = "text"

	FieldSearch         = "search"
	FieldSearchFrom     = "search.from"
	FieldSearchFromName = "search.fromName"
	FieldSearchTo       = "search.to"
	FieldSearchToName   = "search.toName"
	FieldSearchCc       = "search.cc"
	FieldSearchCcName   = "search.ccName"
	FieldSearchSubject  = "search.subject"
)

// SearchPayload 邮件搜索请求。所有字段均为可选，零值表示不限制。
type SearchPayload struct {
	Mailbox string              `json:"mailbox,omitempty"` // 邮箱ID
	ID      string              `json:"id,omitempty"`      // UID 范围表达式，如 "5"、"1,3,7"、"10:*"
	Thread  string              `json:"thread,omitempty"`  // 会话ID
	Query   string              `json:"query,omitempty"`   // 全文检索关键词
	Or      *SearchAlternatives `json:"or,omitempty"`      // 任一满足即可的条件

	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`

	Attachments bool `json:"attachments,omitempty"`
	Flagged     bool `json:"flagged,omitempty"`
	Unseen      bool `json:"unseen,omitempty"`
	Seen        bool `json:"seen,omitempty"`
	Searchable  bool `json:"searchable,omitempty"`

	DateStart *time.Time `json:"datestart,omitempty"` // 含
	DateEnd   *time.Time `json:"dateend,omitempty"`   // 含
	MinSize   int64      `json:"minSize,omitempty"`   // 字节
	MaxSize   int64      `json:"maxSize,omitempty"`   // 字节
}

// SearchAlternatives 析取条件组
type SearchAlternatives struct {
	Query   string `json:"query,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// MessageSearchResult 邮件搜索结果
type MessageSearchResult struct {
	Messages []Message `json:"messages"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Query    string    `json:"query,omitempty"` // 原始全文检索关键词
}
