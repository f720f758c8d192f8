// Package filter 提供邮件搜索使用的谓词树、构建器以及内存求值器。
//
// 谓词为不可变值，编译器按步骤组合；存储层负责把谓词树翻译为各自的查询语言。
package filter

// Predicate 谓词节点。只有本包定义的类型实现该接口。
type Predicate interface {
	isPredicate()
}

// Eq 字段等于给定值。数组字段只要任一元素相等即匹配。
type Eq struct {
	Field string
	Value any
}

// Range 字段落在区间内。Min/Max 为 nil 表示该侧无界。
type Range struct {
	Field        string
	Min          any
	Max          any
	MinExclusive bool
	MaxExclusive bool
}

// In 字段属于给定集合
type In struct {
	Field  string
	Values []any
}

// NotIn 字段不属于给定集合（字段缺失时视为匹配）
type NotIn struct {
	Field  string
	Values []any
}

// Pattern 字段匹配正则表达式。Expr 由调用方负责转义。
type Pattern struct {
	Field      string
	Expr       string
	IgnoreCase bool
}

// Prefix 字段中存在以 Value 开头的单词（以空白分隔）
type Prefix struct {
	Field string
	Value string
}

// Text 全文检索：查询中的每个词都必须出现在邮件主题或正文中
type Text struct {
	Query string
}

// Exists 字段存在（Present=true）或缺失（Present=false）
type Exists struct {
	Field   string
	Present bool
}

// And 所有子句都满足。空 And 恒为真。
type And struct {
	Clauses []Predicate
}

// Or 任一子句满足。空 Or 恒为假。
type Or struct {
	Clauses []Predicate
}

func (Eq) isPredicate()      {}
func (Range) isPredicate()   {}
func (In) isPredicate()      {}
func (NotIn) isPredicate()   {}
func (Pattern) isPredicate() {}
func (Prefix) isPredicate()  {}
func (Text) isPredicate()    {}
func (Exists) isPredicate()  {}
func (And) isPredicate()     {}
func (Or) isPredicate()      {}

// Int64s 把 int64 切片转换为 In/NotIn 使用的值列表
func Int64s(values []int64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Strings 把字符串切片转换为 In/NotIn 使用的值列表
func Strings(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
