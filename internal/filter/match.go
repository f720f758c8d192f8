package filter

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// TextField 全文检索时从文档读取的字段
const TextField = "text"

// Document 可被求值的记录
type Document interface {
	// Lookup 返回字段值；字段缺失时 ok 为 false
	Lookup(field string) (value any, ok bool)
}

// compileRegexp 编译 Pattern 表达式
var compileRegexp = regexp.Compile

// Matcher 预编译后的谓词，可对多条文档重复求值
//
// 谓词树中的 Pattern 在构造时各编译一次，求值阶段不再编译。
type Matcher struct {
	root     Predicate
	patterns map[Pattern]*regexp.Regexp // 编译失败的表达式对应 nil
}

// NewMatcher 编译谓词树
func NewMatcher(p Predicate) *Matcher {
	m := &Matcher{root: p, patterns: make(map[Pattern]*regexp.Regexp)}
	m.compile(p)
	return m
}

func (m *Matcher) compile(p Predicate) {
	switch p := p.(type) {
	case Pattern:
		if _, done := m.patterns[p]; done {
			return
		}
		expr := p.Expr
		if p.IgnoreCase {
			expr = "(?i)" + expr
		}
		re, err := compileRegexp(expr)
		if err != nil {
			re = nil
		}
		m.patterns[p] = re
	case And:
		for _, c := range p.Clauses {
			m.compile(c)
		}
	case Or:
		for _, c := range p.Clauses {
			m.compile(c)
		}
	}
}

// Match 判断文档是否满足谓词
func (m *Matcher) Match(doc Document) bool {
	return m.match(m.root, doc)
}

// Match 判断文档是否满足谓词；对多条文档求值时使用 NewMatcher
func Match(p Predicate, doc Document) bool {
	return NewMatcher(p).Match(doc)
}

func (m *Matcher) match(p Predicate, doc Document) bool {
	switch p := p.(type) {
	case nil:
		return true
	case Eq:
		v, ok := doc.Lookup(p.Field)
		return ok && anyValue(v, func(x any) bool { return equal(x, p.Value) })
	case Range:
		v, ok := doc.Lookup(p.Field)
		return ok && anyValue(v, func(x any) bool { return inRange(x, p) })
	case In:
		v, ok := doc.Lookup(p.Field)
		return ok && anyValue(v, func(x any) bool { return member(x, p.Values) })
	case NotIn:
		v, ok := doc.Lookup(p.Field)
		if !ok || v == nil {
			return true
		}
		return !anyValue(v, func(x any) bool { return member(x, p.Values) })
	case Pattern:
		re := m.patterns[p]
		if re == nil {
			return false
		}
		v, ok := doc.Lookup(p.Field)
		return ok && anyValue(v, func(x any) bool {
			s, isString := x.(string)
			return isString && re.MatchString(s)
		})
	case Prefix:
		v, ok := doc.Lookup(p.Field)
		return ok && anyValue(v, func(x any) bool {
			s, isString := x.(string)
			return isString && hasWordPrefix(s, p.Value)
		})
	case Text:
		v, ok := doc.Lookup(TextField)
		s, isString := v.(string)
		return ok && isString && containsTerms(s, p.Query)
	case Exists:
		v, ok := doc.Lookup(p.Field)
		return (ok && v != nil) == p.Present
	case And:
		for _, c := range p.Clauses {
			if !m.match(c, doc) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range p.Clauses {
			if m.match(c, doc) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// MatchFilter 判断文档是否满足整个过滤器
func MatchFilter(f *Filter, doc Document) bool {
	return Match(f.Root(), doc)
}

// anyValue 对标量直接求值，对字符串数组要求任一元素满足
func anyValue(v any, fn func(any) bool) bool {
	if list, ok := v.([]string); ok {
		for _, item := range list {
			if fn(item) {
				return true
			}
		}
		return false
	}
	return fn(v)
}

func member(v any, values []any) bool {
	for _, candidate := range values {
		if equal(v, candidate) {
			return true
		}
	}
	return false
}

func equal(a, b any) bool {
	c, ok := compare(a, b)
	return ok && c == 0
}

func inRange(v any, r Range) bool {
	if r.Min != nil {
		c, ok := compare(v, r.Min)
		if !ok || c < 0 || (c == 0 && r.MinExclusive) {
			return false
		}
	}
	if r.Max != nil {
		c, ok := compare(v, r.Max)
		if !ok || c > 0 || (c == 0 && r.MaxExclusive) {
			return false
		}
	}
	return true
}

// compare 比较两个同类值，类型不可比较时 ok 为 false
func compare(a, b any) (int, bool) {
	if ai, ok := toInt64(a); ok {
		bi, ok := toInt64(b)
		if !ok {
			return 0, false
		}
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		}
		return 0, true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok || av != bv {
			return 1, ok
		}
		return 0, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func hasWordPrefix(s, prefix string) bool {
	for _, word := range strings.Fields(s) {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsTerms 查询中的每个词都必须作为完整单词出现在文本中
func containsTerms(text, query string) bool {
	terms := tokenize(query)
	if len(terms) == 0 {
		return false
	}
	words := make(map[string]struct{})
	for _, w := range tokenize(text) {
		words[w] = struct{}{}
	}
	for _, term := range terms {
		if _, ok := words[term]; !ok {
			return false
		}
	}
	return true
}
