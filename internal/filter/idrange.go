package filter

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// RangeKind 解析后的范围类型
type RangeKind int

const (
	RangeNone  RangeKind = iota // 无约束
	RangeExact                  // 等于 Low
	RangeSet                    // 属于 Values
	RangeSpan                   // Low 到 High（Unbounded 时无上界）
)

var (
	singleIDPattern = regexp.MustCompile(`^\d+$`)
	idListPattern   = regexp.MustCompile(`^\d+(,\d+)+$`)
	idSpanPattern   = regexp.MustCompile(`^\d+:(\d+|\*)$`)
)

// IDRange ID 范围表达式的解析结果
type IDRange struct {
	Kind      RangeKind
	Values    []int64 // RangeSet 时升序，保留重复值
	Low       int64
	High      int64
	Unbounded bool // 上界为 "*"
}

// ParseIDRange 解析 ID 范围表达式
//
// 支持三种形式，按顺序尝试：
//   - "5"：单个值
//   - "5,3,10"：值列表，结果升序
//   - "5:10" 或 "5:*"：区间，两端按数值排序，"*" 视为正无穷
//
// 参数:
//   - expr: 范围表达式
//
// 返回值:
//   - IDRange: 解析结果；无法识别的输入返回 RangeNone，不视为错误
func ParseIDRange(expr string) IDRange {
	expr = strings.TrimSpace(expr)

	switch {
	case singleIDPattern.MatchString(expr):
		v, err := strconv.ParseInt(expr, 10, 64)
		if err != nil {
			return IDRange{}
		}
		return IDRange{Kind: RangeExact, Low: v, High: v}

	case idListPattern.MatchString(expr):
		parts := strings.Split(expr, ",")
		values := make([]int64, 0, len(parts))
		for _, part := range parts {
			v, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return IDRange{}
			}
			values = append(values, v)
		}
		slices.Sort(values)
		return IDRange{Kind: RangeSet, Values: values}

	case idSpanPattern.MatchString(expr):
		left, right, _ := strings.Cut(expr, ":")
		a, err := strconv.ParseInt(left, 10, 64)
		if err != nil {
			return IDRange{}
		}
		if right == "*" {
			return IDRange{Kind: RangeSpan, Low: a, Unbounded: true}
		}
		b, err := strconv.ParseInt(right, 10, 64)
		if err != nil {
			return IDRange{}
		}
		if a > b {
			a, b = b, a
		}
		if a == b {
			return IDRange{Kind: RangeExact, Low: a, High: a}
		}
		return IDRange{Kind: RangeSpan, Low: a, High: b}
	}

	return IDRange{}
}

// Predicate 把解析结果转换为针对 field 的谓词；RangeNone 返回 false
func (r IDRange) Predicate(field string) (Predicate, bool) {
	switch r.Kind {
	case RangeExact:
		return Eq{Field: field, Value: r.Low}, true
	case RangeSet:
		return In{Field: field, Values: Int64s(r.Values)}, true
	case RangeSpan:
		span := Range{Field: field, Min: r.Low}
		if !r.Unbounded {
			span.Max = r.High
		}
		return span, true
	}
	return nil, false
}
