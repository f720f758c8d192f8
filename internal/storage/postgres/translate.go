package postgres

import (
	"fmt"
	"regexp"
	"strings"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
)

// messageColumns 过滤字段到 messages 表列的映射
var messageColumns = map[string]string{
	domain.FieldID:             "id",
	domain.FieldUser:           "user_id",
	domain.FieldMailbox:        "mailbox_id",
	domain.FieldUID:            "uid",
	domain.FieldThread:         "thread_id",
	domain.FieldFlagged:        "flagged",
	domain.FieldUnseen:         "unseen",
	domain.FieldSearchable:     "searchable",
	domain.FieldInternalDate:   "internal_date",
	domain.FieldSize:           "size",
	domain.FieldHasAttachments: "has_attachments",
	domain.FieldSearchFrom:     "search_from",
	domain.FieldSearchFromName: "search_from_name",
	domain.FieldSearchTo:       "search_to",
	domain.FieldSearchToName:   "search_to_name",
	domain.FieldSearchCc:       "search_cc",
	domain.FieldSearchCcName:   "search_cc_name",
	domain.FieldSearchSubject:  "search_subject",
}

// arrayColumns text[] 类型的列
var arrayColumns = map[string]bool{
	"search_from": true,
	"search_to":   true,
	"search_cc":   true,
}

// optionalColumns 可能为空的文本列
var optionalColumns = map[string]bool{
	"thread_id":        true,
	"search_from_name": true,
	"search_to_name":   true,
	"search_cc_name":   true,
	"search_subject":   true,
}

const fullTextExpr = "to_tsvector('simple', coalesce(subject, '') || ' ' || coalesce(text, ''))"

// translate 把谓词树翻译为 SQL 条件及参数
func translate(p filter.Predicate) (string, []any, error) {
	switch p := p.(type) {
	case nil:
		return "TRUE", nil, nil

	case filter.Eq:
		col, err := column(p.Field)
		if err != nil {
			return "", nil, err
		}
		if arrayColumns[col] {
			return "? = ANY(" + col + ")", []any{p.Value}, nil
		}
		return col + " = ?", []any{p.Value}, nil

	case filter.Range:
		col, err := scalarColumn(p.Field)
		if err != nil {
			return "", nil, err
		}
		var parts []string
		var args []any
		if p.Min != nil {
			op := " >= ?"
			if p.MinExclusive {
				op = " > ?"
			}
			parts = append(parts, col+op)
			args = append(args, p.Min)
		}
		if p.Max != nil {
			op := " <= ?"
			if p.MaxExclusive {
				op = " < ?"
			}
			parts = append(parts, col+op)
			args = append(args, p.Max)
		}
		if len(parts) == 0 {
			return "TRUE", nil, nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", args, nil

	case filter.In:
		col, err := scalarColumn(p.Field)
		if err != nil {
			return "", nil, err
		}
		if len(p.Values) == 0 {
			return "FALSE", nil, nil
		}
		return col + " IN ?", []any{p.Values}, nil

	case filter.NotIn:
		col, err := scalarColumn(p.Field)
		if err != nil {
			return "", nil, err
		}
		if len(p.Values) == 0 {
			return "TRUE", nil, nil
		}
		return "(" + col + " IS NULL OR " + col + " NOT IN ?)", []any{p.Values}, nil

	case filter.Pattern:
		col, err := column(p.Field)
		if err != nil {
			return "", nil, err
		}
		op := " ~ ?"
		if p.IgnoreCase {
			op = " ~* ?"
		}
		if arrayColumns[col] {
			return "EXISTS (SELECT 1 FROM unnest(" + col + ") AS v WHERE v" + op + ")", []any{p.Expr}, nil
		}
		return col + op, []any{p.Expr}, nil

	case filter.Prefix:
		col, err := scalarColumn(p.Field)
		if err != nil {
			return "", nil, err
		}
		return col + " ~ ?", []any{`(^|\s)` + regexp.QuoteMeta(p.Value)}, nil

	case filter.Text:
		return fullTextExpr + " @@ plainto_tsquery('simple', ?)", []any{p.Query}, nil

	case filter.Exists:
		return translateExists(p)

	case filter.And:
		return join(p.Clauses, " AND ", "TRUE")

	case filter.Or:
		return join(p.Clauses, " OR ", "FALSE")
	}

	return "", nil, fmt.Errorf("unsupported predicate %T", p)
}

func translateExists(p filter.Exists) (string, []any, error) {
	if p.Field == domain.FieldSearch {
		return "search_indexed = ?", []any{p.Present}, nil
	}

	col, err := column(p.Field)
	if err != nil {
		return "", nil, err
	}
	var present string
	switch {
	case arrayColumns[col]:
		present = "COALESCE(cardinality(" + col + "), 0) > 0"
	case optionalColumns[col]:
		present = "COALESCE(" + col + ", '') <> ''"
	default:
		present = "TRUE"
	}
	if p.Present {
		return present, nil, nil
	}
	return "NOT (" + present + ")", nil, nil
}

func join(clauses []filter.Predicate, sep, empty string) (string, []any, error) {
	if len(clauses) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(clauses))
	var args []any
	for _, c := range clauses {
		sql, a, err := translate(c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func column(field string) (string, error) {
	col, ok := messageColumns[field]
	if !ok {
		return "", fmt.Errorf("unknown field %q", field)
	}
	return col, nil
}

func scalarColumn(field string) (string, error) {
	col, err := column(field)
	if err != nil {
		return "", err
	}
	if arrayColumns[col] {
		return "", fmt.Errorf("field %q does not support this predicate", field)
	}
	return col, nil
}
