package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
	"mailsearch/backend/internal/monitoring"
	"mailsearch/backend/internal/storage"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 250
)

// SearchService 搜索服务
type SearchService struct {
	store   storage.Store
	scope   *ScopeResolver
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewSearchService 创建搜索服务
func NewSearchService(store storage.Store, scope *ScopeResolver, logger *zap.Logger, metrics *monitoring.Metrics) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scope == nil {
		scope = NewScopeResolver(store, DefaultMailboxInclusionThreshold, logger, metrics)
	}
	return &SearchService{
		store:   store,
		scope:   scope,
		logger:  logger,
		metrics: metrics,
	}
}

// Compile 把搜索请求编译为过滤器
//
// 只有用户查询会失败；邮箱范围探测失败按降级处理。
// 通常最多一次邮箱统计和一次邮箱列举；包含集合列举失败时会再列举一次排除集合，
// 此时共两次列举调用。
//
// 参数:
//   - ctx: 上下文
//   - userID: 被搜索的用户ID
//   - payload: 搜索条件
//
// 返回值:
//   - *filter.Filter: 编译后的过滤器
//   - string: 原始全文检索关键词
//   - error: 用户不存在返回 domain.ErrNotFound，存储失败返回 domain.ErrInternalLookup
func (s *SearchService) Compile(ctx context.Context, userID string, payload domain.SearchPayload) (*filter.Filter, string, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.RecordIdentityLookupError("not_found")
			return nil, "", fmt.Errorf("lookup user %s: %w", userID, err)
		}
		s.metrics.RecordIdentityLookupError("internal")
		s.logger.Error("查询用户失败", zap.String("userID", userID), zap.Error(err))
		return nil, "", fmt.Errorf("%w: %w", domain.ErrInternalLookup, err)
	}

	b := filter.NewBuilder().Where(filter.Eq{Field: domain.FieldUser, Value: user.ID})
	alt := payload.Or
	if alt == nil {
		alt = &domain.SearchAlternatives{}
	}

	searchable := payload.Searchable

	// 全文检索
	query := strings.TrimSpace(payload.Query)
	if query != "" {
		b.Where(filter.Text{Query: query})
		searchable = true
	} else if orQuery := strings.TrimSpace(alt.Query); orQuery != "" {
		b.OrWhere(filter.Text{Query: orQuery})
	}

	// 邮箱范围，ID 范围只在范围确定后生效
	scope := MailboxScope{Strategy: ScopeUnresolved}
	resolved := false
	if payload.Mailbox != "" {
		scope = MailboxScope{Strategy: ScopeExplicit, MailboxID: payload.Mailbox}
		resolved = true
	} else if searchable {
		scope, resolved = s.scope.Resolve(ctx, user.ID)
	}
	if resolved {
		b.Where(scope.Predicate())
		if p, ok := filter.ParseIDRange(payload.ID).Predicate(domain.FieldUID); ok {
			b.Where(p)
		}
	}
	s.metrics.RecordSearchCompile(string(scope.Strategy))

	if payload.Thread != "" {
		b.Where(filter.Eq{Field: domain.FieldThread, Value: payload.Thread})
	}

	if payload.Flagged {
		b.Where(filter.Eq{Field: domain.FieldFlagged, Value: true})
	}

	// unseen 优先于 seen
	switch {
	case payload.Unseen:
		b.Where(filter.Eq{Field: domain.FieldUnseen, Value: true})
		searchable = true
	case payload.Seen:
		b.Where(filter.Eq{Field: domain.FieldUnseen, Value: false})
		searchable = true
	}

	if searchable {
		b.Where(filter.Eq{Field: domain.FieldSearchable, Value: true})
	}

	if payload.DateStart != nil || payload.DateEnd != nil {
		dates := filter.Range{Field: domain.FieldInternalDate}
		if payload.DateStart != nil {
			dates.Min = *payload.DateStart
		}
		if payload.DateEnd != nil {
			dates.Max = *payload.DateEnd
		}
		b.Where(dates)
	}

	if from := normalizeTerm(payload.From); from != "" {
		b.Where(fromPredicate(from))
	}
	if from := normalizeTerm(alt.From); from != "" {
		b.OrWhere(fromPredicate(from))
	}

	if to := normalizeTerm(payload.To); to != "" {
		b.Where(filter.Or{Clauses: toPredicates(to)})
	}
	if to := normalizeTerm(alt.To); to != "" {
		for _, p := range toPredicates(to) {
			b.OrWhere(p)
		}
	}

	for _, p := range subjectPredicates(payload.Subject) {
		b.Where(p)
	}
	switch words := subjectPredicates(alt.Subject); len(words) {
	case 0:
	case 1:
		b.OrWhere(words[0])
	default:
		b.OrWhere(filter.And{Clauses: words})
	}

	if payload.Attachments {
		b.Where(filter.Eq{Field: domain.FieldHasAttachments, Value: true})
	}
	if payload.MinSize > 0 {
		b.Where(filter.Range{Field: domain.FieldSize, Min: payload.MinSize})
	}
	if payload.MaxSize > 0 {
		b.Where(filter.Range{Field: domain.FieldSize, Max: payload.MaxSize})
	}

	return b.Build(), payload.Query, nil
}

// Search 编译搜索条件并执行查询
//
// 参数:
//   - ctx: 上下文
//   - userID: 被搜索的用户ID
//   - payload: 搜索条件
//   - page: 页码（从 1 开始）
//   - limit: 每页数量（默认 20，最大 250）
//
// 返回值:
//   - *domain.MessageSearchResult: 搜索结果，按 ID 倒序
//   - error: 错误信息
func (s *SearchService) Search(ctx context.Context, userID string, payload domain.SearchPayload, page, limit int) (*domain.MessageSearchResult, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	f, query, err := s.Compile(ctx, userID, payload)
	if err != nil {
		return nil, err
	}
	root := f.Root()

	total, err := s.store.CountMessages(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	messages, err := s.store.FindMessages(ctx, root, storage.FindOptions{
		Sort:   storage.SortIDDesc,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}

	return &domain.MessageSearchResult{
		Messages: messages,
		Total:    total,
		Page:     page,
		Limit:    limit,
		Query:    query,
	}, nil
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// addressPredicate 含 "@" 时精确匹配地址，否则按名称片段匹配
func addressPredicate(term, addressField, nameField string) filter.Predicate {
	if strings.Contains(term, "@") {
		return filter.Eq{Field: addressField, Value: term}
	}
	return filter.Pattern{Field: nameField, Expr: regexp.QuoteMeta(term), IgnoreCase: true}
}

func fromPredicate(term string) filter.Predicate {
	return addressPredicate(term, domain.FieldSearchFrom, domain.FieldSearchFromName)
}

// toPredicates 收件人同时匹配 to 与 cc
func toPredicates(term string) []filter.Predicate {
	return []filter.Predicate{
		addressPredicate(term, domain.FieldSearchTo, domain.FieldSearchToName),
		addressPredicate(term, domain.FieldSearchCc, domain.FieldSearchCcName),
	}
}

func subjectPredicates(subject string) []filter.Predicate {
	words := strings.Fields(normalizeTerm(subject))
	if len(words) == 0 {
		return nil
	}
	out := make([]filter.Predicate, 0, len(words))
	for _, w := range words {
		out = append(out, filter.Prefix{Field: domain.FieldSearchSubject, Value: w})
	}
	return out
}
