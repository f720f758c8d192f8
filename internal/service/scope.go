package service

import (
	"context"

	"go.uber.org/zap"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
	"mailsearch/backend/internal/monitoring"
	"mailsearch/backend/internal/storage"
)

// DefaultMailboxInclusionThreshold 可搜索邮箱数量低于该值时使用包含集合
const DefaultMailboxInclusionThreshold = 200

// ScopeStrategy 邮箱范围策略
type ScopeStrategy string

const (
	ScopeExplicit   ScopeStrategy = "explicit"   // 指定单个邮箱
	ScopeInclusion  ScopeStrategy = "inclusion"  // 可搜索邮箱 ID 集合
	ScopeExclusion  ScopeStrategy = "exclusion"  // 排除垃圾邮件与废纸篓
	ScopeUnresolved ScopeStrategy = "unresolved" // 未限定邮箱
)

// MailboxScope 搜索限定的邮箱范围
type MailboxScope struct {
	Strategy  ScopeStrategy
	MailboxID string   // ScopeExplicit
	IDs       []string // ScopeInclusion 为包含集合，ScopeExclusion 为排除集合
}

// Predicate 返回范围对应的邮箱谓词，未限定时返回 nil
func (s MailboxScope) Predicate() filter.Predicate {
	switch s.Strategy {
	case ScopeExplicit:
		return filter.Eq{Field: domain.FieldMailbox, Value: s.MailboxID}
	case ScopeInclusion:
		return filter.In{Field: domain.FieldMailbox, Values: filter.Strings(s.IDs)}
	case ScopeExclusion:
		return filter.NotIn{Field: domain.FieldMailbox, Values: filter.Strings(s.IDs)}
	}
	return nil
}

// ChooseScopeStrategy 根据可搜索邮箱数量选择范围策略
//
// 数量已知且小于阈值时使用包含集合，否则（包括数量未知）使用排除集合。
// 两种策略返回的结果集相同，只影响查询计划。
//
// 参数:
//   - count: 可搜索邮箱数量
//   - known: 数量是否已知
//   - threshold: 阈值，小于等于 0 时使用默认值
//
// 返回值:
//   - ScopeStrategy: ScopeInclusion 或 ScopeExclusion
func ChooseScopeStrategy(count int64, known bool, threshold int64) ScopeStrategy {
	if threshold <= 0 {
		threshold = DefaultMailboxInclusionThreshold
	}
	if known && count < threshold {
		return ScopeInclusion
	}
	return ScopeExclusion
}

// ScopeResolver 在未指定邮箱时解析跨邮箱搜索范围
type ScopeResolver struct {
	repo      storage.MailboxRepository
	threshold int64
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// NewScopeResolver 创建邮箱范围解析器
func NewScopeResolver(repo storage.MailboxRepository, threshold int64, logger *zap.Logger, metrics *monitoring.Metrics) *ScopeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = DefaultMailboxInclusionThreshold
	}
	return &ScopeResolver{
		repo:      repo,
		threshold: threshold,
		logger:    logger,
		metrics:   metrics,
	}
}

// Resolve 解析用户的可搜索邮箱范围
//
// 探测失败不会返回错误：统计失败视为数量未知并使用排除集合；
// 包含集合列举失败时改用排除集合；排除集合列举也失败时范围保持未限定。
//
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回值:
//   - MailboxScope: 邮箱范围
//   - bool: 是否解析出具体范围
func (r *ScopeResolver) Resolve(ctx context.Context, userID string) (MailboxScope, bool) {
	eligible := domain.MailboxQuery{ExcludeSpecialUse: domain.UnsearchableSpecialUses()}

	count, err := r.repo.CountMailboxes(ctx, userID, eligible)
	known := err == nil
	if err != nil {
		r.logger.Warn("统计可搜索邮箱失败，使用排除集合",
			zap.String("userID", userID),
			zap.Error(err),
		)
		r.metrics.RecordScopeFallback("count")
	}

	if ChooseScopeStrategy(count, known, r.threshold) == ScopeInclusion {
		ids, err := r.repo.ListMailboxIDs(ctx, userID, eligible)
		if err == nil {
			return MailboxScope{Strategy: ScopeInclusion, IDs: ids}, true
		}
		r.logger.Warn("列举可搜索邮箱失败，使用排除集合",
			zap.String("userID", userID),
			zap.Error(err),
		)
		r.metrics.RecordScopeFallback("list_included")
	}

	ids, err := r.repo.ListMailboxIDs(ctx, userID, domain.MailboxQuery{SpecialUse: domain.UnsearchableSpecialUses()})
	if err != nil {
		r.logger.Warn("列举排除邮箱失败，搜索范围未限定",
			zap.String("userID", userID),
			zap.Error(err),
		)
		r.metrics.RecordScopeFallback("list_excluded")
		return MailboxScope{Strategy: ScopeUnresolved}, false
	}
	return MailboxScope{Strategy: ScopeExclusion, IDs: ids}, true
}
