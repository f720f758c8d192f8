package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
	"mailsearch/backend/internal/monitoring"
)

func TestChooseScopeStrategy(t *testing.T) {
	tests := []struct {
		name      string
		count     int64
		known     bool
		threshold int64
		want      ScopeStrategy
	}{
		{"数量较少使用包含集合", 150, true, 200, ScopeInclusion},
		{"数量较多使用排除集合", 250, true, 200, ScopeExclusion},
		{"恰好等于阈值使用排除集合", 200, true, 200, ScopeExclusion},
		{"数量未知使用排除集合", 0, false, 200, ScopeExclusion},
		{"阈值未配置时使用默认值", 199, true, 0, ScopeInclusion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseScopeStrategy(tt.count, tt.known, tt.threshold))
		})
	}
}

func TestScopeResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("包含集合", func(t *testing.T) {
		store := new(MockStore)
		store.On("CountMailboxes", mock.Anything, "u1", eligibleQuery).Return(int64(150), nil)
		store.On("ListMailboxIDs", mock.Anything, "u1", eligibleQuery).Return([]string{"a", "b"}, nil)

		scope, ok := NewScopeResolver(store, 200, nil, nil).Resolve(ctx, "u1")

		assert.True(t, ok)
		assert.Equal(t, ScopeInclusion, scope.Strategy)
		assert.Equal(t, filter.In{Field: domain.FieldMailbox, Values: []any{"a", "b"}}, scope.Predicate())
		store.AssertExpectations(t)
		store.AssertNumberOfCalls(t, "ListMailboxIDs", 1)
	})

	t.Run("排除集合", func(t *testing.T) {
		store := new(MockStore)
		store.On("CountMailboxes", mock.Anything, "u1", eligibleQuery).Return(int64(250), nil)
		store.On("ListMailboxIDs", mock.Anything, "u1", excludedQuery).Return([]string{"junk", "trash"}, nil)

		scope, ok := NewScopeResolver(store, 200, nil, nil).Resolve(ctx, "u1")

		assert.True(t, ok)
		assert.Equal(t, ScopeExclusion, scope.Strategy)
		assert.Equal(t, filter.NotIn{Field: domain.FieldMailbox, Values: []any{"junk", "trash"}}, scope.Predicate())
		store.AssertNotCalled(t, "ListMailboxIDs", mock.Anything, "u1", eligibleQuery)
	})

	t.Run("统计失败时降级为排除集合", func(t *testing.T) {
		store := new(MockStore)
		store.On("CountMailboxes", mock.Anything, "u1", eligibleQuery).Return(int64(0), errors.New("connection reset"))
		store.On("ListMailboxIDs", mock.Anything, "u1", excludedQuery).Return([]string{"junk"}, nil)
		metrics := monitoring.NewMetrics(prometheus.NewRegistry())

		scope, ok := NewScopeResolver(store, 200, nil, metrics).Resolve(ctx, "u1")

		assert.True(t, ok)
		assert.Equal(t, ScopeExclusion, scope.Strategy)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ScopeProbeFallbacks.WithLabelValues("count")))
	})

	t.Run("包含集合列举失败时改用排除集合", func(t *testing.T) {
		store := new(MockStore)
		store.On("CountMailboxes", mock.Anything, "u1", eligibleQuery).Return(int64(3), nil)
		store.On("ListMailboxIDs", mock.Anything, "u1", eligibleQuery).Return(nil, errors.New("timeout"))
		store.On("ListMailboxIDs", mock.Anything, "u1", excludedQuery).Return([]string{"junk"}, nil)

		scope, ok := NewScopeResolver(store, 200, nil, nil).Resolve(ctx, "u1")

		assert.True(t, ok)
		assert.Equal(t, ScopeExclusion, scope.Strategy)
		store.AssertNumberOfCalls(t, "CountMailboxes", 1)
		store.AssertNumberOfCalls(t, "ListMailboxIDs", 2)
	})

	t.Run("全部探测失败时范围未限定", func(t *testing.T) {
		store := new(MockStore)
		store.On("CountMailboxes", mock.Anything, "u1", eligibleQuery).Return(int64(0), errors.New("down"))
		store.On("ListMailboxIDs", mock.Anything, "u1", excludedQuery).Return(nil, errors.New("down"))

		scope, ok := NewScopeResolver(store, 200, nil, nil).Resolve(ctx, "u1")

		assert.False(t, ok)
		assert.Nil(t, scope.Predicate())
	})
}
