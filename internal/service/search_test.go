package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
	"mailsearch/backend/internal/monitoring"
	"mailsearch/backend/internal/storage/memory"
)

func newCompileStore() *MockStore {
	store := new(MockStore)
	store.On("GetUser", mock.Anything, "u1").Return(&domain.User{ID: "u1"}, nil)
	return store
}

func userClause() filter.Predicate {
	return filter.Eq{Field: domain.FieldUser, Value: "u1"}
}

func hasField(clauses []filter.Predicate, field string) bool {
	for _, c := range clauses {
		switch p := c.(type) {
		case filter.Eq:
			if p.Field == field {
				return true
			}
		case filter.In:
			if p.Field == field {
				return true
			}
		case filter.Range:
			if p.Field == field {
				return true
			}
		}
	}
	return false
}

func TestSearchService_Compile(t *testing.T) {
	ctx := context.Background()

	t.Run("用户不存在", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetUser", mock.Anything, "ghost").Return(nil, fmt.Errorf("user ghost: %w", domain.ErrNotFound))

		_, _, err := NewSearchService(store, nil, nil, nil).Compile(ctx, "ghost", domain.SearchPayload{})

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NotErrorIs(t, err, domain.ErrInternalLookup)
	})

	t.Run("用户查询失败", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetUser", mock.Anything, "u1").Return(nil, errors.New("connection refused"))
		metrics := monitoring.NewMetrics(prometheus.NewRegistry())

		_, _, err := NewSearchService(store, nil, nil, metrics).Compile(ctx, "u1", domain.SearchPayload{})

		assert.ErrorIs(t, err, domain.ErrInternalLookup)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IdentityLookupErrors.WithLabelValues("internal")))
	})

	t.Run("发件人地址精确匹配", func(t *testing.T) {
		f, _, err := NewSearchService(newCompileStore(), nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{From: " Alice@X.com "})
		require.NoError(t, err)

		assert.Equal(t, []filter.Predicate{
			userClause(),
			filter.Eq{Field: domain.FieldSearchFrom, Value: "alice@x.com"},
		}, f.Clauses())
		assert.Empty(t, f.Alternatives())
	})

	t.Run("发件人名称按转义后的模式匹配", func(t *testing.T) {
		f, _, err := NewSearchService(newCompileStore(), nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{From: "J.Doe"})
		require.NoError(t, err)

		assert.Contains(t, f.Clauses(), filter.Pattern{Field: domain.FieldSearchFromName, Expr: `j\.doe`, IgnoreCase: true})
	})

	t.Run("收件人同时匹配抄送", func(t *testing.T) {
		f, _, err := NewSearchService(newCompileStore(), nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{To: "bob@y.org"})
		require.NoError(t, err)

		assert.Contains(t, f.Clauses(), filter.Or{Clauses: []filter.Predicate{
			filter.Eq{Field: domain.FieldSearchTo, Value: "bob@y.org"},
			filter.Eq{Field: domain.FieldSearchCc, Value: "bob@y.org"},
		}})
	})

	t.Run("主题按单词前缀匹配", func(t *testing.T) {
		f, _, err := NewSearchService(newCompileStore(), nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{Subject: "Hello  World"})
		require.NoError(t, err)

		assert.Equal(t, []filter.Predicate{
			userClause(),
			filter.Prefix{Field: domain.FieldSearchSubject, Value: "hello"},
			filter.Prefix{Field: domain.FieldSearchSubject, Value: "world"},
		}, f.Clauses())
	})

	t.Run("析取主题", func(t *testing.T) {
		svc := NewSearchService(newCompileStore(), nil, nil, nil)

		f, _, err := svc.Compile(ctx, "u1", domain.SearchPayload{Or: &domain.SearchAlternatives{Subject: "hello"}})
		require.NoError(t, err)
		assert.Equal(t, []filter.Predicate{filter.Prefix{Field: domain.FieldSearchSubject, Value: "hello"}}, f.Alternatives())

		f, _, err = svc.Compile(ctx, "u1", domain.SearchPayload{Or: &domain.SearchAlternatives{Subject: "hello world"}})
		require.NoError(t, err)
		assert.Equal(t, []filter.Predicate{filter.And{Clauses: []filter.Predicate{
			filter.Prefix{Field: domain.FieldSearchSubject, Value: "hello"},
			filter.Prefix{Field: domain.FieldSearchSubject, Value: "world"},
		}}}, f.Alternatives())
	})

	t.Run("析取组包含地址与全文", func(t *testing.T) {
		f, query, err := NewSearchService(newCompileStore(), nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{Or: &domain.SearchAlternatives{
				Query: "invoice",
				From:  "alice@x.com",
				To:    "bob",
			}})
		require.NoError(t, err)

		assert.Empty(t, query)
		assert.Equal(t, []filter.Predicate{
			filter.Text{Query: "invoice"},
			filter.Eq{Field: domain.FieldSearchFrom, Value: "alice@x.com"},
			filter.Pattern{Field: domain.FieldSearchToName, Expr: "bob", IgnoreCase: true},
			filter.Pattern{Field: domain.FieldSearchCcName, Expr: "bob", IgnoreCase: true},
		}, f.Alternatives())
		// 析取组中的全文检索不强制 searchable
		assert.False(t, hasField(f.Clauses(), domain.FieldSearchable))

		root := f.Root().(filter.And)
		assert.IsType(t, filter.Or{}, root.Clauses[len(root.Clauses)-1])
	})

	t.Run("unseen 优先于 seen", func(t *testing.T) {
		f, _, err := NewSearchService(newCompileStore(), nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{Seen: true, Unseen: true})
		require.NoError(t, err)

		clauses := f.Clauses()
		assert.Contains(t, clauses, filter.Eq{Field: domain.FieldUnseen, Value: true})
		assert.NotContains(t, clauses, filter.Eq{Field: domain.FieldUnseen, Value: false})
		assert.Contains(t, clauses, filter.Eq{Field: domain.FieldSearchable, Value: true})
	})

	t.Run("没有邮箱范围时忽略ID范围", func(t *testing.T) {
		f, _, err := NewSearchService(newCompileStore(), nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{ID: "1:10", Flagged: true})
		require.NoError(t, err)

		assert.False(t, hasField(f.Clauses(), domain.FieldUID))
		assert.False(t, hasField(f.Clauses(), domain.FieldMailbox))
		assert.Contains(t, f.Clauses(), filter.Eq{Field: domain.FieldFlagged, Value: true})
	})

	t.Run("指定邮箱时应用ID范围", func(t *testing.T) {
		metrics := monitoring.NewMetrics(prometheus.NewRegistry())
		f, _, err := NewSearchService(newCompileStore(), nil, nil, metrics).
			Compile(ctx, "u1", domain.SearchPayload{Mailbox: "inbox", ID: "5:*"})
		require.NoError(t, err)

		assert.Equal(t, []filter.Predicate{
			userClause(),
			filter.Eq{Field: domain.FieldMailbox, Value: "inbox"},
			filter.Range{Field: domain.FieldUID, Min: int64(5)},
		}, f.Clauses())
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SearchCompiles.WithLabelValues("explicit")))
	})

	t.Run("全文检索触发跨邮箱范围解析", func(t *testing.T) {
		store := newCompileStore()
		store.On("CountMailboxes", mock.Anything, "u1", eligibleQuery).Return(int64(2), nil)
		store.On("ListMailboxIDs", mock.Anything, "u1", eligibleQuery).Return([]string{"inbox", "sent"}, nil)

		f, query, err := NewSearchService(store, nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{Query: "quarterly report", ID: "3,1"})
		require.NoError(t, err)

		assert.Equal(t, "quarterly report", query)
		assert.Equal(t, []filter.Predicate{
			userClause(),
			filter.Text{Query: "quarterly report"},
			filter.In{Field: domain.FieldMailbox, Values: []any{"inbox", "sent"}},
			filter.In{Field: domain.FieldUID, Values: []any{int64(1), int64(3)}},
			filter.Eq{Field: domain.FieldSearchable, Value: true},
		}, f.Clauses())
	})

	t.Run("范围探测失败时仍返回结果", func(t *testing.T) {
		store := newCompileStore()
		store.On("CountMailboxes", mock.Anything, "u1", eligibleQuery).Return(int64(0), errors.New("down"))
		store.On("ListMailboxIDs", mock.Anything, "u1", excludedQuery).Return([]string{"junk"}, nil)

		f, _, err := NewSearchService(store, nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{Searchable: true})
		require.NoError(t, err)

		assert.Contains(t, f.Clauses(), filter.NotIn{Field: domain.FieldMailbox, Values: []any{"junk"}})
	})

	t.Run("日期与大小", func(t *testing.T) {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

		f, _, err := NewSearchService(newCompileStore(), nil, nil, nil).
			Compile(ctx, "u1", domain.SearchPayload{
				DateStart:   &start,
				DateEnd:     &end,
				Attachments: true,
				MinSize:     100,
				MaxSize:     2000,
			})
		require.NoError(t, err)

		assert.Equal(t, []filter.Predicate{
			userClause(),
			filter.Range{Field: domain.FieldInternalDate, Min: start, Max: end},
			filter.Eq{Field: domain.FieldHasAttachments, Value: true},
			filter.Range{Field: domain.FieldSize, Min: int64(100)},
			filter.Range{Field: domain.FieldSize, Max: int64(2000)},
		}, f.Clauses())
	})
}

func rawMessage(from, to, subject, body string) []byte {
	return []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" + body + "\r\n")
}

func TestSearchService_Search(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	user, mailboxes, err := NewUserService(store).Create(ctx, CreateUserInput{Name: "Bob", Address: "bob@example.org"})
	require.NoError(t, err)
	require.Len(t, mailboxes, 5)

	messages := NewMessageService(store, nil, nil)
	_, err = messages.Deliver(ctx, "bob@example.org", rawMessage("Alice <alice@x.com>", "bob@example.org", "Hello there", "quarterly numbers"))
	require.NoError(t, err)
	_, err = messages.Deliver(ctx, "BOB@example.org", rawMessage("Carol <carol@z.net>", "bob@example.org", "Lunch", "see you at noon"))
	require.NoError(t, err)

	var junkID string
	for _, mb := range mailboxes {
		if mb.SpecialUse == domain.SpecialUseJunk {
			junkID = mb.ID
		}
	}
	_, err = messages.Create(ctx, CreateMessageInput{
		MailboxID: junkID,
		Raw:       rawMessage("Spam <spam@bad.example>", "bob@example.org", "Hello winner", "quarterly prize"),
	})
	require.NoError(t, err)

	svc := NewSearchService(store, nil, nil, nil)

	t.Run("按发件人地址", func(t *testing.T) {
		result, err := svc.Search(ctx, user.ID, domain.SearchPayload{From: "alice@x.com"}, 1, 10)
		require.NoError(t, err)
		require.Equal(t, int64(1), result.Total)
		assert.Equal(t, "Hello there", result.Messages[0].Subject)
	})

	t.Run("全文检索排除垃圾邮件", func(t *testing.T) {
		result, err := svc.Search(ctx, user.ID, domain.SearchPayload{Query: "quarterly"}, 1, 10)
		require.NoError(t, err)
		require.Equal(t, int64(1), result.Total)
		assert.Equal(t, "quarterly", result.Query)
		assert.Equal(t, "Hello there", result.Messages[0].Subject)
	})

	t.Run("按主题前缀", func(t *testing.T) {
		result, err := svc.Search(ctx, user.ID, domain.SearchPayload{Subject: "hel"}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Total)
	})

	t.Run("析取条件", func(t *testing.T) {
		result, err := svc.Search(ctx, user.ID, domain.SearchPayload{
			Searchable: true,
			Or:         &domain.SearchAlternatives{From: "carol", Subject: "hello"},
		}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Total)
		// 按 ID 倒序
		assert.Equal(t, "Lunch", result.Messages[0].Subject)
	})

	t.Run("分页默认值", func(t *testing.T) {
		result, err := svc.Search(ctx, user.ID, domain.SearchPayload{}, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Page)
		assert.Equal(t, defaultSearchLimit, result.Limit)
		assert.Equal(t, int64(3), result.Total)
	})

	t.Run("用户不存在", func(t *testing.T) {
		_, err := svc.Search(ctx, "ghost", domain.SearchPayload{}, 1, 10)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
