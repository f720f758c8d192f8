package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/monitoring"
	"mailsearch/backend/internal/storage/memory"
)

func TestMessageService_Create(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	svc := NewMessageService(store, nil, metrics)

	inbox := &domain.Mailbox{UserID: "u1", Path: domain.InboxPath}
	trash := &domain.Mailbox{UserID: "u1", Path: "Trash", SpecialUse: domain.SpecialUseTrash}
	require.NoError(t, store.SaveMailbox(ctx, inbox))
	require.NoError(t, store.SaveMailbox(ctx, trash))

	t.Run("入库时生成搜索字段", func(t *testing.T) {
		msg, err := svc.Create(ctx, CreateMessageInput{
			MailboxID: inbox.ID,
			Raw:       rawMessage("Jane Doe <jane@example.com>", "Bob <bob@example.org>", "Weekly Sync", "agenda"),
			Flagged:   true,
		})
		require.NoError(t, err)

		assert.Equal(t, "u1", msg.UserID)
		assert.Equal(t, int64(1), msg.UID)
		assert.True(t, msg.Searchable)
		assert.True(t, msg.Unseen)
		assert.True(t, msg.Flagged)
		require.NotNil(t, msg.Search)
		assert.Equal(t, []string{"jane@example.com"}, msg.Search.From)
		assert.Equal(t, "jane doe", msg.Search.FromName)
		assert.Equal(t, "bob", msg.Search.ToName)
		assert.Equal(t, "weekly sync", msg.Search.Subject)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MessagesIndexed))
	})

	t.Run("废纸篓中的邮件不可搜索", func(t *testing.T) {
		msg, err := svc.Create(ctx, CreateMessageInput{
			MailboxID: trash.ID,
			Raw:       rawMessage("a@x.com", "b@y.org", "Old", "bye"),
			Seen:      true,
		})
		require.NoError(t, err)

		assert.False(t, msg.Searchable)
		assert.False(t, msg.Unseen)
	})

	t.Run("邮箱不存在", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateMessageInput{MailboxID: "missing", Raw: rawMessage("a@x.com", "b@y.org", "x", "y")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMessageService_Deliver(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewMessageService(store, nil, nil)

	require.NoError(t, store.SaveUser(ctx, &domain.User{ID: "u1", Username: "bob", Address: "bob@example.org"}))

	t.Run("自动创建收件箱", func(t *testing.T) {
		msg, err := svc.Deliver(ctx, "bob@example.org", rawMessage("a@x.com", "bob@example.org", "Hi", "body"))
		require.NoError(t, err)

		inbox, err := store.GetMailboxByPath(ctx, "u1", domain.InboxPath)
		require.NoError(t, err)
		assert.Equal(t, inbox.ID, msg.MailboxID)
	})

	t.Run("收件人不存在", func(t *testing.T) {
		_, err := svc.Deliver(ctx, "nobody@example.org", rawMessage("a@x.com", "nobody@example.org", "Hi", "body"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(memory.NewStore())

	t.Run("创建默认邮箱", func(t *testing.T) {
		user, mailboxes, err := svc.Create(ctx, CreateUserInput{Address: "Alice@Example.com"})
		require.NoError(t, err)

		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "alice@example.com", user.Address)
		require.Len(t, mailboxes, 5)
		assert.Equal(t, domain.InboxPath, mailboxes[0].Path)
	})

	t.Run("地址已被占用", func(t *testing.T) {
		_, _, err := svc.Create(ctx, CreateUserInput{Address: "alice@example.com"})
		assert.ErrorIs(t, err, ErrAddressTaken)
	})

	t.Run("地址无效", func(t *testing.T) {
		_, _, err := svc.Create(ctx, CreateUserInput{Address: "not-an-address"})
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})
}
