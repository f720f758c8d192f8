package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
	"mailsearch/backend/internal/storage"
)

func seedMailbox(t *testing.T, s *Store, userID, path string, su domain.SpecialUse) *domain.Mailbox {
	t.Helper()
	mb := &domain.Mailbox{UserID: userID, Path: path, SpecialUse: su}
	require.NoError(t, s.SaveMailbox(context.Background(), mb))
	return mb
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	t.Run("保存并按地址查询", func(t *testing.T) {
		user := &domain.User{Username: "alice", Address: " Alice@Example.com "}
		require.NoError(t, s.SaveUser(ctx, user))
		assert.NotEmpty(t, user.ID)

		got, err := s.GetUserByAddress(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("用户不存在", func(t *testing.T) {
		_, err := s.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStore_Mailboxes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	inbox := seedMailbox(t, s, "u1", domain.InboxPath, domain.SpecialUseNone)
	junk := seedMailbox(t, s, "u1", "Junk", domain.SpecialUseJunk)
	seedMailbox(t, s, "u1", "Trash", domain.SpecialUseTrash)
	seedMailbox(t, s, "u2", domain.InboxPath, domain.SpecialUseNone)

	t.Run("排除垃圾邮件与废纸篓", func(t *testing.T) {
		q := domain.MailboxQuery{ExcludeSpecialUse: domain.UnsearchableSpecialUses()}
		count, err := s.CountMailboxes(ctx, "u1", q)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		ids, err := s.ListMailboxIDs(ctx, "u1", q)
		require.NoError(t, err)
		assert.Equal(t, []string{inbox.ID}, ids)
	})

	t.Run("按特殊用途筛选", func(t *testing.T) {
		ids, err := s.ListMailboxIDs(ctx, "u1", domain.MailboxQuery{SpecialUse: []domain.SpecialUse{domain.SpecialUseJunk}})
		require.NoError(t, err)
		assert.Equal(t, []string{junk.ID}, ids)
	})

	t.Run("按路径查询", func(t *testing.T) {
		got, err := s.GetMailboxByPath(ctx, "u2", domain.InboxPath)
		require.NoError(t, err)
		assert.Equal(t, "u2", got.UserID)

		_, err = s.GetMailboxByPath(ctx, "u3", domain.InboxPath)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStore_Messages(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	inbox := seedMailbox(t, s, "u1", domain.InboxPath, domain.SpecialUseNone)

	for i := 0; i < 5; i++ {
		msg := &domain.Message{UserID: "u1", MailboxID: inbox.ID, Flagged: i%2 == 0}
		require.NoError(t, s.SaveMessage(ctx, msg))
		assert.Equal(t, int64(i+1), msg.ID)
		assert.Equal(t, int64(i+1), msg.UID)
	}

	t.Run("邮箱不存在时拒绝保存", func(t *testing.T) {
		err := s.SaveMessage(ctx, &domain.Message{UserID: "u1", MailboxID: "missing"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("排序与分页", func(t *testing.T) {
		msgs, err := s.FindMessages(ctx, filter.Eq{Field: domain.FieldUser, Value: "u1"},
			storage.FindOptions{Sort: storage.SortIDDesc, Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, int64(4), msgs[0].ID)
		assert.Equal(t, int64(3), msgs[1].ID)
	})

	t.Run("统计", func(t *testing.T) {
		count, err := s.CountMessages(ctx, filter.Eq{Field: domain.FieldFlagged, Value: true})
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("最大ID", func(t *testing.T) {
		maxID, ok, err := s.MaxMessageID(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(5), maxID)

		_, ok, err = NewStore().MaxMessageID(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("批量写入搜索字段", func(t *testing.T) {
		index := domain.SearchIndex{From: []string{"a@x.com"}, Subject: "hi"}
		modified, err := s.UpdateSearchIndexes(ctx, []domain.SearchIndexUpdate{
			{MessageID: 1, Search: index},
			{MessageID: 99, Search: index},
			{MessageID: 2, Search: index},
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, int64(2), modified)

		// 内容相同的写入不计入修改数
		modified, err = s.UpdateSearchIndexes(ctx, []domain.SearchIndexUpdate{{MessageID: 1, Search: index}})
		require.NoError(t, err)
		assert.Equal(t, int64(0), modified)

		count, err := s.CountMessages(ctx, filter.Exists{Field: domain.FieldSearch, Present: true})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("返回值与内部状态隔离", func(t *testing.T) {
		msgs, err := s.FindMessages(ctx, filter.Eq{Field: domain.FieldID, Value: int64(1)}, storage.FindOptions{})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		msgs[0].Search.From[0] = "changed"

		again, err := s.FindMessages(ctx, filter.Eq{Field: domain.FieldID, Value: int64(1)}, storage.FindOptions{})
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", again[0].Search.From[0])
	})
}
