package memory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/filter"
	"mailsearch/backend/internal/storage"
)

// SaveMessage 保存新邮件，分配自增 ID；UID 为 0 时从所属邮箱分配。
func (s *Store) SaveMessage(_ context.Context, message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mailbox, ok := s.mailboxes[message.MailboxID]
	if !ok {
		return fmt.Errorf("mailbox %s: %w", message.MailboxID, domain.ErrNotFound)
	}
	if message.UID == 0 {
		message.UID = mailbox.UIDNext
	}
	if message.UID >= mailbox.UIDNext {
		mailbox.UIDNext = message.UID + 1
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	if message.InternalDate.IsZero() {
		message.InternalDate = message.CreatedAt
	}

	s.nextID++
	message.ID = s.nextID
	s.messages[message.ID] = cloneMessage(message)
	return nil
}

// FindMessages 返回满足谓词的邮件。
func (s *Store) FindMessages(_ context.Context, pred filter.Predicate, opts storage.FindOptions) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Message, 0)
	m := filter.NewMatcher(pred)
	for _, msg := range s.messages {
		if m.Match(messageDoc{msg}) {
			matched = append(matched, msg)
		}
	}

	slices.SortFunc(matched, func(a, b *domain.Message) int {
		if opts.Sort == storage.SortIDDesc {
			return compareID(b.ID, a.ID)
		}
		return compareID(a.ID, b.ID)
	})

	start := min(max(opts.Offset, 0), len(matched))
	end := len(matched)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, end)
	}

	result := make([]domain.Message, 0, end-start)
	for _, msg := range matched[start:end] {
		result = append(result, *cloneMessage(msg))
	}
	return result, nil
}

// CountMessages 统计满足谓词的邮件数量。
func (s *Store) CountMessages(_ context.Context, pred filter.Predicate) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	m := filter.NewMatcher(pred)
	for _, msg := range s.messages {
		if m.Match(messageDoc{msg}) {
			count++
		}
	}
	return count, nil
}

// MaxMessageID 返回当前最大邮件 ID。
func (s *Store) MaxMessageID(_ context.Context) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxID int64
	for id := range s.messages {
		maxID = max(maxID, id)
	}
	return maxID, len(s.messages) > 0, nil
}

// UpdateSearchIndexes 批量写入搜索字段，内容未变化的记录不计入修改数。
func (s *Store) UpdateSearchIndexes(_ context.Context, updates []domain.SearchIndexUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	var errs []error
	for _, u := range updates {
		msg, ok := s.messages[u.MessageID]
		if !ok {
			errs = append(errs, fmt.Errorf("message %d: %w", u.MessageID, domain.ErrNotFound))
			continue
		}
		if msg.Search != nil && reflect.DeepEqual(*msg.Search, u.Search) {
			continue
		}
		index := u.Search
		msg.Search = &index
		modified++
	}
	return modified, errors.Join(errs...)
}

func compareID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cloneMessage(msg *domain.Message) *domain.Message {
	copied := *msg
	if msg.Search != nil {
		index := *msg.Search
		index.From = slices.Clone(msg.Search.From)
		index.To = slices.Clone(msg.Search.To)
		index.Cc = slices.Clone(msg.Search.Cc)
		copied.Search = &index
	}
	return &copied
}
