package memory

import (
	"mailsearch/backend/internal/domain"
)

// messageDoc 让邮件可以被 filter.Matcher 求值
type messageDoc struct {
	msg *domain.Message
}

func (d messageDoc) Lookup(field string) (any, bool) {
	m := d.msg
	switch field {
	case domain.FieldID:
		return m.ID, true
	case domain.FieldUser:
		return m.UserID, true
	case domain.FieldMailbox:
		return m.MailboxID, true
	case domain.FieldUID:
		return m.UID, true
	case domain.FieldThread:
		return m.ThreadID, m.ThreadID != ""
	case domain.FieldFlagged:
		return m.Flagged, true
	case domain.FieldUnseen:
		return m.Unseen, true
	case domain.FieldSearchable:
		return m.Searchable, true
	case domain.FieldInternalDate:
		return m.InternalDate, true
	case domain.FieldSize:
		return m.Size, true
	case domain.FieldHasAttachments:
		return m.HasAttachments, true
	case domain.FieldText:
		return m.Subject + "\n" + m.Text, true
	case domain.FieldSearch:
		if m.Search == nil {
			return nil, false
		}
		return *m.Search, true
	}

	if m.Search == nil {
		return nil, false
	}
	switch field {
	case domain.FieldSearchFrom:
		return m.Search.From, len(m.Search.From) > 0
	case domain.FieldSearchFromName:
		return m.Search.FromName, m.Search.FromName != ""
	case domain.FieldSearchTo:
		return m.Search.To, len(m.Search.To) > 0
	case domain.FieldSearchToName:
		return m.Search.ToName, m.Search.ToName != ""
	case domain.FieldSearchCc:
		return m.Search.Cc, len(m.Search.Cc) > 0
	case domain.FieldSearchCcName:
		return m.Search.CcName, m.Search.CcName != ""
	case domain.FieldSearchSubject:
		return m.Search.Subject, m.Search.Subject != ""
	}
	return nil, false
}
