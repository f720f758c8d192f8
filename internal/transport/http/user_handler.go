package httptransport

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/service"
)

type mailboxResponse struct {
	ID         string            `json:"id"`
	Path       string            `json:"path"`
	SpecialUse domain.SpecialUse `json:"specialUse,omitempty"`
}

type userResponse struct {
	ID        string            `json:"id"`
	Username  string            `json:"username"`
	Name      string            `json:"name,omitempty"`
	Address   string            `json:"address"`
	CreatedAt time.Time         `json:"createdAt"`
	Mailboxes []mailboxResponse `json:"mailboxes,omitempty"`
}

func toUserResponse(user *domain.User, mailboxes []domain.Mailbox) userResponse {
	resp := userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Address:   user.Address,
		CreatedAt: user.CreatedAt,
	}
	for _, mb := range mailboxes {
		resp.Mailboxes = append(resp.Mailboxes, mailboxResponse{ID: mb.ID, Path: mb.Path, SpecialUse: mb.SpecialUse})
	}
	return resp
}

// createUser 创建用户及其默认邮箱
func (h *Handler) createUser(c *gin.Context) {
	var req service.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	user, mailboxes, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, MsgUserCreateFailed)
		return
	}

	h.logger.Info("user created", zap.String("user_id", user.ID), zap.String("address", user.Address))
	Created(c, toUserResponse(user, mailboxes))
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err, MsgInternalError)
		return
	}
	Success(c, toUserResponse(user, nil))
}

// deliverMessage 以 RFC 5322 原文写入用户收件箱，与 SMTP 投递走相同的入库流程
func (h *Handler) deliverMessage(c *gin.Context) {
	ctx := c.Request.Context()

	user, err := h.users.Get(ctx, c.Param("userId"))
	if err != nil {
		respondError(c, err, MsgInternalError)
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if len(raw) == 0 {
		BadRequest(c, MsgRequestBodyEmpty)
		return
	}

	message, err := h.messages.Deliver(ctx, user.Address, raw)
	if err != nil {
		respondError(c, err, MsgMessageCreateFailed)
		return
	}
	Created(c, message)
}
