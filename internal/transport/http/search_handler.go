package httptransport

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"mailsearch/backend/internal/domain"
)

type searchQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// searchMessages 按搜索条件查询用户邮件
//
// 请求体为 SearchPayload，空请求体等价于无条件搜索；分页参数通过查询字符串传递。
func (h *Handler) searchMessages(c *gin.Context) {
	var query searchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	var payload domain.SearchPayload
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	result, err := h.search.Search(c.Request.Context(), c.Param("userId"), payload, query.Page, query.Limit)
	if err != nil {
		respondError(c, err, MsgSearchFailed)
		return
	}

	Success(c, result)
}
