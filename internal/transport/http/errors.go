package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailsearch/backend/internal/domain"
	"mailsearch/backend/internal/service"
)

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidJSON      = "JSON格式错误"
	MsgRequestBodyEmpty = "请求体不能为空"

	// 用户相关
	MsgUserNotFound     = "用户不存在"
	MsgInvalidAddress   = "邮箱地址格式无效"
	MsgAddressTaken     = "邮箱地址已被注册"
	MsgUserCreateFailed = "创建用户失败"

	// 邮件相关
	MsgMessageCreateFailed = "保存邮件失败"
	MsgSearchFailed        = "搜索失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)

// respondError 把业务错误映射为统一响应
//
// fallback 为未识别错误时返回的提示信息。
func respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, service.ErrInvalidAddress):
		BadRequest(c, MsgInvalidAddress)
	case errors.Is(err, service.ErrAddressTaken):
		Conflict(c, MsgAddressTaken)
	case errors.Is(err, domain.ErrInternalLookup):
		InternalError(c, MsgInternalError)
	case errors.Is(err, domain.ErrNotFound):
		NotFound(c, MsgUserNotFound)
	default:
		InternalError(c, fallback)
	}
}
