package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"fieldreport/backend/internal/domain"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	domain.ErrIssueNotFound: "问题记录不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidJSON      = "JSON格式错误"
	MsgInvalidMultipart = "表单数据格式错误"
	MsgFileReadFailed   = "读取上传文件失败"

	// 问题记录相关
	MsgIssueCreateFailed = "创建问题记录失败"
	MsgIssueNotFound     = "问题记录不存在"
	MsgIssueListFailed   = "获取问题列表失败"
	MsgIssuePatchFailed  = "更新问题记录失败"

	// 解决方案相关
	MsgSolutionSubmitFailed = "提交解决方案失败"

	// 导出相关
	MsgExportFailed = "导出归档失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)

// respondError 按错误分类返回对应的 HTTP 响应。
//
// 校验错误 -> 400，记录不存在 -> 404，其余视为存储故障 -> 500。
func respondError(c *gin.Context, err error, fallbackMsg string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		BadRequest(c, ve.Error())
	case errors.Is(err, domain.ErrIssueNotFound):
		NotFound(c, MsgIssueNotFound)
	default:
		InternalError(c, fallbackMsg)
	}
}
