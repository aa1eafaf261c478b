package httptransport

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fieldreport/backend/internal/domain"
	"fieldreport/backend/internal/service"
)

// IssueHandler 处理问题记录相关的 HTTP 请求
type IssueHandler struct {
	issues *service.IssueService
	search *service.SearchService
	export *service.ExportService
	log    *zap.Logger
}

// NewIssueHandler 创建问题处理器实例
func NewIssueHandler(
	issueService *service.IssueService,
	searchService *service.SearchService,
	exportService *service.ExportService,
	log *zap.Logger,
) *IssueHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IssueHandler{
		issues: issueService,
		search: searchService,
		export: exportService,
		log:    log,
	}
}

// ========== 响应结构体 ==========

// issueResponse 问题记录响应载荷
type issueResponse struct {
	ID           string              `json:"id"`
	ProjectName  string              `json:"projectName"`
	RatedPower   float64             `json:"ratedPower"`
	RatedSpeed   float64             `json:"ratedSpeed"`
	Application  string              `json:"application"`
	Legislation  string              `json:"legislation"`
	CustomerName string              `json:"customerName,omitempty"`
	FieSystem    string              `json:"fieSystem,omitempty"`
	EgtSystem    string              `json:"egtSystem,omitempty"`
	FuelType     string              `json:"fuelType,omitempty"`
	IssueTitle   string              `json:"issueTitle"`
	Description  string              `json:"description"`
	IssueType    string              `json:"issueType"`
	NtID         string              `json:"ntId"`
	Email        string              `json:"email"`
	Status       string              `json:"status"`
	Files        []domain.Attachment `json:"files"`
	Solution     *domain.Solution    `json:"solution,omitempty"`
	HasSolution  bool                `json:"hasSolution"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func toIssueResponse(issue *domain.Issue) issueResponse {
	return issueResponse{
		ID:           issue.ID,
		ProjectName:  issue.ProjectName,
		RatedPower:   issue.RatedPower,
		RatedSpeed:   issue.RatedSpeed,
		Application:  issue.Application,
		Legislation:  issue.Legislation,
		CustomerName: issue.CustomerName,
		FieSystem:    issue.FieSystem,
		EgtSystem:    issue.EgtSystem,
		FuelType:     issue.FuelType,
		IssueTitle:   issue.IssueTitle,
		Description:  issue.Description,
		IssueType:    string(issue.IssueType),
		NtID:         issue.NtID,
		Email:        issue.Email,
		Status:       string(issue.Status),
		Files:        issue.Files,
		Solution:     issue.Solution,
		HasSolution:  issue.HasSolution(),
		CreatedAt:    issue.CreatedAt,
	}
}

func toIssueResponses(issues []domain.Issue) []issueResponse {
	out := make([]issueResponse, 0, len(issues))
	for i := range issues {
		out = append(out, toIssueResponse(&issues[i]))
	}
	return out
}

// ========== 处理器 ==========

// createIssue 创建问题记录
// @Summary 创建问题记录
// @Description 提交新的现场问题，附件通过 multipart 表单的 files 字段上传
// @Tags 问题
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} Response "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/issues [post]
func (h *IssueHandler) createIssue(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, MsgInvalidMultipart)
		return
	}

	uploads, closeFiles, err := openUploads(form.File["files"])
	if err != nil {
		BadRequest(c, MsgFileReadFailed)
		return
	}
	defer closeFiles()

	input := service.CreateIssueInput{
		ProjectName:  c.PostForm("projectName"),
		RatedPower:   c.PostForm("ratedPower"),
		RatedSpeed:   c.PostForm("ratedSpeed"),
		Application:  c.PostForm("application"),
		Legislation:  c.PostForm("legislation"),
		CustomerName: c.PostForm("customerName"),
		FieSystem:    c.PostForm("fieSystem"),
		EgtSystem:    c.PostForm("egtSystem"),
		FuelType:     c.PostForm("fuelType"),
		IssueTitle:   c.PostForm("issueTitle"),
		Description:  c.PostForm("description"),
		IssueType:    c.PostForm("issueType"),
		NtID:         c.PostForm("ntId"),
		Email:        c.PostForm("email"),
		Files:        uploads,
	}

	issue, err := h.issues.Create(input)
	if err != nil {
		h.log.Warn("create issue failed", zap.Error(err))
		respondError(c, err, MsgIssueCreateFailed)
		return
	}

	Created(c, toIssueResponse(issue))
}

// listIssues 搜索问题记录
// @Summary 搜索问题记录
// @Description 按关键词与筛选条件查询问题，结果按创建时间倒序
// @Tags 问题
// @Produce json
// @Param q query string false "搜索关键词"
// @Param ntId query string false "报告人 NT 账号"
// @Param status query string false "状态筛选（Open/InProgress/Resolved）"
// @Success 200 {object} Response "查询成功"
// @Router /v1/issues [get]
func (h *IssueHandler) listIssues(c *gin.Context) {
	issues, err := h.search.SearchIssues(service.SearchIssuesInput{
		Query:  c.Query("q"),
		NtID:   c.Query("ntId"),
		Status: c.Query("status"),
	})
	if err != nil {
		respondError(c, err, MsgIssueListFailed)
		return
	}

	Success(c, toIssueResponses(issues))
}

// getIssue 获取问题详情
// @Summary 获取问题详情
// @Tags 问题
// @Produce json
// @Param id path string true "问题 ID"
// @Success 200 {object} Response "查询成功"
// @Failure 404 {object} Response "问题不存在"
// @Router /v1/issues/{id} [get]
func (h *IssueHandler) getIssue(c *gin.Context) {
	issue, err := h.issues.Get(c.Param("id"))
	if err != nil {
		respondError(c, err, MsgInternalError)
		return
	}

	Success(c, toIssueResponse(issue))
}

// patchRequest 元数据修正请求体，省略的字段不修改
type patchRequest struct {
	ProjectName  *string  `json:"projectName"`
	RatedPower   *float64 `json:"ratedPower"`
	RatedSpeed   *float64 `json:"ratedSpeed"`
	Application  *string  `json:"application"`
	Legislation  *string  `json:"legislation"`
	CustomerName *string  `json:"customerName"`
	FieSystem    *string  `json:"fieSystem"`
	EgtSystem    *string  `json:"egtSystem"`
	FuelType     *string  `json:"fuelType"`
	IssueTitle   *string  `json:"issueTitle"`
	Description  *string  `json:"description"`
	IssueType    *string  `json:"issueType"`
	Email        *string  `json:"email"`
	Status       *string  `json:"status"`
}

// patchIssue 修正问题元数据
// @Summary 修正问题元数据
// @Description 更新问题的元数据字段，不能通过此接口写入解决方案
// @Tags 问题
// @Accept json
// @Produce json
// @Param id path string true "问题 ID"
// @Param request body patchRequest true "要修改的字段"
// @Success 200 {object} Response "更新成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 404 {object} Response "问题不存在"
// @Router /v1/issues/{id} [patch]
func (h *IssueHandler) patchIssue(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	issue, err := h.issues.Patch(c.Param("id"), service.PatchIssueInput{
		ProjectName:  req.ProjectName,
		RatedPower:   req.RatedPower,
		RatedSpeed:   req.RatedSpeed,
		Application:  req.Application,
		Legislation:  req.Legislation,
		CustomerName: req.CustomerName,
		FieSystem:    req.FieSystem,
		EgtSystem:    req.EgtSystem,
		FuelType:     req.FuelType,
		IssueTitle:   req.IssueTitle,
		Description:  req.Description,
		IssueType:    req.IssueType,
		Email:        req.Email,
		Status:       req.Status,
	})
	if err != nil {
		respondError(c, err, MsgIssuePatchFailed)
		return
	}

	Success(c, toIssueResponse(issue))
}

// submitSolution 提交解决方案
// @Summary 提交解决方案
// @Description 为指定问题提交解决方案并将状态置为 Resolved，附件通过 solutionFiles 字段上传
// @Tags 解决方案
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "问题 ID"
// @Success 200 {object} Response "提交成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 404 {object} Response "问题不存在"
// @Router /v1/issues/{id}/solution [post]
func (h *IssueHandler) submitSolution(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, MsgInvalidMultipart)
		return
	}

	uploads, closeFiles, err := openUploads(form.File["solutionFiles"])
	if err != nil {
		BadRequest(c, MsgFileReadFailed)
		return
	}
	defer closeFiles()

	issue, err := h.issues.SubmitSolution(c.Param("id"), service.SubmitSolutionInput{
		Category:      c.PostForm("category"),
		Description:   c.PostForm("description"),
		SolvedBy:      c.PostForm("solvedBy"),
		SolvedByEmail: c.PostForm("solvedByEmail"),
		Files:         uploads,
	})
	if err != nil {
		h.log.Warn("submit solution failed",
			zap.String("issue_id", c.Param("id")),
			zap.Error(err),
		)
		respondError(c, err, MsgSolutionSubmitFailed)
		return
	}

	SuccessWithMsg(c, "解决方案已提交", toIssueResponse(issue))
}

// exportIssue 导出问题归档
// @Summary 导出问题归档
// @Description 将问题元数据与全部附件打包为 zip 下载，缺失的附件会被跳过
// @Tags 导出
// @Produce application/zip
// @Param id path string true "问题 ID"
// @Success 200 {file} binary "zip 归档"
// @Failure 404 {object} Response "问题不存在"
// @Router /v1/issues/{id}/export [get]
func (h *IssueHandler) exportIssue(c *gin.Context) {
	issueID := c.Param("id")

	// 先确认记录存在，以便在写出任何字节前返回 404
	issue, err := h.issues.Get(issueID)
	if err != nil {
		respondError(c, err, MsgExportFailed)
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", service.ExportFilename(issue)))
	c.Status(http.StatusOK)

	if err := h.export.Export(issueID, c.Writer); err != nil {
		// 响应头已写出，只能记录日志
		h.log.Error("export failed mid-stream",
			zap.String("issue_id", issueID),
			zap.Error(err),
		)
	}
}

// listOpenForReporter 查询报告人的未解决问题
// @Summary 查询报告人的未解决问题
// @Description 返回指定 NT 账号名下全部 Open 状态的问题，按创建时间倒序
// @Tags 问题
// @Produce json
// @Param ntId path string true "报告人 NT 账号"
// @Success 200 {object} Response "查询成功"
// @Router /v1/issues/nt/{ntId} [get]
func (h *IssueHandler) listOpenForReporter(c *gin.Context) {
	issues, err := h.issues.ListOpenFor(c.Param("ntId"))
	if err != nil {
		respondError(c, err, MsgIssueListFailed)
		return
	}

	Success(c, toIssueResponses(issues))
}

// openUploads 打开 multipart 文件头，返回上传描述与统一关闭函数。
func openUploads(headers []*multipart.FileHeader) ([]service.FileUpload, func(), error) {
	uploads := make([]service.FileUpload, 0, len(headers))
	closers := make([]multipart.File, 0, len(headers))

	closeAll := func() {
		for _, f := range closers {
			f.Close()
		}
	}

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, f)
		uploads = append(uploads, service.FileUpload{
			OriginalName: fh.Filename,
			MimeType:     fh.Header.Get("Content-Type"),
			Content:      f,
		})
	}

	return uploads, closeAll, nil
}
