package service

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fieldreport/backend/internal/domain"
	"fieldreport/backend/internal/storage"
	"fieldreport/backend/internal/storage/filesystem"
)

// FileStore 文件存储接口
type FileStore interface {
	Save(originalName string, r io.Reader) (*filesystem.SavedFile, error)
	Open(storedName string) (io.ReadCloser, error)
	Delete(storedName string) error
}

// FileUpload 一个待保存的上传文件。
type FileUpload struct {
	OriginalName string
	MimeType     string
	Content      io.Reader
}

// AttachmentMetrics 附件写入指标接口
type AttachmentMetrics interface {
	RecordAttachmentStored(sizeBytes int64)
}

// IssueService 封装问题记录的生命周期逻辑。
type IssueService struct {
	repo    storage.IssueRepository
	files   FileStore
	metrics AttachmentMetrics
	log     *zap.Logger
}

// NewIssueService 创建问题业务服务。
func NewIssueService(repo storage.IssueRepository, files FileStore, log *zap.Logger) *IssueService {
	if log == nil {
		log = zap.NewNop()
	}
	return &IssueService{repo: repo, files: files, log: log}
}

// SetMetrics 设置附件指标采集器
func (s *IssueService) SetMetrics(metrics AttachmentMetrics) {
	s.metrics = metrics
}

// CreateIssueInput 定义创建问题记录的输入。
// 数值与枚举字段以原始字符串传入，在校验阶段统一转换。
type CreateIssueInput struct {
	ProjectName  string
	RatedPower   string
	RatedSpeed   string
	Application  string
	Legislation  string
	CustomerName string
	FieSystem    string
	EgtSystem    string
	FuelType     string
	IssueTitle   string
	Description  string
	IssueType    string
	NtID         string
	Email        string
	Files        []FileUpload
}

// validatedIssueFields 校验通过后的字段值。
type validatedIssueFields struct {
	ratedPower float64
	ratedSpeed float64
	issueType  domain.IssueType
}

// validate 校验创建输入，返回解析后的字段值。
func (in *CreateIssueInput) validate() (*validatedIssueFields, error) {
	required := []struct {
		field string
		value string
	}{
		{"projectName", in.ProjectName},
		{"ratedPower", in.RatedPower},
		{"ratedSpeed", in.RatedSpeed},
		{"application", in.Application},
		{"legislation", in.Legislation},
		{"issueTitle", in.IssueTitle},
		{"description", in.Description},
		{"ntId", in.NtID},
		{"email", in.Email},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, domain.NewValidationError(r.field, "field is required")
		}
	}

	ratedPower, err := strconv.ParseFloat(strings.TrimSpace(in.RatedPower), 64)
	if err != nil {
		return nil, domain.NewValidationError("ratedPower", "must be a number")
	}
	if ratedPower < 0 {
		return nil, domain.NewValidationError("ratedPower", "must not be negative")
	}

	ratedSpeed, err := strconv.ParseFloat(strings.TrimSpace(in.RatedSpeed), 64)
	if err != nil {
		return nil, domain.NewValidationError("ratedSpeed", "must be a number")
	}
	if ratedSpeed < 0 {
		return nil, domain.NewValidationError("ratedSpeed", "must not be negative")
	}

	if !domain.ValidateTitle(in.IssueTitle) {
		return nil, domain.NewValidationError("issueTitle", "invalid title")
	}

	issueType, ok := domain.ParseIssueType(in.IssueType)
	if !ok {
		return nil, domain.NewValidationError("issueType", "must be one of Hardware, Calibration, Process")
	}

	if !domain.ValidateEmail(in.Email) {
		return nil, domain.NewValidationError("email", "invalid email format")
	}

	return &validatedIssueFields{
		ratedPower: ratedPower,
		ratedSpeed: ratedSpeed,
		issueType:  issueType,
	}, nil
}

// Create 新建一条问题记录。
//
// 附件先写入文件存储，随后写入记录存储。记录写入失败时
// 删除刚写入的附件，保证文件存储中不残留孤儿文件。
func (s *IssueService) Create(input CreateIssueInput) (*domain.Issue, error) {
	fields, err := input.validate()
	if err != nil {
		return nil, err
	}

	attachments, err := s.storeUploads(input.Files)
	if err != nil {
		return nil, err
	}

	issue := &domain.Issue{
		ID:           uuid.NewString(),
		ProjectName:  strings.TrimSpace(input.ProjectName),
		RatedPower:   fields.ratedPower,
		RatedSpeed:   fields.ratedSpeed,
		Application:  strings.TrimSpace(input.Application),
		Legislation:  strings.TrimSpace(input.Legislation),
		CustomerName: strings.TrimSpace(input.CustomerName),
		FieSystem:    strings.TrimSpace(input.FieSystem),
		EgtSystem:    strings.TrimSpace(input.EgtSystem),
		FuelType:     strings.TrimSpace(input.FuelType),
		IssueTitle:   strings.TrimSpace(input.IssueTitle),
		Description:  input.Description,
		IssueType:    fields.issueType,
		NtID:         strings.TrimSpace(input.NtID),
		Email:        strings.TrimSpace(strings.ToLower(input.Email)),
		Status:       domain.StatusOpen,
		Files:        attachments,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.SaveIssue(issue); err != nil {
		s.removeStored(attachments)
		return nil, err
	}

	s.log.Info("issue created",
		zap.String("issue_id", issue.ID),
		zap.String("nt_id", issue.NtID),
		zap.Int("attachments", len(attachments)),
	)

	return issue, nil
}

// SubmitSolutionInput 定义提交解决方案的输入。
type SubmitSolutionInput struct {
	Category      string
	Description   string
	SolvedBy      string
	SolvedByEmail string
	Files         []FileUpload
}

// validate 校验解决方案输入。
func (in *SubmitSolutionInput) validate() (domain.SolutionCategory, error) {
	category, ok := domain.ParseSolutionCategory(in.Category)
	if !ok {
		return "", domain.NewValidationError("category", "unknown solution category")
	}
	if strings.TrimSpace(in.Description) == "" {
		return "", domain.NewValidationError("description", "field is required")
	}
	if strings.TrimSpace(in.SolvedBy) == "" {
		return "", domain.NewValidationError("solvedBy", "field is required")
	}
	if !domain.ValidateEmail(in.SolvedByEmail) {
		return "", domain.NewValidationError("solvedByEmail", "invalid email format")
	}
	return category, nil
}

// SubmitSolution 为指定问题提交解决方案，并将状态置为 Resolved。
//
// 解决方案与 Resolved 状态总是一起写入。对已解决的问题重复
// 提交会覆盖原方案（不保留历史）。
func (s *IssueService) SubmitSolution(issueID string, input SubmitSolutionInput) (*domain.Issue, error) {
	// 先确认记录存在，避免为不存在的记录写入任何文件
	issue, err := s.repo.GetIssue(issueID)
	if err != nil {
		return nil, err
	}

	category, err := input.validate()
	if err != nil {
		return nil, err
	}

	attachments, err := s.storeUploads(input.Files)
	if err != nil {
		return nil, err
	}

	issue.Solution = &domain.Solution{
		Category:      category,
		Description:   input.Description,
		Files:         attachments,
		SolvedAt:      time.Now().UTC(),
		SolvedBy:      strings.TrimSpace(input.SolvedBy),
		SolvedByEmail: strings.TrimSpace(strings.ToLower(input.SolvedByEmail)),
	}
	issue.Status = domain.StatusResolved

	if err := s.repo.UpdateIssue(issue); err != nil {
		s.removeStored(attachments)
		return nil, err
	}

	s.log.Info("solution submitted",
		zap.String("issue_id", issue.ID),
		zap.String("category", string(category)),
		zap.Int("attachments", len(attachments)),
	)

	return issue, nil
}

// PatchIssueInput 定义问题元数据修正的输入，nil 字段不修改。
type PatchIssueInput struct {
	ProjectName  *string
	RatedPower   *float64
	RatedSpeed   *float64
	Application  *string
	Legislation  *string
	CustomerName *string
	FieSystem    *string
	EgtSystem    *string
	FuelType     *string
	IssueTitle   *string
	Description  *string
	IssueType    *string
	Email        *string
	Status       *string
}

// Patch 更新问题的元数据字段。
//
// 状态只允许在 Open 与 InProgress 之间切换；Resolved 状态
// 只能通过 SubmitSolution 写入，且不可回退。
func (s *IssueService) Patch(issueID string, input PatchIssueInput) (*domain.Issue, error) {
	issue, err := s.repo.GetIssue(issueID)
	if err != nil {
		return nil, err
	}

	if input.Status != nil {
		status, ok := domain.ParseIssueStatus(*input.Status)
		if !ok {
			return nil, domain.NewValidationError("status", "unknown status")
		}
		if status == domain.StatusResolved {
			return nil, domain.NewValidationError("status", "status Resolved requires a solution")
		}
		if issue.Status == domain.StatusResolved {
			return nil, domain.NewValidationError("status", "resolved issues cannot change status")
		}
		issue.Status = status
	}

	// 必填字段不允许被清空
	required := []struct {
		field string
		value *string
	}{
		{"projectName", input.ProjectName},
		{"application", input.Application},
		{"legislation", input.Legislation},
		{"description", input.Description},
	}
	for _, r := range required {
		if r.value != nil && strings.TrimSpace(*r.value) == "" {
			return nil, domain.NewValidationError(r.field, "field is required")
		}
	}

	if input.RatedPower != nil {
		if *input.RatedPower < 0 {
			return nil, domain.NewValidationError("ratedPower", "must not be negative")
		}
		issue.RatedPower = *input.RatedPower
	}
	if input.RatedSpeed != nil {
		if *input.RatedSpeed < 0 {
			return nil, domain.NewValidationError("ratedSpeed", "must not be negative")
		}
		issue.RatedSpeed = *input.RatedSpeed
	}
	if input.IssueType != nil {
		issueType, ok := domain.ParseIssueType(*input.IssueType)
		if !ok {
			return nil, domain.NewValidationError("issueType", "must be one of Hardware, Calibration, Process")
		}
		issue.IssueType = issueType
	}
	if input.Email != nil {
		if !domain.ValidateEmail(*input.Email) {
			return nil, domain.NewValidationError("email", "invalid email format")
		}
		issue.Email = strings.TrimSpace(strings.ToLower(*input.Email))
	}
	if input.IssueTitle != nil {
		if !domain.ValidateTitle(*input.IssueTitle) {
			return nil, domain.NewValidationError("issueTitle", "invalid title")
		}
		issue.IssueTitle = strings.TrimSpace(*input.IssueTitle)
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	applyString(&issue.ProjectName, input.ProjectName)
	applyString(&issue.Application, input.Application)
	applyString(&issue.Legislation, input.Legislation)
	applyString(&issue.CustomerName, input.CustomerName)
	applyString(&issue.FieSystem, input.FieSystem)
	applyString(&issue.EgtSystem, input.EgtSystem)
	applyString(&issue.FuelType, input.FuelType)
	if input.Description != nil {
		issue.Description = *input.Description
	}

	if err := s.repo.UpdateIssue(issue); err != nil {
		return nil, err
	}

	return issue, nil
}

// Get 获取单条问题记录。
func (s *IssueService) Get(issueID string) (*domain.Issue, error) {
	return s.repo.GetIssue(issueID)
}

// ListOpenFor 返回指定报告人的全部 Open 状态记录，按创建时间倒序。
func (s *IssueService) ListOpenFor(ntID string) ([]domain.Issue, error) {
	return s.repo.ListOpenByReporter(ntID)
}

// storeUploads 并行写入全部上传文件。任一文件失败时删除已写入
// 的文件并返回错误。
func (s *IssueService) storeUploads(uploads []FileUpload) ([]domain.Attachment, error) {
	if len(uploads) == 0 {
		return []domain.Attachment{}, nil
	}

	results := make([]domain.Attachment, len(uploads))

	var g errgroup.Group
	for i, up := range uploads {
		i, up := i, up
		g.Go(func() error {
			saved, err := s.files.Save(up.OriginalName, up.Content)
			if err != nil {
				return err
			}
			results[i] = domain.Attachment{
				StoredName:   saved.StoredName,
				OriginalName: up.OriginalName,
				MimeType:     up.MimeType,
				SizeBytes:    saved.Size,
				StoragePath:  saved.StoragePath,
				UploadedAt:   time.Now().UTC(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.removeStored(results)
		return nil, err
	}

	if s.metrics != nil {
		for _, att := range results {
			s.metrics.RecordAttachmentStored(att.SizeBytes)
		}
	}

	return results, nil
}

// removeStored 尽力删除已写入的附件文件，删除失败只记录日志。
func (s *IssueService) removeStored(attachments []domain.Attachment) {
	for _, att := range attachments {
		if att.StoredName == "" {
			continue
		}
		if err := s.files.Delete(att.StoredName); err != nil {
			s.log.Warn("failed to clean up stored file",
				zap.String("stored_name", att.StoredName),
				zap.Error(err),
			)
		}
	}
}
