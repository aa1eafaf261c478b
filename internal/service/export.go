package service

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"go.uber.org/zap"

	"fieldreport/backend/internal/domain"
	"fieldreport/backend/internal/storage"
)

// ExportService 将问题记录及其附件打包为 zip 归档。
type ExportService struct {
	repo  storage.IssueRepository
	files FileStore
	log   *zap.Logger
}

// NewExportService 创建归档导出服务。
func NewExportService(repo storage.IssueRepository, files FileStore, log *zap.Logger) *ExportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportService{repo: repo, files: files, log: log}
}

// ExportFilename 返回归档文件的下载名。
func ExportFilename(issue *domain.Issue) string {
	return fmt.Sprintf("issue-%s.zip", issue.ID)
}

// Export 将指定问题打包写入 w。
//
// 归档包含根目录下的 issue.json 元数据、attachments/ 下的问题
// 附件和 solutions/ 下的解决方案附件，条目名使用上传时的原始
// 文件名。文件存储中缺失的附件被跳过而不中断导出，归档对
// 剩余数据总是尽力完成。
func (s *ExportService) Export(issueID string, w io.Writer) error {
	// 导出开始时读取一次快照，流式写出过程中不再重读
	issue, err := s.repo.GetIssue(issueID)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)

	if err := s.writeMetadata(zw, issue); err != nil {
		zw.Close()
		return err
	}

	if err := s.writeAttachments(zw, issue.ID, "attachments", issue.Files); err != nil {
		zw.Close()
		return err
	}
	if issue.Solution != nil {
		if err := s.writeAttachments(zw, issue.ID, "solutions", issue.Solution.Files); err != nil {
			zw.Close()
			return err
		}
	}

	return zw.Close()
}

// writeMetadata 在归档根目录写入完整记录的 JSON 快照。
func (s *ExportService) writeMetadata(zw *zip.Writer, issue *domain.Issue) error {
	data, err := json.MarshalIndent(issue, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal issue metadata: %w", err)
	}

	entry, err := zw.Create("issue.json")
	if err != nil {
		return fmt.Errorf("failed to create metadata entry: %w", err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("failed to write metadata entry: %w", err)
	}
	return nil
}

// writeAttachments 将一组附件写入归档的指定子目录，缺失的文件跳过。
func (s *ExportService) writeAttachments(zw *zip.Writer, issueID, folder string, attachments []domain.Attachment) error {
	for _, att := range attachments {
		rc, err := s.files.Open(att.StoredName)
		if err != nil {
			s.log.Warn("attachment missing from file store, skipping",
				zap.String("issue_id", issueID),
				zap.String("stored_name", att.StoredName),
				zap.String("original_name", att.OriginalName),
			)
			continue
		}

		name := path.Base(att.OriginalName)
		if name == "" || name == "." || name == "/" {
			name = att.StoredName
		}

		entry, err := zw.Create(path.Join(folder, name))
		if err != nil {
			rc.Close()
			return fmt.Errorf("failed to create archive entry: %w", err)
		}
		if _, err := io.Copy(entry, rc); err != nil {
			rc.Close()
			return fmt.Errorf("failed to write archive entry: %w", err)
		}
		rc.Close()
	}
	return nil
}
