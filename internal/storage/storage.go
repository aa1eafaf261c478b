package storage

import (
	"fieldreport/backend/internal/domain"
	"time"
)

// IssueRepository 定义问题记录数据存取操作。
type IssueRepository interface {
	SaveIssue(issue *domain.Issue) error
	GetIssue(id string) (*domain.Issue, error)
	UpdateIssue(issue *domain.Issue) error
	SearchIssues(criteria domain.IssueSearchCriteria) ([]domain.Issue, error)
	ListOpenByReporter(ntID string) ([]domain.Issue, error)
}

// Store 定义完整的记录存储接口。
type Store interface {
	IssueRepository

	// 工具方法
	Close() error
	Health() error
}

// FileInfo 文件存储中一个条目的描述。
type FileInfo struct {
	StoredName string
	Size       int64
	ModTime    time.Time
}
