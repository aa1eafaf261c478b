package memory

import (
	"sync"

	"fieldreport/backend/internal/domain"
)

// Store 使用内存保存问题记录，主要用于开发验证与测试。
type Store struct {
	mu     sync.RWMutex
	issues map[string]*domain.Issue // issueID -> issue
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		issues: make(map[string]*domain.Issue),
	}
}

// SaveIssue 保存问题记录。
func (s *Store) SaveIssue(issue *domain.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issues[issue.ID] = cloneIssue(issue)
	return nil
}

// GetIssue 根据 ID 获取问题记录的快照。
func (s *Store) GetIssue(id string) (*domain.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, domain.ErrIssueNotFound
	}
	return cloneIssue(issue), nil
}

// UpdateIssue 整体替换问题记录（last write wins）。
func (s *Store) UpdateIssue(issue *domain.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[issue.ID]; !ok {
		return domain.ErrIssueNotFound
	}
	s.issues[issue.ID] = cloneIssue(issue)
	return nil
}

// ListOpenByReporter 返回指定报告人的全部 Open 状态记录，按创建时间倒序。
func (s *Store) ListOpenByReporter(ntID string) ([]domain.Issue, error) {
	open := domain.StatusOpen
	return s.SearchIssues(domain.IssueSearchCriteria{
		NtID:   ntID,
		Status: &open,
	})
}

// Close 关闭存储连接
func (s *Store) Close() error {
	// 内存存储不需要关闭连接
	return nil
}

// Health 健康检查
func (s *Store) Health() error {
	// 内存存储总是健康的
	return nil
}

// cloneIssue 返回记录的深拷贝，避免调用方修改内部状态。
func cloneIssue(issue *domain.Issue) *domain.Issue {
	out := *issue

	if issue.Files != nil {
		out.Files = make([]domain.Attachment, len(issue.Files))
		copy(out.Files, issue.Files)
	}

	if issue.Solution != nil {
		sol := *issue.Solution
		if issue.Solution.Files != nil {
			sol.Files = make([]domain.Attachment, len(issue.Solution.Files))
			copy(sol.Files, issue.Solution.Files)
		}
		out.Solution = &sol
	}

	return &out
}
