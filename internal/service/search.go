package service

import (
	"fieldreport/backend/internal/domain"
)

// SearchService 搜索服务
type SearchService struct {
	repo domain.IssueSearchRepository
}

// NewSearchService 创建搜索服务
func NewSearchService(repo domain.IssueSearchRepository) *SearchService {
	return &SearchService{repo: repo}
}

// SearchIssuesInput 搜索问题输入
type SearchIssuesInput struct {
	Query  string // 搜索关键词
	NtID   string // 报告人筛选
	Status string // 状态筛选
}

// SearchIssues 搜索问题记录
//
// 空关键词且无筛选条件时返回全部记录，结果总是按创建时间倒序。
func (s *SearchService) SearchIssues(input SearchIssuesInput) ([]domain.Issue, error) {
	criteria := domain.IssueSearchCriteria{
		Query: input.Query,
		NtID:  input.NtID,
	}

	if input.Status != "" {
		status, ok := domain.ParseIssueStatus(input.Status)
		if !ok {
			return nil, domain.NewValidationError("status", "unknown status")
		}
		criteria.Status = &status
	}

	return s.repo.SearchIssues(criteria)
}
