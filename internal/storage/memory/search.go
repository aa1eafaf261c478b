package memory

import (
	"strings"

	"fieldreport/backend/internal/domain"
)

// SearchIssues 搜索问题记录（内存存储实现），结果按创建时间倒序。
func (s *Store) SearchIssues(criteria domain.IssueSearchCriteria) ([]domain.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]domain.Issue, 0)
	for _, issue := range s.issues {
		if matchesCriteria(issue, criteria) {
			filtered = append(filtered, *cloneIssue(issue))
		}
	}

	sortByCreatedAtDesc(filtered)

	return filtered, nil
}

// matchesCriteria 检查记录是否匹配搜索条件
func matchesCriteria(issue *domain.Issue, criteria domain.IssueSearchCriteria) bool {
	// 关键词搜索：在七个字段上做不区分大小写的子串匹配（任一命中即可）
	if criteria.Query != "" {
		query := strings.ToLower(criteria.Query)
		fields := []string{
			issue.ProjectName,
			issue.IssueTitle,
			issue.Description,
			string(issue.IssueType),
			issue.Application,
			issue.Legislation,
			issue.NtID,
		}

		matched := false
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), query) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	// 报告人精确筛选
	if criteria.NtID != "" && issue.NtID != criteria.NtID {
		return false
	}

	// 状态精确筛选
	if criteria.Status != nil && issue.Status != *criteria.Status {
		return false
	}

	return true
}

// sortByCreatedAtDesc 按创建时间倒序排序
func sortByCreatedAtDesc(issues []domain.Issue) {
	// 简单冒泡排序（内存存储数据量不大）
	n := len(issues)
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-i-1; j++ {
			if issues[j].CreatedAt.Before(issues[j+1].CreatedAt) {
				issues[j], issues[j+1] = issues[j+1], issues[j]
			}
		}
	}
}
