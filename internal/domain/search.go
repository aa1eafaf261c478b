package domain

// IssueSearchCriteria 问题搜索条件
type IssueSearchCriteria struct {
	Query  string       // 搜索关键词（项目名、标题、描述、类型、应用、法规、NT账号）
	NtID   string       // 报告人 NT 账号精确筛选
	Status *IssueStatus // 状态精确筛选
}

// IssueSearchRepository 问题搜索仓储接口
type IssueSearchRepository interface {
	// SearchIssues 搜索问题记录，结果按创建时间倒序
	SearchIssues(criteria IssueSearchCriteria) ([]Issue, error)
}
