package sql

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fieldreport/backend/internal/domain"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB // GORM实例，用于迁移
	driverName string   // "mysql" or "postgres"
}

// NewStore 创建SQL数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	if driverName == "mysql" {
		dsn = mysqlDSNWithFoundRows(dsn)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 初始化GORM（用于自动迁移）
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var gormDB *gorm.DB
	if driverName == "mysql" {
		gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: db}), gormConfig)
	} else {
		gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	// 自动执行数据库迁移
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	if s.gormDB == nil {
		return nil
	}

	return s.gormDB.AutoMigrate(
		&domain.Issue{},
	)
}

// mysqlDSNWithFoundRows 在 MySQL DSN 上启用 clientFoundRows。
//
// MySQL 默认返回实际修改的行数，值未变化的 UPDATE 会报告 0 行，
// 导致对已存在记录的无变化更新被误判为记录不存在。启用后返回
// 匹配的行数，与 PostgreSQL 的行为一致。
func mysqlDSNWithFoundRows(dsn string) string {
	if strings.Contains(dsn, "clientFoundRows=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&clientFoundRows=true"
	}
	return dsn + "?clientFoundRows=true"
}

// placeholder 根据数据库类型返回占位符
func (s *Store) placeholder(n int) string {
	if s.driverName == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// issueColumns 按插入顺序列出 issues 表字段。
const issueColumns = "id, project_name, rated_power, rated_speed, application, legislation, " +
	"customer_name, fie_system, egt_system, fuel_type, issue_title, description, " +
	"issue_type, nt_id, email, status, files, solution, created_at"

// SaveIssue 保存问题记录。
func (s *Store) SaveIssue(issue *domain.Issue) error {
	filesJSON, solutionJSON, err := marshalEmbedded(issue)
	if err != nil {
		return err
	}

	placeholders := make([]string, 19)
	for i := range placeholders {
		placeholders[i] = s.placeholder(i + 1)
	}

	query := fmt.Sprintf(
		"INSERT INTO issues (%s) VALUES (%s)",
		issueColumns,
		strings.Join(placeholders, ", "),
	)

	_, err = s.db.Exec(query,
		issue.ID, issue.ProjectName, issue.RatedPower, issue.RatedSpeed,
		issue.Application, issue.Legislation, issue.CustomerName,
		issue.FieSystem, issue.EgtSystem, issue.FuelType,
		issue.IssueTitle, issue.Description, string(issue.IssueType),
		issue.NtID, issue.Email, string(issue.Status),
		filesJSON, solutionJSON, issue.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert issue: %w", err)
	}
	return nil
}

// GetIssue 根据 ID 获取问题记录。
func (s *Store) GetIssue(id string) (*domain.Issue, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM issues WHERE id = %s",
		issueColumns, s.placeholder(1),
	)

	row := s.db.QueryRow(query, id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query issue: %w", err)
	}
	return issue, nil
}

// UpdateIssue 整体更新问题记录（last write wins）。
func (s *Store) UpdateIssue(issue *domain.Issue) error {
	filesJSON, solutionJSON, err := marshalEmbedded(issue)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"UPDATE issues SET project_name = %s, rated_power = %s, rated_speed = %s, "+
			"application = %s, legislation = %s, customer_name = %s, fie_system = %s, "+
			"egt_system = %s, fuel_type = %s, issue_title = %s, description = %s, "+
			"issue_type = %s, nt_id = %s, email = %s, status = %s, files = %s, solution = %s "+
			"WHERE id = %s",
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
		s.placeholder(5), s.placeholder(6), s.placeholder(7), s.placeholder(8),
		s.placeholder(9), s.placeholder(10), s.placeholder(11), s.placeholder(12),
		s.placeholder(13), s.placeholder(14), s.placeholder(15), s.placeholder(16),
		s.placeholder(17), s.placeholder(18),
	)

	result, err := s.db.Exec(query,
		issue.ProjectName, issue.RatedPower, issue.RatedSpeed,
		issue.Application, issue.Legislation, issue.CustomerName,
		issue.FieSystem, issue.EgtSystem, issue.FuelType,
		issue.IssueTitle, issue.Description, string(issue.IssueType),
		issue.NtID, issue.Email, string(issue.Status),
		filesJSON, solutionJSON, issue.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.ErrIssueNotFound
	}
	return nil
}

// SearchIssues 搜索问题记录，结果按创建时间倒序。
func (s *Store) SearchIssues(criteria domain.IssueSearchCriteria) ([]domain.Issue, error) {
	var (
		conditions []string
		args       []interface{}
	)

	next := func() string {
		return s.placeholder(len(args))
	}

	if criteria.Query != "" {
		pattern := "%" + strings.ToLower(criteria.Query) + "%"
		searched := []string{
			"project_name", "issue_title", "description", "issue_type",
			"application", "legislation", "nt_id",
		}
		likes := make([]string, 0, len(searched))
		for _, col := range searched {
			args = append(args, pattern)
			likes = append(likes, fmt.Sprintf("LOWER(%s) LIKE %s", col, next()))
		}
		conditions = append(conditions, "("+strings.Join(likes, " OR ")+")")
	}

	if criteria.NtID != "" {
		args = append(args, criteria.NtID)
		conditions = append(conditions, fmt.Sprintf("nt_id = %s", next()))
	}

	if criteria.Status != nil {
		args = append(args, string(*criteria.Status))
		conditions = append(conditions, fmt.Sprintf("status = %s", next()))
	}

	query := fmt.Sprintf("SELECT %s FROM issues", issueColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	defer rows.Close()

	issues := make([]domain.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, *issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", err)
	}

	return issues, nil
}

// ListOpenByReporter 返回指定报告人的全部 Open 状态记录。
func (s *Store) ListOpenByReporter(ntID string) ([]domain.Issue, error) {
	open := domain.StatusOpen
	return s.SearchIssues(domain.IssueSearchCriteria{
		NtID:   ntID,
		Status: &open,
	})
}

// scanner 兼容 *sql.Row 与 *sql.Rows。
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanIssue 从查询结果扫描一条问题记录。
func scanIssue(row scanner) (*domain.Issue, error) {
	var (
		issue        domain.Issue
		issueType    string
		status       string
		filesJSON    []byte
		solutionJSON []byte
	)

	err := row.Scan(
		&issue.ID, &issue.ProjectName, &issue.RatedPower, &issue.RatedSpeed,
		&issue.Application, &issue.Legislation, &issue.CustomerName,
		&issue.FieSystem, &issue.EgtSystem, &issue.FuelType,
		&issue.IssueTitle, &issue.Description, &issueType,
		&issue.NtID, &issue.Email, &status,
		&filesJSON, &solutionJSON, &issue.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	issue.IssueType = domain.IssueType(issueType)
	issue.Status = domain.IssueStatus(status)

	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &issue.Files); err != nil {
			return nil, fmt.Errorf("failed to unmarshal files: %w", err)
		}
	}
	if len(solutionJSON) > 0 && string(solutionJSON) != "null" {
		var sol domain.Solution
		if err := json.Unmarshal(solutionJSON, &sol); err != nil {
			return nil, fmt.Errorf("failed to unmarshal solution: %w", err)
		}
		issue.Solution = &sol
	}

	return &issue, nil
}

// marshalEmbedded 序列化附件列表与解决方案子文档。
func marshalEmbedded(issue *domain.Issue) ([]byte, []byte, error) {
	filesJSON, err := json.Marshal(issue.Files)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal files: %w", err)
	}

	solutionJSON := []byte("null")
	if issue.Solution != nil {
		solutionJSON, err = json.Marshal(issue.Solution)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal solution: %w", err)
		}
	}

	return filesJSON, solutionJSON, nil
}
