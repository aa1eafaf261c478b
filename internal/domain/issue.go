package domain

import "time"

// IssueStatus 问题状态
type IssueStatus string

const (
	StatusOpen       IssueStatus = "Open"
	StatusInProgress IssueStatus = "InProgress"
	StatusResolved   IssueStatus = "Resolved"
)

// IssueType 问题类型
type IssueType string

const (
	TypeHardware    IssueType = "Hardware"
	TypeCalibration IssueType = "Calibration"
	TypeProcess     IssueType = "Process"
)

// SolutionCategory 解决方案分类
type SolutionCategory string

const (
	CategoryKnown       SolutionCategory = "Known solution"
	CategoryCrossDomain SolutionCategory = "Cross Domain solution"
	CategoryInnovation  SolutionCategory = "Innovation solution"
)

// Issue 表示一条现场问题记录。
type Issue struct {
	ID           string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProjectName  string      `json:"projectName" gorm:"type:varchar(255);not null"`
	RatedPower   float64     `json:"ratedPower" gorm:"not null"`
	RatedSpeed   float64     `json:"ratedSpeed" gorm:"not null"`
	Application  string      `json:"application" gorm:"type:varchar(255);not null"`
	Legislation  string      `json:"legislation" gorm:"type:varchar(255);not null"`
	CustomerName string      `json:"customerName,omitempty" gorm:"type:varchar(255)"`
	FieSystem    string      `json:"fieSystem,omitempty" gorm:"type:varchar(255)"`
	EgtSystem    string      `json:"egtSystem,omitempty" gorm:"type:varchar(255)"`
	FuelType     string      `json:"fuelType,omitempty" gorm:"type:varchar(100)"`
	IssueTitle   string      `json:"issueTitle" gorm:"type:varchar(500);not null"`
	Description  string      `json:"description" gorm:"type:text;not null"`
	IssueType    IssueType   `json:"issueType" gorm:"type:varchar(20);default:Hardware"`
	NtID         string      `json:"ntId" gorm:"type:varchar(64);index;not null"`
	Email        string      `json:"email" gorm:"type:varchar(255);not null"`
	Status       IssueStatus `json:"status" gorm:"type:varchar(20);default:Open;index"`
	// 附件与解决方案以 JSON 形式嵌入存储
	Files     []Attachment `json:"files" gorm:"serializer:json;type:text"`
	Solution  *Solution    `json:"solution,omitempty" gorm:"serializer:json;type:text"`
	CreatedAt time.Time    `json:"createdAt"`
}

// HasSolution 判断该记录是否已附带解决方案。
func (i *Issue) HasSolution() bool {
	return i.Solution != nil
}

// Solution 表示附加在问题上的解决方案子文档。
type Solution struct {
	Category      SolutionCategory `json:"category"`
	Description   string           `json:"description"`
	Files         []Attachment     `json:"files"`
	SolvedAt      time.Time        `json:"solvedAt"`
	SolvedBy      string           `json:"solvedBy"`      // 解决人 NT 账号
	SolvedByEmail string           `json:"solvedByEmail"` // 解决人邮箱
}

// Attachment 表示指向文件存储中二进制内容的附件元数据。
type Attachment struct {
	StoredName   string    `json:"storedName"`   // 文件存储中的唯一名称
	OriginalName string    `json:"originalName"` // 用户上传时的原始文件名
	MimeType     string    `json:"mimeType"`     // MIME 类型
	SizeBytes    int64     `json:"sizeBytes"`    // 大小（字节）
	StoragePath  string    `json:"storagePath"`  // 相对存储路径
	UploadedAt   time.Time `json:"uploadedAt"`
}
