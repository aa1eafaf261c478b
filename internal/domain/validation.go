package domain

import (
	"net/mail"
	"regexp"
	"strings"
)

// 校验常量
const (
	MaxEmailLength = 254 // RFC 5322 邮箱地址最大长度
	MaxTitleLength = 500
)

// 基础邮箱格式（本地部分@域名，域名至少含一个点）
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail 校验邮箱地址格式。
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > MaxEmailLength {
		return false
	}
	if !emailRegex.MatchString(email) {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// ParseIssueType 将字符串解析为问题类型，空值返回默认类型 Hardware。
func ParseIssueType(value string) (IssueType, bool) {
	if strings.TrimSpace(value) == "" {
		return TypeHardware, true
	}
	switch IssueType(value) {
	case TypeHardware, TypeCalibration, TypeProcess:
		return IssueType(value), true
	}
	return "", false
}

// ParseIssueStatus 将字符串解析为问题状态。
func ParseIssueStatus(value string) (IssueStatus, bool) {
	switch IssueStatus(value) {
	case StatusOpen, StatusInProgress, StatusResolved:
		return IssueStatus(value), true
	}
	return "", false
}

// ParseSolutionCategory 将字符串解析为解决方案分类。
func ParseSolutionCategory(value string) (SolutionCategory, bool) {
	switch SolutionCategory(value) {
	case CategoryKnown, CategoryCrossDomain, CategoryInnovation:
		return SolutionCategory(value), true
	}
	return "", false
}

// ValidateTitle 校验问题标题。
func ValidateTitle(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > MaxTitleLength {
		return false
	}
	// 不允许控制字符
	for _, r := range title {
		if r < 32 {
			return false
		}
	}
	return true
}
