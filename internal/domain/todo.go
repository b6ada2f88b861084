package domain

import (
	"strings"

	"cloud.google.com/go/civil"
)

// Priority TODOの優先度
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority 未知の値は medium
func ParsePriority(s string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

// Todo TODOのドメインエンティティ
type Todo struct {
	ID                string
	Title             string
	Description       string
	Priority          Priority
	DueDate           *civil.Date
	EstimatedDuration string
	CategoryID        string
	Completed         bool
}

// TodoFields TODO作成時のフィールド
type TodoFields struct {
	Title             string
	Description       string
	Priority          Priority
	DueDate           *civil.Date
	EstimatedDuration string
	CategoryID        string
}
