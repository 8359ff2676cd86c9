package lending

import (
	"time"

	"github.com/Muskansingh2005/Library-feature-QR/internal/catalog"
)

const (
	DefaultPage      = 1
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// ===== Requests =====

// issue / return 共通
type LendRequest struct {
	StudentID string `json:"studentId" binding:"required"`
	BookID    string `json:"bookId" binding:"required"`
}

type ListFilter struct {
	StudentID string
	BookID    string
	Type      Type
	Status    Status
}

type Page struct {
	Page  int
	Limit int
}

func (p Page) offset() int { return (p.Page - 1) * p.Limit }

// ===== Responses =====

type TransactionResponse struct {
	ID         string          `json:"id"`
	StudentID  string          `json:"studentId"`
	BookID     string          `json:"bookId"`
	Student    *StudentSummary `json:"student"` // 削除済みなら null
	Book       *BookSummary    `json:"book"`    // 削除済みなら null
	Type       Type            `json:"type"`
	Status     Status          `json:"status"`
	IssueDate  time.Time       `json:"issueDate"`
	DueDate    *time.Time      `json:"dueDate,omitempty"`
	ReturnDate *time.Time      `json:"returnDate,omitempty"`
	IssueID    string          `json:"issueId,omitempty"`
}

type LendResponse struct {
	Message     string               `json:"message"`
	Transaction TransactionResponse  `json:"transaction"`
	UpdatedBook catalog.BookResponse `json:"updatedBook"`
}

type ListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	TotalPages   int                   `json:"totalPages"`
	CurrentPage  int                   `json:"currentPage"`
	Total        int64                 `json:"total"`
}

type ActiveIssuesResponse struct {
	ActiveIssues []TransactionResponse `json:"activeIssues"`
	Count        int                   `json:"count"`
}

// LendResult は issue / return の結果
type LendResult struct {
	Transaction Transaction
	UpdatedBook catalog.Book
}

type ListResult struct {
	Items []Transaction
	Total int64
	Page  Page
}

func (r ListResult) TotalPages() int {
	if r.Total == 0 || r.Page.Limit <= 0 {
		return 0
	}
	return int((r.Total + int64(r.Page.Limit) - 1) / int64(r.Page.Limit))
}
