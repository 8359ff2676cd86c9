package lending

import (
	"database/sql"
	"time"
)

type Type string

const (
	TypeIssue  Type = "issue"
	TypeReturn Type = "return"
)

// issue は active で始まり，対応する return が記録されたら一度だけ returned になる
type Status string

const (
	StatusActive   Status = "active"
	StatusReturned Status = "returned"
)

func (t Type) valid() bool   { return t == TypeIssue || t == TypeReturn }
func (s Status) valid() bool { return s == StatusActive || s == StatusReturned }

// DB行に対応（LEFT JOIN 済み．参照先が消えていれば s_id / b_id が NULL）
type txRow struct {
	ID         string         `db:"id"`
	StudentID  string         `db:"student_id"`
	BookID     string         `db:"book_id"`
	Type       string         `db:"type"`
	Status     string         `db:"status"`
	IssueDate  time.Time      `db:"issue_date"`
	DueDate    sql.NullTime   `db:"due_date"`
	ReturnDate sql.NullTime   `db:"return_date"`
	IssueID    sql.NullString `db:"issue_id"`

	SID     sql.NullString `db:"s_id"`
	SName   sql.NullString `db:"s_name"`
	SRollNo sql.NullString `db:"s_roll_no"`
	SEmail  sql.NullString `db:"s_email"`

	BID     sql.NullString `db:"b_id"`
	BTitle  sql.NullString `db:"b_title"`
	BAuthor sql.NullString `db:"b_author"`
	BISBN   sql.NullString `db:"b_isbn"`
}

type StudentSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	RollNo string `json:"rollNo"`
	Email  string `json:"email,omitempty"`
}

type BookSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// Transaction は台帳の1行．IssueDate はその記録の発生時刻（return 行なら返却時刻）
type Transaction struct {
	ID         string
	StudentID  string
	BookID     string
	Type       Type
	Status     Status
	IssueDate  time.Time
	DueDate    *time.Time
	ReturnDate *time.Time
	IssueID    string

	Student *StudentSummary
	Book    *BookSummary
}

func (r txRow) toModel() Transaction {
	t := Transaction{
		ID:         r.ID,
		StudentID:  r.StudentID,
		BookID:     r.BookID,
		Type:       Type(r.Type),
		Status:     Status(r.Status),
		IssueDate:  r.IssueDate.UTC(),
		DueDate:    timePtr(r.DueDate),
		ReturnDate: timePtr(r.ReturnDate),
		IssueID:    r.IssueID.String,
	}
	if r.SID.Valid {
		t.Student = &StudentSummary{ID: r.SID.String, Name: r.SName.String, RollNo: r.SRollNo.String, Email: r.SEmail.String}
	}
	if r.BID.Valid {
		t.Book = &BookSummary{ID: r.BID.String, Title: r.BTitle.String, Author: r.BAuthor.String, ISBN: r.BISBN.String}
	}
	return t
}

func (t Transaction) ToDTO() TransactionResponse {
	return TransactionResponse{
		ID:         t.ID,
		StudentID:  t.StudentID,
		BookID:     t.BookID,
		Student:    t.Student,
		Book:       t.Book,
		Type:       t.Type,
		Status:     t.Status,
		IssueDate:  t.IssueDate,
		DueDate:    t.DueDate,
		ReturnDate: t.ReturnDate,
		IssueID:    t.IssueID,
	}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
