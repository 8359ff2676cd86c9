package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Muskansingh2005/Library-feature-QR/internal/catalog"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/db"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/ident"
	"github.com/Muskansingh2005/Library-feature-QR/internal/students"
)

type LendingService interface {
	Issue(ctx context.Context, studentID, bookID string) (LendResult, error)
	Return(ctx context.Context, studentID, bookID string) (LendResult, error)
	List(ctx context.Context, f ListFilter, p Page) (ListResult, error)
	Get(ctx context.Context, id string) (Transaction, error)
	ActiveIssues(ctx context.Context, studentID string) ([]Transaction, error)
}

type Service struct {
	db       *sqlx.DB
	store    *Store
	books    *catalog.Store
	students *students.Store
	clock    ident.Clock
	ids      ident.IDGen
	loan     time.Duration
	metrics  *Metrics
}

type Deps struct {
	DB       *sqlx.DB
	Store    *Store
	Books    *catalog.Store
	Students *students.Store
	Clock    ident.Clock
	IDs      ident.IDGen
	LoanDays int
	Metrics  *Metrics
}

func NewService(d Deps) *Service {
	return &Service{
		db:       d.DB,
		store:    d.Store,
		books:    d.Books,
		students: d.Students,
		clock:    d.Clock,
		ids:      d.IDs,
		loan:     time.Duration(d.LoanDays) * 24 * time.Hour,
		metrics:  d.Metrics,
	}
}

var (
	errNoCopies    = apperr.ErrConflict("no copies available to issue")
	errDuplicate   = apperr.ErrConflict("book already issued to this student")
	errNotIssued   = apperr.ErrConflict("book is not currently issued to this student")
	errTxNotFound  = apperr.ErrNotFound("transaction not found")
	errStudentGone = apperr.ErrNotFound("student not found")
	errBookGone    = apperr.ErrNotFound("book not found")
)

func validatePair(studentID, bookID string) (string, string, error) {
	studentID, bookID = strings.TrimSpace(studentID), strings.TrimSpace(bookID)
	if studentID == "" || bookID == "" {
		return "", "", apperr.ErrInvalid("studentId and bookId are required")
	}
	if !ident.Valid(studentID) {
		return "", "", apperr.ErrInvalid("invalid studentId")
	}
	if !ident.Valid(bookID) {
		return "", "", apperr.ErrInvalid("invalid bookId")
	}
	return studentID, bookID, nil
}

// lendTxOptions: 本の行ロック取得後の通常読みも最新のコミットを見るように READ COMMITTED
var lendTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// loadPair は本の行ロックを最初に取り，その後で学生を読む．
// 同じ本に対する貸出・返却はここで直列化される
func (s *Service) loadPair(ctx context.Context, tx *sqlx.Tx, studentID, bookID string) (students.Student, catalog.Book, error) {
	b, err := s.books.GetForUpdate(ctx, tx, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return students.Student{}, catalog.Book{}, errBookGone
	}
	if err != nil {
		return students.Student{}, catalog.Book{}, fmt.Errorf("lock book: %w", err)
	}
	st, err := s.students.GetByID(ctx, tx, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return students.Student{}, catalog.Book{}, errStudentGone
	}
	if err != nil {
		return students.Student{}, catalog.Book{}, fmt.Errorf("load student: %w", err)
	}
	return st, b, nil
}

// Issue: 重複チェック・在庫チェック・在庫減算・台帳追加を本の行ロック下で1Txで行う
func (s *Service) Issue(ctx context.Context, studentID, bookID string) (LendResult, error) {
	studentID, bookID, err := validatePair(studentID, bookID)
	if err != nil {
		return LendResult{}, err
	}

	var out LendResult
	err = db.RunInTx(ctx, s.db, lendTxOptions, func(ctx context.Context, tx *sqlx.Tx) error {
		st, b, err := s.loadPair(ctx, tx, studentID, bookID)
		if err != nil {
			return err
		}

		_, found, err := s.store.LockActiveIssue(ctx, tx, studentID, bookID)
		if err != nil {
			return err
		}
		if found {
			return errDuplicate
		}
		if b.AvailableCopies <= 0 {
			return errNoCopies
		}

		now := s.clock.Now()
		ok, err := s.books.TakeCopy(ctx, tx, bookID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errNoCopies
		}

		t := Transaction{
			ID:        s.ids.NewULID(now),
			StudentID: studentID,
			BookID:    bookID,
			Type:      TypeIssue,
			Status:    StatusActive,
			IssueDate: now,
		}
		// 貸出期間 0 は期限なし
		if s.loan > 0 {
			due := now.Add(s.loan)
			t.DueDate = &due
		}
		if err := s.store.Insert(ctx, tx, t); err != nil {
			return err
		}

		b.AvailableCopies--
		b.UpdatedAt = now
		t.Student, t.Book = studentSummary(st), bookSummary(b)
		out = LendResult{Transaction: t, UpdatedBook: b}
		return nil
	})
	if err != nil {
		s.countConflict("issue", err)
		return LendResult{}, err
	}
	s.metrics.issues.Inc()
	return out, nil
}

// Return: 最も古い active な issue を閉じて return 行を追加する
func (s *Service) Return(ctx context.Context, studentID, bookID string) (LendResult, error) {
	studentID, bookID, err := validatePair(studentID, bookID)
	if err != nil {
		return LendResult{}, err
	}

	var out LendResult
	err = db.RunInTx(ctx, s.db, lendTxOptions, func(ctx context.Context, tx *sqlx.Tx) error {
		st, b, err := s.loadPair(ctx, tx, studentID, bookID)
		if err != nil {
			return err
		}

		issue, found, err := s.store.LockActiveIssue(ctx, tx, studentID, bookID)
		if err != nil {
			return err
		}
		if !found {
			return errNotIssued
		}

		now := s.clock.Now()
		if err := s.books.PutBackCopy(ctx, tx, bookID, now); err != nil {
			return err
		}

		t := Transaction{
			ID:         s.ids.NewULID(now),
			StudentID:  studentID,
			BookID:     bookID,
			Type:       TypeReturn,
			Status:     StatusReturned,
			IssueDate:  now,
			ReturnDate: &now,
			IssueID:    issue.ID,
		}
		if err := s.store.Insert(ctx, tx, t); err != nil {
			return err
		}
		if err := s.store.MarkReturned(ctx, tx, issue.ID, now); err != nil {
			return err
		}

		b.AvailableCopies = min(b.AvailableCopies+1, b.TotalCopies)
		b.UpdatedAt = now
		t.Student, t.Book = studentSummary(st), bookSummary(b)
		out = LendResult{Transaction: t, UpdatedBook: b}
		return nil
	})
	if err != nil {
		s.countConflict("return", err)
		return LendResult{}, err
	}
	s.metrics.returns.Inc()
	return out, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, p Page) (ListResult, error) {
	if f.StudentID != "" && !ident.Valid(f.StudentID) {
		return ListResult{}, apperr.ErrInvalid("invalid studentId")
	}
	if f.BookID != "" && !ident.Valid(f.BookID) {
		return ListResult{}, apperr.ErrInvalid("invalid bookId")
	}
	if f.Type != "" && !f.Type.valid() {
		return ListResult{}, apperr.ErrInvalid("type must be issue or return")
	}
	if f.Status != "" && !f.Status.valid() {
		return ListResult{}, apperr.ErrInvalid("status must be active or returned")
	}
	p, err := normalizePage(p)
	if err != nil {
		return ListResult{}, err
	}

	// 件数とページを同じスナップショットから読む
	var out ListResult
	err = db.ReadOnly(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		items, total, err := s.store.List(ctx, tx, f, p)
		if err != nil {
			return err
		}
		out = ListResult{Items: items, Total: total, Page: p}
		return nil
	})
	if err != nil {
		return ListResult{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Transaction, error) {
	if !ident.Valid(id) {
		return Transaction{}, apperr.ErrInvalid("invalid transaction id")
	}
	t, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, errTxNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *Service) ActiveIssues(ctx context.Context, studentID string) ([]Transaction, error) {
	if !ident.Valid(studentID) {
		return nil, apperr.ErrInvalid("invalid studentId")
	}
	return s.store.ActiveByStudent(ctx, studentID)
}

// 0 はデフォルト扱い．上限超えは切り詰める
func normalizePage(p Page) (Page, error) {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Page < 1 {
		return Page{}, apperr.ErrInvalid("page must be >= 1")
	}
	if p.Limit < 1 {
		return Page{}, apperr.ErrInvalid("limit must be >= 1")
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p, nil
}

func (s *Service) countConflict(op string, err error) {
	if apperr.Is(err, apperr.CodeConflict) {
		s.metrics.conflicts.WithLabelValues(op).Inc()
	}
}

func studentSummary(st students.Student) *StudentSummary {
	return &StudentSummary{ID: st.ID, Name: st.Name, RollNo: st.RollNo, Email: st.Email}
}

func bookSummary(b catalog.Book) *BookSummary {
	return &BookSummary{ID: b.ID, Title: b.Title, Author: b.Author, ISBN: b.ISBN}
}
