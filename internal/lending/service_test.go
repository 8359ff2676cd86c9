package lending

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muskansingh2005/Library-feature-QR/internal/catalog"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
	"github.com/Muskansingh2005/Library-feature-QR/internal/students"
)

const (
	studentID = "01BX5ZZKBKACTAV9WEVGEMMVRZ"
	bookID    = "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	newTxID   = "01HZZZZZZZZZZZZZZZZZZZZZZZ"
	issueTxID = "01HAAAAAAAAAAAAAAAAAAAAAAA"
)

var (
	testNow   = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	bookCols  = []string{"id", "title", "author", "isbn", "description", "total_copies", "available_copies", "qr_data", "created_at", "updated_at"}
	stuCols   = []string{"id", "name", "roll_no", "email", "created_at"}
	txColumns = []string{
		"id", "student_id", "book_id", "type", "status", "issue_date", "due_date", "return_date", "issue_id",
		"s_id", "s_name", "s_roll_no", "s_email", "b_id", "b_title", "b_author", "b_isbn",
	}
	// ロック読みは transactions 単表
	lockedTxColumns = txColumns[:9]
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testNow }

type fixedIDs struct{}

func (fixedIDs) NewULID(time.Time) string { return newTxID }

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	conn := sqlx.NewDb(raw, "mysql")
	svc := NewService(Deps{
		DB:       conn,
		Store:    NewStore(conn),
		Books:    catalog.NewStore(conn),
		Students: students.NewStore(conn),
		Clock:    fixedClock{},
		IDs:      fixedIDs{},
		LoanDays: 14,
		Metrics:  NewMetrics(prometheus.NewRegistry()),
	})
	return svc, mock
}

func expectStudent(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT .* FROM students WHERE id = \?`).
		WithArgs(studentID).
		WillReturnRows(sqlmock.NewRows(stuCols).AddRow(studentID, "Asha", "R-001", "asha@example.com", testNow))
}

func expectLockedBook(mock sqlmock.Sqlmock, total, available int) {
	mock.ExpectQuery(`SELECT .* FROM books WHERE id = \? FOR UPDATE`).
		WithArgs(bookID).
		WillReturnRows(sqlmock.NewRows(bookCols).
			AddRow(bookID, "Clean Code", "Martin", "9780132350884", nil, total, available, nil, testNow, testNow))
}

func activeIssueRow() []driver.Value {
	issued := testNow.Add(-72 * time.Hour)
	return []driver.Value{
		issueTxID, studentID, bookID, "issue", "active", issued, issued.Add(14 * 24 * time.Hour), nil, nil,
		studentID, "Asha", "R-001", "", bookID, "Clean Code", "Martin", "9780132350884",
	}
}

func expectActiveIssue(mock sqlmock.Sqlmock, found bool) {
	rows := sqlmock.NewRows(lockedTxColumns)
	if found {
		rows.AddRow(activeIssueRow()[:9]...)
	}
	mock.ExpectQuery(`FROM transactions WHERE student_id = \? AND book_id = \? AND type = 'issue' AND status = 'active' ORDER BY issue_date ASC, id ASC LIMIT 1 FOR UPDATE`).
		WithArgs(studentID, bookID).
		WillReturnRows(rows)
}

func TestIssue_Succeeds(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	expectLockedBook(mock, 3, 2)
	expectStudent(mock)
	expectActiveIssue(mock, false)
	mock.ExpectExec(`UPDATE books SET available_copies = available_copies - 1`).
		WithArgs(testNow, bookID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(newTxID, studentID, bookID, "issue", "active", testNow, testNow.Add(14*24*time.Hour), nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Issue(context.Background(), studentID, bookID)
	require.NoError(t, err)

	assert.Equal(t, newTxID, res.Transaction.ID)
	assert.Equal(t, TypeIssue, res.Transaction.Type)
	assert.Equal(t, StatusActive, res.Transaction.Status)
	require.NotNil(t, res.Transaction.DueDate)
	assert.Equal(t, testNow.Add(14*24*time.Hour), *res.Transaction.DueDate)
	require.NotNil(t, res.Transaction.Student)
	assert.Equal(t, "Asha", res.Transaction.Student.Name)
	assert.Equal(t, "Clean Code", res.Transaction.Book.Title)
	assert.Equal(t, 1, res.UpdatedBook.AvailableCopies)
	assert.Equal(t, 3, res.UpdatedBook.TotalCopies)

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.issues))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 本の行ロック → 学生 → active な issue のロック読み，の順でなければ
// 同じ組への同時貸出で古いスナップショットを読んでしまう
func TestIssue_LocksBookFirstAndLocksActiveIssueLookup(t *testing.T) {
	svc, mock := newTestService(t)
	mock.MatchExpectationsInOrder(true)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM books WHERE id = \? FOR UPDATE`).
		WithArgs(bookID).
		WillReturnRows(sqlmock.NewRows(bookCols).
			AddRow(bookID, "Clean Code", "Martin", "9780132350884", nil, 2, 2, nil, testNow, testNow))
	mock.ExpectQuery(`SELECT .* FROM students WHERE id = \?`).
		WithArgs(studentID).
		WillReturnRows(sqlmock.NewRows(stuCols).AddRow(studentID, "Asha", "R-001", "", testNow))
	// 先行Txがコミットした issue はロック読みで見える
	mock.ExpectQuery(`FROM transactions WHERE .* FOR UPDATE`).
		WithArgs(studentID, bookID).
		WillReturnRows(sqlmock.NewRows(lockedTxColumns).AddRow(activeIssueRow()[:9]...))
	mock.ExpectRollback()

	_, err := svc.Issue(context.Background(), studentID, bookID)
	assert.True(t, apperr.Is(err, apperr.CodeConflict), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturn_LocksBookFirst(t *testing.T) {
	svc, mock := newTestService(t)
	mock.MatchExpectationsInOrder(true)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM books WHERE id = \? FOR UPDATE`).WithArgs(bookID).WillReturnRows(sqlmock.NewRows(bookCols))
	mock.ExpectRollback()

	// 本が無ければ学生は読まない
	_, err := svc.Return(context.Background(), studentID, bookID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssue_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
		code  apperr.Code
	}{
		{
			name: "book missing",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM books WHERE id = \? FOR UPDATE`).WithArgs(bookID).WillReturnRows(sqlmock.NewRows(bookCols))
			},
			code: apperr.CodeNotFound,
		},
		{
			name: "student missing",
			setup: func(mock sqlmock.Sqlmock) {
				expectLockedBook(mock, 3, 2)
				mock.ExpectQuery(`FROM students WHERE id = \?`).WithArgs(studentID).WillReturnRows(sqlmock.NewRows(stuCols))
			},
			code: apperr.CodeNotFound,
		},
		{
			name: "already issued to this student",
			setup: func(mock sqlmock.Sqlmock) {
				expectLockedBook(mock, 3, 2)
				expectStudent(mock)
				expectActiveIssue(mock, true)
			},
			code: apperr.CodeConflict,
		},
		{
			name: "no copies",
			setup: func(mock sqlmock.Sqlmock) {
				expectLockedBook(mock, 1, 0)
				expectStudent(mock)
				expectActiveIssue(mock, false)
			},
			code: apperr.CodeConflict,
		},
		{
			name: "conditional decrement lost",
			setup: func(mock sqlmock.Sqlmock) {
				expectLockedBook(mock, 1, 1)
				expectStudent(mock)
				expectActiveIssue(mock, false)
				mock.ExpectExec(`UPDATE books SET available_copies = available_copies - 1`).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			code: apperr.CodeConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newTestService(t)
			mock.ExpectBegin()
			tt.setup(mock)
			mock.ExpectRollback()

			_, err := svc.Issue(context.Background(), studentID, bookID)
			assert.True(t, apperr.Is(err, tt.code), "got %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())

			want := 0.0
			if tt.code == apperr.CodeConflict {
				want = 1
			}
			assert.Equal(t, want, testutil.ToFloat64(svc.metrics.conflicts.WithLabelValues("issue")))
			assert.Equal(t, 0.0, testutil.ToFloat64(svc.metrics.issues))
		})
	}
}

func TestIssue_MalformedIDs(t *testing.T) {
	svc, mock := newTestService(t)

	for _, pair := range [][2]string{{"", bookID}, {studentID, ""}, {"abc", bookID}, {studentID, "64f1c0ffee"}} {
		_, err := svc.Issue(context.Background(), pair[0], pair[1])
		assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument), "pair %v: %v", pair, err)
		_, err = svc.Return(context.Background(), pair[0], pair[1])
		assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument), "pair %v: %v", pair, err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturn_ClosesOldestActiveIssue(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	expectLockedBook(mock, 3, 3)
	expectStudent(mock)
	expectActiveIssue(mock, true)
	mock.ExpectExec(`UPDATE books SET available_copies = LEAST\(available_copies \+ 1, total_copies\)`).
		WithArgs(testNow, bookID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(newTxID, studentID, bookID, "return", "returned", testNow, nil, testNow, issueTxID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE transactions SET status = 'returned', return_date = \? WHERE id = \?`).
		WithArgs(testNow, issueTxID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Return(context.Background(), studentID, bookID)
	require.NoError(t, err)

	assert.Equal(t, TypeReturn, res.Transaction.Type)
	assert.Equal(t, StatusReturned, res.Transaction.Status)
	assert.Equal(t, issueTxID, res.Transaction.IssueID)
	require.NotNil(t, res.Transaction.ReturnDate)
	// 在庫は総数を超えない
	assert.Equal(t, 3, res.UpdatedBook.AvailableCopies)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.returns))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturn_NotIssued(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	expectLockedBook(mock, 3, 3)
	expectStudent(mock)
	expectActiveIssue(mock, false)
	mock.ExpectRollback()

	_, err := svc.Return(context.Background(), studentID, bookID)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.conflicts.WithLabelValues("return")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_PaginatesAndResolvesOrphans(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `transactions` AS `t` WHERE").
		WithArgs(studentID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))

	orphan := activeIssueRow()
	for i := 9; i < len(orphan); i++ {
		orphan[i] = nil
	}
	mock.ExpectQuery("FROM `transactions` AS `t` LEFT JOIN `students` AS `s`.* LEFT JOIN `books` AS `b`.* ORDER BY `t`.`issue_date` DESC, `t`.`id` DESC").
		WillReturnRows(sqlmock.NewRows(txColumns).AddRow(activeIssueRow()...).AddRow(orphan...))
	mock.ExpectCommit()

	res, err := svc.List(context.Background(), ListFilter{StudentID: studentID}, Page{Page: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(25), res.Total)
	assert.Equal(t, 3, res.TotalPages())
	assert.Equal(t, 2, res.Page.Page)
	assert.Equal(t, DefaultPageLimit, res.Page.Limit)
	require.Len(t, res.Items, 2)
	assert.NotNil(t, res.Items[0].Student)
	assert.Nil(t, res.Items[1].Student)
	assert.Nil(t, res.Items[1].Book)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_EmptySkipsSecondQuery(t *testing.T) {
	svc, mock := newTestService(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	res, err := svc.List(context.Background(), ListFilter{}, Page{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.TotalPages())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_InvalidFilters(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name string
		f    ListFilter
		p    Page
	}{
		{"bad student", ListFilter{StudentID: "x"}, Page{}},
		{"bad book", ListFilter{BookID: "x"}, Page{}},
		{"bad type", ListFilter{Type: "borrow"}, Page{}},
		{"bad status", ListFilter{Status: "lost"}, Page{}},
		{"negative page", ListFilter{}, Page{Page: -1}},
		{"negative limit", ListFilter{}, Page{Limit: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.List(context.Background(), tt.f, tt.p)
			assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument), "got %v", err)
		})
	}
}

func TestNormalizePage_ClampsLimit(t *testing.T) {
	p, err := normalizePage(Page{Page: 1, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, p.Limit)
}

func TestActiveIssues(t *testing.T) {
	svc, mock := newTestService(t)
	mock.ExpectQuery(`WHERE t.student_id = \? AND t.type = 'issue' AND t.status = 'active' ORDER BY t.issue_date DESC`).
		WithArgs(studentID).
		WillReturnRows(sqlmock.NewRows(txColumns).AddRow(activeIssueRow()...))

	list, err := svc.ActiveIssues(context.Background(), studentID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ActiveIssues(context.Background(), "nope")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	svc, mock := newTestService(t)
	mock.ExpectQuery(`WHERE t.id = \?`).WithArgs(issueTxID).WillReturnRows(sqlmock.NewRows(txColumns))

	_, err := svc.Get(context.Background(), issueTxID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
