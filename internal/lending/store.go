package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/db"
)

var dialect = goqu.Dialect("mysql")

// 学生・本のサマリは LEFT JOIN で解決する（外部キーは無いので消えていれば NULL）
const resolvedColumns = `t.id, t.student_id, t.book_id, t.type, t.status, t.issue_date, t.due_date, t.return_date, t.issue_id,
	s.id AS s_id, s.name AS s_name, s.roll_no AS s_roll_no, s.email AS s_email,
	b.id AS b_id, b.title AS b_title, b.author AS b_author, b.isbn AS b_isbn`

const resolvedFrom = `transactions t
	LEFT JOIN students s ON s.id = t.student_id
	LEFT JOIN books b ON b.id = t.book_id`

type Store struct{ db *sqlx.DB }

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) Insert(ctx context.Context, q db.DBTX, t Transaction) error {
	const stmt = `
	INSERT INTO transactions (id, student_id, book_id, type, status, issue_date, due_date, return_date, issue_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	issueID := sql.NullString{String: t.IssueID, Valid: t.IssueID != ""}
	_, err := q.ExecContext(ctx, stmt,
		t.ID, t.StudentID, t.BookID, string(t.Type), string(t.Status),
		t.IssueDate, nullTime(t.DueDate), nullTime(t.ReturnDate), issueID,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// LockActiveIssue は (学生, 本) の active な issue を古い順に1件，行ロック付きで読む．無ければ found=false．
// ロック読みは最新のコミット済み行を見るので，先行Txが入れた issue も取りこぼさない
func (s *Store) LockActiveIssue(ctx context.Context, tx *sqlx.Tx, studentID, bookID string) (Transaction, bool, error) {
	const stmt = `
	SELECT id, student_id, book_id, type, status, issue_date, due_date, return_date, issue_id
	FROM transactions
	WHERE student_id = ? AND book_id = ? AND type = 'issue' AND status = 'active'
	ORDER BY issue_date ASC, id ASC
	LIMIT 1
	FOR UPDATE`
	var r txRow
	err := tx.GetContext(ctx, &r, stmt, studentID, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, fmt.Errorf("lock active issue: %w", err)
	}
	return r.toModel(), true, nil
}

// MarkReturned は active → returned の遷移．既に returned なら何もしない
func (s *Store) MarkReturned(ctx context.Context, q db.DBTX, issueID string, at time.Time) error {
	const stmt = `
	UPDATE transactions
	SET status = 'returned', return_date = ?
	WHERE id = ? AND type = 'issue' AND status = 'active'`
	res, err := q.ExecContext(ctx, stmt, at, issueID)
	if err != nil {
		return fmt.Errorf("mark returned: %w", err)
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		return fmt.Errorf("mark returned: issue %s was not active", issueID)
	}
	return nil
}

// GetByID: 見つからない場合は sql.ErrNoRows
func (s *Store) GetByID(ctx context.Context, id string) (Transaction, error) {
	const stmt = `SELECT ` + resolvedColumns + ` FROM ` + resolvedFrom + ` WHERE t.id = ?`
	var r txRow
	if err := s.db.GetContext(ctx, &r, stmt, id); err != nil {
		return Transaction{}, err
	}
	return r.toModel(), nil
}

// ActiveByStudent: 学生の active な issue を新しい順に全件
func (s *Store) ActiveByStudent(ctx context.Context, studentID string) ([]Transaction, error) {
	const stmt = `
	SELECT ` + resolvedColumns + `
	FROM ` + resolvedFrom + `
	WHERE t.student_id = ? AND t.type = 'issue' AND t.status = 'active'
	ORDER BY t.issue_date DESC, t.id DESC`
	var rows []txRow
	if err := s.db.SelectContext(ctx, &rows, stmt, studentID); err != nil {
		return nil, fmt.Errorf("list active issues: %w", err)
	}
	return toModels(rows), nil
}

// List: フィルタは AND．issue_date 降順（同時刻は id 降順）
func (s *Store) List(ctx context.Context, q db.DBTX, f ListFilter, p Page) ([]Transaction, int64, error) {
	conds := filterExpressions(f)

	countSQL, countArgs, err := dialect.From(goqu.T("transactions").As("t")).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(conds...).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := q.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	if total == 0 {
		return []Transaction{}, 0, nil
	}

	listSQL, listArgs, err := dialect.From(goqu.T("transactions").As("t")).Prepared(true).
		LeftJoin(goqu.T("students").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("t.student_id")))).
		LeftJoin(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("t.book_id")))).
		Select(goqu.L(resolvedColumns)).
		Where(conds...).
		Order(goqu.I("t.issue_date").Desc(), goqu.I("t.id").Desc()).
		Limit(uint(p.Limit)).
		Offset(uint(p.offset())).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	var rows []txRow
	if err := q.SelectContext(ctx, &rows, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return toModels(rows), total, nil
}

func filterExpressions(f ListFilter) []exp.Expression {
	conds := []exp.Expression{}
	if f.StudentID != "" {
		conds = append(conds, goqu.I("t.student_id").Eq(f.StudentID))
	}
	if f.BookID != "" {
		conds = append(conds, goqu.I("t.book_id").Eq(f.BookID))
	}
	if f.Type != "" {
		conds = append(conds, goqu.I("t.type").Eq(string(f.Type)))
	}
	if f.Status != "" {
		conds = append(conds, goqu.I("t.status").Eq(string(f.Status)))
	}
	return conds
}

func toModels(rows []txRow) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
