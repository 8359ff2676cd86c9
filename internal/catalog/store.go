package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/db"
)

const bookColumns = `id, title, author, isbn, description, total_copies, available_copies, qr_data, created_at, updated_at`

var (
	dialect     = goqu.Dialect("mysql")
	bookColumnX = []any{"id", "title", "author", "isbn", "description", "total_copies", "available_copies", "qr_data", "created_at", "updated_at"}
)

// Store は books テーブルへのアクセス．Tx 内で使うメソッドは db.DBTX を受け取る
type Store struct{ db *sqlx.DB }

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Insert(ctx context.Context, q db.DBTX, b Book) error {
	const stmt = `
	INSERT INTO books (` + bookColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, stmt,
		b.ID, b.Title, b.Author, b.ISBN, nullString(b.Description),
		b.TotalCopies, b.AvailableCopies, nullString(b.QRData), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetByID: 見つからない場合は sql.ErrNoRows をそのまま返す
func (s *Store) GetByID(ctx context.Context, q db.DBTX, id string) (Book, error) {
	var r bookRow
	if err := q.GetContext(ctx, &r, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id); err != nil {
		return Book{}, err
	}
	return r.toModel(), nil
}

// GetForUpdate は行ロックを取って読む．Tx 内でのみ使うこと
func (s *Store) GetForUpdate(ctx context.Context, tx db.DBTX, id string) (Book, error) {
	var r bookRow
	if err := tx.GetContext(ctx, &r, `SELECT `+bookColumns+` FROM books WHERE id = ? FOR UPDATE`, id); err != nil {
		return Book{}, err
	}
	return r.toModel(), nil
}

// List: 新しい順．q があれば title/author/isbn の部分一致（mysql 方言の Like は LIKE BINARY になるので ILike）
func (s *Store) List(ctx context.Context, lq ListQuery) ([]Book, error) {
	ds := dialect.From("books").Prepared(true).Select(bookColumnX...)
	if term := strings.TrimSpace(lq.Q); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").ILike(pattern),
			goqu.C("author").ILike(pattern),
			goqu.C("isbn").ILike(pattern),
		))
	}
	ds = ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	var rows []bookRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return toModels(rows), nil
}

// ListByIDs は ids の順序は保証しない．存在しない ID は単に含まれない
func (s *Store) ListByIDs(ctx context.Context, ids []string) ([]Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := dialect.From("books").Prepared(true).
		Select(bookColumnX...).
		Where(goqu.C("id").In(ids)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build ids query: %w", err)
	}
	var rows []bookRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list books by ids: %w", err)
	}
	return toModels(rows), nil
}

func (s *Store) Update(ctx context.Context, q db.DBTX, b Book) error {
	const stmt = `
	UPDATE books
	SET title = ?, author = ?, isbn = ?, description = ?,
	    total_copies = ?, available_copies = ?, qr_data = ?, updated_at = ?
	WHERE id = ?`
	_, err := q.ExecContext(ctx, stmt,
		b.Title, b.Author, b.ISBN, nullString(b.Description),
		b.TotalCopies, b.AvailableCopies, nullString(b.QRData), b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// TakeCopy は在庫が 1 以上のときだけ 1 減らす．減らせなかったら false
func (s *Store) TakeCopy(ctx context.Context, tx db.DBTX, id string, now time.Time) (bool, error) {
	const stmt = `
	UPDATE books
	SET available_copies = available_copies - 1, updated_at = ?
	WHERE id = ? AND available_copies > 0`
	res, err := tx.ExecContext(ctx, stmt, now, id)
	if err != nil {
		return false, fmt.Errorf("take copy: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff == 1, nil
}

// PutBackCopy は 1 増やす．total_copies を超えない
func (s *Store) PutBackCopy(ctx context.Context, tx db.DBTX, id string, now time.Time) error {
	const stmt = `
	UPDATE books
	SET available_copies = LEAST(available_copies + 1, total_copies), updated_at = ?
	WHERE id = ?`
	if _, err := tx.ExecContext(ctx, stmt, now, id); err != nil {
		return fmt.Errorf("put back copy: %w", err)
	}
	return nil
}

// Delete: 削除できたら true．貸出履歴は消さない
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func toModels(rows []bookRow) []Book {
	out := make([]Book, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
