package students

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/db"
)

const studentColumns = `id, name, roll_no, email, created_at`

type Store struct{ db *sqlx.DB }

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// Insert: roll_no 重複は MySQL 1062 のまま返す（呼び出し側で db.IsDuplicateKey）
func (s *Store) Insert(ctx context.Context, st Student) error {
	const q = `
	INSERT INTO students (` + studentColumns + `)
	VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, st.ID, st.Name, st.RollNo, st.Email, st.CreatedAt)
	return err
}

// GetByID: 見つからない場合は sql.ErrNoRows．貸出処理の Tx からも呼ぶので DBTX を受ける
func (s *Store) GetByID(ctx context.Context, q db.DBTX, id string) (Student, error) {
	var r studentRow
	if err := q.GetContext(ctx, &r, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id); err != nil {
		return Student{}, err
	}
	return r.toModel(), nil
}

func (s *Store) List(ctx context.Context) ([]Student, error) {
	var rows []studentRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+studentColumns+` FROM students ORDER BY name ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	out := make([]Student, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) DB() *sqlx.DB { return s.db }
