package catalog

import (
	"database/sql"
	"time"
)

// DB行に対応（スキャン用）
type bookRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	Author          string         `db:"author"`
	ISBN            string         `db:"isbn"`
	Description     sql.NullString `db:"description"`
	TotalCopies     int            `db:"total_copies"`
	AvailableCopies int            `db:"available_copies"`
	QRData          sql.NullString `db:"qr_data"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// Book は Service ↔ Store で使うモデル．貸出処理からも参照する
type Book struct {
	ID              string
	Title           string
	Author          string
	ISBN            string
	Description     string
	TotalCopies     int
	AvailableCopies int
	QRData          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r bookRow) toModel() Book {
	return Book{
		ID:              r.ID,
		Title:           r.Title,
		Author:          r.Author,
		ISBN:            r.ISBN,
		Description:     r.Description.String,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
		QRData:          r.QRData.String,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

// ToDTO は API で返す形
func (b Book) ToDTO() BookResponse {
	return BookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		Description:     b.Description,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		QRData:          b.QRData,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// 在庫の不変条件 0 <= available <= total
func (b Book) copiesValid() bool {
	return b.TotalCopies >= 0 && b.AvailableCopies >= 0 && b.AvailableCopies <= b.TotalCopies
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
