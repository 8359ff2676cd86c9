// Package labels はラベルプリンタ用ソフトに流し込む CSV を作る．
// 1行 = 1冊で，列は タイトル, 著者, ISBN, ID（QR の中身）．ヘッダ行は付けない．
package labels

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/Muskansingh2005/Library-feature-QR/internal/catalog"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/ident"
)

const (
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"

	MaxLabels = 200
)

type BookLister interface {
	ListByIDs(ctx context.Context, ids []string) ([]catalog.Book, error)
}

type Request struct {
	BookIDs  []string `json:"bookIds" binding:"required"`
	Encoding string   `json:"encoding"` // utf-8(既定) / shift_jis
}

type Sheet struct {
	Data     []byte
	Charset  string
	RowCount int
}

type Service struct{ books BookLister }

func NewService(books BookLister) *Service { return &Service{books: books} }

func (s *Service) Render(ctx context.Context, req Request) (Sheet, error) {
	charset, err := normalizeEncoding(req.Encoding)
	if err != nil {
		return Sheet{}, err
	}
	ids, err := uniqueIDs(req.BookIDs)
	if err != nil {
		return Sheet{}, err
	}

	books, err := s.books.ListByIDs(ctx, ids)
	if err != nil {
		return Sheet{}, fmt.Errorf("load books: %w", err)
	}
	byID := make(map[string]catalog.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	// 並びはリクエスト順
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		b, ok := byID[id]
		if !ok {
			return Sheet{}, apperr.ErrNotFound("book not found: " + id)
		}
		rows = append(rows, []string{b.Title, b.Author, b.ISBN, b.ID})
	}

	var buf bytes.Buffer
	if err := writeCSV(&buf, charset, rows); err != nil {
		return Sheet{}, fmt.Errorf("write csv: %w", err)
	}
	return Sheet{Data: buf.Bytes(), Charset: charset, RowCount: len(rows)}, nil
}

func writeCSV(dst io.Writer, charset string, rows [][]string) error {
	var tw *transform.Writer
	if charset == EncodingShiftJIS {
		// Windowsの「ANSI（CP932）」相当．表せない文字は置換する
		tw = transform.NewWriter(dst, encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder()))
		dst = tw
	}
	w := csv.NewWriter(dst)
	w.UseCRLF = charset == EncodingShiftJIS
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

func normalizeEncoding(e string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(e)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "shift_jis", "shift-jis", "sjis", "cp932":
		return EncodingShiftJIS, nil
	default:
		return "", apperr.ErrInvalid("encoding must be utf-8 or shift_jis")
	}
}

func uniqueIDs(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, apperr.ErrInvalid("bookIds must not be empty")
	}
	if len(in) > MaxLabels {
		return nil, apperr.ErrInvalid(fmt.Sprintf("at most %d labels per sheet", MaxLabels))
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if !ident.Valid(id) {
			return nil, apperr.ErrInvalid("invalid book id: " + id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
