package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/db"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/ident"
	"github.com/Muskansingh2005/Library-feature-QR/internal/qrcode"
)

type BookService interface {
	Create(ctx context.Context, in CreateBookRequest) (Book, error)
	List(ctx context.Context, q ListQuery) ([]Book, error)
	Get(ctx context.Context, id string) (Book, error)
	Update(ctx context.Context, id string, in UpdateBookRequest) (Book, error)
	Delete(ctx context.Context, id string) error
	QRCodePNG(ctx context.Context, id string) ([]byte, error)
}

type Service struct {
	store *Store
	qr    qrcode.Generator
	clock ident.Clock
	ids   ident.IDGen
}

func NewService(store *Store, qr qrcode.Generator, clock ident.Clock, ids ident.IDGen) *Service {
	return &Service{store: store, qr: qr, clock: clock, ids: ids}
}

var ErrBookNotFound = apperr.ErrNotFound("book not found")

func (s *Service) Create(ctx context.Context, in CreateBookRequest) (Book, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.TotalCopies == nil {
		return Book{}, apperr.ErrInvalid("title and totalCopies are required")
	}
	if *in.TotalCopies < 0 {
		return Book{}, apperr.ErrInvalid("totalCopies must be >= 0")
	}

	now := s.clock.Now()
	b := Book{
		ID:              s.ids.NewULID(now),
		Title:           title,
		Author:          strings.TrimSpace(in.Author),
		ISBN:            strings.TrimSpace(in.ISBN),
		Description:     in.Description,
		TotalCopies:     *in.TotalCopies,
		AvailableCopies: *in.TotalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	// ID が決まってから QR を作り，同じ INSERT で保存する
	qr, err := s.qr.DataURL(b.ID)
	if err != nil {
		return Book{}, fmt.Errorf("generate qr: %w", err)
	}
	b.QRData = qr

	if err := s.store.Insert(ctx, s.store.DB(), b); err != nil {
		return Book{}, err
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]Book, error) {
	return s.store.List(ctx, q)
}

func (s *Service) Get(ctx context.Context, id string) (Book, error) {
	if !ident.Valid(id) {
		return Book{}, apperr.ErrInvalid("invalid book id")
	}
	b, err := s.store.GetByID(ctx, s.store.DB(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrBookNotFound
	}
	if err != nil {
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// Update: totalCopies の変更は availableCopies も同じだけずらす（貸出中の冊数は維持）
func (s *Service) Update(ctx context.Context, id string, in UpdateBookRequest) (Book, error) {
	if !ident.Valid(id) {
		return Book{}, apperr.ErrInvalid("invalid book id")
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return Book{}, apperr.ErrInvalid("title must not be empty")
	}

	var out Book
	err := db.RunInTx(ctx, s.store.DB(), nil, func(ctx context.Context, tx *sqlx.Tx) error {
		b, err := s.store.GetForUpdate(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookNotFound
		}
		if err != nil {
			return fmt.Errorf("lock book: %w", err)
		}

		if in.Title != nil {
			b.Title = strings.TrimSpace(*in.Title)
		}
		if in.Author != nil {
			b.Author = strings.TrimSpace(*in.Author)
		}
		if in.ISBN != nil {
			b.ISBN = strings.TrimSpace(*in.ISBN)
		}
		if in.Description != nil {
			b.Description = *in.Description
		}
		if in.TotalCopies != nil {
			delta := *in.TotalCopies - b.TotalCopies
			b.TotalCopies = *in.TotalCopies
			b.AvailableCopies += delta
		}
		if in.AvailableCopies != nil {
			b.AvailableCopies = *in.AvailableCopies
		}
		if !b.copiesValid() {
			return apperr.ErrInvalid("copies out of range: require 0 <= availableCopies <= totalCopies")
		}
		if in.RegenerateQR {
			qr, err := s.qr.DataURL(b.ID)
			if err != nil {
				return fmt.Errorf("generate qr: %w", err)
			}
			b.QRData = qr
		}
		b.UpdatedAt = s.clock.Now()

		if err := s.store.Update(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return Book{}, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if !ident.Valid(id) {
		return apperr.ErrInvalid("invalid book id")
	}
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBookNotFound
	}
	return nil
}

// QRCodePNG は印刷用．保存済みの qrData ではなく ID から作り直す
func (s *Service) QRCodePNG(ctx context.Context, id string) ([]byte, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := s.qr.PNG(b.ID)
	if err != nil {
		return nil, fmt.Errorf("generate qr: %w", err)
	}
	return png, nil
}
