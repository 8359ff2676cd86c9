package students

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/db"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/ident"
)

type StudentService interface {
	Create(ctx context.Context, in CreateStudentRequest) (Student, error)
	List(ctx context.Context) ([]Student, error)
	Get(ctx context.Context, id string) (Student, error)
}

type Service struct {
	store    *Store
	clock    ident.Clock
	ids      ident.IDGen
	validate *validator.Validate
}

func NewService(store *Store, clock ident.Clock, ids ident.IDGen) *Service {
	return &Service{store: store, clock: clock, ids: ids, validate: validator.New()}
}

var ErrStudentNotFound = apperr.ErrNotFound("student not found")

// POST /students
func (s *Service) Create(ctx context.Context, in CreateStudentRequest) (Student, error) {
	name := strings.TrimSpace(in.Name)
	roll := strings.TrimSpace(in.RollNo)
	email := strings.TrimSpace(in.Email)
	if name == "" || roll == "" {
		return Student{}, apperr.ErrInvalid("name and rollNo are required")
	}
	// seed など HTTP を通らない経路もあるのでここでも見る
	if email != "" {
		if err := s.validate.Var(email, "email"); err != nil {
			return Student{}, apperr.ErrInvalid("invalid email")
		}
	}

	now := s.clock.Now()
	st := Student{
		ID:        s.ids.NewULID(now),
		Name:      name,
		RollNo:    roll,
		Email:     email,
		CreatedAt: now,
	}
	if err := s.store.Insert(ctx, st); err != nil {
		if db.IsDuplicateKey(err) {
			return Student{}, apperr.ErrConflict("rollNo already exists")
		}
		return Student{}, fmt.Errorf("insert student: %w", err)
	}
	return st, nil
}

func (s *Service) List(ctx context.Context) ([]Student, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Student, error) {
	if !ident.Valid(id) {
		return Student{}, apperr.ErrInvalid("invalid student id")
	}
	st, err := s.store.GetByID(ctx, s.store.DB(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrStudentNotFound
	}
	if err != nil {
		return Student{}, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}
