package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Muskansingh2005/Library-feature-QR/internal/catalog"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/auth"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/config"
	"github.com/Muskansingh2005/Library-feature-QR/internal/students"
)

type seedBook struct {
	title, author, isbn string
	copies              int
}

var sampleBooks = []seedBook{
	{"The Go Programming Language", "Alan A. A. Donovan, Brian W. Kernighan", "9780134190440", 3},
	{"Introduction to Algorithms", "Thomas H. Cormen", "9780262046305", 2},
	{"Clean Code", "Robert C. Martin", "9780132350884", 1},
	{"吾輩は猫である", "夏目漱石", "9784101010014", 2},
}

var sampleStudents = []students.CreateStudentRequest{
	{Name: "Aarav Sharma", RollNo: "CS-001", Email: "aarav@example.com"},
	{Name: "Diya Patel", RollNo: "CS-002", Email: "diya@example.com"},
	{Name: "山田 花子", RollNo: "CS-003"},
}

func newSeedCmd(cfgPath *string) *cobra.Command {
	var adminID, adminPassword string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample books and students (and optionally an admin account)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), *cfgPath, func(ctx context.Context, cfg *config.Config, logger *slog.Logger, conn *sqlx.DB) error {
				svc := newServices(cfg, conn, prometheus.NewRegistry())
				return seed(ctx, logger, svc, adminID, adminPassword)
			})
		},
	}
	cmd.Flags().StringVar(&adminID, "admin-id", "", "create an admin account with this id")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password for --admin-id")
	return cmd
}

func seed(ctx context.Context, logger *slog.Logger, svc *services, adminID, adminPassword string) error {
	if adminID != "" {
		err := svc.auth.Register(ctx, adminID, adminPassword, auth.RoleAdmin)
		switch {
		case err == nil:
			logger.Info("admin account created", "id", adminID)
		case apperr.Is(err, apperr.CodeConflict):
			logger.Info("admin account already exists", "id", adminID)
		default:
			return fmt.Errorf("register admin: %w", err)
		}
	}

	// 本は重複チェックがないので，1冊でもあればスキップ
	existing, err := svc.books.List(ctx, catalog.ListQuery{})
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	if len(existing) == 0 {
		for _, b := range sampleBooks {
			copies := b.copies
			book, err := svc.books.Create(ctx, catalog.CreateBookRequest{
				Title:       b.title,
				Author:      b.author,
				ISBN:        b.isbn,
				TotalCopies: &copies,
			})
			if err != nil {
				return fmt.Errorf("create book %q: %w", b.title, err)
			}
			logger.Info("book created", "id", book.ID, "title", book.Title)
		}
	} else {
		logger.Info("books already present, skipping", "count", len(existing))
	}

	for _, in := range sampleStudents {
		st, err := svc.students.Create(ctx, in)
		switch {
		case err == nil:
			logger.Info("student created", "id", st.ID, "rollNo", st.RollNo)
		case apperr.Is(err, apperr.CodeConflict):
			logger.Info("student already exists", "rollNo", in.RollNo)
		default:
			return fmt.Errorf("create student %s: %w", in.RollNo, err)
		}
	}
	return nil
}
