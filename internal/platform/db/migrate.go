package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
)

const schemaVersion = 2

// migrations[i] で schema_version i+1 になる．MySQL の DDL は暗黙コミットされるので Tx では囲まない
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS books (
			id               CHAR(26)     NOT NULL PRIMARY KEY,
			title            VARCHAR(255) NOT NULL,
			author           VARCHAR(255) NOT NULL DEFAULT '',
			isbn             VARCHAR(32)  NOT NULL DEFAULT '',
			description      TEXT         NULL,
			total_copies     INT          NOT NULL,
			available_copies INT          NOT NULL,
			qr_data          MEDIUMTEXT   NULL,
			created_at       DATETIME(6)  NOT NULL,
			updated_at       DATETIME(6)  NOT NULL,
			CONSTRAINT chk_books_copies CHECK (available_copies >= 0 AND available_copies <= total_copies),
			INDEX idx_books_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS students (
			id         CHAR(26)     NOT NULL PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			roll_no    VARCHAR(64)  NOT NULL,
			email      VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME(6)  NOT NULL,
			UNIQUE KEY uq_students_roll_no (roll_no)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		// 本・学生が削除されても履歴は残すので外部キーは張らない
		`CREATE TABLE IF NOT EXISTS transactions (
			id          CHAR(26)                  NOT NULL PRIMARY KEY,
			student_id  CHAR(26)                  NOT NULL,
			book_id     CHAR(26)                  NOT NULL,
			type        ENUM('issue','return')    NOT NULL,
			status      ENUM('active','returned') NOT NULL,
			issue_date  DATETIME(6)               NOT NULL,
			due_date    DATETIME(6)               NULL,
			return_date DATETIME(6)               NULL,
			issue_id    CHAR(26)                  NULL,
			INDEX idx_tx_pair (student_id, book_id, type, status),
			INDEX idx_tx_book (book_id),
			INDEX idx_tx_issue_date (issue_date)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	{
		`CREATE TABLE IF NOT EXISTS auth_accounts (
			id            VARCHAR(64)  NOT NULL PRIMARY KEY,
			password_hash VARCHAR(255) NOT NULL,
			role          VARCHAR(32)  NOT NULL,
			is_disabled   TINYINT(1)   NOT NULL DEFAULT 0,
			created_at    DATETIME(6)  NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}

// Migrate は schema_meta に記録されたバージョンから最新まで DDL を流す
func Migrate(ctx context.Context, conn *sqlx.DB) (from, to int, err error) {
	const meta = `CREATE TABLE IF NOT EXISTS schema_meta (
		meta_key   VARCHAR(64)  NOT NULL PRIMARY KEY,
		meta_value VARCHAR(255) NOT NULL
	) ENGINE=InnoDB`
	if _, err := conn.ExecContext(ctx, meta); err != nil {
		return 0, 0, fmt.Errorf("create schema_meta: %w", err)
	}

	current, err := currentVersion(ctx, conn)
	if err != nil {
		return 0, 0, err
	}
	if current >= schemaVersion {
		return current, current, nil
	}

	for v := current; v < schemaVersion; v++ {
		for _, stmt := range migrations[v] {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return current, v, fmt.Errorf("migrate to v%d: %w", v+1, err)
			}
		}
		const upsert = `
		INSERT INTO schema_meta (meta_key, meta_value) VALUES ('schema_version', ?)
		ON DUPLICATE KEY UPDATE meta_value = VALUES(meta_value)`
		if _, err := conn.ExecContext(ctx, upsert, strconv.Itoa(v+1)); err != nil {
			return current, v, fmt.Errorf("record schema version: %w", err)
		}
	}
	return current, schemaVersion, nil
}

func currentVersion(ctx context.Context, conn *sqlx.DB) (int, error) {
	var raw string
	err := conn.GetContext(ctx, &raw, `SELECT meta_value FROM schema_meta WHERE meta_key = 'schema_version'`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt schema version %q: %w", raw, err)
	}
	return v, nil
}
