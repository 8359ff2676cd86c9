package students

import "time"

// DB行に対応（スキャン用）
type studentRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	RollNo    string    `db:"roll_no"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

// 作成後は変更しない
type Student struct {
	ID        string
	Name      string
	RollNo    string
	Email     string
	CreatedAt time.Time
}

func (r studentRow) toModel() Student {
	return Student{
		ID:        r.ID,
		Name:      r.Name,
		RollNo:    r.RollNo,
		Email:     r.Email,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (s Student) ToDTO() StudentResponse {
	return StudentResponse{
		ID:        s.ID,
		Name:      s.Name,
		RollNo:    s.RollNo,
		Email:     s.Email,
		CreatedAt: s.CreatedAt,
	}
}
