package students

import "time"

type CreateStudentRequest struct {
	Name   string `json:"name" binding:"required"`
	RollNo string `json:"rollNo" binding:"required"`
	Email  string `json:"email" binding:"omitempty,email"`
}

type StudentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RollNo    string    `json:"rollNo"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type StudentEnvelope struct {
	Message string          `json:"message"`
	Student StudentResponse `json:"student"`
}
