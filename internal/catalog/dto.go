package catalog

import "time"

// ===== Requests =====

type CreateBookRequest struct {
	Title       string `json:"title" binding:"required"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	Description string `json:"description"`
	TotalCopies *int   `json:"totalCopies" binding:"required"` // 0 も許可するのでポインタ
}

// 未指定のフィールドは現行値のまま
type UpdateBookRequest struct {
	Title           *string `json:"title,omitempty"`
	Author          *string `json:"author,omitempty"`
	ISBN            *string `json:"isbn,omitempty"`
	Description     *string `json:"description,omitempty"`
	TotalCopies     *int    `json:"totalCopies,omitempty"`
	AvailableCopies *int    `json:"availableCopies,omitempty"`
	RegenerateQR    bool    `json:"regenerateQR"`
}

type ListQuery struct {
	Q string // title/author/isbn の部分一致
}

// ===== Responses =====

type BookResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Description     string    `json:"description"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	QRData          string    `json:"qrData"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// POST/PUT /books の応答
type BookEnvelope struct {
	Message string       `json:"message"`
	Book    BookResponse `json:"book"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
