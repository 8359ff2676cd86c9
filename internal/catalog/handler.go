package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
)

type Handler struct{ svc BookService }

// RegisterRoutes: guard は書き込み系の前に差し込む（認証無効なら空）
func RegisterRoutes(r gin.IRoutes, svc BookService, guard ...gin.HandlerFunc) {
	h := &Handler{svc: svc}

	r.GET("/books", h.List)
	r.GET("/books/:id", h.Get)
	r.GET("/books/:id/qrcode", h.QRCode)

	r.POST("/books", chain(guard, h.Create)...)
	r.PUT("/books/:id", chain(guard, h.Update)...)
	r.DELETE("/books/:id", chain(guard, h.Delete)...)
}

// Create godoc
// @Summary  Create a book and its QR code
// @Tags     books
// @Accept   json
// @Produce  json
// @Param    body body CreateBookRequest true "book"
// @Success  201 {object} BookEnvelope
// @Failure  400 {object} apperr.APIError
// @Security BearerAuth
// @Router   /books [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Invalid(c, "title and totalCopies are required")
		return
	}
	b, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Header("Location", "/api/books/"+b.ID)
	c.JSON(http.StatusCreated, BookEnvelope{Message: "Book created successfully", Book: b.ToDTO()})
}

// List godoc
// @Summary  List books (newest first)
// @Tags     books
// @Produce  json
// @Param    q query string false "title/author/isbn substring"
// @Success  200 {array} BookResponse
// @Router   /books [get]
func (h *Handler) List(c *gin.Context) {
	books, err := h.svc.List(c.Request.Context(), ListQuery{Q: c.Query("q")})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, b.ToDTO())
	}
	c.JSON(http.StatusOK, out)
}

// Get godoc
// @Summary  Get a book
// @Tags     books
// @Produce  json
// @Param    id path string true "book id (ULID)"
// @Success  200 {object} BookResponse
// @Failure  400 {object} apperr.APIError
// @Failure  404 {object} apperr.APIError
// @Router   /books/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	b, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, b.ToDTO())
}

// Update godoc
// @Summary  Update a book
// @Description 未指定のフィールドは現行値のまま．regenerateQR=true のときだけQRを作り直す
// @Tags     books
// @Accept   json
// @Produce  json
// @Param    id   path string            true "book id (ULID)"
// @Param    body body UpdateBookRequest true "fields"
// @Success  200 {object} BookEnvelope
// @Failure  400 {object} apperr.APIError
// @Failure  404 {object} apperr.APIError
// @Security BearerAuth
// @Router   /books/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Invalid(c, "invalid json")
		return
	}
	b, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, BookEnvelope{Message: "Book updated successfully", Book: b.ToDTO()})
}

// Delete godoc
// @Summary  Delete a book
// @Tags     books
// @Produce  json
// @Param    id path string true "book id (ULID)"
// @Success  200 {object} MessageResponse
// @Failure  400 {object} apperr.APIError
// @Failure  404 {object} apperr.APIError
// @Security BearerAuth
// @Router   /books/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Book deleted successfully"})
}

// QRCode godoc
// @Summary  QR code image for a book
// @Tags     books
// @Produce  png
// @Param    id path string true "book id (ULID)"
// @Success  200 {file} binary
// @Failure  404 {object} apperr.APIError
// @Router   /books/{id}/qrcode [get]
func (h *Handler) QRCode(c *gin.Context) {
	png, err := h.svc.QRCodePNG(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", png)
}

func chain(guard []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guard)+1)
	out = append(out, guard...)
	return append(out, h)
}
