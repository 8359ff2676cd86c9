package lending

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
)

type Handler struct{ svc LendingService }

func RegisterRoutes(r gin.IRoutes, svc LendingService) {
	h := &Handler{svc: svc}

	r.POST("/transactions/issue", h.Issue)
	r.POST("/transactions/return", h.Return)
	r.GET("/transactions", h.List)
	r.GET("/transactions/:id", h.Get)
	r.GET("/transactions/student/:studentId/active", h.ActiveIssues)
}

// Issue godoc
// @Summary  Issue a book to a student
// @Tags     transactions
// @Accept   json
// @Produce  json
// @Param    body body LendRequest true "pair"
// @Success  201 {object} LendResponse
// @Failure  400 {object} apperr.APIError
// @Failure  404 {object} apperr.APIError
// @Router   /transactions/issue [post]
func (h *Handler) Issue(c *gin.Context) {
	var req LendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Invalid(c, "studentId and bookId are required")
		return
	}
	res, err := h.svc.Issue(c.Request.Context(), req.StudentID, req.BookID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, LendResponse{
		Message:     "Book issued successfully",
		Transaction: res.Transaction.ToDTO(),
		UpdatedBook: res.UpdatedBook.ToDTO(),
	})
}

// Return godoc
// @Summary  Return a book
// @Tags     transactions
// @Accept   json
// @Produce  json
// @Param    body body LendRequest true "pair"
// @Success  201 {object} LendResponse
// @Failure  400 {object} apperr.APIError
// @Failure  404 {object} apperr.APIError
// @Router   /transactions/return [post]
func (h *Handler) Return(c *gin.Context) {
	var req LendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Invalid(c, "studentId and bookId are required")
		return
	}
	res, err := h.svc.Return(c.Request.Context(), req.StudentID, req.BookID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, LendResponse{
		Message:     "Book returned successfully",
		Transaction: res.Transaction.ToDTO(),
		UpdatedBook: res.UpdatedBook.ToDTO(),
	})
}

// List godoc
// @Summary  List transactions (newest first)
// @Tags     transactions
// @Produce  json
// @Param    page      query int    false "page (1-)"
// @Param    limit     query int    false "page size (max 100)"
// @Param    studentId query string false "student id"
// @Param    bookId    query string false "book id"
// @Param    type      query string false "issue | return"
// @Param    status    query string false "active | returned"
// @Success  200 {object} ListResponse
// @Failure  400 {object} apperr.APIError
// @Router   /transactions [get]
func (h *Handler) List(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		apperr.Invalid(c, "page must be a number")
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		apperr.Invalid(c, "limit must be a number")
		return
	}
	f := ListFilter{
		StudentID: c.Query("studentId"),
		BookID:    c.Query("bookId"),
		Type:      Type(c.Query("type")),
		Status:    Status(c.Query("status")),
	}

	res, err := h.svc.List(c.Request.Context(), f, Page{Page: page, Limit: limit})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{
		Transactions: toDTOs(res.Items),
		TotalPages:   res.TotalPages(),
		CurrentPage:  res.Page.Page,
		Total:        res.Total,
	})
}

// Get godoc
// @Summary  Get a transaction
// @Tags     transactions
// @Produce  json
// @Param    id path string true "transaction id"
// @Success  200 {object} TransactionResponse
// @Failure  404 {object} apperr.APIError
// @Router   /transactions/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, t.ToDTO())
}

// ActiveIssues godoc
// @Summary  Active issues for a student
// @Tags     transactions
// @Produce  json
// @Param    studentId path string true "student id"
// @Success  200 {object} ActiveIssuesResponse
// @Failure  400 {object} apperr.APIError
// @Router   /transactions/student/{studentId}/active [get]
func (h *Handler) ActiveIssues(c *gin.Context) {
	list, err := h.svc.ActiveIssues(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, ActiveIssuesResponse{ActiveIssues: toDTOs(list), Count: len(list)})
}

// 未指定なら 0（サービス側でデフォルトを入れる）
func queryInt(c *gin.Context, key string) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func toDTOs(items []Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, t.ToDTO())
	}
	return out
}
