package labels

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
)

type Renderer interface {
	Render(ctx context.Context, req Request) (Sheet, error)
}

type Handler struct{ svc Renderer }

func RegisterRoutes(r gin.IRoutes, svc Renderer, guard ...gin.HandlerFunc) {
	h := &Handler{svc: svc}
	r.POST("/books/labels", append(append([]gin.HandlerFunc{}, guard...), h.Export)...)
}

// Export godoc
// @Summary  Export a label sheet as CSV
// @Description encoding は utf-8（既定）か shift_jis
// @Tags     books
// @Accept   json
// @Produce  text/csv
// @Param    body body Request true "ids and encoding"
// @Success  200 {file} binary
// @Failure  400 {object} apperr.APIError
// @Failure  404 {object} apperr.APIError
// @Security BearerAuth
// @Router   /books/labels [post]
func (h *Handler) Export(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Invalid(c, "bookIds is required")
		return
	}
	sheet, err := h.svc.Render(c.Request.Context(), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	contentType := "text/csv; charset=utf-8"
	if sheet.Charset == EncodingShiftJIS {
		contentType = "text/csv; charset=Shift_JIS"
	}
	c.Header("Content-Disposition", `attachment; filename="labels.csv"`)
	c.Data(http.StatusOK, contentType, sheet.Data)
}
