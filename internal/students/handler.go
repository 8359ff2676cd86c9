package students

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
)

type Handler struct{ svc StudentService }

func RegisterRoutes(r gin.IRoutes, svc StudentService, guard ...gin.HandlerFunc) {
	h := &Handler{svc: svc}

	create := append(append([]gin.HandlerFunc{}, guard...), h.Create)
	r.POST("/students", create...)
	r.GET("/students", h.List)
	r.GET("/students/:id", h.Get)
}

// Create godoc
// @Summary  Register a student
// @Tags     students
// @Accept   json
// @Produce  json
// @Param    body body CreateStudentRequest true "student"
// @Success  201 {object} StudentEnvelope
// @Failure  400 {object} apperr.APIError
// @Security BearerAuth
// @Router   /students [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Invalid(c, "name and rollNo are required; email must be valid")
		return
	}
	st, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Header("Location", "/api/students/"+st.ID)
	c.JSON(http.StatusCreated, StudentEnvelope{Message: "Student created successfully", Student: st.ToDTO()})
}

// List godoc
// @Summary  List students
// @Tags     students
// @Produce  json
// @Success  200 {array} StudentResponse
// @Router   /students [get]
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	out := make([]StudentResponse, 0, len(list))
	for _, st := range list {
		out = append(out, st.ToDTO())
	}
	c.JSON(http.StatusOK, out)
}

// Get godoc
// @Summary  Get a student
// @Tags     students
// @Produce  json
// @Param    id path string true "student id (ULID)"
// @Success  200 {object} StudentResponse
// @Failure  400 {object} apperr.APIError
// @Failure  404 {object} apperr.APIError
// @Router   /students/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	st, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, st.ToDTO())
}
