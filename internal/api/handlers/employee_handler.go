package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/staffbook/internal/models"
	"github.com/yoockh/staffbook/internal/services"
	"github.com/yoockh/staffbook/internal/storage"
	"github.com/yoockh/staffbook/internal/utils"
)

const MsgEmployeeRemoved = "Employee removed"

type EmployeeHandler struct {
	svc services.EmployeeService
}

func NewEmployeeHandler(svc services.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{svc: svc}
}

func (h *EmployeeHandler) List(c *gin.Context) {
	rows, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *EmployeeHandler) Search(c *gin.Context) {
	rows, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *EmployeeHandler) Get(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *EmployeeHandler) Create(c *gin.Context) {
	const op = "EmployeeHandler.Create"

	f, pic, done, ok := bindEmployee(c, op)
	if !ok {
		return
	}
	defer done()

	e, err := h.svc.Create(c.Request.Context(), f, pic)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *EmployeeHandler) Update(c *gin.Context) {
	const op = "EmployeeHandler.Update"

	f, pic, done, ok := bindEmployee(c, op)
	if !ok {
		return
	}
	defer done()

	e, err := h.svc.Update(c.Request.Context(), c.Param("id"), f, pic)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *EmployeeHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MsgBody{Msg: MsgEmployeeRemoved})
}

// bindEmployee reads the five fields from a multipart, urlencoded or JSON
// body plus the optional picture.
func bindEmployee(c *gin.Context, op string) (models.EmployeeFields, *storage.Upload, func(), bool) {
	var f models.EmployeeFields
	if err := c.ShouldBind(&f); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return f, nil, nil, false
	}

	pic, done, err := ProfilePicture(c)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid profile picture upload", err))
		return f, nil, nil, false
	}
	return f, pic, done, true
}
