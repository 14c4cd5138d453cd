// Package web renders the HTML front end on top of the employee service.
package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/staffbook/internal/api/handlers"
	"github.com/yoockh/staffbook/internal/models"
	"github.com/yoockh/staffbook/internal/services"
	"github.com/yoockh/staffbook/internal/storage"
	"github.com/yoockh/staffbook/internal/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	MsgAddFailed    = "Error adding employee. Please try again."
	MsgUpdateFailed = "Error updating employee. Please try again."
	MsgFetchOne     = "Error fetching employee details"
	MsgDeleteFailed = "Error deleting employee."
	MsgFetchAll     = "Error fetching employees."
)

// Templates parses the embedded page templates for gin's HTML renderer.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

type Handler struct {
	svc  services.EmployeeService
	log  *logrus.Logger
	live bool
}

// NewHandler builds the page handlers. live adds the change feed script that
// reloads the list whenever an employee changes.
func NewHandler(svc services.EmployeeService, l *logrus.Logger, live bool) *Handler {
	return &Handler{svc: svc, log: l, live: live}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.Index)
	r.GET("/employees/new", h.NewForm)
	r.POST("/employees/new", h.Create)
	r.GET("/employees/:id", h.Detail)
	r.GET("/employees/:id/edit", h.EditForm)
	r.POST("/employees/:id/edit", h.Update)
	r.POST("/employees/:id/delete", h.Delete)
}

type page struct {
	Title string
	Error string
	Live  bool

	Query     string
	Employees []models.Employee

	Employee *models.Employee

	Action     string
	Submit     string
	Fields     models.EmployeeFields
	Types      []models.EmployeeType
	ProfilePic string
}

func (h *Handler) render(c *gin.Context, status int, name string, p page) {
	p.Live = h.live
	c.HTML(status, name, p)
}

// fail logs the cause and returns the status the page should carry.
func (h *Handler) fail(c *gin.Context, action string, err error) int {
	_ = c.Error(err)
	h.log.WithError(err).WithFields(logrus.Fields{
		"action": action,
		"path":   c.Request.URL.Path,
	}).Warn("web action failed")
	return utils.HTTPStatus(err)
}

func (h *Handler) Index(c *gin.Context) {
	q := c.Query("q")

	var (
		rows []models.Employee
		err  error
	)
	if q == "" {
		rows, err = h.svc.List(c.Request.Context())
	} else {
		rows, err = h.svc.Search(c.Request.Context(), q)
	}

	p := page{Title: "Employees", Query: q, Employees: rows}
	if err != nil {
		p.Error = MsgFetchAll
		h.render(c, h.fail(c, "list", err), "list.html", p)
		return
	}
	h.render(c, http.StatusOK, "list.html", p)
}

func (h *Handler) NewForm(c *gin.Context) {
	h.render(c, http.StatusOK, "form.html", createPage(models.EmployeeFields{}))
}

func (h *Handler) Create(c *gin.Context) {
	f, err := bindForm(c, "web.Create")
	if err == nil {
		var (
			pic  *storage.Upload
			done func()
		)
		pic, done, err = handlers.ProfilePicture(c)
		if err == nil {
			defer done()
			_, err = h.svc.Create(c.Request.Context(), f, pic)
		}
	}
	if err != nil {
		p := createPage(f)
		p.Error = MsgAddFailed
		h.render(c, h.fail(c, "create", err), "form.html", p)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) Detail(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.render(c, h.fail(c, "detail", err), "detail.html", page{Title: "Employee", Error: MsgFetchOne})
		return
	}
	h.render(c, http.StatusOK, "detail.html", page{Title: e.Name, Employee: e})
}

func (h *Handler) EditForm(c *gin.Context) {
	id := c.Param("id")
	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		p := editPage(id, models.EmployeeFields{}, "")
		p.Error = MsgFetchOne
		h.render(c, h.fail(c, "edit", err), "form.html", p)
		return
	}
	h.render(c, http.StatusOK, "form.html", editPage(id, e.Fields(), e.ProfilePic))
}

func (h *Handler) Update(c *gin.Context) {
	id := c.Param("id")

	f, err := bindForm(c, "web.Update")
	if err == nil {
		var (
			pic  *storage.Upload
			done func()
		)
		pic, done, err = handlers.ProfilePicture(c)
		if err == nil {
			defer done()
			_, err = h.svc.Update(c.Request.Context(), id, f, pic)
		}
	}
	if err != nil {
		current := ""
		if e, gerr := h.svc.Get(c.Request.Context(), id); gerr == nil {
			current = e.ProfilePic
		}
		p := editPage(id, f, current)
		p.Error = MsgUpdateFailed
		h.render(c, h.fail(c, "update", err), "form.html", p)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		status := h.fail(c, "delete", err)
		rows, lerr := h.svc.List(c.Request.Context())
		if lerr != nil {
			h.log.WithError(lerr).Warn("web list after failed delete")
		}
		h.render(c, status, "list.html", page{Title: "Employees", Error: MsgDeleteFailed, Employees: rows})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// bindForm decodes the posted fields. A body that cannot be decoded is an
// invalid argument; the fields read so far are kept for re-rendering.
func bindForm(c *gin.Context, op string) (models.EmployeeFields, error) {
	var f models.EmployeeFields
	if err := c.ShouldBind(&f); err != nil {
		return f, utils.E(utils.CodeInvalidArgument, op, "invalid form", err)
	}
	return f, nil
}

func createPage(f models.EmployeeFields) page {
	return page{
		Title:  "Add Employee",
		Action: "/employees/new",
		Submit: "Add Employee",
		Fields: f,
		Types:  models.EmployeeTypes,
	}
}

func editPage(id string, f models.EmployeeFields, pic string) page {
	return page{
		Title:      "Edit Employee",
		Action:     "/employees/" + id + "/edit",
		Submit:     "Update Employee",
		Fields:     f,
		Types:      models.EmployeeTypes,
		ProfilePic: pic,
	}
}
