package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/staffbook/internal/models"
	"github.com/yoockh/staffbook/internal/storage"
	"github.com/yoockh/staffbook/internal/utils"
)

type stubService struct {
	rows     []models.Employee
	err      error
	searched string
	written  models.EmployeeFields
	deleted  string
}

func (s *stubService) List(ctx context.Context) ([]models.Employee, error) { return s.rows, s.err }

func (s *stubService) Search(ctx context.Context, q string) ([]models.Employee, error) {
	s.searched = q
	return s.rows, s.err
}

func (s *stubService) Get(ctx context.Context, id string) (*models.Employee, error) {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return &s.rows[i], nil
		}
	}
	return nil, utils.E(utils.CodeNotFound, "stub.Get", "Employee not found", utils.ErrNotFound)
}

func (s *stubService) Create(ctx context.Context, f models.EmployeeFields, pic *storage.Upload) (*models.Employee, error) {
	s.written = f
	if s.err != nil {
		return nil, s.err
	}
	return &models.Employee{ID: "new"}, nil
}

func (s *stubService) Update(ctx context.Context, id string, f models.EmployeeFields, pic *storage.Upload) (*models.Employee, error) {
	s.written = f
	if s.err != nil {
		return nil, s.err
	}
	return &models.Employee{ID: id}, nil
}

func (s *stubService) Delete(ctx context.Context, id string) error {
	s.deleted = id
	return s.err
}

func newRouter(svc *stubService, live bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	l := logrus.New()
	l.SetOutput(io.Discard)

	r := gin.New()
	r.SetHTMLTemplate(Templates())
	NewHandler(svc, l, live).Register(r)
	return r
}

func alice() models.Employee {
	return models.Employee{
		ID: "a1", Name: "Alice Smith", Email: "a@x.com", Phone: "1", Department: "Eng",
		Type: models.TypeIntern, ProfilePic: "uploads/1.png", CreatedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func do(r *gin.Engine, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	svc := &stubService{rows: []models.Employee{alice()}}
	r := newRouter(svc, false)

	w := do(r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alice Smith")
	assert.Contains(t, w.Body.String(), `src="/uploads/1.png"`)
	assert.NotContains(t, w.Body.String(), "/ws/employees")

	w = do(r, http.MethodGet, "/?q=in", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in", svc.searched)
	assert.Contains(t, w.Body.String(), `value="in"`)
}

func TestIndexLive(t *testing.T) {
	w := do(newRouter(&stubService{}, true), http.MethodGet, "/", nil)
	assert.Contains(t, w.Body.String(), "/ws/employees")
	assert.Contains(t, w.Body.String(), "No employees found.")
}

func TestIndexError(t *testing.T) {
	svc := &stubService{err: utils.E(utils.CodeInternal, "stub.List", "failed", errors.New("db down"))}
	w := do(newRouter(svc, false), http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), MsgFetchAll)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestCreateRedirects(t *testing.T) {
	svc := &stubService{}
	form := url.Values{"name": {"Dana"}, "email": {"d@x.com"}, "phone": {"555"}, "department": {"Eng"}, "type": {"Full-time"}}

	w := do(newRouter(svc, false), http.MethodPost, "/employees/new", form)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, models.TypeFullTime, svc.written.Type)
}

func TestCreateFailureKeepsInput(t *testing.T) {
	svc := &stubService{err: utils.E(utils.CodeInvalidArgument, "stub.Create", "missing required fields: phone", nil)}
	form := url.Values{"name": {"Dana"}, "type": {"Contract"}}

	w := do(newRouter(svc, false), http.MethodPost, "/employees/new", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), MsgAddFailed)
	assert.Contains(t, w.Body.String(), `value="Dana"`)
	assert.Contains(t, w.Body.String(), `<option value="Contract" selected>`)
}

func TestMalformedFormIsRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &stubService{rows: []models.Employee{alice()}}
	l, hook := logtest.NewNullLogger()
	r := gin.New()
	r.SetHTMLTemplate(Templates())
	NewHandler(svc, l, false).Register(r)

	for _, tc := range []struct {
		target string
		msg    string
	}{
		{"/employees/new", MsgAddFailed},
		{"/employees/a1/edit", MsgUpdateFailed},
	} {
		hook.Reset()
		req := httptest.NewRequest(http.MethodPost, tc.target, strings.NewReader("garbage"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, tc.target)
		assert.Contains(t, w.Body.String(), tc.msg)
		assert.Equal(t, models.EmployeeFields{}, svc.written, "service is not called")

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		err, _ := entry.Data[logrus.ErrorKey].(error)
		require.Error(t, err)
		assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	}
}

func TestDetailAndEdit(t *testing.T) {
	r := newRouter(&stubService{rows: []models.Employee{alice()}}, false)

	w := do(r, http.MethodGet, "/employees/a1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@x.com")
	assert.Contains(t, w.Body.String(), "2024-06-01 09:00")

	w = do(r, http.MethodGet, "/employees/a1/edit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/employees/a1/edit"`)
	assert.Contains(t, w.Body.String(), `<option value="Intern" selected>`)
	assert.Contains(t, w.Body.String(), `src="/uploads/1.png"`)

	w = do(r, http.MethodGet, "/employees/zzz", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), MsgFetchOne)
}

func TestUpdate(t *testing.T) {
	svc := &stubService{rows: []models.Employee{alice()}}
	r := newRouter(svc, false)
	form := url.Values{"name": {"Alice Jones"}, "email": {"a@x.com"}, "phone": {"1"}, "department": {"Eng"}, "type": {"Intern"}}

	w := do(r, http.MethodPost, "/employees/a1/edit", form)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "Alice Jones", svc.written.Name)

	svc.err = errors.New("boom")
	w = do(r, http.MethodPost, "/employees/a1/edit", form)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), MsgUpdateFailed)
	assert.Contains(t, w.Body.String(), `src="/uploads/1.png"`)
}

func TestDelete(t *testing.T) {
	svc := &stubService{rows: []models.Employee{alice()}}
	r := newRouter(svc, false)

	w := do(r, http.MethodPost, "/employees/a1/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "a1", svc.deleted)

	svc.err = utils.E(utils.CodeNotFound, "stub.Delete", "Employee not found", utils.ErrNotFound)
	w = do(r, http.MethodPost, "/employees/a1/delete", url.Values{})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), MsgDeleteFailed)
}
