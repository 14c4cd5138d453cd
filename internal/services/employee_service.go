package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/staffbook/internal/cache"
	"github.com/yoockh/staffbook/internal/events"
	"github.com/yoockh/staffbook/internal/models"
	"github.com/yoockh/staffbook/internal/repositories"
	"github.com/yoockh/staffbook/internal/storage"
	"github.com/yoockh/staffbook/internal/utils"
)

const MsgEmployeeNotFound = "Employee not found"

type EmployeeService interface {
	List(ctx context.Context) ([]models.Employee, error)
	Search(ctx context.Context, q string) ([]models.Employee, error)
	Get(ctx context.Context, id string) (*models.Employee, error)
	Create(ctx context.Context, f models.EmployeeFields, pic *storage.Upload) (*models.Employee, error)
	Update(ctx context.Context, id string, f models.EmployeeFields, pic *storage.Upload) (*models.Employee, error)
	Delete(ctx context.Context, id string) error
}

// FileReaper retires a stored image that no record references any more.
type FileReaper interface {
	Reap(ctx context.Context, storedPath string) error
}

// EmployeeDeps wires the service. Cache, Events and Reaper are optional; a nil
// Reaper keeps replaced and deleted images on disk.
type EmployeeDeps struct {
	Repo   repositories.EmployeeRepository
	Files  storage.FileStore
	Cache  cache.EmployeeCache
	Events events.Publisher
	Reaper FileReaper
	Logger *logrus.Logger
	Now    func() time.Time
}

type employeeService struct {
	repo   repositories.EmployeeRepository
	files  storage.FileStore
	cache  cache.EmployeeCache
	events events.Publisher
	reaper FileReaper
	log    *logrus.Logger
	now    func() time.Time
}

func NewEmployeeService(d EmployeeDeps) EmployeeService {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &employeeService{
		repo:   d.Repo,
		files:  d.Files,
		cache:  d.Cache,
		events: d.Events,
		reaper: d.Reaper,
		log:    d.Logger,
		now:    d.Now,
	}
}

func (s *employeeService) List(ctx context.Context) ([]models.Employee, error) {
	const op = "EmployeeService.List"

	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list employees", err)
	}
	return rows, nil
}

func (s *employeeService) Search(ctx context.Context, q string) ([]models.Employee, error) {
	const op = "EmployeeService.Search"

	rows, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to search employees", err)
	}
	return rows, nil
}

func (s *employeeService) Get(ctx context.Context, id string) (*models.Employee, error) {
	const op = "EmployeeService.Get"

	if s.cache != nil {
		e, hit, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("employee_id", id).Warn("employee cache read failed")
		}
		if hit {
			return e, nil
		}
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(op, "failed to get employee", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, e); err != nil {
			s.log.WithError(err).WithField("employee_id", id).Warn("employee cache write failed")
		}
	}
	return e, nil
}

func (s *employeeService) Create(ctx context.Context, f models.EmployeeFields, pic *storage.Upload) (*models.Employee, error) {
	const op = "EmployeeService.Create"

	f = f.Normalize()
	if err := validate(op, f); err != nil {
		return nil, err
	}

	storedPath, err := s.store(ctx, op, pic)
	if err != nil {
		return nil, err
	}

	e := &models.Employee{
		ProfilePic: storedPath,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
	}
	e.Apply(f)

	if err := s.repo.Insert(ctx, e); err != nil {
		s.discard(ctx, storedPath)
		return nil, utils.E(utils.CodeInternal, op, "failed to create employee", err)
	}

	s.publish(ctx, events.KindCreated, e.ID)
	return e, nil
}

func (s *employeeService) Update(ctx context.Context, id string, f models.EmployeeFields, pic *storage.Upload) (*models.Employee, error) {
	const op = "EmployeeService.Update"

	// an unknown id is reported before anything about the body
	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(op, "failed to get employee", err)
	}

	f = f.Normalize()
	if err := validate(op, f); err != nil {
		return nil, err
	}

	storedPath, err := s.store(ctx, op, pic)
	if err != nil {
		return nil, err
	}

	e, err := s.repo.Update(ctx, id, f, storedPath)
	if err != nil {
		s.discard(ctx, storedPath)
		return nil, notFoundOr(op, "failed to update employee", err)
	}

	s.invalidate(ctx, id)
	if storedPath != "" && prev.ProfilePic != "" && prev.ProfilePic != storedPath {
		s.reap(ctx, prev.ProfilePic)
	}
	s.publish(ctx, events.KindUpdated, id)
	return e, nil
}

func (s *employeeService) Delete(ctx context.Context, id string) error {
	const op = "EmployeeService.Delete"

	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(op, "failed to get employee", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(op, "failed to delete employee", err)
	}

	s.invalidate(ctx, id)
	if prev.ProfilePic != "" {
		s.reap(ctx, prev.ProfilePic)
	}
	s.publish(ctx, events.KindDeleted, id)
	return nil
}

func validate(op string, f models.EmployeeFields) error {
	if missing := f.Missing(); len(missing) > 0 {
		return utils.E(utils.CodeInvalidArgument, op, "missing required fields: "+strings.Join(missing, ", "), nil)
	}
	if !f.Type.Valid() {
		names := make([]string, len(models.EmployeeTypes))
		for i, t := range models.EmployeeTypes {
			names[i] = string(t)
		}
		return utils.E(utils.CodeInvalidArgument, op, "type must be one of: "+strings.Join(names, ", "), nil)
	}
	return nil
}

func notFoundOr(op, msg string, err error) error {
	if errors.Is(err, utils.ErrNotFound) {
		return utils.E(utils.CodeNotFound, op, MsgEmployeeNotFound, err)
	}
	return utils.E(utils.CodeInternal, op, msg, err)
}

// store writes pic (if any) and returns its stored path, "" without a picture.
func (s *employeeService) store(ctx context.Context, op string, pic *storage.Upload) (string, error) {
	if pic == nil || pic.Body == nil {
		return "", nil
	}
	if s.files == nil {
		return "", utils.E(utils.CodeInternal, op, "file store is not configured", nil)
	}
	p, err := s.files.Upload(ctx, pic.Filename, pic.ContentType, pic.Body)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to store profile image", err)
	}
	return p, nil
}

// discard undoes an upload whose record write failed.
func (s *employeeService) discard(ctx context.Context, storedPath string) {
	if storedPath == "" {
		return
	}
	if err := s.files.Delete(ctx, storedPath); err != nil {
		s.log.WithError(err).WithField("path", storedPath).Error("failed to remove image after record write failure")
	}
}

func (s *employeeService) reap(ctx context.Context, storedPath string) {
	if s.reaper == nil {
		return
	}
	if err := s.reaper.Reap(ctx, storedPath); err != nil {
		s.log.WithError(err).WithField("path", storedPath).Warn("failed to reap image")
	}
}

func (s *employeeService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.WithError(err).WithField("employee_id", id).Warn("employee cache invalidation failed")
	}
}

func (s *employeeService) publish(ctx context.Context, kind events.Kind, id string) {
	if s.events == nil {
		return
	}
	ev := events.Event{Kind: kind, EmployeeID: id, At: s.now().UTC()}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"employee_id": id,
			"event":       kind,
		}).Warn("failed to publish employee event")
	}
}
