package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/yoockh/staffbook/internal/models"
	"github.com/yoockh/staffbook/internal/repositories"
	"github.com/yoockh/staffbook/internal/utils"
	"gorm.io/gorm"
)

type employeeRepo struct {
	db *gorm.DB
}

func NewEmployeeRepo(db *gorm.DB) repositories.EmployeeRepository {
	return &employeeRepo{db: db}
}

func (r *employeeRepo) List(ctx context.Context) ([]models.Employee, error) {
	rows := make([]models.Employee, 0)
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *employeeRepo) Search(ctx context.Context, q string) ([]models.Employee, error) {
	pattern := "%" + escapeLike(q) + "%"

	rows := make([]models.Employee, 0)
	err := r.db.WithContext(ctx).
		Where("name ILIKE ? OR type ILIKE ?", pattern, pattern).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *employeeRepo) GetByID(ctx context.Context, id string) (*models.Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrNotFound
	}

	var row models.Employee
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *employeeRepo) Insert(ctx context.Context, e *models.Employee) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *employeeRepo) Update(ctx context.Context, id string, f models.EmployeeFields, profilePic string) (*models.Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrNotFound
	}

	set := map[string]any{
		"name":       f.Name,
		"email":      f.Email,
		"phone":      f.Phone,
		"department": f.Department,
		"type":       string(f.Type),
	}
	if profilePic != "" {
		set["profile_pic"] = profilePic
	}

	res := r.db.WithContext(ctx).
		Model(&models.Employee{}).
		Where("id = ?", id).
		Updates(set)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *employeeRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return utils.ErrNotFound
	}

	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Employee{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *employeeRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes q match literally inside an ILIKE pattern.
func escapeLike(q string) string {
	return likeEscaper.Replace(q)
}
