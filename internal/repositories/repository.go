package repositories

import (
	"context"

	"github.com/yoockh/staffbook/internal/models"
)

// EmployeeRepository is the record store. Lookups by an id that is absent or
// not well formed for the backend return utils.ErrNotFound.
type EmployeeRepository interface {
	List(ctx context.Context) ([]models.Employee, error)
	Search(ctx context.Context, q string) ([]models.Employee, error)
	GetByID(ctx context.Context, id string) (*models.Employee, error)
	Insert(ctx context.Context, e *models.Employee) error
	// Update overwrites the five fields; profilePic is only written when non-empty.
	Update(ctx context.Context, id string, f models.EmployeeFields, profilePic string) (*models.Employee, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
