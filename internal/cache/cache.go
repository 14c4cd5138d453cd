package cache

import (
	"context"
	"time"

	"github.com/yoockh/staffbook/internal/models"
)

const (
	DefaultTTL = 5 * time.Minute
	keyPrefix  = "employee:"
)

// EmployeeCache is a read-through cache for single employee lookups.
type EmployeeCache interface {
	Get(ctx context.Context, id string) (e *models.Employee, hit bool, err error)
	Set(ctx context.Context, e *models.Employee) error
	Invalidate(ctx context.Context, ids ...string) error
}

func EmployeeKey(id string) string { return keyPrefix + id }
