package models

import (
	"strings"
	"time"
)

type EmployeeType string

const (
	TypeFullTime EmployeeType = "Full-time"
	TypePartTime EmployeeType = "Part-time"
	TypeContract EmployeeType = "Contract"
	TypeIntern   EmployeeType = "Intern"
)

// EmployeeTypes is the display order used by forms.
var EmployeeTypes = []EmployeeType{TypeFullTime, TypePartTime, TypeContract, TypeIntern}

func (t EmployeeType) Valid() bool {
	for _, v := range EmployeeTypes {
		if t == v {
			return true
		}
	}
	return false
}

type Employee struct {
	ID         string       `gorm:"column:id;type:uuid;primaryKey" json:"_id"`
	Name       string       `gorm:"column:name;type:text;not null" json:"name"`
	Email      string       `gorm:"column:email;type:text;not null" json:"email"`
	Phone      string       `gorm:"column:phone;type:text;not null" json:"phone"`
	Department string       `gorm:"column:department;type:text;not null" json:"department"`
	Type       EmployeeType `gorm:"column:type;type:text;not null" json:"type"`

	// relative stored path, e.g. "uploads/1718000000000.png"; empty when no image
	ProfilePic string `gorm:"column:profile_pic;type:text;not null;default:''" json:"profilePic"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"createdAt"`
}

func (Employee) TableName() string { return "employees" }

// EmployeeFields are the caller-supplied attributes; all five are required on
// both create and update.
type EmployeeFields struct {
	Name       string       `form:"name" json:"name"`
	Email      string       `form:"email" json:"email"`
	Phone      string       `form:"phone" json:"phone"`
	Department string       `form:"department" json:"department"`
	Type       EmployeeType `form:"type" json:"type"`
}

func (f EmployeeFields) Normalize() EmployeeFields {
	return EmployeeFields{
		Name:       strings.TrimSpace(f.Name),
		Email:      strings.TrimSpace(f.Email),
		Phone:      strings.TrimSpace(f.Phone),
		Department: strings.TrimSpace(f.Department),
		Type:       EmployeeType(strings.TrimSpace(string(f.Type))),
	}
}

// Missing lists the wire names of required fields that are empty.
func (f EmployeeFields) Missing() []string {
	var out []string
	if f.Name == "" {
		out = append(out, "name")
	}
	if f.Email == "" {
		out = append(out, "email")
	}
	if f.Phone == "" {
		out = append(out, "phone")
	}
	if f.Department == "" {
		out = append(out, "department")
	}
	if f.Type == "" {
		out = append(out, "type")
	}
	return out
}

func (e *Employee) Apply(f EmployeeFields) {
	e.Name = f.Name
	e.Email = f.Email
	e.Phone = f.Phone
	e.Department = f.Department
	e.Type = f.Type
}

func (e Employee) Fields() EmployeeFields {
	return EmployeeFields{
		Name:       e.Name,
		Email:      e.Email,
		Phone:      e.Phone,
		Department: e.Department,
		Type:       e.Type,
	}
}
