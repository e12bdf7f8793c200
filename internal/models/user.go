package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleCashier    UserRole = "CASHIER"
	RoleTeacher    UserRole = "TEACHER"
)

// User is the directory projection consumed by the billing engine. Directory
// management itself lives outside this service; only compensation-relevant
// fields are read here.
type User struct {
	ID                string          `db:"id" json:"id"`
	OrganizationID    string          `db:"organization_id" json:"organization_id"`
	FullName          string          `db:"full_name" json:"full_name"`
	Role              UserRole        `db:"role" json:"role"`
	Salary            decimal.Decimal `db:"salary" json:"salary"`
	CommissionPercent decimal.Decimal `db:"commission_percent" json:"commission_percent"`
	Active            bool            `db:"active" json:"active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
