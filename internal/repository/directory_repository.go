package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lc-billing-api/internal/models"
)

// DirectoryRepository provides the read accessors this engine consumes from
// the platform's directory tables (students, groups, users). It never writes.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// ActiveEnrollments joins active students to their groups with the fee and
// discount facts the generator prices from.
func (r *DirectoryRepository) ActiveEnrollments(ctx context.Context, orgID string) ([]models.Enrollment, error) {
	const query = `
SELECT
	s.id AS student_id,
	g.id AS group_id,
	s.monthly_fee AS student_fee,
	g.monthly_fee AS group_fee,
	s.discount_percent AS base_discount_percent,
	s.planned_study_until AS planned_study_until,
	g.lessons_per_month AS lessons_planned,
	g.lessons_per_month AS lessons_billable
FROM students s
JOIN student_groups sg ON sg.student_id = s.id
JOIN groups g ON g.id = sg.group_id AND g.active
WHERE s.organization_id = $1 AND s.status = 'ACTIVE'
ORDER BY s.id, g.id`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, orgID); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// FindUser returns a user scoped to the organization. sql.ErrNoRows passes
// through for the service layer to translate into NotFound.
func (r *DirectoryRepository) FindUser(ctx context.Context, orgID, userID string) (*models.User, error) {
	const query = `SELECT id, organization_id, full_name, role, salary, commission_percent, active, created_at
	FROM users WHERE id = $1 AND organization_id = $2`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, userID, orgID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// FindGroup fetches one group.
func (r *DirectoryRepository) FindGroup(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, organization_id, name, teacher_id, monthly_fee, lessons_per_month, active
	FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// CompensatedUsers lists everyone owed a salary row for a month: teachers with
// a salary or commission, and any other active staff with a salary.
func (r *DirectoryRepository) CompensatedUsers(ctx context.Context, orgID string) ([]models.User, error) {
	const query = `SELECT id, organization_id, full_name, role, salary, commission_percent, active, created_at
	FROM users
	WHERE organization_id = $1 AND active
	  AND (
		(role = 'TEACHER' AND (salary > 0 OR commission_percent > 0))
		OR (role <> 'TEACHER' AND salary > 0)
	  )
	ORDER BY full_name ASC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, orgID); err != nil {
		return nil, fmt.Errorf("list compensated users: %w", err)
	}
	return users, nil
}
