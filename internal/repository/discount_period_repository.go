package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lc-billing-api/internal/models"
)

const discountPeriodColumns = `id, student_id, percent, from_month, to_month, reason, created_at`

// DiscountPeriodRepository reads the time-bounded discount overrides attached
// to students.
type DiscountPeriodRepository struct {
	db *sqlx.DB
}

// NewDiscountPeriodRepository constructs the repository.
func NewDiscountPeriodRepository(db *sqlx.DB) *DiscountPeriodRepository {
	return &DiscountPeriodRepository{db: db}
}

// ListByStudent returns a student's discount periods in creation order.
func (r *DiscountPeriodRepository) ListByStudent(ctx context.Context, studentID string) ([]models.DiscountPeriod, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_discount_periods
	WHERE student_id = $1 ORDER BY created_at ASC, id ASC`, discountPeriodColumns)
	var periods []models.DiscountPeriod
	if err := r.db.SelectContext(ctx, &periods, query, studentID); err != nil {
		return nil, fmt.Errorf("list discount periods: %w", err)
	}
	return periods, nil
}

// ListByStudents batches period lookups for the generator, keyed by student.
func (r *DiscountPeriodRepository) ListByStudents(ctx context.Context, studentIDs []string) (map[string][]models.DiscountPeriod, error) {
	result := make(map[string][]models.DiscountPeriod, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM student_discount_periods
	WHERE student_id IN (?) ORDER BY created_at ASC, id ASC`, discountPeriodColumns), studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build discount period query: %w", err)
	}
	query = r.db.Rebind(query)

	var periods []models.DiscountPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, fmt.Errorf("list discount periods batch: %w", err)
	}
	for _, period := range periods {
		result[period.StudentID] = append(result[period.StudentID], period)
	}
	return result, nil
}
