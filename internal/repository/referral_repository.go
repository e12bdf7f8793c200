package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lc-billing-api/internal/models"
)

const referralColumns = `id, organization_id, referrer_student_id, referred_student_id,
	bonus_unlocked_at, bonus_applied_at, bonus_payment_id`

// ReferralRepository tracks the legacy one-time referral bonus flags.
type ReferralRepository struct {
	db *sqlx.DB
}

// NewReferralRepository constructs the repository.
func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// FindByReferred returns the referral pair where the given student was referred,
// or nil when none exists.
func (r *ReferralRepository) FindByReferred(ctx context.Context, referredStudentID string) (*models.Referral, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_referrals WHERE referred_student_id = $1`, referralColumns)
	var referral models.Referral
	if err := r.db.GetContext(ctx, &referral, query, referredStudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find referral by referred: %w", err)
	}
	return &referral, nil
}

// FindUnlockedUnapplied returns an unlocked-but-unspent bonus for the referrer,
// or nil when there is nothing to apply.
func (r *ReferralRepository) FindUnlockedUnapplied(ctx context.Context, referrerStudentID string) (*models.Referral, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_referrals
	WHERE referrer_student_id = $1 AND bonus_unlocked_at IS NOT NULL AND bonus_applied_at IS NULL
	ORDER BY bonus_unlocked_at ASC LIMIT 1`, referralColumns)
	var referral models.Referral
	if err := r.db.GetContext(ctx, &referral, query, referrerStudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find unlocked referral: %w", err)
	}
	return &referral, nil
}

// MarkUnlocked flips the bonus to spendable. The IS NULL guard keeps the flag
// single-shot under concurrent confirmations.
func (r *ReferralRepository) MarkUnlocked(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE student_referrals SET bonus_unlocked_at = $1
	WHERE id = $2 AND bonus_unlocked_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("unlock referral bonus: %w", err)
	}
	return nil
}
