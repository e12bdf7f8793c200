package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentStatus tracks the enrollment lifecycle of a student.
type StudentStatus string

const (
	StudentActive  StudentStatus = "ACTIVE"
	StudentStopped StudentStatus = "STOPPED"
)

// Student is the directory projection of a learner. The billing engine reads
// fee and discount facts from it but never mutates the directory.
type Student struct {
	ID              string           `db:"id" json:"id"`
	OrganizationID  string           `db:"organization_id" json:"organization_id"`
	FullName        string           `db:"full_name" json:"full_name"`
	MonthlyFee      *decimal.Decimal `db:"monthly_fee" json:"monthly_fee,omitempty"`
	DiscountPercent decimal.Decimal  `db:"discount_percent" json:"discount_percent"`
	Status          StudentStatus    `db:"status" json:"status"`
	ActivatedAt     *time.Time       `db:"activated_at" json:"activated_at,omitempty"`
	StoppedAt       *time.Time       `db:"stopped_at" json:"stopped_at,omitempty"`
}

// Group is the directory projection of a study group.
type Group struct {
	ID               string          `db:"id" json:"id"`
	OrganizationID   string          `db:"organization_id" json:"organization_id"`
	Name             string          `db:"name" json:"name"`
	TeacherID        string          `db:"teacher_id" json:"teacher_id"`
	MonthlyFee       decimal.Decimal `db:"monthly_fee" json:"monthly_fee"`
	LessonsPerMonth  int             `db:"lessons_per_month" json:"lessons_per_month"`
	Active           bool            `db:"active" json:"active"`
}

// Enrollment joins an active student to one of their groups with every fact the
// generator needs to price a month.
type Enrollment struct {
	StudentID            string           `db:"student_id" json:"student_id"`
	GroupID              string           `db:"group_id" json:"group_id"`
	StudentFee           *decimal.Decimal `db:"student_fee" json:"student_fee,omitempty"`
	GroupFee             decimal.Decimal  `db:"group_fee" json:"group_fee"`
	BaseDiscountPercent  decimal.Decimal  `db:"base_discount_percent" json:"base_discount_percent"`
	PlannedStudyUntil    *time.Time       `db:"planned_study_until" json:"planned_study_until,omitempty"`
	LessonsPlanned       int              `db:"lessons_planned" json:"lessons_planned"`
	LessonsBillable      int              `db:"lessons_billable" json:"lessons_billable"`
}

// DiscountPeriod is a time-bounded discount override for a student. ToMonth is
// an exclusive upper bound; nil means open-ended.
type DiscountPeriod struct {
	ID        string          `db:"id" json:"id"`
	StudentID string          `db:"student_id" json:"student_id"`
	Percent   decimal.Decimal `db:"percent" json:"percent"`
	FromMonth time.Time       `db:"from_month" json:"from_month"`
	ToMonth   *time.Time      `db:"to_month" json:"to_month,omitempty"`
	Reason    string          `db:"reason" json:"reason"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Referral links a referred student to their referrer. The bonus unlocks when
// the referred student's first payment is collected and is spent on exactly one
// generated payment of the referrer.
type Referral struct {
	ID                string     `db:"id" json:"id"`
	OrganizationID    string     `db:"organization_id" json:"organization_id"`
	ReferrerStudentID string     `db:"referrer_student_id" json:"referrer_student_id"`
	ReferredStudentID string     `db:"referred_student_id" json:"referred_student_id"`
	BonusUnlockedAt   *time.Time `db:"bonus_unlocked_at" json:"bonus_unlocked_at,omitempty"`
	BonusAppliedAt    *time.Time `db:"bonus_applied_at" json:"bonus_applied_at,omitempty"`
	BonusPaymentID    *string    `db:"bonus_payment_id" json:"bonus_payment_id,omitempty"`
}
