package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus reflects the collection state of a monthly obligation.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// Payment is one student's obligation for one group and one billing month.
// Rows are unique on (student, group, for_month) and are never deleted; the
// collection operations only ever move amount_paid and status forward.
type Payment struct {
	ID                string          `db:"id" json:"id"`
	OrganizationID    string          `db:"organization_id" json:"organization_id"`
	StudentID         string          `db:"student_id" json:"student_id"`
	GroupID           string          `db:"group_id" json:"group_id"`
	ForMonth          time.Time       `db:"for_month" json:"for_month"`
	AmountDue         decimal.Decimal `db:"amount_due" json:"amount_due"`
	AmountPaid        decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	Status            PaymentStatus   `db:"status" json:"status"`
	DueDate           time.Time       `db:"due_date" json:"due_date"`
	HardDueDate       time.Time       `db:"hard_due_date" json:"hard_due_date"`
	LessonsPlanned    int             `db:"lessons_planned" json:"lessons_planned"`
	LessonsBillable   int             `db:"lessons_billable" json:"lessons_billable"`
	PlannedStudyUntil *time.Time      `db:"planned_study_until" json:"planned_study_until,omitempty"`
	RefundedAmount    decimal.Decimal `db:"refunded_amount" json:"refunded_amount"`
	RefundedAt        *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// ReceiptStatus is the confirmation state of a cash-handling event.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "PENDING"
	ReceiptConfirmed ReceiptStatus = "CONFIRMED"
	ReceiptRejected  ReceiptStatus = "REJECTED"
)

// PaymentReceipt records a discrete cash-handling event against a payment. It
// exists for accountability: confirming a receipt never mutates the payment's
// amount_paid, which the pay operations maintain independently.
type PaymentReceipt struct {
	ID                        string          `db:"id" json:"id"`
	PaymentID                 string          `db:"payment_id" json:"payment_id"`
	Amount                    decimal.Decimal `db:"amount" json:"amount"`
	Status                    ReceiptStatus   `db:"status" json:"status"`
	ReceivedByID              string          `db:"received_by_id" json:"received_by_id"`
	ReceivedAt                time.Time       `db:"received_at" json:"received_at"`
	ConfirmedByID             *string         `db:"confirmed_by_id" json:"confirmed_by_id,omitempty"`
	ConfirmedAt               *time.Time      `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ReceiverCommissionPercent decimal.Decimal `db:"receiver_commission_percent" json:"receiver_commission_percent"`
	ReceiverCommissionAmount  decimal.Decimal `db:"receiver_commission_amount" json:"receiver_commission_amount"`
}
