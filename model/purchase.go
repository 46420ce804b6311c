package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Purchase statuses. A purchase starts as pending and transitions to exactly
// one terminal status, once.
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
	PurchaseStatusRefunded  = "refunded"
)

// CoursePurchase represents one payment attempt for a course
type CoursePurchase struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	UserID          string         `gorm:"type:uuid;not null;index" json:"user_id"`
	CourseID        string         `gorm:"type:uuid;not null;index" json:"course_id"`
	Amount          float64        `gorm:"not null" json:"amount"`
	Currency        string         `gorm:"type:varchar(10);default:'usd'" json:"currency"`
	Status          string         `gorm:"type:varchar(20);default:'pending';index" json:"status"` // pending, completed, failed, refunded
	PaymentIntentID string         `gorm:"type:varchar(100);uniqueIndex" json:"payment_intent_id"`
	PaymentMethod   string         `gorm:"type:varchar(50);default:'stripe'" json:"payment_method"`
	ReceiptURL      string         `json:"receipt_url,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`

	// Set when the payment completed but the access grant failed; the
	// reconcile cron job retries these until an access row exists.
	NeedsReconciliation bool `gorm:"default:false;index" json:"needs_reconciliation"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName specifies the table name for CoursePurchase
func (CoursePurchase) TableName() string {
	return "course_purchases"
}

// BeforeCreate assigns a UUID primary key
func (p *CoursePurchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// IsTerminal reports whether the purchase status can no longer change
func (p *CoursePurchase) IsTerminal() bool {
	return p.Status != PurchaseStatusPending
}

// CourseAccess is a durable access grant for a (user, course) pair.
// At most one row exists per pair; a nil ExpiresAt means perpetual access.
// Every grant traces back to exactly one purchase.
type CourseAccess struct {
	ID             string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	UserID         string         `gorm:"type:uuid;not null;uniqueIndex:idx_course_access_user_course" json:"user_id"`
	CourseID       string         `gorm:"type:uuid;not null;uniqueIndex:idx_course_access_user_course" json:"course_id"`
	PurchaseID     string         `gorm:"type:uuid;not null" json:"purchase_id"`
	AccessType     string         `gorm:"type:varchar(20);not null" json:"access_type"` // lifetime, subscription, trial
	StartsAt       time.Time      `gorm:"not null" json:"starts_at"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	LastAccessedAt *time.Time     `json:"last_accessed_at,omitempty"`

	// Relationships
	User     User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course   Course         `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
	Purchase CoursePurchase `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE" json:"purchase,omitempty"`
}

// TableName specifies the table name for CourseAccess
func (CourseAccess) TableName() string {
	return "course_access"
}

// BeforeCreate assigns a UUID primary key
func (a *CourseAccess) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// IsActive reports whether the grant is currently valid
func (a *CourseAccess) IsActive(now time.Time) bool {
	if a.ExpiresAt == nil {
		return true
	}
	return a.ExpiresAt.After(now)
}
