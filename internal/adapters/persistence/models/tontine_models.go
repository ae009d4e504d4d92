package models

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Tontine Tables: Pool / Members / Rounds
// ============================================================

// Pool status
const (
	PoolStatusPending   = "PENDING"
	PoolStatusActive    = "ACTIVE"
	PoolStatusSuspended = "SUSPENDED"
	PoolStatusClosed    = "CLOSED"
)

// Pool frequency
const (
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
)

// Opt-in window bounds (minutes)
const (
	OptInWindowDefaultMins = 15
	OptInWindowMinMins     = 5
	OptInWindowMaxMins     = 1440
)

// Pool represents a rotating savings group
type Pool struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Amount         int64          `gorm:"not null" json:"amount"` // cotization per member, minor currency unit
	Frequency      string         `gorm:"size:20;not null;default:'MONTHLY'" json:"frequency"`
	Status         string         `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	OptInWindowMin int            `gorm:"not null;default:15" json:"opt_in_window_min"`
	PenaltyRate    float64        `gorm:"type:decimal(5,2);default:0" json:"penalty_rate"`
	TreasurerID    *uint          `json:"treasurer_id"`
	CreatedBy      uint           `gorm:"not null" json:"created_by"`
	ActivatedAt    *time.Time     `json:"activated_at"`
	ClosedAt       *time.Time     `json:"closed_at"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Treasurer *User        `gorm:"foreignKey:TreasurerID" json:"treasurer,omitempty"`
	Members   []PoolMember `gorm:"foreignKey:PoolID" json:"members,omitempty"`
}

func (Pool) TableName() string {
	return "pools"
}

// IsActive returns true if the pool can run draws
func (p *Pool) IsActive() bool {
	return p.Status == PoolStatusActive
}

// PoolMember represents a roster entry in a pool
type PoolMember struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PoolID    uint       `gorm:"not null;uniqueIndex:idx_pool_user" json:"pool_id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_pool_user" json:"user_id"`
	Position  int        `gorm:"not null;default:0" json:"position"` // roster order, stable candidate ordering
	HasWon    bool       `gorm:"default:false;index" json:"has_won"`
	WonAt     *time.Time `json:"won_at"`
	WonAmount *int64     `json:"won_amount"`
	JoinedAt  time.Time  `gorm:"autoCreateTime" json:"joined_at"`

	// Relations
	Pool *Pool `gorm:"foreignKey:PoolID" json:"pool,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (PoolMember) TableName() string {
	return "pool_members"
}

// Participation decision (three-state, no timestamp tri-state tricks)
const (
	DecisionUnanswered = "UNANSWERED"
	DecisionOptedIn    = "OPTED_IN"
	DecisionOptedOut   = "OPTED_OUT"
)

// RoundParticipant holds one member's opt-in state for one round.
// One row per (pool, round, user) so member writes never contend with each other.
type RoundParticipant struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	PoolID       uint       `gorm:"not null;uniqueIndex:idx_pool_round_user" json:"pool_id"`
	RoundNumber  int        `gorm:"not null;uniqueIndex:idx_pool_round_user" json:"round_number"`
	UserID       uint       `gorm:"not null;uniqueIndex:idx_pool_round_user" json:"user_id"`
	Decision     string     `gorm:"size:20;not null;default:'UNANSWERED'" json:"decision"`
	NotifiedAt   *time.Time `json:"notified_at"`
	OptedInAt    *time.Time `json:"opted_in_at"` // set on any explicit response, nil while unanswered
	AutoEnrolled bool       `gorm:"default:false" json:"auto_enrolled"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (RoundParticipant) TableName() string {
	return "round_participants"
}

// ============================================================
// Tontine Tables: Payments
// ============================================================

// Payment status
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusValidated = "VALIDATED"
	PaymentStatusRejected  = "REJECTED"
)

// Payment represents a cotization payment for one installment
type Payment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	PoolID      uint       `gorm:"not null;index:idx_pool_installment" json:"pool_id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	Installment int        `gorm:"not null;index:idx_pool_installment" json:"installment"` // matches round number
	Amount      int64      `gorm:"not null" json:"amount"`
	Status      string     `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	Reference   string     `gorm:"size:50" json:"reference"`
	ValidatedBy *uint      `json:"validated_by"`
	ValidatedAt *time.Time `json:"validated_at"`
	RejectedFor string     `gorm:"type:text" json:"rejected_for,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

// ============================================================
// Tontine Tables: Draws (round ledger)
// ============================================================

// Draw method
const (
	DrawMethodRandom = "RANDOM"
	DrawMethodManual = "MANUAL"
)

// Draw status
const (
	DrawStatusCompleted = "COMPLETED"
	DrawStatusCancelled = "CANCELLED"
)

// AuditCandidate is one entry of the frozen candidate list stored with a draw
type AuditCandidate struct {
	UserID       uint   `json:"user_id"`
	MembNo       string `json:"memb_no,omitempty"`
	AutoEnrolled bool   `json:"auto_enrolled"`
}

// DrawAudit is the audit payload stored as JSON with every draw record.
// It holds everything needed to replay the selection.
type DrawAudit struct {
	Candidates  []AuditCandidate `json:"candidates"` // stable order at selection time
	RandomValue int              `json:"random_value"`
	Policy      string           `json:"policy"`
	StartedBy   uint             `json:"started_by,omitempty"`
}

// Draw represents one committed round. Immutable except the cancellation flip.
type Draw struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Reference    string     `gorm:"uniqueIndex;size:40;not null" json:"reference"`
	PoolID       uint       `gorm:"not null;uniqueIndex:idx_pool_round" json:"pool_id"`
	RoundNumber  int        `gorm:"not null;uniqueIndex:idx_pool_round" json:"round_number"`
	WinnerID     uint       `gorm:"not null;index" json:"winner_id"`
	Amount       int64      `gorm:"not null" json:"amount"`
	Method       string     `gorm:"size:20;not null;default:'RANDOM'" json:"method"`
	Status       string     `gorm:"size:20;not null;default:'COMPLETED'" json:"status"`
	Audit        string     `gorm:"type:text" json:"-"` // DrawAudit JSON
	CancelReason string     `gorm:"type:text" json:"cancel_reason,omitempty"`
	CancelledBy  *uint      `json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Winner *User `gorm:"foreignKey:WinnerID" json:"winner,omitempty"`
}

func (Draw) TableName() string {
	return "draws"
}

// IsCancelled returns true if the draw was cancelled after commit
func (d *Draw) IsCancelled() bool {
	return d.Status == DrawStatusCancelled
}
