package services

// Note: DrawService implementation is in draw_service.go
// Note: PoolService implementation is in pool_service.go

// Notification message kinds
const (
	NotifyKindConfirm  = "ROUND_CONFIRM"  // please confirm participation
	NotifyKindWinner   = "ROUND_WINNER"   // you won this round
	NotifyKindResult   = "ROUND_RESULT"   // round outcome for non-winners
	NotifyKindReminder = "PAYMENT_REMINDER"
)

// Notifier is the outbound notification contract. Delivery is best-effort:
// implementations may fail, callers must never let that fail a round.
type Notifier interface {
	Notify(userID uint, kind string, payload map[string]interface{}) error
}

// Input DTOs

// CreatePoolInput for creating a pool
type CreatePoolInput struct {
	Name           string  `json:"name" validate:"required"`
	Amount         int64   `json:"amount" validate:"required,gt=0"`
	Frequency      string  `json:"frequency"`
	OptInWindowMin int     `json:"opt_in_window_min"`
	PenaltyRate    float64 `json:"penalty_rate"`
}

// AddMemberInput for adding a roster entry
type AddMemberInput struct {
	UserID   uint `json:"user_id" validate:"required"`
	Position int  `json:"position"`
}

// RecordPaymentInput for payment intake
type RecordPaymentInput struct {
	PoolID      uint   `json:"pool_id" validate:"required"`
	UserID      uint   `json:"user_id" validate:"required"`
	Installment int    `json:"installment" validate:"required,gt=0"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Reference   string `json:"reference"`
}
