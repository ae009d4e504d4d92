// Package memory provides in-memory repository implementations with the same
// invariants as the GORM ones. Used by service tests and local runs without
// MySQL.
package memory

import (
	"tontinehub/internal/adapters/persistence/repositories"
)

var (
	_ repositories.UserRepository        = (*UserRepository)(nil)
	_ repositories.PoolRepository        = (*PoolRepository)(nil)
	_ repositories.ParticipantRepository = (*ParticipantRepository)(nil)
	_ repositories.PaymentRepository     = (*PaymentRepository)(nil)
	_ repositories.DrawRepository        = (*DrawRepository)(nil)
)
