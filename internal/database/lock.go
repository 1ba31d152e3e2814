package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithRowLock adds a best-effort, non-blocking row lock to the query.
// On postgres this is SELECT ... FOR UPDATE SKIP LOCKED, so a check held
// by a peer worker simply falls out of the result set. sqlite serializes
// writers on its own and does not support row locks; there the query runs
// unlocked, which is fine for the single-worker test setup.
func WithRowLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{
		Strength: clause.LockingStrengthUpdate,
		Options:  clause.LockingOptionsSkipLocked,
	})
}
