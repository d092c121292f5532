package store

import (
	"context"

	"gorm.io/gorm"
)

// WithTx runs fn within a single database transaction, passing a Store bound
// to that transaction. Any error returned by fn rolls the transaction back;
// a nil return commits it. Grounded on the teacher's ad-hoc
// db.Transaction(...) usage (e.g. DeleteShare), generalized into a reusable
// unit-of-work boundary for the orchestrator's multi-row Session/Target
// writes.
func (s *GORMStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GORMStore{db: tx, config: s.config})
	})
}
