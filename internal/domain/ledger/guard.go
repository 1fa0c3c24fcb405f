package ledger

import (
	"collectsync-service/internal/pkg/xerrors"
	"collectsync-service/internal/store"
)

// Guard enforces the entry invariants at the store boundary: amount,
// counterpart, mode, staff and timestamp are write-once; only the
// verification status (and remarks riding with it) may change afterwards.
func Guard() store.Guard {
	return func(old store.Document, hadOld bool, next store.Document) error {
		var entry Entry
		if err := next.Decode(&entry); err != nil {
			return xerrors.Wrap(err, "malformed ledger entry")
		}
		if err := entry.Validate(); err != nil {
			return err
		}
		if !hadOld {
			return nil
		}

		var prev Entry
		if err := old.Decode(&prev); err != nil {
			// A corrupt stored entry must not block the repair write.
			return nil
		}
		if !prev.Amount.Equal(entry.Amount) ||
			prev.Counterpart != entry.Counterpart ||
			prev.Mode != entry.Mode ||
			prev.Staff != entry.Staff ||
			!prev.At.Equal(entry.At) {
			return xerrors.ErrImmutableField
		}
		return nil
	}
}
