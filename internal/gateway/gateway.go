package gateway

import "procure/db"

// Notifier receives lifecycle events after the authoritative state change
// has committed. Implementations own their delivery and retry policy; the
// core never waits on them and never retries on their behalf.
type Notifier interface {
	OnAwarded(item db.WorkItem, contract db.AwardOfContract)
	OnCancelled(workOrderID int, reason string)
	OnBillCertified(item db.WorkItem, payment db.PaymentRecord)
}

// Nop discards all events. Useful in tests and tools.
type Nop struct{}

func (Nop) OnAwarded(db.WorkItem, db.AwardOfContract) {}
func (Nop) OnCancelled(int, string) {}
func (Nop) OnBillCertified(db.WorkItem, db.PaymentRecord) {}

var _ Notifier = Nop{}
