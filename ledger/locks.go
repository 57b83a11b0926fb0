package ledger

import "sync"

// ownerLocks serializes allocation, reversal and issuance per owner within
// one process. Store-level version checks cover writers in other processes.
type ownerLocks struct {
	m sync.Map // OwnerID -> *sync.Mutex
}

func (l *ownerLocks) lock(owner OwnerID) func() {
	v, _ := l.m.LoadOrStore(owner, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
