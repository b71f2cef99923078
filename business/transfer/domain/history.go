package domain

import "sync"

// WithdrawalHistory is the ordered list of L2 withdrawal hashes made in a
// session. It is append-only and keeps duplicates.
type WithdrawalHistory struct {
	mu     sync.RWMutex
	hashes []string
}

// Append records hash.
func (h *WithdrawalHistory) Append(hash string) {
	h.mu.Lock()
	h.hashes = append(h.hashes, hash)
	h.mu.Unlock()
}

// Latest returns the most recent hash.
func (h *WithdrawalHistory) Latest() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.hashes) == 0 {
		return "", false
	}
	return h.hashes[len(h.hashes)-1], true
}

// All returns a copy of every recorded hash, oldest first.
func (h *WithdrawalHistory) All() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.hashes))
	copy(out, h.hashes)
	return out
}
