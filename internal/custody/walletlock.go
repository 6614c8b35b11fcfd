package custody

import "sync"

// The custody service enforces per-wallet transaction ordering. Concurrent
// plans submitting from the same source wallet must therefore serialize their
// submissions; different wallets proceed independently.
var (
	walletLocksMu sync.Mutex
	walletLocks   = map[string]*sync.Mutex{}
)

func acquireWalletLock(wallet string) func() {
	walletLocksMu.Lock()
	mu, ok := walletLocks[wallet]
	if !ok {
		mu = &sync.Mutex{}
		walletLocks[wallet] = mu
	}
	walletLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
