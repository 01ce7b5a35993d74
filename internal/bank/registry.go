package bank

// Registry holds every known account keyed by owner. The service constructs
// one and injects it wherever accounts are needed; there is no global
// instance. Iteration order is registration order so the settlement pass is
// deterministic.
type Registry struct {
	accounts map[string]*Account
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{accounts: make(map[string]*Account)}
}

// Get returns the account for the owner, or nil if none is registered.
func (r *Registry) Get(ownerID string) *Account {
	return r.accounts[ownerID]
}

// GetOrCreate returns the existing account or registers a fresh one with
// the given reinvestment ratio. The second result reports whether a new
// account was created.
func (r *Registry) GetOrCreate(ownerID string, reinvestmentRatio float64) (*Account, bool) {
	if account, ok := r.accounts[ownerID]; ok {
		return account, false
	}
	account := NewAccount(ownerID, reinvestmentRatio)
	r.Put(account)
	return account, true
}

// Put registers an account, typically one restored from storage. An account
// already registered for the same owner is replaced in place, keeping its
// original position.
func (r *Registry) Put(account *Account) {
	if _, ok := r.accounts[account.OwnerID]; !ok {
		r.order = append(r.order, account.OwnerID)
	}
	r.accounts[account.OwnerID] = account
}

// All returns every account in registration order.
func (r *Registry) All() []*Account {
	accounts := make([]*Account, 0, len(r.order))
	for _, ownerID := range r.order {
		accounts = append(accounts, r.accounts[ownerID])
	}
	return accounts
}

// Len returns the number of registered accounts.
func (r *Registry) Len() int { return len(r.accounts) }
