// Package quote implements the Quote Manager: refcounted upstream
// subscriptions keyed by client-facing alias, with dynamic
// alias-to-exchange-code binding for near/next-month pseudo-symbols.
package quote

import "sync"

// aliasEntry is one row of the Subscription Table: an alias's upstream
// contract handle, its live refcount, and every exchange code that has
// ever resolved to it (its reverse-map entries).
type aliasEntry struct {
	refcount     int
	contract     string
	exchangeCode string // current binding; "" until the first resolved callback
	everCodes    map[string]bool
}

// Table is the Subscription Table: alias -> upstream handle + refcount,
// and the exchange-code -> alias reverse index callbacks resolve
// through.
type Table struct {
	mu         sync.Mutex
	byAlias    map[string]*aliasEntry
	codeToAlias map[string]string
}

// NewTable allocates an empty Subscription Table.
func NewTable() *Table {
	return &Table{
		byAlias:     make(map[string]*aliasEntry),
		codeToAlias: make(map[string]string),
	}
}

// Acquire increments alias's refcount, creating the entry if absent.
// It returns wasZero=true when this call is the one that must place
// the upstream subscription (refcount transitioned 0 -> 1).
func (t *Table) Acquire(alias string) (wasZero bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byAlias[alias]
	if !ok {
		e = &aliasEntry{everCodes: make(map[string]bool)}
		t.byAlias[alias] = e
	}
	wasZero = e.refcount == 0
	e.refcount++
	return wasZero
}

// BindExchangeCode records that alias resolved (or was confirmed) to
// exchangeCode, building the reverse index callbacks consult.
func (t *Table) BindExchangeCode(alias, exchangeCode string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byAlias[alias]
	if !ok {
		return
	}
	e.exchangeCode = exchangeCode
	e.everCodes[exchangeCode] = true
	t.codeToAlias[exchangeCode] = alias
}

// Release decrements alias's refcount. It returns reachedZero=true when
// this call is the one that must tear down the upstream subscription;
// the reverse-map entries for every exchange code this alias ever
// bound are cleared at that point.
func (t *Table) Release(alias string) (exchangeCode string, reachedZero bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byAlias[alias]
	if !ok || e.refcount == 0 {
		return "", false
	}
	e.refcount--
	if e.refcount > 0 {
		return e.exchangeCode, false
	}
	for code := range e.everCodes {
		delete(t.codeToAlias, code)
	}
	exchangeCode = e.exchangeCode
	delete(t.byAlias, alias)
	return exchangeCode, true
}

// ResolveCode looks up the alias bound to exchangeCode, if any.
func (t *Table) ResolveCode(exchangeCode string) (alias string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	alias, ok = t.codeToAlias[exchangeCode]
	return alias, ok
}

// SubscribedPseudoAliases returns every alias currently tracked (live
// refcount > 0) for which isPseudo returns true, as dynamic-binding
// candidates for an unresolved callback.
func (t *Table) SubscribedPseudoAliases(isPseudo func(string) bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.byAlias))
	for alias, e := range t.byAlias {
		if e.refcount > 0 && isPseudo(alias) {
			out = append(out, alias)
		}
	}
	return out
}

// Refcount reports the current refcount for alias (0 if untracked),
// for tests asserting it equals the number of distinct subscribers.
func (t *Table) Refcount(alias string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byAlias[alias]; ok {
		return e.refcount
	}
	return 0
}
