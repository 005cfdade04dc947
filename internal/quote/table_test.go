package quote

import "testing"

func TestAcquireReportsFirstSubscriberOnly(t *testing.T) {
	tbl := NewTable()
	if wasZero := tbl.Acquire("TMFR1"); !wasZero {
		t.Fatalf("expected first Acquire to report wasZero=true")
	}
	if wasZero := tbl.Acquire("TMFR1"); wasZero {
		t.Fatalf("expected second Acquire to report wasZero=false")
	}
	if got := tbl.Refcount("TMFR1"); got != 2 {
		t.Fatalf("expected refcount 2, got %d", got)
	}
}

func TestReleaseReportsLastSubscriberOnly(t *testing.T) {
	tbl := NewTable()
	tbl.Acquire("TMFR1")
	tbl.Acquire("TMFR1")
	tbl.BindExchangeCode("TMFR1", "TXFG5")

	if _, reachedZero := tbl.Release("TMFR1"); reachedZero {
		t.Fatalf("expected first Release (refcount 2->1) to not reach zero")
	}
	code, reachedZero := tbl.Release("TMFR1")
	if !reachedZero || code != "TXFG5" {
		t.Fatalf("expected last Release to reach zero with code TXFG5, got code=%q reachedZero=%v", code, reachedZero)
	}
	if tbl.Refcount("TMFR1") != 0 {
		t.Fatalf("expected refcount 0 after teardown")
	}
}

func TestReleaseBelowZeroIsANoOp(t *testing.T) {
	tbl := NewTable()
	if _, reachedZero := tbl.Release("never-subscribed"); reachedZero {
		t.Fatalf("expected Release on an untracked alias to be a no-op")
	}
}

func TestBindExchangeCodeBuildsReverseIndex(t *testing.T) {
	tbl := NewTable()
	tbl.Acquire("TMFR1")
	tbl.BindExchangeCode("TMFR1", "TXFG5")

	alias, ok := tbl.ResolveCode("TXFG5")
	if !ok || alias != "TMFR1" {
		t.Fatalf("expected TXFG5 to resolve to TMFR1, got %q, %v", alias, ok)
	}
}

func TestReleaseClearsEveryEverBoundCode(t *testing.T) {
	tbl := NewTable()
	tbl.Acquire("TMFR1")
	tbl.BindExchangeCode("TMFR1", "TXFG5") // first contract roll
	tbl.BindExchangeCode("TMFR1", "TXFH5") // second contract roll

	tbl.Release("TMFR1")

	if _, ok := tbl.ResolveCode("TXFG5"); ok {
		t.Fatalf("expected stale reverse-map entry TXFG5 to be cleared on teardown")
	}
	if _, ok := tbl.ResolveCode("TXFH5"); ok {
		t.Fatalf("expected reverse-map entry TXFH5 to be cleared on teardown")
	}
}

func TestSubscribedPseudoAliasesFiltersByRefcountAndPredicate(t *testing.T) {
	tbl := NewTable()
	tbl.Acquire("TMFR1")
	tbl.Acquire("MXF2512") // not a pseudo alias
	tbl.Acquire("TMFR2")
	tbl.Release("TMFR2") // back to refcount 0, should be excluded

	isPseudo := func(alias string) bool { return alias == "TMFR1" || alias == "TMFR2" }
	got := tbl.SubscribedPseudoAliases(isPseudo)
	if len(got) != 1 || got[0] != "TMFR1" {
		t.Fatalf("expected only TMFR1, got %+v", got)
	}
}
