package dlmodule

import (
	"testing"
	"unsafe"

	semver "github.com/Masterminds/semver/v3"
)

type fakeFreer struct {
	freed []unsafe.Pointer
}

func (f *fakeFreer) Free(p unsafe.Pointer) {
	f.freed = append(f.freed, p)
}

func mustConstraint(t *testing.T, expr string) *semver.Constraints {
	t.Helper()

	c, err := ParseConstraint(expr)
	if err != nil {
		t.Fatalf("ParseConstraint(%q) error = %v", expr, err)
	}

	return c
}

func TestUnloadUnneededModulesDropsIncompatible(t *testing.T) {
	abi := semver.MustParse("2.0.0")
	freer := &fakeFreer{}
	r := New(freer, abi)

	var compat, stale int = 0xdead, 0xbeef
	compatAddr := unsafe.Pointer(&compat)
	staleAddr := unsafe.Pointer(&stale)

	r.Register("compat-mod", mustConstraint(t, ">=1.0.0"), compatAddr)
	r.Register("stale-mod", mustConstraint(t, ">=1.0.0, <2.0.0"), staleAddr)

	r.UnloadUnneededModules()

	if r.Loaded("stale-mod") {
		t.Error("stale-mod still loaded after UnloadUnneededModules")
	}

	if !r.Loaded("compat-mod") {
		t.Error("compat-mod was unloaded but its constraint matches the running ABI")
	}

	if len(freer.freed) != 1 || freer.freed[0] != staleAddr {
		t.Errorf("freed = %v, want exactly [stale-mod's address]", freer.freed)
	}
}

func TestUnloadUnneededModulesKeepsNilConstraint(t *testing.T) {
	abi := semver.MustParse("1.0.0")
	freer := &fakeFreer{}
	r := New(freer, abi)

	var mem int
	r.Register("unconstrained", nil, unsafe.Pointer(&mem))

	r.UnloadUnneededModules()

	if !r.Loaded("unconstrained") {
		t.Error("module with a nil constraint was unloaded")
	}

	if len(freer.freed) != 0 {
		t.Errorf("freed = %v, want none", freer.freed)
	}
}

func TestUnloadUnneededModulesIsIdempotent(t *testing.T) {
	abi := semver.MustParse("3.0.0")
	freer := &fakeFreer{}
	r := New(freer, abi)

	var mem int
	r.Register("old", mustConstraint(t, "<2.0.0"), unsafe.Pointer(&mem))

	r.UnloadUnneededModules()
	r.UnloadUnneededModules()

	if len(freer.freed) != 1 {
		t.Errorf("Free called %d times, want 1", len(freer.freed))
	}
}
