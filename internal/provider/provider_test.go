package provider

import (
	"testing"

	"github.com/slicepad/slicepad/internal/engine/region"
)

func symTree() []DocumentSymbol {
	return []DocumentSymbol{
		{
			Name:  "Widget",
			Kind:  KindClass,
			Range: region.LineRange{Start: 0, End: 40},
			Children: []DocumentSymbol{
				{
					Name:  "NewWidget",
					Kind:  KindConstructor,
					Range: region.LineRange{Start: 2, End: 8},
				},
				{
					Name:  "Render",
					Kind:  KindMethod,
					Range: region.LineRange{Start: 10, End: 30},
					Children: []DocumentSymbol{
						{
							Name:  "state",
							Kind:  KindVariable,
							Range: region.LineRange{Start: 12, End: 12},
						},
					},
				},
			},
		},
		{
			Name:  "MaxWidgets",
			Kind:  KindConstant,
			Range: region.LineRange{Start: 45, End: 45},
		},
	}
}

func TestInnermostContainerPrefersDeepest(t *testing.T) {
	rng, ok := InnermostContainer(symTree(), 15)
	if !ok {
		t.Fatal("expected a container for line 15")
	}
	if rng != (region.LineRange{Start: 10, End: 30}) {
		t.Errorf("expected method range [10,30], got %s", rng)
	}
}

func TestInnermostContainerNonContainerLeafIgnored(t *testing.T) {
	// Line 12 sits inside a Variable node, which is not a container; the
	// enclosing Method must win.
	rng, ok := InnermostContainer(symTree(), 12)
	if !ok {
		t.Fatal("expected a container for line 12")
	}
	if rng != (region.LineRange{Start: 10, End: 30}) {
		t.Errorf("expected method range [10,30], got %s", rng)
	}
}

func TestInnermostContainerFallsBackToOuter(t *testing.T) {
	// Line 35 is inside the class but outside every nested container.
	rng, ok := InnermostContainer(symTree(), 35)
	if !ok {
		t.Fatal("expected a container for line 35")
	}
	if rng != (region.LineRange{Start: 0, End: 40}) {
		t.Errorf("expected class range [0,40], got %s", rng)
	}
}

func TestInnermostContainerNoBoundary(t *testing.T) {
	// Line 45 is covered only by a Constant symbol.
	if _, ok := InnermostContainer(symTree(), 45); ok {
		t.Error("constant should not supply a boundary")
	}

	// Line outside every symbol.
	if _, ok := InnermostContainer(symTree(), 99); ok {
		t.Error("expected no container for uncovered line")
	}

	if _, ok := InnermostContainer(nil, 0); ok {
		t.Error("expected no container for empty tree")
	}
}

func TestIsContainer(t *testing.T) {
	cases := []struct {
		kind SymbolKind
		want bool
	}{
		{KindFunction, true},
		{KindMethod, true},
		{KindClass, true},
		{KindConstructor, true},
		{KindVariable, false},
		{KindStruct, false},
		{KindInterface, false},
		{KindFile, false},
	}
	for _, tc := range cases {
		if got := tc.kind.IsContainer(); got != tc.want {
			t.Errorf("%s.IsContainer() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}
