package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/slicepad/slicepad/internal/engine/region"
	"github.com/slicepad/slicepad/internal/provider"
)

// fakeDoc is an in-memory artifact.
type fakeDoc struct {
	lines []string
}

func docOf(n int) *fakeDoc {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	return &fakeDoc{lines: lines}
}

func (d *fakeDoc) LineCount() int { return len(d.lines) }

func (d *fakeDoc) TextRange(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(d.lines)-1 {
		end = len(d.lines) - 1
	}
	if start > end {
		return ""
	}
	return strings.Join(d.lines[start:end+1], "\n")
}

// fakeSymbols serves a fixed tree for every artifact.
type fakeSymbols struct {
	tree []provider.DocumentSymbol
	err  error
}

func (f *fakeSymbols) QuerySymbols(context.Context, string) ([]provider.DocumentSymbol, error) {
	return f.tree, f.err
}

func TestExtractUsesSymbolBoundaries(t *testing.T) {
	symbols := &fakeSymbols{tree: []provider.DocumentSymbol{
		{Name: "a", Kind: provider.KindFunction, Range: region.LineRange{Start: 0, End: 5}},
		{Name: "b", Kind: provider.KindFunction, Range: region.LineRange{Start: 10, End: 18}},
	}}

	ex := New(symbols)
	set, buffer, err := ex.Extract(context.Background(), docOf(20), "a.txt", []int{2, 15})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if set.Len() != 2 {
		t.Fatalf("expected 2 regions, got %d", set.Len())
	}
	if set.Region(0).Range != (region.LineRange{Start: 0, End: 5}) {
		t.Errorf("region_0 range = %s", set.Region(0).Range)
	}
	if set.Region(1).Range != (region.LineRange{Start: 10, End: 18}) {
		t.Errorf("region_1 range = %s", set.Region(1).Range)
	}

	if !strings.Contains(buffer, region.DelimiterFor("region_0")) ||
		!strings.Contains(buffer, region.DelimiterFor("region_1")) {
		t.Errorf("buffer missing delimiters:\n%s", buffer)
	}
	if !strings.Contains(buffer, "line 10\n") {
		t.Errorf("buffer missing region code:\n%s", buffer)
	}
}

func TestExtractWindowFallback(t *testing.T) {
	ex := New(nil, WithWindowRadius(3))
	set, _, err := ex.Extract(context.Background(), docOf(100), "a.txt", []int{50})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if set.Len() != 1 {
		t.Fatalf("expected 1 region, got %d", set.Len())
	}
	if set.Region(0).Range != (region.LineRange{Start: 47, End: 53}) {
		t.Errorf("expected [47,53], got %s", set.Region(0).Range)
	}
}

func TestExtractClampsToArtifact(t *testing.T) {
	ex := New(nil, WithWindowRadius(5))
	set, _, err := ex.Extract(context.Background(), docOf(8), "a.txt", []int{1})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if set.Region(0).Range != (region.LineRange{Start: 0, End: 6}) {
		t.Errorf("expected [0,6], got %s", set.Region(0).Range)
	}
}

func TestExtractMergesNearbyCandidates(t *testing.T) {
	ex := New(nil, WithWindowRadius(3), WithGapThreshold(2))
	set, _, err := ex.Extract(context.Background(), docOf(40), "a.txt", []int{10, 14})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	// Windows [7,13] and [11,17] overlap: one merged region.
	if set.Len() != 1 {
		t.Fatalf("expected 1 merged region, got %d", set.Len())
	}
	if set.Region(0).Range != (region.LineRange{Start: 7, End: 17}) {
		t.Errorf("expected [7,17], got %s", set.Region(0).Range)
	}
	if set.Region(0).ID != "region_0" {
		t.Errorf("expected region_0, got %s", set.Region(0).ID)
	}
}

func TestExtractSymbolErrorFallsBack(t *testing.T) {
	symbols := &fakeSymbols{err: errors.New("provider down")}
	ex := New(symbols, WithWindowRadius(2))

	set, _, err := ex.Extract(context.Background(), docOf(30), "a.txt", []int{10})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if set.Region(0).Range != (region.LineRange{Start: 8, End: 12}) {
		t.Errorf("expected window fallback [8,12], got %s", set.Region(0).Range)
	}
}

func TestExtractInnermostContainerWins(t *testing.T) {
	symbols := &fakeSymbols{tree: []provider.DocumentSymbol{
		{
			Name:  "Outer",
			Kind:  provider.KindClass,
			Range: region.LineRange{Start: 0, End: 30},
			Children: []provider.DocumentSymbol{
				{Name: "inner", Kind: provider.KindMethod, Range: region.LineRange{Start: 5, End: 12}},
			},
		},
	}}

	ex := New(symbols)
	set, _, err := ex.Extract(context.Background(), docOf(40), "a.txt", []int{8})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if set.Region(0).Range != (region.LineRange{Start: 5, End: 12}) {
		t.Errorf("expected inner method range [5,12], got %s", set.Region(0).Range)
	}
}

func TestExtractEmptyCandidates(t *testing.T) {
	ex := New(nil)
	set, buffer, err := ex.Extract(context.Background(), docOf(10), "a.txt", nil)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("expected empty set, got %d regions", set.Len())
	}
	if buffer != "" {
		t.Errorf("expected empty buffer, got %q", buffer)
	}
}

func TestExtractEmptyArtifact(t *testing.T) {
	ex := New(nil)
	set, _, err := ex.Extract(context.Background(), &fakeDoc{}, "a.txt", []int{0})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected single empty region, got %d", set.Len())
	}
	if set.Region(0).Range != (region.LineRange{Start: 0, End: 0}) {
		t.Errorf("expected [0,0], got %s", set.Region(0).Range)
	}
	if set.Region(0).Backup != "" {
		t.Errorf("expected empty backup, got %q", set.Region(0).Backup)
	}
}

func TestExtractBackupIsByteExact(t *testing.T) {
	doc := &fakeDoc{lines: []string{"a", "  b\t", "c "}}
	ex := New(nil, WithWindowRadius(0))
	set, _, err := ex.Extract(context.Background(), doc, "a.txt", []int{0, 1, 2})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	// Windows of radius 0 at adjacent lines merge into one region.
	if set.Len() != 1 {
		t.Fatalf("expected 1 region, got %d", set.Len())
	}
	if set.Region(0).Backup != "a\n  b\t\nc " {
		t.Errorf("backup not byte-exact: %q", set.Region(0).Backup)
	}
}
