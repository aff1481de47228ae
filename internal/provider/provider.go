// Package provider defines the external provider contracts consumed by the
// extraction engine: a symbol provider that describes the named constructs
// of an artifact as a tree, and a reference provider that resolves a cursor
// position to candidate slice locations.
//
// Providers are external collaborators. Their accuracy is not this engine's
// responsibility; every consumer must tolerate empty results.
package provider

import (
	"context"

	"github.com/slicepad/slicepad/internal/engine/region"
)

// SymbolKind classifies a symbol node.
type SymbolKind int

// Symbol kinds, following the LSP numbering.
const (
	KindFile        SymbolKind = 1
	KindModule      SymbolKind = 2
	KindNamespace   SymbolKind = 3
	KindPackage     SymbolKind = 4
	KindClass       SymbolKind = 5
	KindMethod      SymbolKind = 6
	KindProperty    SymbolKind = 7
	KindField       SymbolKind = 8
	KindConstructor SymbolKind = 9
	KindEnum        SymbolKind = 10
	KindInterface   SymbolKind = 11
	KindFunction    SymbolKind = 12
	KindVariable    SymbolKind = 13
	KindConstant    SymbolKind = 14
	KindStruct      SymbolKind = 23
)

// String returns a readable name for the kind.
func (k SymbolKind) String() string {
	switch k {
	case KindFile:
		return "File"
	case KindModule:
		return "Module"
	case KindNamespace:
		return "Namespace"
	case KindPackage:
		return "Package"
	case KindClass:
		return "Class"
	case KindMethod:
		return "Method"
	case KindProperty:
		return "Property"
	case KindField:
		return "Field"
	case KindConstructor:
		return "Constructor"
	case KindEnum:
		return "Enum"
	case KindInterface:
		return "Interface"
	case KindFunction:
		return "Function"
	case KindVariable:
		return "Variable"
	case KindConstant:
		return "Constant"
	case KindStruct:
		return "Struct"
	default:
		return "Unknown"
	}
}

// IsContainer reports whether the kind supplies a usable region boundary.
// Only function/method/class/constructor analogues qualify; any other kind
// is treated as "no boundary" for extraction purposes.
func (k SymbolKind) IsContainer() bool {
	switch k {
	case KindFunction, KindMethod, KindClass, KindConstructor:
		return true
	default:
		return false
	}
}

// DocumentSymbol is one node in an artifact's symbol tree.
type DocumentSymbol struct {
	Name     string
	Kind     SymbolKind
	Range    region.LineRange
	Children []DocumentSymbol
}

// Location is a candidate slice position in some artifact.
type Location struct {
	Path   string
	Line   int
	Column int
}

// SymbolProvider supplies the symbol tree of an artifact.
type SymbolProvider interface {
	// QuerySymbols returns the top-level symbols of the artifact. A nil
	// slice means no symbol information is available.
	QuerySymbols(ctx context.Context, path string) ([]DocumentSymbol, error)
}

// ReferenceProvider resolves a cursor position to candidate locations.
type ReferenceProvider interface {
	// Resolve returns candidate locations for the symbol at the given
	// position. May return an empty slice.
	Resolve(ctx context.Context, path string, line, column int) ([]Location, error)
}

// InnermostContainer walks the symbol tree and returns the range of the
// deepest container-like symbol enclosing the given line. A nested container
// always wins over its parent because it supplies tighter context for the
// exact line being sliced.
func InnermostContainer(symbols []DocumentSymbol, line int) (region.LineRange, bool) {
	var (
		best  region.LineRange
		found bool
	)

	var walk func(nodes []DocumentSymbol)
	walk = func(nodes []DocumentSymbol) {
		for _, node := range nodes {
			if line < node.Range.Start || line > node.Range.End {
				continue
			}
			if node.Kind.IsContainer() {
				best = node.Range
				found = true
			}
			// Descend regardless of this node's kind: a container may be
			// nested inside a non-container wrapper.
			walk(node.Children)
		}
	}
	walk(symbols)

	return best, found
}
