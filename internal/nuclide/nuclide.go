// Package nuclide canonicalizes nuclide identifiers and exposes the pure
// nuclear-data lookup interface the engine consumes (spec.md C1, §6).
//
// The canonical id is a pure function of (Z, A, S): id = Z*10,000,000 +
// A*10,000 + S, matching the "id" form used throughout the source project's
// nuclide-naming conventions. All downstream engine code stores only this
// canonical int64; legacy forms are converted at the boundary.
package nuclide

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cyclus/fuelsim/internal/engineerr"
)

// ID is a canonicalized nuclide identifier: Z*10,000,000 + A*10,000 + S.
type ID int64

// FromZAS builds the canonical id directly from proton number Z, mass
// number A, and metastable state S (0 for ground state).
func FromZAS(z, a, s int) (ID, error) {
	if z <= 0 || z > 118 {
		return 0, engineerr.Value("nuclide: invalid Z=%d", z)
	}
	if a < z || a > z*7 {
		return 0, engineerr.Value("nuclide: invalid A=%d for Z=%d", a, z)
	}
	if s < 0 || s > 9 {
		return 0, engineerr.Value("nuclide: invalid metastable state S=%d", s)
	}
	return ID(z*10_000_000 + a*10_000 + s), nil
}

// Z returns the proton number encoded in the id.
func (n ID) Z() int { return int(n / 10_000_000) }

// A returns the mass number encoded in the id.
func (n ID) A() int { return int((n / 10_000) % 1000) }

// S returns the metastable state encoded in the id (0 = ground state).
func (n ID) S() int { return int(n % 10_000) }

func (n ID) String() string {
	sym := zToSymbol[n.Z()]
	if sym == "" {
		sym = fmt.Sprintf("Z%d", n.Z())
	}
	if s := n.S(); s > 0 {
		return fmt.Sprintf("%s%d%s", sym, n.A(), strings.Repeat("m", s))
	}
	return fmt.Sprintf("%s%d", sym, n.A())
}

// FromZZAAAM converts a legacy ZZAAAM-encoded id (Z*10,000 + A*10 + M) to
// the canonical form.
func FromZZAAAM(zzaaam int) (ID, error) {
	if zzaaam < 0 {
		return 0, engineerr.Value("nuclide: negative zzaaam %d", zzaaam)
	}
	z := zzaaam / 10000
	a := (zzaaam % 10000) / 10
	m := zzaaam % 10
	return FromZAS(z, a, m)
}

// FromMCNP converts an MCNP-form id (ZZAAA, with AAA biased by 400 for
// metastable states) to the canonical form.
func FromMCNP(mcnp int) (ID, error) {
	if mcnp < 0 {
		return 0, engineerr.Value("nuclide: negative mcnp id %d", mcnp)
	}
	z := mcnp / 1000
	a := mcnp % 1000
	if a < 400 {
		return FromZAS(z, a, 0)
	}
	return FromZAS(z, a-400, 1)
}

// FromSerpent parses a Serpent-style name like "U-235" or "Am-242m" into
// the canonical id.
func FromSerpent(name string) (ID, error) {
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return 0, engineerr.Validation("nuclide: malformed serpent name %q", name)
	}
	z, ok := symbolToZ[titleCase(parts[0])]
	if !ok {
		return 0, engineerr.Key("nuclide: unknown element symbol %q", parts[0])
	}
	massPart := parts[1]
	s := 0
	if strings.HasSuffix(massPart, "m") {
		s = 1
		massPart = strings.TrimSuffix(massPart, "m")
	}
	a, err := strconv.Atoi(massPart)
	if err != nil {
		return 0, engineerr.Validation("nuclide: malformed mass number in %q", name)
	}
	return FromZAS(z, a, s)
}

// FromElemMass builds an id from an element symbol ("U") and a mass
// number, ground state.
func FromElemMass(symbol string, a int) (ID, error) {
	z, ok := symbolToZ[titleCase(symbol)]
	if !ok {
		return 0, engineerr.Key("nuclide: unknown element symbol %q", symbol)
	}
	return FromZAS(z, a, 0)
}

// MassTable is the out-of-scope nuclear-data collaborator (spec.md §6):
// atomic mass, half-life, and decay-daughter lookups by canonical id. All
// three are pure functions over id; the engine treats an unknown id's
// absence from DecayChildren as "stable" per spec.md §4.1.
type MassTable interface {
	// AtomicMass returns grams per mole for the nuclide.
	AtomicMass(id ID) (float64, error)
	// HalfLife returns the half-life in seconds, or math.Inf(1) if stable.
	HalfLife(id ID) (float64, error)
	// DecayChildren returns (child id, branch ratio) pairs; empty for a
	// stable or unknown nuclide.
	DecayChildren(id ID) ([]DecayChild, error)
}

// DecayChild is one branch of a parent nuclide's decay.
type DecayChild struct {
	Child      ID
	BranchFrac float64
}

var zToSymbol = map[int]string{
	1: "H", 2: "He", 3: "Li", 4: "Be", 5: "B", 6: "C", 7: "N", 8: "O", 9: "F", 10: "Ne",
	11: "Na", 12: "Mg", 13: "Al", 14: "Si", 15: "P", 16: "S", 17: "Cl", 18: "Ar", 19: "K", 20: "Ca",
	26: "Fe", 27: "Co", 28: "Ni", 29: "Cu", 30: "Zn",
	34: "Se", 35: "Br", 36: "Kr",
	38: "Sr", 39: "Y", 40: "Zr", 41: "Nb", 42: "Mo", 43: "Tc", 44: "Ru", 45: "Rh", 46: "Pd", 47: "Ag",
	51: "Sb", 52: "Te", 53: "I", 54: "Xe", 55: "Cs", 56: "Ba", 57: "La", 58: "Ce", 59: "Pr", 60: "Nd",
	61: "Pm", 62: "Sm", 63: "Eu", 64: "Gd", 65: "Tb",
	90: "Th", 91: "Pa", 92: "U", 93: "Np", 94: "Pu", 95: "Am", 96: "Cm", 97: "Bk", 98: "Cf",
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

var symbolToZ = func() map[string]int {
	m := make(map[string]int, len(zToSymbol))
	for z, sym := range zToSymbol {
		m[sym] = z
	}
	return m
}()
