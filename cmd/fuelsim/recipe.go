package main

import (
	"strconv"
	"strings"

	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/nuclide"
)

// parseNuclideName parses the concatenated symbol+mass form used in recipe
// directives ("U235", "Pu239"), as opposed to nuclide.FromSerpent's
// hyphenated "U-235".
func parseNuclideName(name string) (nuclide.ID, error) {
	i := strings.IndexFunc(name, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return 0, engineerr.Validation("fuelsim: malformed nuclide name %q", name)
	}
	symbol, massPart := name[:i], name[i:]
	a, err := strconv.Atoi(massPart)
	if err != nil {
		return 0, engineerr.Validation("fuelsim: malformed mass number in %q", name)
	}
	return nuclide.FromElemMass(symbol, a)
}

// buildRecipe turns a directive's symbol-keyed mass fractions into a
// Composition against the run's mass table.
func buildRecipe(massFrac map[string]float64, mt nuclide.MassTable) (*composition.Composition, error) {
	byID := make(map[nuclide.ID]float64, len(massFrac))
	for sym, frac := range massFrac {
		id, err := parseNuclideName(sym)
		if err != nil {
			return nil, err
		}
		byID[id] = frac
	}
	return composition.CreateFromMass(byID, mt)
}
