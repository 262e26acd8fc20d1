package tickerid

// aliases translates exchange team codes to the codes the game registry
// uses. The exchange occasionally diverges from the registry's slugs (the
// Vegas and Los Angeles franchises being the usual offenders). Extend this
// table when the resolver logs unmatched markets for a known game.
var aliases = map[string]string{
	"VGK": "LAS",
	"LA":  "LAK",
	"NJ":  "NJD",
	"SJ":  "SJS",
}

// Alias translates an exchange team code to its registry form. Codes
// without an alias pass through unchanged.
func Alias(code string) string {
	if mapped, ok := aliases[code]; ok {
		return mapped
	}
	return code
}

// awayTwoLetter and homeTwoLetter disambiguate 5-letter team blocks, where
// the split is either 2+3 or 3+2. They hold 2-letter codes observed only in
// one slot on the exchange so far. The lists are heuristic and incomplete;
// unknown blocks fall back to the 3+2 split, which is the more common shape.
var awayTwoLetter = map[string]bool{
	"NE": true,
	"KC": true,
	"GB": true,
	"TB": true,
	"SF": true,
	"NO": true,
}

var homeTwoLetter = map[string]bool{
	"LA": true,
	"LV": true,
	"NY": true,
}
