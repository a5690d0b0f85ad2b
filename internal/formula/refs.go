package formula

import (
	"strings"

	"github.com/xuri/efp"

	"github.com/roach88/boqcalc/internal/cell"
)

// References lists the distinct reference operands of a formula in order of
// appearance, as written (locks stripped). It uses the efp tokenizer and so
// works on formulas that Parse rejects, such as ones calling unsupported
// functions.
func References(text string) []string {
	text = strings.TrimPrefix(strings.TrimSpace(text), "=")
	ps := efp.ExcelParser()
	tokens := ps.Parse("=" + text)
	seen := make(map[string]bool)
	refs := []string{}
	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		ref := strings.ReplaceAll(token.TValue, "$", "")
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

// Dependencies walks a parsed tree and returns every reference it contains,
// in order of appearance.
func Dependencies(e Expr) []cell.Reference {
	deps := []cell.Reference{}
	Walk(e, func(n Expr) bool {
		if r, ok := n.(*Ref); ok {
			deps = append(deps, r.Ref)
		}
		return true
	})
	return deps
}
