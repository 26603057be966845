package topics

import (
	"strings"

	"github.com/ir-baselines/qlrun/internal/index"
)

// Render resolves a token-ID sequence into query text through the
// dictionary. Unresolved tokens are omitted; surviving terms keep their
// original order joined by single spaces. An entirely-unresolved
// sequence renders as the empty string, which is passed to the engine
// unchanged.
func Render(tokenIDs []*uint32, dict *index.Dictionary) string {
	terms := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id == nil {
			continue
		}
		if term, ok := dict.Lookup(*id); ok {
			terms = append(terms, term)
		}
	}
	return strings.Join(terms, " ")
}
