package facts

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/yungbote/progressfacts/internal/domain/progress"
)

// Mission sources.
const (
	MissionFromTaxonomy = "taxonomy"
	MissionFromCategory = "category"
)

// ActiveMission is the focus area label stored on the user profile.
type ActiveMission struct {
	ModuleID string `json:"moduleId,omitempty"`
	Title    string `json:"title"`
	Source   string `json:"source"`
}

// fold lowercases and strips diacritics ("Relații" -> "relatii").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func words(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// DeriveMission classifies an intent against the module taxonomy. Tags and
// categories weigh by how often they were picked; words of the first
// expression count once. With no taxonomy hit the most picked category is
// prettified instead. ok is false when the intent carries nothing usable.
func DeriveMission(in progress.Intent) (ActiveMission, bool) {
	scores := map[string]float64{}
	hit := func(term string, weight float64) {
		if id, ok := progress.ResolveModuleID(fold(term)); ok {
			scores[id] += weight
			return
		}
		for _, w := range words(term) {
			if id, ok := progress.ResolveModuleID(w); ok {
				scores[id] += weight
			}
		}
	}
	for _, tag := range in.Tags {
		hit(tag, 1)
	}
	for _, c := range in.Categories {
		n := float64(c.Count)
		if n < 1 {
			n = 1
		}
		hit(c.Category, n)
	}
	if in.FirstCategory != "" {
		hit(in.FirstCategory, 1)
	}
	for _, w := range words(in.FirstExpression) {
		if id, ok := progress.ResolveModuleID(w); ok {
			scores[id]++
		}
	}

	best, bestScore := "", 0.0
	for _, m := range progress.Modules {
		if s := scores[m.ID]; s > bestScore {
			best, bestScore = m.ID, s
		}
	}
	if best != "" {
		m, _ := progress.ModuleByID(best)
		return ActiveMission{ModuleID: m.ID, Title: m.Title(in.Lang), Source: MissionFromTaxonomy}, true
	}

	raw := in.TopCategory
	if raw == "" {
		raw = topCategory(in.Categories)
	}
	if raw == "" {
		raw = in.FirstCategory
	}
	if title := prettify(raw, in.Lang); title != "" {
		return ActiveMission{Title: title, Source: MissionFromCategory}, true
	}
	return ActiveMission{}, false
}

func topCategory(cats []progress.CategoryCount) string {
	if len(cats) == 0 {
		return ""
	}
	sorted := append([]progress.CategoryCount(nil), cats...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	return sorted[0].Category
}

// prettify turns "self_trust-issues" into "Self Trust Issues".
func prettify(raw, lang string) string {
	raw = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(raw))
	if raw == "" {
		return ""
	}
	tag := language.Romanian
	if strings.HasPrefix(strings.ToLower(lang), "en") {
		tag = language.English
	}
	return cases.Title(tag).String(strings.Join(strings.Fields(raw), " "))
}
