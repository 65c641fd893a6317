package progress

import (
	"math"
	"sort"
	"strings"
)

// Module is one entry of the fixed coaching module taxonomy.
type Module struct {
	ID        string
	LegacyKey string
	TitleEN   string
	TitleRO   string
	Aliases   []string
}

// Modules is ordered; classification ties resolve to the earlier module.
var Modules = []Module{
	{ID: "emotional_balance", LegacyKey: "calm", TitleEN: "Emotional Balance", TitleRO: "Echilibru Emoțional",
		Aliases: []string{"calm", "balance", "emotionalbalance", "stress", "stres"}},
	{ID: "focus_clarity", LegacyKey: "focus", TitleEN: "Clarity & Focus", TitleRO: "Claritate & Focus",
		Aliases: []string{"focus", "clarity", "focusclarity", "claritate", "concentrare"}},
	{ID: "relationships_communication", LegacyKey: "relations", TitleEN: "Relationships & Communication", TitleRO: "Relații & Comunicare",
		Aliases: []string{"relations", "relationship", "relationships", "rel", "relcomm", "communication", "boundaries", "relatii", "relatie", "comunicare"}},
	{ID: "energy_body", LegacyKey: "energy", TitleEN: "Energy & Body", TitleRO: "Energie & Corp",
		Aliases: []string{"energy", "energie", "energybody", "health", "habits", "lifestyle", "somn", "sleep", "oboseala"}},
	{ID: "self_trust", LegacyKey: "sense", TitleEN: "Self-Trust", TitleRO: "Încredere în Sine",
		Aliases: []string{"sense", "selftrust", "confidence", "trust", "identity", "purpose", "meaning", "incredere", "sens"}},
	{ID: "decision_discernment", LegacyKey: "performance", TitleEN: "Discernment & Decisions", TitleRO: "Discernământ & Decizii",
		Aliases: []string{"performance", "decision", "decisions", "discernment", "direction", "decizie", "decizii", "directie"}},
	{ID: "willpower_perseverance", LegacyKey: "willpower", TitleEN: "Willpower & Perseverance", TitleRO: "Voință & Perseverență",
		Aliases: []string{"willpower", "perseverance", "discipline", "resilience", "vointa", "disciplina"}},
	{ID: "optimal_weight_management", LegacyKey: "weight", TitleEN: "Optimal Weight", TitleRO: "Greutate optimă",
		Aliases: []string{"optimalweight", "weight", "weightmanagement", "greutate", "greutateoptima", "alimentatie", "nutrition"}},
}

var moduleByAlias = func() map[string]string {
	out := make(map[string]string, 64)
	for _, m := range Modules {
		for _, key := range append([]string{m.ID, m.LegacyKey}, m.Aliases...) {
			k := moduleKey(key)
			if _, taken := out[k]; !taken {
				out[k] = m.ID
			}
		}
	}
	return out
}()

// moduleKey keeps [a-z0-9_] after lowercasing.
func moduleKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveModuleID maps a module id, legacy key or alias to a module id.
func ResolveModuleID(v string) (string, bool) {
	k := moduleKey(v)
	if k == "" {
		return "", false
	}
	id, ok := moduleByAlias[k]
	return id, ok
}

// ModuleAliases returns every lookup key mapped to its module id.
func ModuleAliases() map[string]string {
	out := make(map[string]string, len(moduleByAlias))
	for k, v := range moduleByAlias {
		out[k] = v
	}
	return out
}

func ModuleByID(id string) (Module, bool) {
	for _, m := range Modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// Title picks the localized title, defaulting to Romanian like the product.
func (m Module) Title(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "en") {
		return m.TitleEN
	}
	return m.TitleRO
}

// NormalizeDimensions gives scores a fixed shape: every module id present,
// unknown keys dropped. It returns nil when no key resolved.
func NormalizeDimensions(in map[string]float64) DimensionScores {
	if len(in) == 0 {
		return nil
	}
	out := make(DimensionScores, len(Modules))
	for _, m := range Modules {
		out[m.ID] = 0
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	seen := false
	for _, k := range keys {
		id, ok := ResolveModuleID(k)
		if !ok || math.IsNaN(in[k]) || math.IsInf(in[k], 0) {
			continue
		}
		out[id] = in[k]
		seen = true
	}
	if !seen {
		return nil
	}
	return out
}
