package classifier

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"
	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Rule maps keywords to one category. Keywords match at word starts, so
// "play" also matches "playing" and "played".
type Rule struct {
	Category string
	Keywords []string
}

// DefaultActivityRules cover the activity vocabulary. Every matching rule applies.
var DefaultActivityRules = []Rule{
	{Category: "playtime", Keywords: []string{"play", "fetch", "toy", "ball", "tug", "chase", "zoomies", "wrestl", "romp"}},
	{Category: "socialization", Keywords: []string{"friend", "group", "pack", "social", "pals", "buddies", "meet", "greet"}},
	{Category: "rest", Keywords: []string{"nap", "rest", "quiet", "relax", "cuddle", "sleep", "lounge", "calm"}},
	{Category: "outdoor", Keywords: []string{"outside", "outdoor", "yard", "walk", "hike", "pool", "splash", "sun", "field", "park", "sprinkler"}},
	{Category: "enrichment", Keywords: []string{"puzzle", "sniff", "enrichment", "bubbles", "snuffle", "frozen", "treat", "scent", "lick mat", "kong", "sensory"}},
	{Category: "training", Keywords: []string{"training", "practic", "command", "lesson", "agility", "obedience"}},
	{Category: "special_event", Keywords: []string{"party", "birthday", "holiday", "costume", "photo", "special", "celebrat", "halloween", "christmas", "parade"}},
}

// DefaultTrainingRules cover the training vocabulary, most specific first.
// The first matching rule wins.
var DefaultTrainingRules = []Rule{
	{Category: "advanced_training", Keywords: []string{"off leash", "place", "distance", "heel", "emergency recall", "duration"}},
	{Category: "impulse_control_and_focus", Keywords: []string{"wait", "leave it", "stay", "focus", "watch me", "patience", "drop it", "settle"}},
	{Category: "handling_and_manners", Keywords: []string{"paw handling", "groom", "brush", "leash", "manners", "gentle", "greeting", "nail", "collar", "polite"}},
	{Category: "physical_skills", Keywords: []string{"jump", "weave", "balance", "climb", "tunnel", "crawl", "fitness", "hoop"}},
	{Category: "fun_skills", Keywords: []string{"spin", "shake", "high five", "roll over", "bow", "play dead", "trick", "wave", "paw"}},
	{Category: "obedience_commands", Keywords: []string{"sit", "down", "come", "recall", "touch", "name recognition", "here"}},
}

// commonWords are capitalized tokens that are never dog names.
var commonWords = map[string]bool{
	"a": true, "an": true, "and": true, "also": true, "after": true, "all": true,
	"he": true, "she": true, "her": true, "his": true, "i": true, "it": true,
	"today": true, "the": true, "then": true, "they": true, "this": true,
	"we": true, "what": true, "when": true, "with": true, "great": true,
	"good": true, "day": true, "she's": true, "he's": true, "loved": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true, "our": true, "my": true,
}

// RulesConfig configures the offline classifier.
type RulesConfig struct {
	ActivityRules []Rule
	TrainingRules []Rule
	// KnownFriends is the roster names are matched against. When empty, every
	// capitalized word that is not a common word counts as a name.
	KnownFriends []string
	// MatchThreshold is the minimum Jaro-Winkler similarity to a roster name.
	MatchThreshold float64
}

// Rules is an offline classifier: Aho-Corasick keyword rules for categories
// and fuzzy roster matching for friend names.
type Rules struct {
	mu        sync.Mutex
	activity  *ruleSet
	training  *ruleSet
	roster    []string
	threshold float64
}

type ruleSet struct {
	matcher  *ahocorasick.Matcher
	keywords []string
	ruleOf   []int // keyword index -> rule index
	rules    []Rule
}

// NewRules builds the automatons for both rule lists.
func NewRules(cfg RulesConfig) *Rules {
	if len(cfg.ActivityRules) == 0 {
		cfg.ActivityRules = DefaultActivityRules
	}
	if len(cfg.TrainingRules) == 0 {
		cfg.TrainingRules = DefaultTrainingRules
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 0.9
	}
	return &Rules{
		activity:  newRuleSet(cfg.ActivityRules),
		training:  newRuleSet(cfg.TrainingRules),
		roster:    cfg.KnownFriends,
		threshold: cfg.MatchThreshold,
	}
}

func newRuleSet(rules []Rule) *ruleSet {
	rs := &ruleSet{rules: rules}
	for i, r := range rules {
		for _, kw := range r.Keywords {
			kw = normalizeText(kw)
			if kw == "" {
				continue
			}
			// Leading space anchors the keyword at a word start.
			rs.keywords = append(rs.keywords, " "+kw)
			rs.ruleOf = append(rs.ruleOf, i)
		}
	}
	if len(rs.keywords) > 0 {
		rs.matcher = ahocorasick.NewStringMatcher(rs.keywords)
	}
	return rs
}

// match returns the indexes of the rules hit by text, ascending.
func (rs *ruleSet) match(text string) []int {
	if rs.matcher == nil {
		return nil
	}
	hits := rs.matcher.Match([]byte(" " + normalizeText(text) + " "))

	seen := make(map[int]bool)
	var out []int
	for _, h := range hits {
		if h < 0 || h >= len(rs.ruleOf) {
			continue
		}
		ri := rs.ruleOf[h]
		if !seen[ri] {
			seen[ri] = true
			out = append(out, ri)
		}
	}
	sort.Ints(out)
	return out
}

// Categorize applies the keyword rules. Labels no rule matches are left out
// of the answer and so stay unmapped.
func (r *Rules) Categorize(_ context.Context, req CategorizeRequest) (*Categorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &Categorization{}
	for _, label := range req.Activities {
		var cats []string
		for _, ri := range r.activity.match(label) {
			cats = append(cats, r.activity.rules[ri].Category)
		}
		if len(cats) > 0 {
			result.Activities = append(result.Activities, ActivityLabel{Label: label, Categories: cats})
		}
	}
	for _, label := range req.Training {
		hits := r.training.match(label)
		if len(hits) > 0 {
			result.Training = append(result.Training, TrainingLabel{Label: label, Category: r.training.rules[hits[0]].Category})
		}
	}
	return result, nil
}

// ExtractFriends returns roster names found in text. Each capitalized word,
// and each pair of adjacent capitalized words, is compared to the roster
// with Jaro-Winkler similarity so small misspellings still match.
func (r *Rules) ExtractFriends(_ context.Context, text string) ([]string, error) {
	candidates := capitalizedRuns(text)

	var names []string
	for _, c := range candidates {
		if len(r.roster) == 0 {
			if !commonWords[strings.ToLower(c)] && !strings.Contains(c, " ") {
				names = append(names, c)
			}
			continue
		}
		if name, ok := r.bestRosterMatch(c); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (r *Rules) bestRosterMatch(candidate string) (string, bool) {
	var best string
	var bestScore float64
	for _, name := range r.roster {
		score := matchr.JaroWinkler(strings.ToLower(candidate), strings.ToLower(name), false)
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best, bestScore >= r.threshold
}

// capitalizedRuns returns capitalized words and adjacent capitalized pairs,
// in order of appearance.
func capitalizedRuns(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	var out []string
	for i, w := range words {
		w = strings.Trim(w, "'")
		w = strings.TrimSuffix(w, "'s")
		if w == "" || !unicode.IsUpper([]rune(w)[0]) {
			continue
		}
		out = append(out, w)
		if i+1 < len(words) {
			next := strings.Trim(words[i+1], "'")
			if next != "" && unicode.IsUpper([]rune(next)[0]) {
				out = append(out, w+" "+strings.TrimSuffix(next, "'s"))
			}
		}
	}
	return out
}

// normalizeText lower-cases text and turns every non-alphanumeric rune into a space.
func normalizeText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			space = false
			continue
		}
		if !space {
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(sb.String())
}

var (
	_ Classifier = (*Rules)(nil)
	_ Classifier = (*Anthropic)(nil)
)
