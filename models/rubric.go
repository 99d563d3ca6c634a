package models

import (
	"fmt"
	"strings"
)

// Category is one of the six fixed rubric categories. The set is closed:
// values outside Rubric are never produced by ParseCategory.
type Category int

const (
	TechnicalUnderstanding Category = iota
	ProblemSolving
	AppliedKnowledge
	Implementation
	Communication
	Attitude
)

// NotApplicable is the Implementation score meaning "no implementation involved".
const NotApplicable = 0

const (
	MinScore = 1
	MaxScore = 5
)

// Rubric lists the categories in scoring order.
var Rubric = []Category{
	TechnicalUnderstanding,
	ProblemSolving,
	AppliedKnowledge,
	Implementation,
	Communication,
	Attitude,
}

type categoryInfo struct {
	key     string
	label   string
	korean  string
	weight  int
	aliases []string
}

var categories = [...]categoryInfo{
	TechnicalUnderstanding: {"technical_understanding", "Technical Understanding", "기술 이해도", 20, []string{"technical"}},
	ProblemSolving:         {"problem_solving", "Problem-Solving", "문제 해결력", 20, []string{"problem solving", "문제 해결 능력"}},
	AppliedKnowledge:       {"applied_knowledge", "Applied Knowledge", "기초 지식 응용력", 20, []string{"applied-knowledge", "knowledge"}},
	Implementation:         {"implementation", "Implementation Skill", "코드 구현력", 20, []string{"implementation skill", "code implementation", "코드 구현 능력"}},
	Communication:          {"communication", "Communication", "의사소통", 10, []string{"커뮤니케이션"}},
	Attitude:               {"attitude", "Attitude", "태도", 10, nil},
}

var categoryIndex = buildCategoryIndex()

func buildCategoryIndex() map[string]Category {
	index := make(map[string]Category)
	for i, info := range categories {
		c := Category(i)
		index[normalizeLabel(info.key)] = c
		index[normalizeLabel(info.label)] = c
		index[normalizeLabel(info.korean)] = c
		for _, alias := range info.aliases {
			index[normalizeLabel(alias)] = c
		}
	}
	return index
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
	return s
}

// ParseCategory maps a rubric label (canonical key, English label or Korean label)
// to its Category. Unknown labels are rejected.
func ParseCategory(label string) (Category, bool) {
	c, ok := categoryIndex[normalizeLabel(label)]
	return c, ok
}

func (c Category) Valid() bool {
	return c >= TechnicalUnderstanding && c <= Attitude
}

// Key is the stable machine name used in JSON documents and reports.
func (c Category) Key() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categories[c].key
}

func (c Category) Label() string {
	if !c.Valid() {
		return c.Key()
	}
	return categories[c].label
}

// Weight is the category's share of the 100 point per-answer total.
func (c Category) Weight() int {
	if !c.Valid() {
		return 0
	}
	return categories[c].weight
}

func (c Category) String() string {
	return c.Key()
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid rubric category %d", int(c))
	}
	return []byte(c.Key()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategory(string(text))
	if !ok {
		return fmt.Errorf("unknown rubric category %q", string(text))
	}
	*c = parsed
	return nil
}

// ClampScore forces a raw score into the rubric range. Implementation keeps the
// not-applicable sentinel.
func ClampScore(c Category, score int) int {
	if c == Implementation && score == NotApplicable {
		return NotApplicable
	}
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
