package pipeline

import (
	"fmt"
	"strings"
)

// classification is the Classify stage output.
type classification struct {
	QuestionType string
	Domain       string
	Complexity   string
	Intent       string
	KeyTopics    []string
}

func defaultClassification() classification {
	return classification{
		QuestionType: "informational",
		Domain:       "general",
		Complexity:   "medium",
	}
}

func (c classification) String() string {
	return fmt.Sprintf(
		"- type: %s\n- domain: %s\n- complexity: %s\n- intent: %s\n- key topics: %s",
		c.QuestionType, c.Domain, c.Complexity, c.Intent, strings.Join(c.KeyTopics, ", "),
	)
}

// structurePlan is the StructurePlan stage output. The zero value is not
// meaningful; use defaultStructurePlan for the fallback.
type structurePlan struct {
	Length    string
	Structure string
	Ordering  string
	Sections  []string
}

// defaultStructurePlan is the documented stage fallback: medium length,
// bullet structure, no fixed ordering.
func defaultStructurePlan() structurePlan {
	return structurePlan{
		Length:    "medium",
		Structure: "bullets",
	}
}

func (s structurePlan) String() string {
	ordering := s.Ordering
	if ordering == "" {
		ordering = "no fixed ordering"
	}
	return fmt.Sprintf(
		"- length: %s\n- structure: %s\n- ordering: %s\n- sections: %s",
		s.Length, s.Structure, ordering, strings.Join(s.Sections, ", "),
	)
}

// coverageSpec is the CoverageDefine stage output. The zero value is the
// documented fallback: empty lists.
type coverageSpec struct {
	MustInclude []string
	Optional    []string
	Exclude     []string
}

func (c coverageSpec) String() string {
	return fmt.Sprintf(
		"- must include: %s\n- optional: %s\n- exclude: %s",
		joinOrNone(c.MustInclude), joinOrNone(c.Optional), joinOrNone(c.Exclude),
	)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// verdict is the Validate stage output.
type verdict struct {
	Approved bool
	Fix      string
}

// Stage replies use a KEY: value line protocol. Parsing is forgiving:
// unknown lines are skipped and missing keys fall back to defaults.

func parseClassification(out string) classification {
	c := defaultClassification()
	for key, value := range keyValues(out) {
		switch key {
		case "QUESTION_TYPE":
			c.QuestionType = strings.ToLower(value)
		case "PRIMARY_DOMAIN":
			c.Domain = value
		case "COMPLEXITY_LEVEL":
			c.Complexity = strings.ToLower(value)
		case "INTENT":
			c.Intent = value
		case "KEY_TOPICS":
			c.KeyTopics = splitList(value)
		}
	}
	return c
}

func parseStructurePlan(out string) structurePlan {
	s := defaultStructurePlan()
	for key, value := range keyValues(out) {
		switch key {
		case "REQUIRED_LENGTH":
			s.Length = strings.ToLower(value)
		case "BEST_STRUCTURE":
			s.Structure = strings.ToLower(value)
		case "ORDERING":
			s.Ordering = value
		case "SECTION_BREAKDOWN":
			s.Sections = splitList(value)
		}
	}
	return s
}

func parseCoverageSpec(out string) coverageSpec {
	var c coverageSpec
	for key, value := range keyValues(out) {
		switch key {
		case "MUST_INCLUDE":
			c.MustInclude = splitList(value)
		case "OPTIONAL":
			c.Optional = splitList(value)
		case "EXCLUDE":
			c.Exclude = splitList(value)
		}
	}
	return c
}

func parseVerdict(out string) verdict {
	v := verdict{Approved: true}
	for key, value := range keyValues(out) {
		switch key {
		case "STATUS":
			v.Approved = !strings.Contains(strings.ToUpper(value), "FIX_REQUIRED")
		case "FIX_REQUIRED":
			v.Fix = value
		}
	}
	if v.Approved {
		v.Fix = ""
	}
	return v
}

func keyValues(out string) map[string]string {
	kv := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		key = strings.ReplaceAll(key, " ", "_")
		value = strings.TrimSpace(value)
		value = strings.Trim(value, "[]")
		if key != "" && value != "" {
			kv[key] = strings.TrimSpace(value)
		}
	}
	return kv
}

func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !strings.EqualFold(part, "none") {
			items = append(items, part)
		}
	}
	return items
}
