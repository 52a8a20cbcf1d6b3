package pipeline

import (
	"reflect"
	"testing"
)

func TestParseClassification(t *testing.T) {
	t.Parallel()

	out := "QUESTION_TYPE: [informational]\nPRIMARY_DOMAIN: EV\nCOMPLEXITY_LEVEL: Low\nINTENT: wants running costs\nKEY_TOPICS: charging, range, cost"
	c := parseClassification(out)

	if c.QuestionType != "informational" || c.Domain != "EV" || c.Complexity != "low" {
		t.Fatalf("parseClassification() = %+v", c)
	}
	if c.Intent != "wants running costs" {
		t.Fatalf("intent = %q", c.Intent)
	}
	if !reflect.DeepEqual(c.KeyTopics, []string{"charging", "range", "cost"}) {
		t.Fatalf("key topics = %v", c.KeyTopics)
	}
}

func TestParseClassificationFallsBackOnGarbage(t *testing.T) {
	t.Parallel()

	c := parseClassification("I could not classify this.")
	want := defaultClassification()
	if c.QuestionType != want.QuestionType || c.Domain != want.Domain {
		t.Fatalf("parseClassification() = %+v, want defaults", c)
	}
}

func TestParseStructurePlanDefaults(t *testing.T) {
	t.Parallel()

	s := defaultStructurePlan()
	if s.Length != "medium" || s.Structure != "bullets" || s.Ordering != "" {
		t.Fatalf("defaultStructurePlan() = %+v", s)
	}
}

func TestParseCoverageSpecFiltersNone(t *testing.T) {
	t.Parallel()

	out := "MUST_INCLUDE: weekly cost, inclusions\nOPTIONAL: None\nEXCLUDE: speculation"
	c := parseCoverageSpec(out)

	if !reflect.DeepEqual(c.MustInclude, []string{"weekly cost", "inclusions"}) {
		t.Fatalf("must include = %v", c.MustInclude)
	}
	if c.Optional != nil {
		t.Fatalf("optional = %v, want empty", c.Optional)
	}
	if !reflect.DeepEqual(c.Exclude, []string{"speculation"}) {
		t.Fatalf("exclude = %v", c.Exclude)
	}
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	v := parseVerdict("STATUS: APPROVED\nFIX_REQUIRED:")
	if !v.Approved || v.Fix != "" {
		t.Fatalf("parseVerdict(approved) = %+v", v)
	}

	v = parseVerdict("STATUS: FIX_REQUIRED\nFIX_REQUIRED: add weekly cost")
	if v.Approved || v.Fix != "add weekly cost" {
		t.Fatalf("parseVerdict(fix) = %+v", v)
	}

	// Unparseable verdicts approve the draft.
	v = parseVerdict("looks fine to me")
	if !v.Approved {
		t.Fatalf("parseVerdict(garbage) = %+v, want approved", v)
	}
}

func TestFallbackAnswerWithoutSnippets(t *testing.T) {
	t.Parallel()

	got := fallbackAnswer(nil)
	if got == "" {
		t.Fatal("fallback answer must never be empty")
	}
}
