package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classify.txt
	classifyRaw string

	//go:embed template/structure.txt
	structureRaw string

	//go:embed template/coverage.txt
	coverageRaw string

	//go:embed template/generate.txt
	generateRaw string

	//go:embed template/validate.txt
	validateRaw string

	//go:embed template/fix.txt
	fixRaw string

	//go:embed template/suggest.txt
	suggestRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Classify  string
	Structure string
	Coverage  string
	Generate  string
	Validate  string
	Fix       string
	Suggest   string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classify:  strings.TrimSpace(classifyRaw),
		Structure: strings.TrimSpace(structureRaw),
		Coverage:  strings.TrimSpace(coverageRaw),
		Generate:  strings.TrimSpace(generateRaw),
		Validate:  strings.TrimSpace(validateRaw),
		Fix:       strings.TrimSpace(fixRaw),
		Suggest:   strings.TrimSpace(suggestRaw),
	}
}
