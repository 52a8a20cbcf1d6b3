package flow

import (
	"fmt"
	"regexp"
	"strings"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
)

var (
	longDigitRun = regexp.MustCompile(`[0-9]{10,}`)
	nonDigits    = regexp.MustCompile(`[^0-9]`)
)

var questionWords = []string{
	"what", "how", "why", "when", "where", "who", "which",
	"can", "could", "would", "should", "is", "are", "do", "does",
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) < 2 {
		return "", fmt.Errorf("%w: name too short", contractx.ErrInvalidFieldFormat)
	}
	if strings.Contains(name, "@") {
		return "", fmt.Errorf("%w: name looks like an email", contractx.ErrInvalidFieldFormat)
	}
	if longDigitRun.MatchString(name) {
		return "", fmt.Errorf("%w: name looks like a phone number", contractx.ErrInvalidFieldFormat)
	}
	return name, nil
}

func validateEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("%w: email missing local part or domain", contractx.ErrInvalidFieldFormat)
	}
	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return "", fmt.Errorf("%w: email domain has no segment", contractx.ErrInvalidFieldFormat)
	}
	return email, nil
}

func validatePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	digits := nonDigits.ReplaceAllString(phone, "")
	if len(digits) < 10 {
		return "", fmt.Errorf("%w: phone has fewer than 10 digits", contractx.ErrInvalidFieldFormat)
	}
	return phone, nil
}

func validateIssue(raw string) (string, error) {
	issue := strings.TrimSpace(raw)
	if issue == "" {
		return "", fmt.Errorf("%w: issue is empty", contractx.ErrInvalidFieldFormat)
	}
	return issue, nil
}

// isQuestion decides whether a mid-collection message should be answered
// before re-prompting for the pending field.
func isQuestion(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return false
	}
	if strings.HasSuffix(lowered, "?") {
		return true
	}
	first, _, _ := strings.Cut(lowered, " ")
	for _, w := range questionWords {
		if first == w {
			return true
		}
	}
	return false
}

// parseConfirmation applies the closed confirmation grammar: the trimmed
// message must be exactly "yes" or "no", case-insensitive. Anything else is
// ambiguous and re-prompts without state change.
func parseConfirmation(text string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, contractx.ErrAmbiguousConfirmation
	}
}
