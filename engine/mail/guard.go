package mail

import (
	"fmt"
	"regexp"
)

// Patterns that commonly indicate prompt-injection attempts. Matches are
// reported as flags on the run; they never block triage.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ignore (all|previous) instructions`),
	regexp.MustCompile(`system prompt`),
	regexp.MustCompile(`developer message`),
	regexp.MustCompile(`you are now`),
	regexp.MustCompile(`act as`),
	regexp.MustCompile(`jailbreak`),
	regexp.MustCompile(`do anything now`),
}

// Guard screens the email for injection patterns and oversized content.
// Returns ok=false with human-readable flags when anything is suspicious.
func Guard(e Email) (bool, []string) {
	var flags []string
	if hits := injectionHits(e.Text()); len(hits) > 0 {
		flags = append(flags, fmt.Sprintf("Possible prompt-injection patterns detected: %v", hits))
	}
	if len([]rune(e.Body)) > MaxBodyLength {
		flags = append(flags, "Body too large; truncated.")
	}
	return len(flags) == 0, flags
}

func injectionHits(text string) []string {
	var hits []string
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			hits = append(hits, pat.String())
		}
	}
	return hits
}
