package llm

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// ExtractJSON leniently pulls the first well-formed JSON object out of raw
// oracle output: surrounding code fences are stripped and anything outside
// the outermost braces is ignored. ok is false when no parseable object
// exists; callers then apply their fixed defaults.
func ExtractJSON(raw string) (gjson.Result, bool) {
	s := strings.TrimSpace(raw)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}
	s = s[start : end+1]
	if !gjson.Valid(s) {
		return gjson.Result{}, false
	}
	return gjson.Parse(s), true
}
