package roster

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// Fields carries the values substituted into a message template.
type Fields struct {
	Name         string
	Date         string
	Time         string
	Professional string
	Service      string
	Location     string
}

// Render substitutes the named placeholders into a template. Placeholders
// without a value, or unknown ones, are dropped rather than left literal.
func Render(template string, f Fields) string {
	replacer := strings.NewReplacer(
		"{name}", f.Name,
		"{date}", f.Date,
		"{time}", f.Time,
		"{professional}", f.Professional,
		"{service}", f.Service,
		"{location}", f.Location,
	)
	out := replacer.Replace(template)
	out = placeholderPattern.ReplaceAllString(out, "")
	return strings.Join(strings.Fields(out), " ")
}
