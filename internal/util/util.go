package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NormalizePhone strips everything but digits. Validation (non-empty, no
// leading zero) happens in the dispatcher, which owns the failure message.
func NormalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RenderTemplate substitutes {{token}} occurrences from vars. Unknown tokens
// are left verbatim on purpose: template authors may use channel-specific
// tokens resolved downstream, and a visible token beats a dropped message.
func RenderTemplate(body string, vars map[string]string) string {
	out := body
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

// NewID returns a prefixed ULID. ULIDs sort by creation time, which keeps
// queue and log indexes cheap to scan in dashboards.
func NewID(prefix string) string {
	t := time.Now().UTC()
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
