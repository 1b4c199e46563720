// Package metrics renders GitLab access tokens in Prometheus text exposition format.
package metrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/port"
)

// ContentType is the Prometheus text format media type.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

const metricPrefix = "gitlab_token_"

// Renderer builds one gauge family per project access token. The sample value
// is the number of whole days left before the token expires. Tokens sharing a
// family name (a rotated token and its revoked predecessor, or names that
// collide once sanitized) are told apart by the token_id label and merged by Join.
type Renderer struct {
	now func() time.Time
}

// NewRenderer returns a Renderer using now as its clock; nil means time.Now.
func NewRenderer(now func() time.Time) *Renderer {
	if now == nil {
		now = time.Now
	}
	return &Renderer{now: now}
}

// Render implements port.Renderer.
func (r *Renderer) Render(project domain.Project, token domain.AccessToken) (string, error) {
	if project.PathWithNamespace == "" {
		return "", fmt.Errorf("%w: project %d has no path", port.ErrInvalidRenderInput, project.ID)
	}
	if token.Name == "" {
		return "", fmt.Errorf("%w: unnamed token in project %s", port.ErrInvalidRenderInput, project.PathWithNamespace)
	}

	name := metricPrefix + sanitizeName(project.PathWithNamespace) + "_" + sanitizeName(token.Name)

	var b strings.Builder
	b.Grow(256)

	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteString(" Gitlab token\n")
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" gauge\n")

	b.WriteString(name)
	b.WriteByte('{')
	writeLabel(&b, "project", project.PathWithNamespace, true)
	writeLabel(&b, "token_name", token.Name, false)
	writeLabel(&b, "token_id", strconv.Itoa(token.ID), false)
	writeLabel(&b, "token_type", "project", false)
	writeLabel(&b, "active", strconv.FormatBool(token.Active), false)
	writeLabel(&b, "revoked", strconv.FormatBool(token.Revoked), false)
	writeLabel(&b, "access_level", token.AccessLevel.String(), false)
	writeLabel(&b, "scopes", strings.Join(token.Scopes, ","), false)
	b.WriteString("} ")
	b.WriteString(formatValue(r.daysLeft(token.ExpiresAt)))
	b.WriteByte('\n')

	return b.String(), nil
}

// Join implements port.FragmentJoiner. Each family keeps a single HELP and
// TYPE line and all of its samples, in order of first appearance.
func (r *Renderer) Join(fragments []string) string {
	type family struct {
		header  []string
		seen    map[string]bool
		samples []string
	}
	var order []string
	families := make(map[string]*family)
	get := func(name string) *family {
		f, ok := families[name]
		if !ok {
			f = &family{seen: make(map[string]bool)}
			families[name] = f
			order = append(order, name)
		}
		return f
	}

	for _, fragment := range fragments {
		for line := range strings.Lines(fragment) {
			line = strings.TrimSuffix(line, "\n")
			if line == "" {
				continue
			}
			if kind, rest, ok := strings.Cut(line, " "); ok && kind == "#" {
				// "# HELP name ..." or "# TYPE name ..."
				fields := strings.Fields(rest)
				if len(fields) < 2 {
					continue
				}
				f := get(fields[1])
				if !f.seen[fields[0]] {
					f.seen[fields[0]] = true
					f.header = append(f.header, line)
				}
				continue
			}
			name := line
			if i := strings.IndexAny(line, "{ "); i >= 0 {
				name = line[:i]
			}
			f := get(name)
			f.samples = append(f.samples, line)
		}
	}

	var b strings.Builder
	for _, name := range order {
		f := families[name]
		for _, line := range f.header {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		for _, line := range f.samples {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// daysLeft counts whole days from today (UTC) to expiry. Never-expiring tokens are +Inf.
func (r *Renderer) daysLeft(expires domain.Date) float64 {
	if expires.IsZero() {
		return math.Inf(1)
	}
	now := r.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return math.Round(expires.Time().Sub(today).Hours() / 24)
}

func formatValue(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeLabel(b *strings.Builder, key, value string, first bool) {
	if !first {
		b.WriteByte(',')
	}
	b.WriteString(key)
	b.WriteString(`="`)
	b.WriteString(escapeLabel(value))
	b.WriteByte('"')
}

// sanitizeName maps everything outside [a-zA-Z0-9_] to '_'.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)

func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}
