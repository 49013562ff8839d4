package artifact

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stagecraft/stagecraft/internal/errors"
)

// Assumption is one entry of assumptions.yaml. Criticality grades how much
// the venture depends on the assumption holding; Validated flips once
// evidence has been recorded for it.
type Assumption struct {
	Text        string  `yaml:"text"`
	Criticality float64 `yaml:"criticality"`
	Validated   bool    `yaml:"validated"`
}

// Risk is one entry of risks.yaml.
type Risk struct {
	Text       string  `yaml:"text"`
	Severity   float64 `yaml:"severity"`
	Mitigation string  `yaml:"mitigation,omitempty"`
}

// ParseAssumptions decodes assumptions.yaml. A malformed document or an
// out-of-range criticality yields ErrMalformedArtifact naming the path.
func ParseAssumptions(data []byte) ([]Assumption, error) {
	var out []Assumption
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, malformed(AssumptionsDoc, err)
	}
	for _, a := range out {
		if a.Criticality < 0 || a.Criticality > 1 {
			return nil, malformedf(AssumptionsDoc, "criticality %v out of range [0,1]", a.Criticality)
		}
	}
	return out, nil
}

// ParseRisks decodes risks.yaml.
func ParseRisks(data []byte) ([]Risk, error) {
	var out []Risk
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, malformed(RisksDoc, err)
	}
	for _, r := range out {
		if r.Severity < 0 || r.Severity > 1 {
			return nil, malformedf(RisksDoc, "severity %v out of range [0,1]", r.Severity)
		}
	}
	return out, nil
}

// Bullets extracts the distinct bullet entries of a markdown document.
// Entries are compared after normalization (lowercased, whitespace
// collapsed) so restated duplicates count once.
func Bullets(data []byte) []string {
	return bullets(string(data))
}

// SectionBullets extracts the distinct bullets under one "## heading"
// section, up to the next heading of the same or higher level. Heading
// match is case-insensitive.
func SectionBullets(data []byte, heading string) []string {
	lines := strings.Split(string(data), "\n")
	want := strings.ToLower(strings.TrimSpace(heading))
	var section []string
	in := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			title := strings.ToLower(strings.TrimSpace(strings.TrimLeft(trimmed, "# ")))
			if in {
				break
			}
			in = title == want
			continue
		}
		if in {
			section = append(section, line)
		}
	}
	return bullets(strings.Join(section, "\n"))
}

func bullets(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		var body string
		switch {
		case strings.HasPrefix(trimmed, "- "):
			body = trimmed[2:]
		case strings.HasPrefix(trimmed, "* "):
			body = trimmed[2:]
		default:
			continue
		}
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}
		key := strings.ToLower(strings.Join(strings.Fields(body), " "))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, body)
	}
	return out
}

func malformed(path string, cause error) error {
	return errors.Wrapf(errors.Join(errors.ErrMalformedArtifact, cause), "parsing %s", path)
}

func malformedf(path, format string, args ...any) error {
	return errors.Wrapf(errors.ErrMalformedArtifact, "parsing %s: "+format, append([]any{path}, args...)...)
}
