package ledger

import (
	"strconv"
	"strings"

	"github.com/stagecraft/stagecraft/internal/errors"
)

// The decision log is a sequence of labeled text blocks separated by "---"
// lines. Label text and order are an external contract: downstream tooling
// and humans parse these blocks out of branch history, so both must be
// preserved exactly on round trip.
const (
	labelName          = "Decision"
	labelType          = "Decision Type"
	labelAlternatives  = "Alternatives Considered"
	labelChosen        = "Chosen"
	labelReason        = "Reason"
	labelConfidence    = "Confidence"
	labelRevisit       = "Revisit Probability"
	labelContext       = "Context"
	labelReversal      = "Reversal Of"
	recordSeparator    = "---"
	alternativeDivider = ", "
)

// Encode renders one decision record as its wire block. Multi-line free
// text is folded to single lines so the block stays line-parseable.
func Encode(d *Decision) string {
	var b strings.Builder
	writeField(&b, labelName, d.Name)
	writeField(&b, labelType, string(d.Type))
	writeField(&b, labelAlternatives, strings.Join(d.Alternatives, alternativeDivider))
	writeField(&b, labelChosen, d.Chosen)
	writeField(&b, labelReason, d.Reason)
	writeField(&b, labelConfidence, formatScore(d.Confidence))
	writeField(&b, labelRevisit, formatScore(d.RevisitProbability))
	if d.Context != "" {
		writeField(&b, labelContext, d.Context)
	}
	if d.ReversalOf != "" {
		writeField(&b, labelReversal, d.ReversalOf)
	}
	return b.String()
}

// AppendRecord returns the log with one more encoded record, inserting the
// separator when the log already has content.
func AppendRecord(log []byte, d *Decision) []byte {
	var b strings.Builder
	existing := strings.TrimRight(string(log), "\n")
	if existing != "" {
		b.WriteString(existing)
		b.WriteString("\n")
		b.WriteString(recordSeparator)
		b.WriteString("\n")
	}
	b.WriteString(Encode(d))
	return []byte(b.String())
}

// ParseLog decodes every record of a decision log, oldest first. A block
// that fails to decode poisons the whole log; logs are machine-written, so
// a bad block means corruption, not user error.
func ParseLog(data []byte) ([]*Decision, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	var out []*Decision
	for _, block := range splitRecords(text) {
		d, err := parseRecord(block)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func splitRecords(text string) []string {
	var records []string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == recordSeparator {
			records = append(records, strings.Join(current, "\n"))
			current = current[:0]
			continue
		}
		current = append(current, line)
	}
	return append(records, strings.Join(current, "\n"))
}

func parseRecord(block string) (*Decision, error) {
	fields := make(map[string]string)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, value, ok := strings.Cut(line, ": ")
		if !ok {
			label, value, ok = strings.Cut(line, ":")
			if !ok {
				return nil, malformedRecord("line %q has no label", line)
			}
		}
		fields[label] = strings.TrimSpace(value)
	}

	name, ok := fields[labelName]
	if !ok || name == "" {
		return nil, malformedRecord("record has no %q field", labelName)
	}
	d := &Decision{
		Name:       name,
		Type:       Type(fields[labelType]),
		Chosen:     fields[labelChosen],
		Reason:     fields[labelReason],
		Context:    fields[labelContext],
		ReversalOf: fields[labelReversal],
	}
	if alts := fields[labelAlternatives]; alts != "" {
		for _, a := range strings.Split(alts, ",") {
			if a = strings.TrimSpace(a); a != "" {
				d.Alternatives = append(d.Alternatives, a)
			}
		}
	}
	var err error
	if d.Confidence, err = parseScore(fields[labelConfidence]); err != nil {
		return nil, malformedRecord("record %q: bad %s: %v", name, labelConfidence, err)
	}
	if d.RevisitProbability, err = parseScore(fields[labelRevisit]); err != nil {
		return nil, malformedRecord("record %q: bad %s: %v", name, labelRevisit, err)
	}
	return d, nil
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(strings.Join(strings.Fields(value), " "))
	b.WriteString("\n")
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseScore(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("missing")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 1 {
		return 0, errors.New("out of range [0,1]")
	}
	return f, nil
}

func malformedRecord(format string, args ...any) error {
	return errors.Wrapf(errors.ErrMalformedArtifact, "decision log: "+format, args...)
}
