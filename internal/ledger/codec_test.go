package ledger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagecraft/stagecraft/internal/errors"
)

func TestEncodeLabelOrder(t *testing.T) {
	d := &Decision{
		Name:               "use-database",
		Type:               TechnologyChoice,
		Alternatives:       []string{"PostgreSQL", "MongoDB"},
		Chosen:             "PostgreSQL",
		Reason:             "relational fit",
		Confidence:         0.85,
		RevisitProbability: 0.05,
		Context:            "requirements generation",
		ReversalOf:         "requirements#1",
	}

	want := "Decision: use-database\n" +
		"Decision Type: technology-choice\n" +
		"Alternatives Considered: PostgreSQL, MongoDB\n" +
		"Chosen: PostgreSQL\n" +
		"Reason: relational fit\n" +
		"Confidence: 0.85\n" +
		"Revisit Probability: 0.05\n" +
		"Context: requirements generation\n" +
		"Reversal Of: requirements#1\n"
	assert.Equal(t, want, Encode(d))
}

func TestEncodeOmitsEmptyOptionalFields(t *testing.T) {
	d := &Decision{
		Name: "use-database", Type: TechnologyChoice,
		Chosen: "PostgreSQL", Confidence: 0.85, RevisitProbability: 0.05,
	}
	out := Encode(d)
	assert.NotContains(t, out, "Context:")
	assert.NotContains(t, out, "Reversal Of:")
}

func TestLogRoundTrip(t *testing.T) {
	first := &Decision{
		Name:               "use-database",
		Type:               TechnologyChoice,
		Alternatives:       []string{"PostgreSQL", "MongoDB", "SQLite"},
		Chosen:             "PostgreSQL",
		Reason:             "relational fit and team familiarity",
		Confidence:         0.85,
		RevisitProbability: 0.05,
	}
	second := &Decision{
		Name:               "pricing-model",
		Type:               BusinessModel,
		Alternatives:       []string{"subscription", "usage-based"},
		Chosen:             "usage-based",
		Reason:             "aligns revenue with cost",
		Confidence:         0.7,
		RevisitProbability: 0.9,
		ReversalOf:         "requirements#2",
	}

	log := AppendRecord(AppendRecord(nil, first), second)
	got, err := ParseLog(log)
	require.NoError(t, err)
	require.Len(t, got, 2)

	opts := cmp.Options{
		cmpopts.IgnoreFields(Decision{}, "Branch", "CommitSHA"),
		cmpopts.IgnoreUnexported(Decision{}),
	}
	assert.Empty(t, cmp.Diff(first, got[0], opts))
	assert.Empty(t, cmp.Diff(second, got[1], opts))
}

func TestEncodeFoldsMultilineText(t *testing.T) {
	d := &Decision{
		Name: "use-database", Type: TechnologyChoice,
		Chosen: "PostgreSQL", Confidence: 0.85, RevisitProbability: 0.05,
		Reason: "relational fit\nand mature tooling",
	}
	recs, err := ParseLog([]byte(Encode(d)))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "relational fit and mature tooling", recs[0].Reason)
}

func TestParseLogEmpty(t *testing.T) {
	recs, err := ParseLog(nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestParseLogMalformed(t *testing.T) {
	for _, bad := range []string{
		"Decision Type: technology-choice\nChosen: x\n",
		"Decision: x\nConfidence: not-a-number\nRevisit Probability: 0.1\n",
		"Decision: x\nConfidence: 1.5\nRevisit Probability: 0.1\n",
	} {
		_, err := ParseLog([]byte(bad))
		require.Error(t, err, "log: %q", bad)
		assert.True(t, errors.Is(err, errors.ErrMalformedArtifact))
	}
}
