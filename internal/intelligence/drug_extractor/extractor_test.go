package drug_extractor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/trialscope/internal/domain/trial"
	"github.com/turtacn/trialscope/internal/testutil"
	"github.com/turtacn/trialscope/pkg/errors"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestBuildPrompt(t *testing.T) {
	p, err := BuildPrompt("Placebo, Metformin 500 mg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, "\ninput:\nPlacebo, Metformin 500 mg\n\noutput:"))
	assert.Contains(t, p, "Example 8")
	assert.Contains(t, p, "Rules:")
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"budesonide, formoterol, salbutamol", []string{"budesonide", "formoterol", "salbutamol"}},
		{"  VC005  ", []string{"VC005"}},
		{"", []string{}},
		{" , ,", []string{}},
		{"a,,b", []string{"a", "b"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseResponse(tc.in), tc.in)
	}
}

func TestExtractDrugs(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "input:\nLevalbuterol tartrate MDI\n")
	})).Return("Levalbuterol", nil)

	drugs, err := NewExtractor(gen, nil).ExtractDrugs(context.Background(), "Levalbuterol tartrate MDI")
	require.NoError(t, err)
	assert.Equal(t, []string{"Levalbuterol"}, drugs)
	gen.AssertExpectations(t)
}

func TestExtractDrugs_Error(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.Unavailable("down"))

	_, err := NewExtractor(gen, nil).ExtractDrugs(context.Background(), "x")
	assert.True(t, errors.IsCode(err, errors.CodeAIInferenceFailed))
}

func TestExtractTrials_DegradesFailures(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool { return strings.Contains(p, "input:\nbad\n") })).
		Return("", errors.Unavailable("down"))
	gen.On("Generate", mock.Anything, mock.Anything).Return("aspirin", nil)

	logger := testutil.NewMockLogger()
	out, err := NewExtractor(gen, logger).ExtractTrials(context.Background(), []trial.Trial{
		{NCTID: "NCT1", DrugNames: "bad"},
		{NCTID: "NCT2", DrugNames: "Aspirin 81 mg"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Empty(t, out[0].ExtractedDrugs)
	assert.Equal(t, []string{"aspirin"}, out[1].ExtractedDrugs)
	assert.Equal(t, "Aspirin 81 mg", out[1].OriginalDrugNames)
	assert.True(t, logger.HasMessage("warn", "drug extraction failed"))
}

func TestExtractTrials_StopsOnRateLimit(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.RateLimited(time.Minute, "slow down")).Once()

	out, err := NewExtractor(gen, nil).ExtractTrials(context.Background(), []trial.Trial{{NCTID: "NCT1"}, {NCTID: "NCT2"}})
	require.Error(t, err)
	assert.True(t, errors.IsRateLimited(err))
	assert.Equal(t, time.Minute, errors.RetryAfterOf(err))
	assert.Empty(t, out)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}
