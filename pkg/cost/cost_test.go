package cost

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateMistral(t *testing.T) {
	e := Estimate("Mistral Small 3.1 24B", strings.Repeat("a", 400), strings.Repeat("b", 800))

	assert.Equal(t, 100, e.InputTokens)
	assert.Equal(t, 200, e.OutputTokens)
	assert.InDelta(t, (100.0/1000)*0.0002+(200.0/1000)*0.0006, e.Cost, 1e-12)
}

func TestEstimateUnknownModelUsesDefaultRate(t *testing.T) {
	e := Estimate("some-new-model", strings.Repeat("x", 4000), strings.Repeat("y", 4000))

	assert.Equal(t, 1000, e.InputTokens)
	assert.Equal(t, 1000, e.OutputTokens)
	assert.InDelta(t, DefaultRate.InputPerK+DefaultRate.OutputPerK, e.Cost, 1e-12)
}

func TestEstimateTokensRoundsUp(t *testing.T) {
	cases := map[string]int{
		"":      0,
		"a":     1,
		"abcd":  1,
		"abcde": 2,
		"日本語です": 2,
	}
	for in, want := range cases {
		assert.Equal(t, want, EstimateTokens(in), "input %q", in)
	}
}

func TestEstimateIsMonotonicInLength(t *testing.T) {
	text := "hello world"
	prev := Estimate("LLaMA-3 70B", text, "")
	for i := 0; i < 8; i++ {
		text += text
		next := Estimate("LLaMA-3 70B", text, "")
		assert.GreaterOrEqual(t, next.InputTokens, prev.InputTokens)
		assert.GreaterOrEqual(t, next.Cost, prev.Cost)
		prev = next
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	a := Estimate("OpenAI O3 Reasoning", "question", "answer")
	b := Estimate("OpenAI O3 Reasoning", "question", "answer")
	assert.Equal(t, a, b)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "OpenAI GPT-4.1", DisplayName("gpt-4.1-nano"))
	assert.Equal(t, "Mistral Small 3.1 24B", DisplayName("mistral-small-3.1-24b-instruct"))
	assert.Equal(t, "unmapped", DisplayName("unmapped"))
}
