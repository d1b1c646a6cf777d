package sim

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justapithecus/rlfeed/dispatch"
)

func generate(t *testing.T, cfg Config) (string, Stats) {
	t.Helper()
	g, err := New(cfg, nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	stats, err := g.Run(t.Context(), &buf)
	require.NoError(t, err)
	return buf.String(), stats
}

func TestRun_DeferredOutcomes(t *testing.T) {
	out, stats := generate(t, Config{Events: 20, Seed: 7})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 40)
	assert.Equal(t, 20, stats.Decisions)
	assert.Equal(t, 20, stats.Outcomes)

	for i := 0; i < len(lines); i += 2 {
		rec, err := dispatch.ParseLine([]byte(lines[i]))
		require.NoError(t, err)
		decision, ok := rec.(*dispatch.DecisionRecord)
		require.True(t, ok, "line %d should be a decision", i)
		assert.False(t, decision.HasImmediateOutcome())
		assert.Contains(t, string(decision.Context), `"_multi":[{"TAction":{"topic":"SkiConditions-VT"}}`)

		rec, err = dispatch.ParseLine([]byte(lines[i+1]))
		require.NoError(t, err)
		outcome, ok := rec.(*dispatch.OutcomeRecord)
		require.True(t, ok, "line %d should be an outcome", i+1)
		assert.Equal(t, decision.ID, outcome.ID)
		assert.Contains(t, []float64{0, 1}, outcome.Reward)
	}
}

func TestRun_InlineCost(t *testing.T) {
	out, stats := generate(t, Config{Events: 200, Seed: 3, InlineCost: true})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 200)
	assert.Zero(t, stats.Outcomes)

	costs := 0
	for _, line := range lines {
		rec, err := dispatch.ParseLine([]byte(line))
		require.NoError(t, err)
		decision := rec.(*dispatch.DecisionRecord)
		if decision.HasImmediateOutcome() {
			costs++
			assert.Equal(t, 1.0, decision.ImmediateOutcome())
		}
	}
	assert.Equal(t, stats.Clicks, costs)
}

func TestRun_Deterministic(t *testing.T) {
	a, _ := generate(t, Config{Events: 50, Seed: 42})
	b, _ := generate(t, Config{Events: 50, Seed: 42})
	c, _ := generate(t, Config{Events: 50, Seed: 43})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRun_CustomPersona(t *testing.T) {
	always := Persona{ID: "bot", ClickProbability: map[string]float64{"only": 1}}
	_, stats := generate(t, Config{Events: 10, Personas: []Persona{always}, Topics: []string{"only"}})
	assert.Equal(t, 10, stats.Clicks)
}

func TestNew_NoPersonas(t *testing.T) {
	_, err := New(Config{Personas: []Persona{}}, nil)
	require.ErrorIs(t, err, ErrNoPersonas)
}

func TestRun_Canceled(t *testing.T) {
	g, err := New(Config{Events: 10}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = g.Run(ctx, &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)
}
