package prompts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterPromptStatesOutputContract(t *testing.T) {
	out, err := RenderRouterSystem(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "Return ONLY one word: OFF_TOPIC, DIRECT or PLAN.")
	assert.Contains(t, out, "If you are unsure, answer PLAN.")
}

func TestExecutorPromptListsToolsAndDate(t *testing.T) {
	day := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)
	out, err := RenderExecutorSystem(context.Background(), day, []string{"search_flights", "get_current_time"})
	require.NoError(t, err)
	assert.Contains(t, out, "Today is Tuesday, 3 June 2025.")
	assert.Contains(t, out, "search_flights, get_current_time")
}

func TestVerifierRequestEmbedsQueryAndExecution(t *testing.T) {
	out, err := RenderVerifierRequest(context.Background(), "Weather in Rome?", "Mild, 18C.")
	require.NoError(t, err)
	assert.Contains(t, out, "Query:\nWeather in Rome?")
	assert.Contains(t, out, "Proposed answer:\nMild, 18C.")
}

func TestSummaryPromptOptionalPrevious(t *testing.T) {
	fresh, err := RenderSummary(context.Background(), "", "user: hi")
	require.NoError(t, err)
	assert.NotContains(t, fresh, "Summary so far")
	assert.Contains(t, fresh, "user: hi")

	ext, err := RenderSummary(context.Background(), "Going to Lisbon in May.", "user: and hotels?")
	require.NoError(t, err)
	assert.Contains(t, ext, "Summary so far:\nGoing to Lisbon in May.")
}
