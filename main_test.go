package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wex47/Orbi/internal/agent/graph/tools"
	"github.com/Wex47/Orbi/internal/agent/model"
	"github.com/Wex47/Orbi/internal/datacache"
	"github.com/Wex47/Orbi/internal/travel"
	"github.com/Wex47/Orbi/pkg/httpclient"
)

type echoRunner struct {
	inputs []model.QueryInput
	err    error
}

func (r *echoRunner) Invoke(_ context.Context, in model.QueryInput) (string, error) {
	r.inputs = append(r.inputs, in)
	if r.err != nil {
		return "", r.err
	}
	return "echo " + in.Query, nil
}

func TestChatLoopStopsOnQuit(t *testing.T) {
	runner := &echoRunner{}
	var out bytes.Buffer
	in := strings.NewReader("hello\n\n  \nQUIT\nnever sent\n")

	require.NoError(t, chat(context.Background(), runner, in, &out, "42", false))
	require.Len(t, runner.inputs, 1)
	assert.Equal(t, model.QueryInput{ConversationID: "42", Query: "hello"}, runner.inputs[0])
	assert.Contains(t, out.String(), "[thread_id=42]")
	assert.Contains(t, out.String(), "Agent: echo hello")
}

func TestChatLoopOnce(t *testing.T) {
	runner := &echoRunner{}
	var out bytes.Buffer
	require.NoError(t, chat(context.Background(), runner, strings.NewReader("one\ntwo\n"), &out, "1", true))
	assert.Len(t, runner.inputs, 1)
	assert.Equal(t, "\nAgent: echo one\n", out.String())
}

func TestChatLoopSurvivesFailedTurn(t *testing.T) {
	runner := &echoRunner{err: errors.New("upstream down")}
	var out bytes.Buffer
	require.NoError(t, chat(context.Background(), runner, strings.NewReader("a\nb\n"), &out, "1", false))
	assert.Len(t, runner.inputs, 2)
	assert.Contains(t, out.String(), "something went wrong")

	err := chat(context.Background(), runner, strings.NewReader("a\n"), &bytes.Buffer{}, "1", true)
	assert.ErrorContains(t, err, "upstream down")
}

func TestToolProviderSkipsToolsWithoutCredentials(t *testing.T) {
	provider := toolProvider(travel.Config{}, httpclient.Config{}.New(), datacache.NewMemoryBackend())
	ts, err := provider(context.Background())
	require.NoError(t, err)

	infos, err := tools.GetToolInfos(context.Background(), ts)
	require.NoError(t, err)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.NotContains(t, names, tools.ToolSearchFlights)
	assert.NotContains(t, names, tools.ToolVisaRequirements)
	assert.Contains(t, names, tools.ToolTravelWarnings)

	provider = toolProvider(travel.Config{AmadeusAPIKey: "k", AmadeusAPISecret: "s", RapidAPIKey: "r"}, httpclient.Config{}.New(), datacache.NewMemoryBackend())
	ts, err = provider(context.Background())
	require.NoError(t, err)
	assert.Len(t, ts, 7)
}

func TestRootCommandFlags(t *testing.T) {
	t.Setenv("THREAD_ID", "trip-7")
	cmd := newRootCmd()
	assert.Equal(t, "orbi", cmd.Use)
	assert.Equal(t, "trip-7", cmd.Flags().Lookup("thread").DefValue)
	assert.Equal(t, "false", cmd.Flags().Lookup("once").DefValue)
}
