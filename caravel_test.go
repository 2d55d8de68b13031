package caravel

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentImage(t *testing.T) {
	env := Environment{ImageRepo: "registry.example.com/app"}
	assert.Equal(t, "registry.example.com/app:1.4.2", env.Image("1.4.2"))
}

func TestStatusTerminal(t *testing.T) {
	for _, st := range []Status{StatusSucceeded, StatusRolledBack, StatusFailed} {
		assert.True(t, st.Terminal(), "%s should be terminal", st)
	}
	for _, st := range []Status{
		StatusRequested, StatusWaitingApproval, StatusRollingOut,
		StatusVerifying, StatusRollingBack, StatusRollbackVerifying,
	} {
		assert.False(t, st.Terminal(), "%s should not be terminal", st)
	}
}

func TestSetStatus(t *testing.T) {
	began := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := Deployment{StartedAt: began}
	d.SetStatus(StatusRequested, began)
	d.SetStatus(StatusRollingOut, began.Add(time.Second))

	assert.Equal(t, StatusRollingOut, d.Status)
	assert.True(t, d.FinishedAt.IsZero())
	require.Len(t, d.Transitions, 2)

	finished := began.Add(time.Minute)
	d.SetStatus(StatusSucceeded, finished)
	assert.Equal(t, finished, d.FinishedAt)
	assert.Equal(t, StatusSucceeded, d.Transitions[len(d.Transitions)-1].To)
}

func TestBaseErrorJSON(t *testing.T) {
	in := ErrDeploymentInProgress("staging", "dep-1")
	helpful := in.(HelpfulError)

	buf, err := json.Marshal(helpful.Base())
	require.NoError(t, err)

	out := &BaseError{}
	require.NoError(t, json.Unmarshal(buf, out))
	assert.Equal(t, helpful.Base().Help, out.Help)
	assert.EqualError(t, out.Err, helpful.Base().Err.Error())
}
