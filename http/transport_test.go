package http_test

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caraveld/caravel"
	transport "github.com/caraveld/caravel/http"
	"github.com/caraveld/caravel/http/client"
)

// mockAPI scripts the server side of a round trip.
type mockAPI struct {
	deployment caravel.Deployment
	status     caravel.EnvironmentStatus
	list       []caravel.Deployment
	err        error

	gotEnvironment string
	gotVersion     string
	gotID          caravel.DeploymentID
}

func (m *mockAPI) PostDeployment(_ context.Context, environment, version string) (caravel.Deployment, error) {
	m.gotEnvironment, m.gotVersion = environment, version
	return m.deployment, m.err
}

func (m *mockAPI) PostRollback(_ context.Context, environment string) (caravel.Deployment, error) {
	m.gotEnvironment = environment
	return m.deployment, m.err
}

func (m *mockAPI) PostApproval(_ context.Context, environment string, id caravel.DeploymentID) error {
	m.gotEnvironment, m.gotID = environment, id
	return m.err
}

func (m *mockAPI) Status(_ context.Context, environment string) (caravel.EnvironmentStatus, error) {
	m.gotEnvironment = environment
	return m.status, m.err
}

func (m *mockAPI) History(_ context.Context, environment string) ([]caravel.Deployment, error) {
	m.gotEnvironment = environment
	return m.list, m.err
}

func (m *mockAPI) Ping(context.Context) error {
	return m.err
}

func setup(t *testing.T, mock *mockAPI) *client.Client {
	handler := transport.NewHandler(mock, transport.NewRouter(), log.NewNopLogger())
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return client.New(stdhttp.DefaultClient, transport.NewRouter(), ts.URL)
}

func testDeployment() caravel.Deployment {
	now := time.Now().UTC().Truncate(time.Second)
	return caravel.Deployment{
		ID:          "b8e19e2e-4f8d-4f26-9c1a-0a9e2b9a2b5e",
		Environment: "staging",
		Version:     "1.4.2",
		Image:       "registry.example.com/app:1.4.2",
		Cause:       caravel.CauseRelease,
		Sequence:    7,
		Status:      caravel.StatusRequested,
		RollbackTo:  "1.4.1",
		StartedAt:   now,
		Transitions: []caravel.Transition{{To: caravel.StatusRequested, At: now}},
	}
}

func TestRoundTrip_PostDeployment(t *testing.T) {
	mock := &mockAPI{deployment: testDeployment()}
	c := setup(t, mock)

	d, err := c.PostDeployment(context.Background(), "staging", "1.4.2")
	require.NoError(t, err)
	assert.Equal(t, mock.deployment, d)
	assert.Equal(t, "staging", mock.gotEnvironment)
	assert.Equal(t, "1.4.2", mock.gotVersion)
}

func TestRoundTrip_PostRollback(t *testing.T) {
	want := testDeployment()
	want.Cause = caravel.CauseRollback
	mock := &mockAPI{deployment: want}
	c := setup(t, mock)

	d, err := c.PostRollback(context.Background(), "staging")
	require.NoError(t, err)
	assert.Equal(t, want, d)
}

func TestRoundTrip_PostApproval(t *testing.T) {
	mock := &mockAPI{}
	c := setup(t, mock)

	err := c.PostApproval(context.Background(), "staging", "dep-1")
	require.NoError(t, err)
	assert.Equal(t, "staging", mock.gotEnvironment)
	assert.Equal(t, caravel.DeploymentID("dep-1"), mock.gotID)

	// The id is optional on the wire too.
	err = c.PostApproval(context.Background(), "staging", "")
	require.NoError(t, err)
	assert.Equal(t, caravel.DeploymentID(""), mock.gotID)
}

func TestRoundTrip_Status(t *testing.T) {
	latest := testDeployment()
	mock := &mockAPI{status: caravel.EnvironmentStatus{
		Environment: caravel.Environment{Name: "staging", Fleet: "app-staging"},
		Versions:    caravel.VersionState{Current: "1.4.1", Previous: "1.4.0"},
		Latest:      &latest,
	}}
	c := setup(t, mock)

	status, err := c.Status(context.Background(), "staging")
	require.NoError(t, err)
	assert.Equal(t, mock.status, status)
}

func TestRoundTrip_History(t *testing.T) {
	mock := &mockAPI{list: []caravel.Deployment{testDeployment()}}
	c := setup(t, mock)

	list, err := c.History(context.Background(), "staging")
	require.NoError(t, err)
	assert.Equal(t, mock.list, list)
}

func TestRoundTrip_Ping(t *testing.T) {
	c := setup(t, &mockAPI{})
	assert.NoError(t, c.Ping(context.Background()))
}

func TestRoundTrip_ErrorsKeepTheirCategory(t *testing.T) {
	for name, tc := range map[string]struct {
		err  error
		want interface{}
	}{
		"missing":  {caravel.ErrUnknownEnvironment("nope"), caravel.Missing{}},
		"conflict": {caravel.ErrDeploymentInProgress("staging", "dep-1"), caravel.Conflict{}},
		"invalid":  {caravel.ErrInvalidVersion("banana", assert.AnError), caravel.Invalid{}},
	} {
		t.Run(name, func(t *testing.T) {
			c := setup(t, &mockAPI{err: tc.err})

			_, err := c.PostDeployment(context.Background(), "staging", "1.0.0")
			require.Error(t, err)
			assert.IsType(t, tc.want, err)

			// The help text survives the trip for the CLI to print.
			helpful, ok := err.(caravel.HelpfulError)
			require.True(t, ok)
			wantHelp := tc.err.(caravel.HelpfulError).Base().Help
			assert.Equal(t, wantHelp, helpful.Base().Help)
		})
	}
}

func TestRoundTrip_UnknownRouteIs404(t *testing.T) {
	mock := &mockAPI{}
	handler := transport.NewHandler(mock, transport.NewRouter(), log.NewNopLogger())
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := stdhttp.Get(ts.URL + "/v1/definitely-not-a-route")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, stdhttp.StatusNotFound, resp.StatusCode)
}
