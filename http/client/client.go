// Package client is the Go client for the daemon's HTTP API; it is
// what caravelctl talks through.
package client

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/caraveld/caravel"
	"github.com/caraveld/caravel/api"
	transport "github.com/caraveld/caravel/http"
)

type Client struct {
	client   *http.Client
	router   *mux.Router
	endpoint string
}

var _ api.Server = &Client{}

func New(c *http.Client, router *mux.Router, endpoint string) *Client {
	return &Client{
		client:   c,
		router:   router,
		endpoint: strings.TrimSuffix(endpoint, "/"),
	}
}

func (c *Client) PostDeployment(ctx context.Context, environment, version string) (caravel.Deployment, error) {
	var d caravel.Deployment
	err := c.post(ctx, &d, transport.PostDeployment, "environment", environment, "version", version)
	return d, err
}

func (c *Client) PostRollback(ctx context.Context, environment string) (caravel.Deployment, error) {
	var d caravel.Deployment
	err := c.post(ctx, &d, transport.PostRollback, "environment", environment)
	return d, err
}

func (c *Client) PostApproval(ctx context.Context, environment string, id caravel.DeploymentID) error {
	return c.post(ctx, nil, transport.PostApproval, "environment", environment, "deployment", string(id))
}

func (c *Client) Status(ctx context.Context, environment string) (caravel.EnvironmentStatus, error) {
	var status caravel.EnvironmentStatus
	err := c.get(ctx, &status, transport.GetStatus, "environment", environment)
	return status, err
}

func (c *Client) History(ctx context.Context, environment string) ([]caravel.Deployment, error) {
	var deployments []caravel.Deployment
	err := c.get(ctx, &deployments, transport.GetHistory, "environment", environment)
	return deployments, err
}

func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, nil, transport.IsConnected)
}

func (c *Client) get(ctx context.Context, res interface{}, route string, queryParams ...string) error {
	return c.do(ctx, "GET", res, route, queryParams...)
}

func (c *Client) post(ctx context.Context, res interface{}, route string, queryParams ...string) error {
	return c.do(ctx, "POST", res, route, queryParams...)
}

func (c *Client) do(ctx context.Context, method string, res interface{}, route string, queryParams ...string) error {
	u, err := c.url(route, queryParams...)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "constructing request")
	}
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrapf(err, "executing HTTP request against %s", u.Host)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if res == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(res), "decoding response")
}

// url resolves a named route against the endpoint, putting the pairs
// in the query string. Extra pairs beyond what the route declares are
// fine; the handlers read them from the query directly.
func (c *Client) url(route string, queryParams ...string) (*url.URL, error) {
	if len(queryParams)%2 != 0 {
		return nil, errors.New("query params must come in pairs")
	}
	base, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "parsing endpoint")
	}
	path, err := c.router.Get(route).URLPath()
	if err != nil {
		return nil, errors.Wrapf(err, "resolving route %s", route)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + path.Path

	query := url.Values{}
	for i := 0; i < len(queryParams); i += 2 {
		if queryParams[i+1] != "" {
			query.Set(queryParams[i], queryParams[i+1])
		}
	}
	base.RawQuery = query.Encode()
	return base, nil
}

// errorFromResponse reconstructs the server's typed error so callers
// can distinguish "doesn't exist" from "already in progress" without
// string matching.
func errorFromResponse(resp *http.Response) error {
	base := &caravel.BaseError{}
	if err := json.NewDecoder(resp.Body).Decode(base); err != nil {
		body, _ := ioutil.ReadAll(resp.Body)
		base.Help = strings.TrimSpace(string(body))
		base.Err = errors.Errorf("server returned %s", resp.Status)
	}
	if base.Err == nil {
		base.Err = errors.Errorf("server returned %s", resp.Status)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return caravel.Missing{BaseError: base}
	case http.StatusConflict:
		return caravel.Conflict{BaseError: base}
	case http.StatusBadRequest:
		return caravel.Invalid{BaseError: base}
	case http.StatusServiceUnavailable:
		return caravel.Unavailable{BaseError: base}
	default:
		return base
	}
}
