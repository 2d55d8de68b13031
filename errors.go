package caravel

import (
	"encoding/json"
	"errors"
	"fmt"
)

type HelpfulError interface {
	Base() *BaseError
}

// Representation of failures surfaced to users. These are divided into
// a small number of categories, essentially distinguished by what the
// user can do about the error; i.e., is this error:
//  - about something that doesn't exist, so check the name?
//  - a conflict with in-flight work, so wait or watch that instead?
//  - a malformed request, so fix the invocation?
//  - the system itself misbehaving, so call an operator?

type BaseError struct {
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
}

func (e *BaseError) Base() *BaseError {
	return e
}

func (e *BaseError) Error() string {
	return e.Err.Error()
}

func (e *BaseError) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{
		Help: e.Help,
		Err:  errMsg,
	}
	return json.Marshal(jsonable)
}

func (e *BaseError) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	e.Help = jsonable.Help
	if jsonable.Err != "" {
		e.Err = errors.New(jsonable.Err)
	}
	return nil
}

// The thing you asked for just doesn't exist.
type Missing struct {
	*BaseError
}

// The request collides with work already in flight.
type Conflict struct {
	*BaseError
}

// The request itself is malformed.
type Invalid struct {
	*BaseError
}

// The system cannot act on the request right now; most likely the
// persistence layer is unreachable. Retrying later may help, but the
// current operation is over.
type Unavailable struct {
	*BaseError
}

func ErrUnknownEnvironment(name string) error {
	return Missing{&BaseError{
		Help: fmt.Sprintf(`The environment %q is not configured.

Environments are declared in the daemon's configuration file; check the
spelling against what "caravelctl status" knows about.`, name),
		Err: fmt.Errorf("unknown environment %q", name),
	}}
}

func ErrNoRollbackTarget(env string) error {
	return Missing{&BaseError{
		Help: fmt.Sprintf(`There is no known-good version to roll %q back to.

This happens when no deployment to the environment has ever been
confirmed healthy. You will need to deploy a working version rather
than roll back.`, env),
		Err: fmt.Errorf("no rollback target for environment %q", env),
	}}
}

func ErrDeploymentInProgress(env string, id DeploymentID) error {
	return Conflict{&BaseError{
		Help: fmt.Sprintf(`A deployment to %q is already in progress.

Only one deployment per environment may be active at a time. Watch the
active deployment (%s) with "caravelctl status", and retry once it has
finished.`, env, id),
		Err: fmt.Errorf("deployment already in progress for environment %q", env),
	}}
}

func ErrInvalidVersion(v string, err error) error {
	return Invalid{&BaseError{
		Help: fmt.Sprintf(`The version %q could not be parsed.

Versions are semantic version strings, e.g. "1.4.2".`, v),
		Err: fmt.Errorf("invalid version %q: %v", v, err),
	}}
}

func ErrNoApprovalPending(env string) error {
	return Missing{&BaseError{
		Help: fmt.Sprintf(`No deployment to %q is waiting for approval.

Approval only applies while a deployment is in the WaitingApproval
state; check "caravelctl status".`, env),
		Err: fmt.Errorf("no deployment awaiting approval for environment %q", env),
	}}
}

// Reasons recorded on a Deployment when it reaches a terminal state
// via a failure path. These are for humans reading history, but tests
// and the CLI also key off them, so treat them as stable.
const (
	ReasonNoRollbackTarget = "NoRollbackTarget"
)
