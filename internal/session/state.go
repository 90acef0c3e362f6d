// Package session owns "who is logged in and what do we know about them".
// A pure reducer over a closed action set holds the transition rules; Session
// wraps it with the network operations and token persistence.
package session

import "github.com/leonanthomaz/firecloud-console/internal/identity"

// State is the session snapshot readable by the rest of the gateway.
type State struct {
	Authenticated bool
	Data          *identity.Document
	Loading       bool
	Err           string
}

type actionKind int

const (
	actionRequest actionKind = iota
	actionSuccess
	actionFailure
	actionClear
	actionSetIdentity
	actionSetLoading
	actionSetError
)

// action is the closed variant consumed by reduce. Exactly one payload field
// is meaningful per kind.
type action struct {
	kind    actionKind
	doc     *identity.Document
	msg     string
	loading bool
}

func request() action                          { return action{kind: actionRequest} }
func success(doc *identity.Document) action   { return action{kind: actionSuccess, doc: doc} }
func failure(msg string) action                { return action{kind: actionFailure, msg: msg} }
func clear() action                            { return action{kind: actionClear} }
func setIdentity(doc *identity.Document) action { return action{kind: actionSetIdentity, doc: doc} }
func setLoading(v bool) action                 { return action{kind: actionSetLoading, loading: v} }
func setError(msg string) action               { return action{kind: actionSetError, msg: msg} }

// reduce applies one action, replacing the prior state atomically. It never
// mutates its inputs.
func reduce(s State, a action) State {
	switch a.kind {
	case actionRequest:
		s.Loading = true
		s.Err = ""
	case actionSuccess:
		s.Authenticated = true
		s.Data = a.doc
		s.Loading = false
		s.Err = ""
	case actionFailure:
		s.Authenticated = false
		s.Data = nil
		s.Loading = false
		s.Err = a.msg
	case actionClear:
		// Loading and error are left as-is: callers settle them themselves.
		s.Authenticated = false
		s.Data = nil
	case actionSetIdentity:
		// Replaces the document wholesale without touching the auth flag.
		s.Data = a.doc
	case actionSetLoading:
		s.Loading = a.loading
	case actionSetError:
		s.Err = a.msg
	}
	return s
}
