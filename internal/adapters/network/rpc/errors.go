package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/filecoin-project/go-jsonrpc"
)

const ERemote = iota + jsonrpc.FirstUserCode

// Errors maps RemoteError to its JSON-RPC code on both ends.
var Errors = jsonrpc.NewErrors()

func init() {
	Errors.Register(ERemote, new(*RemoteError))
}

type errorKind struct {
	name string
	err  error
}

// kinds is ordered most specific first: several messages contain
// "not found".
var kinds = []errorKind{
	{"invalid_email", domain.ErrInvalidEmail},
	{"plan_not_found", domain.ErrPlanNotFound},
	{"account_missing", domain.ErrAccountNotFound},
	{"unauthorized", domain.ErrUnauthorized},
	{"canceled", context.Canceled},
	{"deadline", context.DeadlineExceeded},
	{"not_found", domain.ErrNotFound},
}

// RemoteError carries a service failure across the wire. Kind names the
// domain error it wraps so errors.Is keeps working on the client.
type RemoteError struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "remote error"
	}

	return e.Message
}

func (e *RemoteError) Unwrap() error {
	for _, kind := range kinds {
		if kind.name == e.Kind {
			return kind.err
		}
	}

	return nil
}

type remoteErrorJSON RemoteError

func (e *RemoteError) MarshalJSON() ([]byte, error) {
	return json.Marshal((*remoteErrorJSON)(e))
}

func (e *RemoteError) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, (*remoteErrorJSON)(e))
}

func kindOf(err error) string {
	for _, kind := range kinds {
		if errors.Is(err, kind.err) {
			return kind.name
		}
	}

	return ""
}

// toRemote converts a service error into the one type the server registers.
func toRemote(err error) error {
	if err == nil {
		return nil
	}

	return &RemoteError{Kind: kindOf(err), Message: err.Error()}
}

// fromRemote restores a RemoteError on the client. Errors that arrive as
// plain JSON-RPC errors are matched by message.
func fromRemote(err error) error {
	if err == nil {
		return nil
	}

	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote
	}

	var rpcErr *jsonrpc.JSONRPCError
	if errors.As(err, &rpcErr) {
		restored := &RemoteError{Message: rpcErr.Message}
		for _, kind := range kinds {
			if strings.Contains(rpcErr.Message, kind.err.Error()) {
				restored.Kind = kind.name
				break
			}
		}
		return restored
	}

	return err
}
