// Package validator defines the contract of the remote account
// validation/query service and provides its HTTP implementation. The service
// itself is a black box to the reconciliation core: this package only shapes
// requests and decodes the {code, data} response envelope.
package validator

import (
	"context"
	"net/http"

	"github.com/account-reconciler/internal/types"
)

// CodeOK is the only response code the core treats as success.
const CodeOK = http.StatusOK

// Response is the envelope every service endpoint returns. Any code other
// than 200 is a failure; no further structured error detail is guaranteed.
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data []types.Row `json:"data,omitempty"`
}

// OK reports whether the response signals success.
func (r *Response) OK() bool {
	return r != nil && r.Code == CodeOK
}

// Client is the validation-service collaborator consumed by the
// orchestrator.
type Client interface {
	// ListAccounts returns an unvalidated roster snapshot.
	ListAccounts(ctx context.Context) (*Response, error)

	// ListValidatedAccounts validates and returns the whole roster, or just
	// one account when id is non-nil.
	ListValidatedAccounts(ctx context.Context, id *int64) (*Response, error)

	// DeleteAccount removes an account on the remote side.
	DeleteAccount(ctx context.Context, id int64) (*Response, error)
}
