package api

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
)

// Credentials is the login payload. The wire field for the secret is
// "password".
type Credentials struct {
	Username string
	Password string
}

// LoginResult is the successful login response.
type LoginResult struct {
	Token string
}

// Login exchanges credentials for a bearer token. A non-2xx answer returns
// *AuthError carrying the server message.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	resp, err := c.do(ctx, "login", http.MethodPost, LoginPath, "", encodeCredentials(creds))
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &AuthError{
			StatusCode: resp.status,
			Message:    errorMessage(resp.body, msgLoginFailed),
		}
	}

	token, err := decodeToken(resp.body)
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}
	return &LoginResult{Token: token}, nil
}

// Probe checks whether token is accepted by a protected endpoint. Any
// non-2xx answer is an error; 401 yields ErrUnauthorized.
func (c *Client) Probe(ctx context.Context, token string) error {
	resp, err := c.do(ctx, "probe", http.MethodGet, ProductsPath, token, nil)
	if err != nil {
		return err
	}
	switch {
	case resp.ok():
		return nil
	case resp.status == http.StatusUnauthorized:
		return errors.Wrap(ErrUnauthorized, "probe")
	default:
		return &RequestFailedError{
			Op:         "probe",
			StatusCode: resp.status,
			Message:    errorMessage(resp.body, msgProbeRejected),
		}
	}
}
