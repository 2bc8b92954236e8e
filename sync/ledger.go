package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
)

const (
	ledgerLoginPath  = "/Login"
	ledgerLogoutPath = "/Logout"
)

// LedgerSession is the narrow query capability an authenticated ledger
// session provides. The sync core never manages the session lifecycle beyond
// Connect and Close.
type LedgerSession interface {
	// Query issues one GET against the Service Layer. path may be absolute
	// (as returned in pagination links) or relative to the endpoint, with an
	// unencoded query string.
	Query(path string, ctx context.Context) (string, error)
	// Close logs the session out. Failures are warnings, never an abort.
	Close(ctx context.Context) error
}

// LedgerConnector acquires a ledger session for one run.
type LedgerConnector interface {
	Connect(ctx context.Context) (LedgerSession, error)
}

// ServiceLayerConnector logs in to the SAP Business One Service Layer and
// hands out cookie-authenticated sessions.
type ServiceLayerConnector struct {
	*SyncContext
}

func (c ServiceLayerConnector) ledgerAPIBuilder(path string) *requests.Builder {
	result := requests.
		URL(ledgerURL(c.Config.API.Endpoints.Ledger, path)).
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if c.Transport != nil {
		result = result.Transport(c.Transport)
	}
	return result
}

// ledgerURL joins a path under the endpoint without disturbing the endpoint's
// own base path (e.g. "/b1s/v1").
func ledgerURL(endpoint, path string) string {
	return strings.TrimSuffix(endpoint, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Connect performs the Service Layer login and returns a session carrying the
// B1SESSION and ROUTEID cookies.
func (c ServiceLayerConnector) Connect(ctx context.Context) (LedgerSession, error) {
	payload := struct {
		CompanyDB string
		UserName  string
		Password  string
	}{
		CompanyDB: c.Config.Ledger.CompanyDB,
		UserName:  c.Config.Ledger.Username,
		Password:  c.Config.Ledger.Password,
	}

	var cookies []string
	err := c.ledgerAPIBuilder(ledgerLoginPath).
		BodyJSON(&payload).
		Handle(func(response *http.Response) error {
			for _, sc := range response.Header.Values("Set-Cookie") {
				if i := strings.IndexByte(sc, ';'); i > 0 {
					sc = sc[:i]
				}
				cookies = append(cookies, sc)
			}
			return nil
		}).
		Fetch(ctx)
	if err != nil {
		return nil, &SourceError{Op: "login", Err: err}
	}
	if len(cookies) == 0 {
		return nil, &SourceError{Op: "login", Err: fmt.Errorf("no session cookie received")}
	}

	c.Logger.Info().Msg("ledger session established")
	return &serviceLayerSession{
		SyncContext: c.SyncContext,
		cookie:      strings.Join(cookies, "; "),
	}, nil
}

type serviceLayerSession struct {
	*SyncContext
	cookie string
}

func (s *serviceLayerSession) Query(path string, ctx context.Context) (string, error) {
	u, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	var body string
	ledgerError := map[string]interface{}{}
	b := requests.
		URL(u).
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if s.Transport != nil {
		b = b.Transport(s.Transport)
	}
	err = b.
		Header("Cookie", s.cookie).
		ToString(&body).
		ErrorJSON(&ledgerError).
		Fetch(ctx)
	if err != nil {
		s.Logger.Error().Interface("response", ledgerError).Msg("ledger query failed")
		return "", err
	}
	if !gjson.Valid(body) {
		s.Logger.Error().Str("body", body).Msg("invalid ledger response")
		return "", fmt.Errorf("invalid json response")
	}
	return body, nil
}

// resolve turns a relative path-and-query (possibly with unencoded OData
// operators) into a fully encoded URL under the configured endpoint.
// Absolute pagination links are used as-is.
func (s *serviceLayerSession) resolve(path string) (string, error) {
	raw := path
	if !strings.HasPrefix(raw, "http") {
		raw = ledgerURL(s.Config.API.Endpoints.Ledger, path)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid ledger path %q: %w", path, err)
	}
	u.RawQuery = u.Query().Encode()
	return u.String(), nil
}

func (s *serviceLayerSession) Close(ctx context.Context) error {
	b := requests.
		URL(ledgerURL(s.Config.API.Endpoints.Ledger, ledgerLogoutPath)).
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if s.Transport != nil {
		b = b.Transport(s.Transport)
	}
	err := b.
		Post().
		Header("Cookie", s.cookie).
		Fetch(ctx)
	if err != nil {
		return &SourceError{Op: "logout", Err: err}
	}
	s.Logger.Info().Msg("ledger session closed")
	return nil
}
