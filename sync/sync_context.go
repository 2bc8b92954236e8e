package sync

import (
	"net/http"

	"github.com/rs/zerolog"
)

// SyncContext holds shared sync configuration and logging.
// It is immutable after construction.
type SyncContext struct {
	Config Config
	Logger zerolog.Logger

	// Transport overrides the default HTTP transport on every API builder.
	// Tests use this to replay recorded responses.
	Transport http.RoundTripper
}
