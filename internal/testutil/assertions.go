package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies error response with expected status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	var body struct {
		Error string `json:"error"`
	}
	AssertJSONResponse(t, resp, &body)
	assert.Contains(t, body.Error, expectedMessage, "error message mismatch")
}

// AssertKind verifies err carries the expected error kind
func AssertKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind.String(), domain.KindOf(err).String(), "unexpected error kind: %v", err)
}

// AssertSameRoles compares role sets ignoring order
func AssertSameRoles(t *testing.T, expected, actual []domain.Role) {
	t.Helper()
	assert.ElementsMatch(t, expected, actual)
}
