package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladtc/ladtc/internal/shared"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{shared.ErrUnauthenticated, http.StatusUnauthorized, shared.MsgUnauthenticated},
		{shared.ErrSessionStoreUnavailable, http.StatusUnauthorized, shared.MsgUnauthenticated},
		{shared.ErrForbidden, http.StatusForbidden, shared.MsgForbidden},
		{fmt.Errorf("membership: %w", shared.ErrInvalidPayment), http.StatusUnprocessableEntity, shared.MsgInvalidPayment},
		{shared.ErrNoMembership, http.StatusUnprocessableEntity, shared.MsgNoMembership},
		{shared.ErrNotFound, http.StatusNotFound, shared.MsgNotFound},
		{fmt.Errorf("pg: connection refused"), http.StatusInternalServerError, shared.MsgInternal},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())

		var body ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, tc.message, body.Error)
	}
}
