package handler

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supernomad/internal/platform/logger"
	"supernomad/internal/storage/memory"
	"supernomad/internal/subscription"
	"supernomad/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := subscription.New(memory.New(), subscription.WithLogger(logger.Discard()))
	require.NoError(t, err)
	r := chi.NewRouter()
	New(svc, logger.Discard()).Register(r)
	return r
}

func TestSubscriptionEndpoints(t *testing.T) {
	h := newRouter(t)

	testutil.Given(t, "a fresh install", func(t *testing.T) {
		rr := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodGet, "/subscription", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, "free", (*resp)["tier"])
		assert.Equal(t, float64(3), (*resp)["max_countries"])
	})

	testutil.When(t, "upgrading to premium", func(t *testing.T) {
		rr := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodPut, "/subscription", map[string]string{"tier": "premium"}))
		assert.Equal(t, http.StatusOK, rr.Code)

		testutil.Then(t, "the country cap is lifted", func(t *testing.T) {
			resp := testutil.UnmarshalResponse[map[string]any](t, rr)
			assert.Equal(t, "premium", (*resp)["tier"])
			assert.Nil(t, (*resp)["max_countries"])
		})
	})

	testutil.When(t, "asking for an unknown tier", func(t *testing.T) {
		rr := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodPut, "/subscription", map[string]string{"tier": "gold"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
}
