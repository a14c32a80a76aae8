package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budget-bubble-backend/internal/common/middleware"
	currency "budget-bubble-backend/internal/features/currency/models"
	currencysvc "budget-bubble-backend/internal/features/currency/service"
	"budget-bubble-backend/internal/features/document/repository/memory"
	docservice "budget-bubble-backend/internal/features/document/service"
	"budget-bubble-backend/internal/features/session/models"
	"budget-bubble-backend/internal/features/session/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t      *testing.T
	router *gin.Engine
	gw     *docservice.Gateway
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	gw := docservice.NewGateway(store)
	registry := service.NewRegistry(gw, currencysvc.NewConverter(currency.USD, currency.DefaultRates()), service.Settings{
		PersistQueueSize: 16,
		PersistTimeout:   time.Second,
	})
	t.Cleanup(func() {
		registry.CloseAll()
		store.Close()
	})

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.ErrorHandler())
	NewSessionHandler(registry).RegisterRoutes(router.Group("/api/v1"))

	return &api{t: t, router: router, gw: gw}
}

func (a *api) do(method, path, user, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, "/api/v1"+path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *api) result(method, path, user, body string) models.Result {
	a.t.Helper()
	w := a.do(method, path, user, body)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var res models.Result
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(a.t, res.State)
	return res
}

func (a *api) login(user string) models.StateView {
	a.t.Helper()
	w := a.do(http.MethodPost, "/session", user, "")
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var state models.StateView
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &state))
	return state
}

func TestRequiresSession(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/state", "", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/state", "alice", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/session", "alice", "").Code)
}

func TestLoginReturnsDefaults(t *testing.T) {
	a := newAPI(t)

	state := a.login("alice")

	assert.Equal(t, "Anonymous", state.Profile.Username)
	assert.Equal(t, 1000.0, state.Profile.Goal)
	assert.Equal(t, currency.USD, state.Canonical)
	assert.Equal(t, []string{"Salary", "Freelance", "Food", "Fun"}, state.Profile.Categories)
}

func TestTransactionsThroughTheBoundary(t *testing.T) {
	a := newAPI(t)
	a.login("alice")

	res := a.result(http.MethodPost, "/transactions", "alice", `{"amount":"250","direction":"credit","category":"Salary"}`)
	assert.True(t, res.Applied)
	assert.Equal(t, 250.0, res.State.Profile.Saved)

	res = a.result(http.MethodPost, "/transactions", "alice", `{"amount":400,"direction":"debit","category":"Fun"}`)
	assert.True(t, res.Applied)
	assert.Equal(t, 0.0, res.State.Profile.Saved)
	assert.Len(t, res.State.Profile.History, 2)

	for _, body := range []string{
		`{"amount":"abc","direction":"credit","category":"Salary"}`,
		`{"amount":"-5","direction":"credit","category":"Salary"}`,
		`{"amount":"5","direction":"credit","category":"Nope"}`,
		`{"direction":"credit","category":"Salary"}`,
	} {
		res = a.result(http.MethodPost, "/transactions", "alice", body)
		assert.False(t, res.Applied, body)
	}
	assert.Len(t, res.State.Profile.History, 2)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/transactions", "alice", `{"amount":`).Code)
}

func TestAmountsAreStoredCanonical(t *testing.T) {
	a := newAPI(t)
	a.login("alice")

	require.True(t, a.result(http.MethodPut, "/currency", "alice", `{"currency":"aed"}`).Applied)

	res := a.result(http.MethodPost, "/transactions", "alice", `{"amount":"367","direction":"credit","category":"Salary"}`)
	require.True(t, res.Applied)
	assert.InDelta(t, 100.0, res.State.Profile.Saved, 1e-9)
	assert.Equal(t, "367", res.State.Display.Saved.String())

	res = a.result(http.MethodPut, "/goal", "alice", `{"amount":"734","deadline":"2099-01-01","title":"Trip"}`)
	require.True(t, res.Applied)
	assert.InDelta(t, 200.0, res.State.Profile.Goal, 1e-9)
	assert.Equal(t, currency.AED, res.State.Profile.GoalCurrency)
	assert.Equal(t, "Trip", res.State.Profile.GoalTitle)

	assert.False(t, a.result(http.MethodPut, "/currency", "alice", `{"currency":"GBP"}`).Applied)
}

func TestSettingsAndCategories(t *testing.T) {
	a := newAPI(t)
	a.login("alice")

	assert.True(t, a.result(http.MethodPut, "/theme", "alice", `{"theme":"light"}`).Applied)
	assert.False(t, a.result(http.MethodPut, "/theme", "alice", `{"theme":"pink"}`).Applied)
	assert.True(t, a.result(http.MethodPut, "/username", "alice", `{"username":"Al"}`).Applied)
	assert.True(t, a.result(http.MethodPost, "/categories", "alice", `{"name":"Travel"}`).Applied)
	assert.False(t, a.result(http.MethodPost, "/categories", "alice", `{"name":"Travel"}`).Applied)

	res := a.result(http.MethodDelete, "/categories/Food", "alice", "")
	assert.True(t, res.Applied)
	assert.NotContains(t, res.State.Profile.Categories, "Food")
	assert.Contains(t, res.State.Profile.Categories, "Travel")

	w := a.do(http.MethodPost, "/ghost/toggle", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	var ghost models.GhostResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ghost))
	assert.True(t, ghost.IsGhost)
	assert.Equal(t, "Al", ghost.State.Profile.Username)
}

func TestResetNeedsConfirmation(t *testing.T) {
	a := newAPI(t)
	a.login("alice")
	a.result(http.MethodPost, "/transactions", "alice", `{"amount":"50","direction":"credit","category":"Salary"}`)

	res := a.result(http.MethodPost, "/reset", "alice", `{"confirm":false}`)
	assert.False(t, res.Applied)
	assert.Equal(t, 50.0, res.State.Profile.Saved)

	res = a.result(http.MethodPost, "/reset", "alice", `{"confirm":true}`)
	assert.True(t, res.Applied)
	assert.Equal(t, 0.0, res.State.Profile.Saved)
	assert.Empty(t, res.State.Profile.History)
}

func TestFriendsMembersAndCheers(t *testing.T) {
	a := newAPI(t)
	a.login("alice")
	a.login("bob")
	a.result(http.MethodPost, "/transactions", "bob", `{"amount":"300","direction":"credit","category":"Salary"}`)

	assert.False(t, a.result(http.MethodPost, "/friends/alice", "alice", "").Applied)
	assert.True(t, a.result(http.MethodPost, "/friends/bob", "alice", "").Applied)

	var members models.MembersView
	assert.Eventually(t, func() bool {
		w := a.do(http.MethodGet, "/members", "alice", "")
		if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &members) != nil {
			return false
		}
		return len(members.Members) == 1 && members.Members[0].Saved != nil && members.Members[0].Saved.IntPart() == 300
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.StandingBehind, members.Members[0].Standing)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/cheers/alice", "alice", "").Code)
	w := a.do(http.MethodPost, "/cheers/bob", "alice", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got int
	assert.Eventually(t, func() bool {
		w := a.do(http.MethodGet, "/celebrations", "bob", "")
		var res models.CelebrationsResponse
		if json.Unmarshal(w.Body.Bytes(), &res) != nil {
			return false
		}
		got += len(res.Celebrations)
		return got == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, a.result(http.MethodDelete, "/friends/bob", "alice", "").Applied)
	w = a.do(http.MethodGet, "/members", "alice", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	assert.Empty(t, members.Members)
}

func TestLogout(t *testing.T) {
	a := newAPI(t)
	a.login("alice")

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/session", "alice", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/state", "alice", "").Code)
}

func TestGoalAmountsParseLikeTransactions(t *testing.T) {
	a := newAPI(t)
	a.login("alice")

	res := a.result(http.MethodPut, "/goal", "alice", `{"amount":0}`)
	assert.True(t, res.Applied)
	assert.Equal(t, 0.0, res.State.Profile.Goal)

	for _, body := range []string{
		`{"amount":"-1"}`,
		`{"amount":"lots"}`,
		`{}`,
		`{"amount":"1.7e308","currency":"EUR"}`,
	} {
		res = a.result(http.MethodPut, "/goal", "alice", body)
		assert.False(t, res.Applied, body)
		assert.Equal(t, 0.0, res.State.Profile.Goal, body)
	}
}

func TestHugeBalancesStillRender(t *testing.T) {
	a := newAPI(t)
	a.login("alice")
	require.True(t, a.result(http.MethodPut, "/currency", "alice", `{"currency":"AED"}`).Applied)

	for i := 0; i < 2; i++ {
		res := a.result(http.MethodPost, "/transactions", "alice", `{"amount":"1e308","direction":"credit","category":"Salary"}`)
		require.True(t, res.Applied)
	}

	w := a.do(http.MethodGet, "/state", "alice", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = a.do(http.MethodGet, "/members", "alice", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
