package auth_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devscout/pkg/quota"
	"github.com/dmitrymomot/devscout/svc/auth"
)

func TestScope_Defaults(t *testing.T) {
	t.Parallel()

	sc := auth.NewScope()
	assert.Equal(t, auth.StateAnonymous, sc.State())
	assert.False(t, sc.IsAuthenticated())
	assert.Nil(t, sc.CurrentIdentity())
	assert.Empty(t, sc.SessionID())

	_, ok := sc.QuotaStatus()
	assert.False(t, ok)
}

func TestScope_QuotaCache(t *testing.T) {
	t.Parallel()

	sc := auth.NewScope()
	sc.SetQuotaStatus(quota.Status{Credits: 3, CanUse: true})

	st, ok := sc.QuotaStatus()
	require.True(t, ok)
	assert.Equal(t, int64(3), st.Credits)

	sc.InvalidateQuota()
	_, ok = sc.QuotaStatus()
	assert.False(t, ok)
}

func TestScope_DerivedCaches(t *testing.T) {
	t.Parallel()

	sc := auth.NewScope()

	_, ok := sc.Profile()
	assert.False(t, ok)

	sc.SetProfile(json.RawMessage(`{"skills":["go"]}`))
	p, ok := sc.Profile()
	require.True(t, ok)
	assert.JSONEq(t, `{"skills":["go"]}`, string(p))

	sc.SetSearchResults(json.RawMessage(`[]`))
	res, ok := sc.SearchResults()
	require.True(t, ok)
	assert.Equal(t, `[]`, string(res))

	_, ok = sc.Preference("theme")
	assert.False(t, ok)
	sc.SetPreference("theme", "dark")
	v, ok := sc.Preference("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestScope_ContextRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Nil(t, auth.ScopeFromContext(t.Context()))

	sc := auth.NewScope()
	ctx := auth.WithScope(t.Context(), sc)
	assert.Same(t, sc, auth.ScopeFromContext(ctx))
}
