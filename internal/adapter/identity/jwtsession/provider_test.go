package jwtsession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/auth"
)

var _ domain.SessionProvider = (*Provider)(nil)

func TestLoginLogoutNotifies(t *testing.T) {
	p := New("secret", nil)
	var seen []domain.Identity
	cancel := p.OnChange(func(id domain.Identity) { seen = append(seen, id) })

	assert.False(t, p.Current().Authenticated)

	token, err := auth.Issue("secret", "seller-1", "s1@campus.edu", time.Hour)
	require.NoError(t, err)
	ident, err := p.Login(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{SellerID: "seller-1", Email: "s1@campus.edu", Authenticated: true}, ident)
	assert.Equal(t, token, p.Token())

	p.Logout()
	p.Logout()
	assert.Equal(t, "", p.Token())
	require.Len(t, seen, 2, "a second logout is not a change")
	assert.True(t, seen[0].Authenticated)
	assert.False(t, seen[1].Authenticated)

	cancel()
	_, err = p.Login(token)
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}

func TestLoginRejectsBadToken(t *testing.T) {
	p := New("secret", nil)
	good, err := auth.Issue("secret", "seller-1", "", time.Hour)
	require.NoError(t, err)
	_, err = p.Login(good)
	require.NoError(t, err)

	forged, err := auth.Issue("other", "seller-2", "", time.Hour)
	require.NoError(t, err)
	_, err = p.Login(forged)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.Equal(t, "seller-1", p.Current().SellerID, "identity unchanged")
}
