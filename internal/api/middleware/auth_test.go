package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paynotify-system/internal/domain"
)

type fakeVerifier struct {
	identity *domain.Identity
	err      error
}

func (f *fakeVerifier) Verify(token string) (*domain.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func runAuth(t *testing.T, verifier domain.TokenVerifier, header string) (*httptest.ResponseRecorder, *domain.Identity) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *domain.Identity
	handler := BearerAuth(verifier)(func(c echo.Context) error {
		seen = IdentityFrom(c)
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	return rec, seen
}

func TestBearerAuthAcceptsValidToken(t *testing.T) {
	verifier := &fakeVerifier{identity: &domain.Identity{
		SubjectID:       "seller-1",
		AdministratorID: "admin-1",
		Role:            "seller",
	}}

	rec, identity := runAuth(t, verifier, "Bearer good-token")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, identity)
	assert.Equal(t, "seller-1", identity.SubjectID)
}

func TestBearerAuthRejectsMissingHeader(t *testing.T) {
	rec, identity := runAuth(t, &fakeVerifier{}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, identity)
}

func TestBearerAuthRejectsMalformedHeader(t *testing.T) {
	rec, identity := runAuth(t, &fakeVerifier{}, "Basic dXNlcjpwYXNz")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, identity)
}

func TestBearerAuthRejectsInvalidToken(t *testing.T) {
	verifier := &fakeVerifier{err: errors.New("bad signature")}

	rec, identity := runAuth(t, verifier, "Bearer bad-token")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, identity)
}
