package jwt_test

import (
	"testing"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/pkg/jwt"
)

const secret = "test-secret"

func TestGenerateParse(t *testing.T) {
	tok, err := jwt.Generate(secret, "u-1", "co-1", "operator", "einvoice-gateway", 5)
	require.NoError(t, err)

	userID, companyID, role, err := jwt.Parse(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, "co-1", companyID)
	assert.Equal(t, "operator", role)
}

func TestParse_Rechazos(t *testing.T) {
	expired, err := jwt.Generate(secret, "u-1", "co-1", "admin", "x", -5)
	require.NoError(t, err)
	_, _, _, err = jwt.Parse(secret, expired)
	assert.Error(t, err, "expirado")

	noCompany, err := jwt.Generate(secret, "u-1", "", "admin", "x", 5)
	require.NoError(t, err)
	_, _, _, err = jwt.Parse(secret, noCompany)
	assert.Error(t, err, "sin empresa")

	hs512, err := gojwt.NewWithClaims(gojwt.SigningMethodHS512, jwt.Claims{CompanyID: "co-1"}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, _, _, err = jwt.Parse(secret, hs512)
	assert.Error(t, err, "algoritmo no permitido")

	_, err = jwt.Generate("", "u-1", "co-1", "admin", "x", 5)
	assert.Error(t, err)
}
