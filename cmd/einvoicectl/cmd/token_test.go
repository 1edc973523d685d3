package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/pkg/jwt"
)

func TestTokenCmd_EmiteTokenVerificable(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--company", "co-1", "--user", "u-1", "--role", "viewer"})
	require.NoError(t, rootCmd.Execute())

	userID, companyID, role, err := jwt.Parse("cli-secret", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, "co-1", companyID)
	assert.Equal(t, "viewer", role)

	rootCmd.SetArgs([]string{"token", "--company", "co-1", "--role", "root"})
	assert.Error(t, rootCmd.Execute())
}
