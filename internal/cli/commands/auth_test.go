package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhq/campaignhq/internal/api"
	"github.com/campaignhq/campaignhq/internal/api/apitest"
)

func TestLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Token = ""

	res := env.run(t, NewTemplateCommand, "", "list")
	require.ErrorIs(t, res.err, api.ErrNotAuthenticated)

	res = env.run(t, NewLoginCommand, apitest.Password+"\n", "--email", apitest.Email, "--password-stdin")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Logged in as "+apitest.Email)

	out := env.mustRun(t, NewTemplateCommand, "list")
	assert.Equal(t, "_No templates_\n", out)

	out = env.mustRun(t, NewLogoutCommand)
	assert.Contains(t, out, "Logged out "+apitest.Email)

	res = env.run(t, NewTemplateCommand, "", "list")
	require.ErrorIs(t, res.err, api.ErrNotAuthenticated)

	out = env.mustRun(t, NewLogoutCommand)
	assert.Equal(t, "_Not logged in_\n", out)
}

func TestLogin_PromptsForEmail(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Token = ""

	res := env.run(t, NewLoginCommand, apitest.Email+"\n"+apitest.Password+"\n", "--password-stdin")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Email: ")
}

func TestLogin_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr string
	}{
		{
			name:    "wrong password",
			stdin:   "nope\n",
			args:    []string{"--email", apitest.Email, "--password-stdin"},
			wantErr: "Invalid credentials.",
		},
		{
			name:    "empty password",
			stdin:   "\n",
			args:    []string{"--email", apitest.Email, "--password-stdin"},
			wantErr: "password is required",
		},
		{
			name:    "no terminal",
			args:    []string{"--email", apitest.Email},
			wantErr: "no terminal for password prompt: use --password-stdin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.run(t, NewLoginCommand, tt.stdin, tt.args...)
			require.Error(t, res.err)
			assert.Contains(t, res.err.Error(), tt.wantErr)
		})
	}
}

func TestLogin_ProfilesAreSeparate(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Token = ""

	res := env.run(t, NewLoginCommand, apitest.Password+"\n", "--email", apitest.Email, "--password-stdin")
	require.NoError(t, res.err)

	cc, cleanup, err := NewCommandContext(commandWith(env.ctx(t)))
	require.NoError(t, err)
	defer cleanup()

	creds, err := cc.Store.LoadCredentials(context.Background(), env.srv.URL)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, apitest.Token, creds.AccessToken)

	other, err := cc.Store.LoadCredentials(context.Background(), "https://other.example.com")
	require.NoError(t, err)
	assert.Nil(t, other)
}
