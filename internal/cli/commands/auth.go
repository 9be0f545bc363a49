package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// LoginOptions holds options for the login command.
type LoginOptions struct {
	Email         string
	PasswordStdin bool
}

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	opts := &LoginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the CampaignHQ backend",
		Long: `Exchange an email and password for API tokens.

Tokens are stored in the local state database, keyed by api_url. The
password is read from the terminal without echo, or from stdin with
--password-stdin.`,
		Example: `  campaignhq login --email ops@example.com
  echo "$PASSWORD" | campaignhq login --email ops@example.com --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "Account email")
	cmd.Flags().BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *LoginOptions) error {
	ctx := cmd.Context()
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	in := bufio.NewReader(cmd.InOrStdin())

	email := strings.TrimSpace(opts.Email)
	if email == "" {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Email: ")
		if email, err = readLine(in); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	if email == "" {
		return errors.New("email is required")
	}

	password, err := readPassword(cmd, in, opts.PasswordStdin)
	if err != nil {
		return err
	}

	tokens, err := cc.Client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if err := cc.Store.SaveCredentials(ctx, &core.Credentials{
		Profile:      cc.Profile(),
		Email:        email,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		CreatedAt:    time.Now(),
	}); err != nil {
		return err
	}

	cc.Logger.Info("logged in", "email", email, "profile", cc.Profile())
	cc.Renderer.Success(fmt.Sprintf("Logged in as %s", email))
	return nil
}

func readPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		f, ok := cmd.InOrStdin().(*os.File)
		if !ok || !term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
			return "", errors.New("no terminal for password prompt: use --password-stdin")
		}
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd())) //nolint:gosec // fd fits in int
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	password, err := readLine(in)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

// readLine reads one line, accepting a final line without a newline.
func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget stored tokens",
		Long: `Invalidate the stored refresh token on the server and remove the
local credentials for the configured api_url. Local credentials are removed
even when the server cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			creds, err := cc.Store.LoadCredentials(ctx, cc.Profile())
			if err != nil {
				return err
			}
			if creds == nil {
				cc.Renderer.Muted("Not logged in")
				return nil
			}

			if creds.RefreshToken != "" {
				if err := cc.Client.Logout(ctx, creds.RefreshToken); err != nil {
					cc.Logger.Warn("server logout failed", "error", err)
					cc.Renderer.Warning(fmt.Sprintf("server logout failed: %v", err))
				}
			}
			if err := cc.Store.DeleteCredentials(ctx, cc.Profile()); err != nil {
				return err
			}
			cc.Renderer.Success(fmt.Sprintf("Logged out %s", creds.Email))
			return nil
		},
	}
}
