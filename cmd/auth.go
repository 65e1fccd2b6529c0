package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/rotation/internal/server"
	"github.com/desertthunder/rotation/internal/services"
	"github.com/desertthunder/rotation/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultAuthTimeout = 2 * time.Minute

// Auth performs the OAuth2 authorization code flow and saves the token to the config.
//
// A loopback server is bound before the browser opens, so the redirect cannot arrive early.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	svc, err := services.NewSpotifyService(config.Credentials.Spotify, r.logger)
	if err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(svc, state, config.Credentials.Spotify.RedirectURI)
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	callback, err := server.StartCallbackServer(addr, handler, r.logger)
	if err != nil {
		return err
	}

	authURL := svc.AuthURL(state)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	token, err := callback.Wait(ctx, timeout)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	if err := svc.Authenticate(ctx, token); err != nil {
		return err
	}
	user, err := services.Login(ctx, svc, 1, r.logger)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorized as %s", user)
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: rotation sync\n")
	return nil
}
