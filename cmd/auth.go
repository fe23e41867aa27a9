package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/server"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin starts a login. With --wait it also runs the local callback listener and completes the exchange.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("no-browser") && r.controller == nil {
		r.navigator = shared.NavigatorFunc(func(string) error { return nil })
	}

	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	if !cmd.Bool("wait") {
		authURL, err := c.Session().InitiateLogin(ctx)
		if err != nil {
			return err
		}
		r.writePlain("Open this URL to authorize:\n\n  %s\n", authURL)
		r.writePlainln("Then run: tunebridge auth callback <code>")
		return nil
	}

	handler := server.NewCallbackHandler(c.Session(), "")
	listener, err := server.NewListener(c.Config().Session.CallbackPort, handler, r.logger)
	if err != nil {
		return err
	}

	authURL, err := c.Session().InitiateLogin(ctx)
	if err != nil {
		listener.Close()
		return err
	}
	handler.ExpectState(server.StateFromURL(authURL))

	r.writePlain("Open this URL to authorize:\n\n  %s\n\n", authURL)
	r.writePlain("Waiting for the redirect on %s ...\n", listener.CallbackURL())

	if _, err := listener.Wait(ctx); err != nil {
		return err
	}
	return r.writeSession(c.Session().Session())
}

// AuthCallback completes a login with a code copied from the redirect URL.
func (r *Runner) AuthCallback(ctx context.Context, cmd *cli.Command) error {
	code := cmd.StringArg("code")
	if code == "" {
		return fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}
	if err := c.Session().CompleteCallback(ctx, code); err != nil {
		return err
	}
	return r.writeSession(c.Session().Session())
}

// AuthStatus asks the backend for the session state. Failures are reported as unauthenticated.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}
	f, err := r.format(cmd)
	if err != nil {
		return err
	}

	session := c.Session().RefreshStatus(ctx)

	health, healthErr := c.Gateway().Health(ctx)
	if healthErr != nil {
		r.logger.Debug("health check failed", "error", healthErr)
	}

	if f == formatter.JSON {
		out := map[string]any{"status": session.Status.String(), "authenticated": session.Status == models.Authenticated}
		if exp := session.Token.Expiry(); !exp.IsZero() {
			out["expires_at"] = exp
		}
		if health != nil {
			out["backend"] = health.Status
		}
		return r.writeJSON(out, true)
	}

	if health != nil {
		r.writePlain("Backend: %s\n", health.Status)
	} else {
		r.writePlain("Backend: unreachable\n")
	}
	return r.writeSession(session)
}

// AuthLogout clears the session. A failed backend call is logged since the local state is already gone.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	c, err := r.ctrl(ctx, cmd)
	if err != nil {
		return err
	}

	if err := c.Session().Logout(ctx); err != nil {
		r.logger.Warn("logout did not complete cleanly", "error", err)
	}
	return r.writePlain("✓ Logged out\n")
}

func (r *Runner) writeSession(s models.Session) error {
	switch s.Status {
	case models.Authenticated:
		r.writePlain("✓ Authenticated\n")
	case models.Expired:
		r.writePlain("✗ Session expired\n")
	case models.PendingCallback:
		r.writePlain("… Login in progress\n")
	default:
		r.writePlain("✗ Not authenticated\n")
	}

	if exp := s.Token.Expiry(); !exp.IsZero() {
		return r.writePlain("Token expires: %s\n", exp.Local().Format(time.DateTime))
	}
	return nil
}
