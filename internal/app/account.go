package app

import (
	"context"

	"recipe-companion/internal/session"
)

// Restore loads the stored session, if any, and checks it with the backend.
func (a *App) Restore(ctx context.Context) (session.Session, bool, error) {
	return a.session.Restore(ctx)
}

// Login signs in and persists the session.
func (a *App) Login(ctx context.Context, mail, password string) (session.Session, error) {
	return a.session.Login(ctx, mail, password)
}

// Register creates an account; the backend mails a confirmation code.
func (a *App) Register(ctx context.Context, name, mail, password string) (string, error) {
	return a.session.Register(ctx, name, mail, password)
}

// Confirm submits the mailed one-time code.
func (a *App) Confirm(ctx context.Context, mail, code string) (string, error) {
	return a.session.ConfirmOneTimeCode(ctx, mail, code)
}

// Logout forgets the session locally.
func (a *App) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

// Session returns the current session, if signed in.
func (a *App) Session() (session.Session, bool) {
	return a.session.Current()
}

// WhoAmI fetches the signed-in user's profile.
func (a *App) WhoAmI(ctx context.Context) (session.User, error) {
	return a.client.GetProfile(ctx)
}
