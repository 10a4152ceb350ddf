package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsocial/internal/client/models"
)

var errUsage = errors.New("usage")

// report prints err, if any, and passes it through.
func (a *App) report(err error) error {
	if err != nil && !errors.Is(err, errUsage) {
		fmt.Fprintln(a.out, "error:", err)
	}
	return err
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) Register(ctx context.Context) error {
	name, err := GetSimpleText(a.in, "Enter name", a.out)
	if err != nil {
		return a.report(err)
	}
	email, err := GetSimpleText(a.in, "Enter email", a.out)
	if err != nil {
		return a.report(err)
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return a.report(err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	u, err := a.api.Register(ctx, name, email, password)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Registered", u.Email, "- now login")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.in, "Enter email", a.out)
	if err != nil {
		return a.report(err)
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return a.report(err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	u, err := a.api.Login(ctx, email, password)
	if err != nil {
		return a.report(err)
	}
	a.user = u
	if err := a.saveSession(); err != nil {
		fmt.Fprintln(a.out, "could not save session:", err)
	}
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	err := a.api.Logout(ctx)
	a.user = nil
	a.clearSession()
	fmt.Fprintln(a.out, "Logged out")
	return a.report(err)
}

func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	u, err := a.api.Me(ctx)
	if err != nil {
		return a.report(err)
	}
	a.user = u
	printUser(a, u)
	return nil
}

func printUser(a *App, u *models.User) {
	fmt.Fprintf(a.out, "%s <%s>\n  id:        %s\n  followers: %d\n  following: %d\n  posts:     %d\n",
		u.Name, u.Email, u.ID, len(u.Followers), len(u.Following), len(u.Posts))
}

// DeleteMe asks for confirmation, deletes the account and prints any
// cleanup steps that failed.
func (a *App) DeleteMe(ctx context.Context) error {
	if !Confirm(a.in, "Delete your account and everything you posted?", a.out) {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	steps, err := a.api.DeleteMe(ctx)
	if err != nil {
		return a.report(err)
	}
	a.user = nil
	a.clearSession()

	failed := models.Failed(steps)
	fmt.Fprintf(a.out, "Account deleted (%d steps, %d failed)\n", len(steps), len(failed))
	for _, s := range failed {
		fmt.Fprintf(a.out, "  %s %s: %s\n", s.Step, s.Target, s.Error)
	}
	return nil
}
