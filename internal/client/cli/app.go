package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophsocial/internal/client/client"
	"github.com/dmitrijs2005/gophsocial/internal/client/config"
	"github.com/dmitrijs2005/gophsocial/internal/client/models"
	"github.com/dmitrijs2005/gophsocial/internal/filex"
)

const sessionFileName = "session"

type App struct {
	config *config.Config
	api    client.Client
	in     *bufio.Reader
	out    io.Writer
	user   *models.User
}

func NewApp(c *config.Config) *App {
	return newApp(c, client.NewHTTPClient(c.ServerURL, c.RequestTimeout), os.Stdin, os.Stdout)
}

func newApp(c *config.Config, api client.Client, in io.Reader, out io.Writer) *App {
	return &App{config: c, api: api, in: bufio.NewReader(in), out: out}
}

func (a *App) isLoggedIn() bool {
	return a.api.Token() != ""
}

func (a *App) status() string {
	switch {
	case a.user != nil:
		return a.user.Email
	case a.isLoggedIn():
		return "logged in"
	}
	return "guest"
}

// Run restores a saved session, if any, and starts the REPL.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to gophsocial CLI (type 'help' for commands)")
	a.restoreSession(ctx)
	runREPL(ctx, a, a.status, a.in)
}

func (a *App) sessionPath() (string, error) {
	dir, err := filex.EnsureSubDir(a.config.SessionDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionFileName), nil
}

func (a *App) saveSession() error {
	path, err := a.sessionPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(a.api.Token()), 0o600)
}

func (a *App) clearSession() {
	path, err := a.sessionPath()
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(a.out, "could not remove session:", err)
	}
}

// restoreSession loads the saved token and drops it if the server no
// longer accepts it.
func (a *App) restoreSession(ctx context.Context) {
	path, err := a.sessionPath()
	if err != nil {
		return
	}
	token, err := os.ReadFile(path)
	if err != nil || len(token) == 0 {
		return
	}
	a.api.SetToken(string(token))

	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()
	u, err := a.api.Me(ctx)
	switch {
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, client.ErrNotFound):
		a.api.SetToken("")
		a.clearSession()
	case err != nil:
		fmt.Fprintln(a.out, "could not check saved session:", err)
	default:
		a.user = u
		fmt.Fprintln(a.out, "Resumed session for", u.Email)
	}
}
