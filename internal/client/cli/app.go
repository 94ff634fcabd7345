package cli

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/client/client"
	"github.com/dmitrijs2005/accountkeeper/internal/client/config"
)

type App struct {
	config *config.Config
	client client.Client
	reader *bufio.Reader
	out    io.Writer

	// session state
	token string
	email string
}

func NewApp(c *config.Config) (*App, error) {
	hc := &http.Client{Timeout: c.RequestTimeout}
	return newApp(c, client.NewHTTPClient(c.ServerURL, hc), os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, cl client.Client, in io.Reader, out io.Writer) *App {
	return &App{config: c, client: cl, reader: bufio.NewReader(in), out: out}
}

func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to accountctl (type 'help' for commands)")
	if err := a.client.Ping(ctx); err != nil {
		printlnFn("Server is not reachable:", err)
	}
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.token != ""
}

func (a *App) getStatus() string {
	if a.isLoggedIn() {
		return "(" + a.email + ")"
	}
	return ""
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
