package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/browser"
	"github.com/nexusmedic/medhub/internal/config"
	"github.com/nexusmedic/medhub/internal/credstore"
	"github.com/nexusmedic/medhub/internal/logging"
	"github.com/nexusmedic/medhub/internal/session"
	"github.com/nexusmedic/medhub/internal/tui"
	"github.com/nexusmedic/medhub/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const loginTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli bundles what the subcommands share. in and out are swapped in tests.
type cli struct {
	cfg    config.Config
	log    zerolog.Logger
	client *client.Client
	sess   *session.Manager
	in     *bufio.Reader
	out    io.Writer
	// secret reads a password without echo; nil falls back to a plain line.
	secret func() (string, error)
}

func run() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "version", "-v":
			fmt.Println("medhub " + version)
			return nil
		case "help", "--help", "-h":
			printHelp(os.Stdout)
			return nil
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, closer, err := logging.Setup(cfg.LogLevel, cfg.LogPath())
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	store, err := credstore.Open(cfg.CredentialsPath())
	if err != nil {
		if !errors.Is(err, credstore.ErrCorrupt) {
			return err
		}
		// The store is still usable, just empty; the user signs in again.
		log.Warn().Err(err).Str("path", cfg.CredentialsPath()).Msg("discarding credentials")
	}

	c := client.New(cfg.APIURL,
		client.WithTimeout(cfg.Timeout),
		client.WithRateLimit(cfg.RateLimit, 5),
		client.WithLogger(log),
	)
	app := &cli{
		cfg:    cfg,
		log:    log,
		client: c,
		sess:   session.New(c, store, session.WithLogger(log)),
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
	if term.IsTerminal(os.Stdin.Fd()) {
		app.secret = func() (string, error) {
			b, err := term.ReadPassword(os.Stdin.Fd())
			fmt.Fprintln(app.out) //nolint:errcheck
			return string(b), err
		}
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "login":
			return app.runLogin(context.Background())
		case "logout":
			return app.runLogout()
		case "whoami":
			return app.runWhoami()
		case "portal":
			return app.runPortal()
		default:
			return fmt.Errorf("unknown command %q (try medhub help)", os.Args[1])
		}
	}
	return app.runTUI()
}

func (a *cli) runTUI() error {
	m := tui.NewApp(a.sess, a.client, tui.WithLogger(a.log), tui.WithPortal(a.cfg.PortalURL))
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

func (a *cli) runLogin(ctx context.Context) error {
	email, err := a.prompt("Email: ")
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, "Password: ") //nolint:errcheck
	var password string
	if a.secret != nil {
		password, err = a.secret()
	} else {
		password, err = a.readLine()
	}
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	u, err := a.sess.Login(ctx, email, password)
	if err != nil {
		a.log.Debug().Err(err).Msg("cli login")
		return errors.New(client.UserMessage(err))
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", u.DisplayName(), u.Role.Title()) //nolint:errcheck
	return nil
}

func (a *cli) runLogout() error {
	if !a.sess.IsAuthenticated() {
		// Clear any partial leftovers all the same.
		a.sess.Logout()
		fmt.Fprintln(a.out, "Already logged out.") //nolint:errcheck
		return nil
	}
	a.sess.Logout()
	fmt.Fprintln(a.out, "Logged out.") //nolint:errcheck
	return nil
}

func (a *cli) runWhoami() error {
	u := a.sess.User()
	if u == nil {
		fmt.Fprintln(a.out, "Not signed in. Run: medhub login") //nolint:errcheck
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>\n%s\n", u.DisplayName(), u.Email, u.Role.Title()) //nolint:errcheck
	if tok := a.sess.Token(); tok != nil && !tok.Expiry.IsZero() {
		fmt.Fprintf(a.out, "access token expires %s\n", tok.Expiry.Local().Format(time.RFC1123)) //nolint:errcheck
	}
	return nil
}

func (a *cli) runPortal() error {
	if err := browser.Open(a.cfg.PortalURL); err != nil {
		fmt.Fprintln(a.out, a.cfg.PortalURL) //nolint:errcheck
	}
	return nil
}

func (a *cli) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label) //nolint:errcheck
	return a.readLine()
}

func (a *cli) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
