package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/condkv/internal/cli/output"
	"github.com/yndnr/condkv/internal/infra/buildinfo"
	"github.com/yndnr/condkv/pkg/client"
)

const (
	metaClient = "client"
	metaFlags  = "flags"

	logoutTimeout = 5 * time.Second
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "condkv-cli",
		Usage:   "condkv command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: append(dataCommands(),
			ShellCommand(),
			VersionCommand(),
		),
		Before: func(c *cli.Context) error {
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

// dataCommands are available both from the command line and the shell.
func dataCommands() []*cli.Command {
	return []*cli.Command{
		RegisterCommand(),
		PutCommand(),
		GetCommand(),
		MultiPutCommand(),
		MultiGetCommand(),
		GetWhenCommand(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address, host:port or unix:/path/to.sock",
			EnvVars: []string{"CONDKV_SERVER"},
			Value:   "127.0.0.1:8080",
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "account username",
			EnvVars: []string{"CONDKV_USER"},
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "account password",
			EnvVars: []string{"CONDKV_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
			Value:   "table",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "timeout for connecting and for each request",
			Value:   30 * time.Second,
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server   string
	User     string
	Password string
	Output   output.Format
	Timeout  time.Duration
}

// ParseGlobalFlags extracts global flags from context. Inside the shell
// the flags given when the shell started apply.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	if flags, ok := c.App.Metadata[metaFlags].(*GlobalFlags); ok {
		return flags
	}
	format, _ := output.ParseFormat(c.String("output"))
	return &GlobalFlags{
		Server:   c.String("server"),
		User:     c.String("user"),
		Password: c.String("password"),
		Output:   format,
		Timeout:  c.Duration("timeout"),
	}
}

// requestContext bounds one request by --timeout. Zero means no limit.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	if d := ParseGlobalFlags(c).Timeout; d > 0 {
		return context.WithTimeout(c.Context, d)
	}
	return context.WithCancel(c.Context)
}

// openClient returns the shell's connection, or dials a new one. With
// login set a new connection is logged in with --user and --password.
// The returned release func closes connections opened here.
func openClient(c *cli.Context, login bool) (*client.Client, func(), error) {
	if cl, ok := c.App.Metadata[metaClient].(*client.Client); ok {
		return cl, func() {}, nil
	}

	flags := ParseGlobalFlags(c)
	if login && flags.User == "" {
		return nil, nil, errors.New("--user is required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	cl, err := client.Dial(ctx, flags.Server)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		// Log out explicitly so the account is free again as soon as
		// this returns, rather than when the server sees the disconnect.
		if cl.User() != "" {
			ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
			cl.Logout(ctx)
			cancel()
		}
		cl.Close()
	}

	if login {
		if err := cl.Login(ctx, flags.User, flags.Password); err != nil {
			release()
			return nil, nil, fmt.Errorf("login: %w", err)
		}
	}
	return cl, release, nil
}

// render writes data in the selected format. In table mode a non-empty
// message is printed instead of data.
func render(c *cli.Context, message string, data any) error {
	format := ParseGlobalFlags(c).Output
	if format == output.FormatTable && message != "" {
		_, err := fmt.Fprintln(c.App.Writer, message)
		return err
	}
	return output.NewFormatter(format).Format(c.App.Writer, data)
}

// requireArgs checks the positional argument count.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%s: expected %d argument(s): %s", c.Command.Name, n, c.Command.ArgsUsage)
	}
	return nil
}
