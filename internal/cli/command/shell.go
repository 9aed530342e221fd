package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/condkv/internal/cli/repl"
	"github.com/yndnr/condkv/pkg/client"
)

// ShellCommand runs an interactive session over one connection.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "history file, empty to disable",
				Value: repl.DefaultHistoryFile(),
			},
		},
		Action: shell,
	}
}

func shellCommands() []*cli.Command {
	return append(dataCommands(), LoginCommand(), LogoutCommand(), VersionCommand())
}

func shell(c *cli.Context) error {
	flags := ParseGlobalFlags(c)

	// Log in only if a user was given; otherwise the shell starts
	// anonymous and the user can register and log in.
	cl, release, err := openClient(c, flags.User != "")
	if err != nil {
		return err
	}
	defer release()

	names := []string{"help"}
	for _, cmd := range shellCommands() {
		names = append(names, cmd.Name)
	}

	exec := func(ctx context.Context, args []string) error {
		return newShellApp(c, cl, flags).RunContext(ctx, append([]string{"condkv"}, args...))
	}

	prompt := func() string {
		if user := cl.User(); user != "" {
			return fmt.Sprintf("condkv(%s)> ", user)
		}
		return "condkv> "
	}

	r := repl.New(c.App.Reader, c.App.Writer, exec, names,
		repl.WithHistory(repl.NewHistory(c.String("history"))),
		repl.WithPrompt(prompt))
	return r.Run(c.Context)
}

// newShellApp builds a fresh app per line so that no flag state carries
// over between commands.
func newShellApp(parent *cli.Context, cl *client.Client, flags *GlobalFlags) *cli.App {
	return &cli.App{
		Name:        "condkv",
		HideVersion: true,
		Commands:    shellCommands(),
		Writer:      parent.App.Writer,
		ErrWriter:   parent.App.ErrWriter,
		Metadata: map[string]any{
			metaClient: cl,
			metaFlags:  flags,
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}
