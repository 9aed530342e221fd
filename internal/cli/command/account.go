package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

// RegisterCommand creates an account.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "Create an account (defaults to --user and --password)",
		ArgsUsage: "[USER PASSWORD]",
		Action:    register,
	}
}

// LoginCommand starts a session on the shell's connection.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Log in (defaults to --user and --password)",
		ArgsUsage: "[USER PASSWORD]",
		Action:    login,
	}
}

// LogoutCommand ends the session on the shell's connection.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Log out",
		Action: logout,
	}
}

// credentials takes USER PASSWORD from the arguments, falling back to the
// global flags.
func credentials(c *cli.Context) (string, string, error) {
	switch c.NArg() {
	case 2:
		return c.Args().Get(0), c.Args().Get(1), nil
	case 0:
		flags := ParseGlobalFlags(c)
		if flags.User == "" {
			return "", "", errors.New("--user is required")
		}
		return flags.User, flags.Password, nil
	default:
		return "", "", fmt.Errorf("%s: expected %s", c.Command.Name, c.Command.ArgsUsage)
	}
}

func register(c *cli.Context) error {
	user, password, err := credentials(c)
	if err != nil {
		return err
	}

	cl, release, err := openClient(c, false)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := cl.Register(ctx, user, password); err != nil {
		return err
	}
	return render(c, fmt.Sprintf("registered %s", user), map[string]string{"status": "registered", "user": user})
}

func login(c *cli.Context) error {
	user, password, err := credentials(c)
	if err != nil {
		return err
	}

	cl, release, err := openClient(c, false)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := cl.Login(ctx, user, password); err != nil {
		return err
	}
	return render(c, fmt.Sprintf("logged in as %s", user), map[string]string{"status": "logged_in", "user": user})
}

func logout(c *cli.Context) error {
	cl, release, err := openClient(c, false)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := cl.Logout(ctx); err != nil {
		return err
	}
	return render(c, "logged out", map[string]string{"status": "logged_out"})
}
