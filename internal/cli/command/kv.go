package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/condkv/internal/cli/output"
	"github.com/yndnr/condkv/pkg/client"
)

// Entry is one key and its value.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// MultiGetResult lists the keys found and those missing.
type MultiGetResult struct {
	Entries []Entry  `json:"entries" yaml:"entries"`
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// GetWhenResult is the outcome of a conditional read.
type GetWhenResult struct {
	Key   string `json:"key" yaml:"key"`
	Found bool   `json:"found" yaml:"found"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

type statusResult struct {
	Status string   `json:"status" yaml:"status"`
	Keys   []string `json:"keys" yaml:"keys"`
}

// PutCommand stores one value.
func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Store a value",
		ArgsUsage: "KEY VALUE",
		Action:    put,
	}
}

// GetCommand reads one value.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read a value",
		ArgsUsage: "KEY",
		Action:    get,
	}
}

// MultiPutCommand stores several values in one request.
func MultiPutCommand() *cli.Command {
	return &cli.Command{
		Name:      "mput",
		Usage:     "Store several values atomically",
		ArgsUsage: "KEY=VALUE...",
		Action:    multiPut,
	}
}

// MultiGetCommand reads several values in one request.
func MultiGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "mget",
		Usage:     "Read several values",
		ArgsUsage: "KEY...",
		Action:    multiGet,
	}
}

// GetWhenCommand blocks until a condition key holds a value.
func GetWhenCommand() *cli.Command {
	return &cli.Command{
		Name:      "getwhen",
		Usage:     "Read KEY once COND_KEY holds COND_VALUE",
		ArgsUsage: "KEY COND_KEY COND_VALUE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "spinner",
				Usage: "animate on stderr while waiting",
			},
		},
		Action: getWhen,
	}
}

func put(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	key, value := c.Args().Get(0), c.Args().Get(1)

	cl, release, err := openClient(c, true)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := cl.Put(ctx, key, []byte(value)); err != nil {
		return err
	}
	return render(c, "OK", statusResult{Status: "stored", Keys: []string{key}})
}

func get(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	key := c.Args().First()

	cl, release, err := openClient(c, true)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := requestContext(c)
	defer cancel()

	value, err := cl.Get(ctx, key)
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("key %q not found", key)
	}
	if err != nil {
		return err
	}
	return render(c, "", []Entry{{Key: key, Value: string(value)}})
}

func multiPut(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("mput: expected %s", c.Command.ArgsUsage)
	}

	pairs, keys, err := parseAssignments(c.Args().Slice())
	if err != nil {
		return err
	}

	cl, release, err := openClient(c, true)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := cl.MultiPut(ctx, pairs); err != nil {
		return err
	}
	return render(c, fmt.Sprintf("OK (%d keys)", len(keys)), statusResult{Status: "stored", Keys: keys})
}

func multiGet(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("mget: expected %s", c.Command.ArgsUsage)
	}
	keys := c.Args().Slice()

	cl, release, err := openClient(c, true)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := requestContext(c)
	defer cancel()

	found, err := cl.MultiGet(ctx, keys...)
	if err != nil {
		return err
	}

	result := MultiGetResult{Entries: []Entry{}}
	for _, k := range keys {
		if v, ok := found[k]; ok {
			result.Entries = append(result.Entries, Entry{Key: k, Value: string(v)})
		} else {
			result.Missing = append(result.Missing, k)
		}
	}

	if ParseGlobalFlags(c).Output != output.FormatTable {
		return render(c, "", result)
	}
	if err := render(c, "", result.Entries); err != nil {
		return err
	}
	if len(result.Missing) > 0 {
		fmt.Fprintf(c.App.ErrWriter, "not found: %s\n", strings.Join(result.Missing, ", "))
	}
	return nil
}

func getWhen(c *cli.Context) error {
	if err := requireArgs(c, 3); err != nil {
		return err
	}
	key, condKey, condValue := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

	cl, release, err := openClient(c, true)
	if err != nil {
		return err
	}
	defer release()

	if c.Bool("spinner") {
		s := output.NewSpinner(c.App.ErrWriter, fmt.Sprintf("waiting for %s=%s", condKey, condValue))
		s.Start()
		defer s.Stop()
	}

	// The wait is unbounded; Ctrl+C cancels it.
	value, ok, err := cl.GetWhen(c.Context, key, condKey, []byte(condValue))
	if err != nil {
		return err
	}

	result := GetWhenResult{Key: key, Found: ok, Value: string(value)}
	if !ok {
		return render(c, fmt.Sprintf("%s: not found", key), result)
	}
	return render(c, "", result)
}

// parseAssignments parses KEY=VALUE arguments. Keys keep argument order
// and may not repeat.
func parseAssignments(args []string) (map[string]string, []string, error) {
	pairs := make(map[string]string, len(args))
	keys := make([]string, 0, len(args))

	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, nil, fmt.Errorf("invalid pair %q, want KEY=VALUE", arg)
		}
		if _, dup := pairs[k]; dup {
			return nil, nil, fmt.Errorf("duplicate key %q", k)
		}
		pairs[k] = v
		keys = append(keys, k)
	}
	return pairs, keys, nil
}
