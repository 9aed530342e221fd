package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Executor runs one command line, already split into words.
type Executor func(ctx context.Context, args []string) error

// ErrUnterminatedQuote is returned by Split for a line with an open quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// REPL is the read-eval-print loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	exec      Executor
	completer *Completer
	history   *History
	prompt    func() string
}

// Option configures a REPL.
type Option func(*REPL)

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// WithPrompt sets a function producing the prompt for each line.
func WithPrompt(prompt func() string) Option {
	return func(r *REPL) { r.prompt = prompt }
}

// New creates a REPL reading from in and writing to out. commands lists
// the names exec understands; other words are rejected with suggestions.
func New(in io.Reader, out io.Writer, exec Executor, commands []string, opts ...Option) *REPL {
	r := &REPL{
		input:     in,
		output:    out,
		exec:      exec,
		completer: NewCompleter(slices.Concat(commands, []string{"exit", "quit", "history"})...),
		history:   NewHistory(""),
		prompt:    func() string { return "condkv> " },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until EOF, exit or quit, or until ctx is done. Command
// errors are printed and do not stop the loop.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: history not loaded: %v\n", err)
	}
	defer r.history.Save()

	scanner := bufio.NewScanner(r.input)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(r.output, r.prompt())

		if !scanner.Scan() {
			fmt.Fprintln(r.output)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.history.Add(line)

		args, err := Split(line)
		if err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return nil
		case "history":
			for i, entry := range r.history.Entries() {
				fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
			}
			continue
		}

		if !r.completer.Known(args[0]) {
			r.unknown(args[0])
			continue
		}

		if err := r.exec(ctx, args); err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
		}
	}
}

func (r *REPL) unknown(name string) {
	fmt.Fprintf(r.output, "unknown command %q", name)
	if name != "" {
		if hints := r.completer.Complete(name[:1]); len(hints) > 0 {
			fmt.Fprintf(r.output, "; did you mean: %s", strings.Join(hints, ", "))
		}
	}
	fmt.Fprintln(r.output)
}

// Split breaks a line into words. Single or double quotes group words
// containing spaces; a backslash escapes the next character outside
// single quotes.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
			inWord = true
		case ch == ' ' || ch == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(ch)
			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
