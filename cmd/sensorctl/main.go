// sensorctl is a command-line client for sensord.
//
// With arguments it runs one command. Without arguments it opens an
// interactive shell on a terminal, or reads commands line by line from a
// pipe.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/sensorstats/internal/client"
	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/loader"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	// .env may set SENSORSTATS_URL.
	if err := loader.LoadEnv(".env"); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	defaults := client.DefaultConfig()
	if v := os.Getenv("SENSORSTATS_URL"); v != "" {
		defaults.BaseURL = v
	}

	fs := flag.NewFlagSet("sensorctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	serverURL := fs.String("server", defaults.BaseURL, "sensord base URL (or SENSORSTATS_URL env)")
	timeout := fs.Duration("timeout", defaults.Timeout, "request timeout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: sensorctl [-server URL] [-timeout D] [command args...]")
		printHelp(stderr)
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	c := client.New(client.Config{BaseURL: *serverURL, Timeout: *timeout})
	ctx := context.Background()

	if fs.NArg() > 0 {
		if err := execute(ctx, c, stdout, strings.Join(fs.Args(), " ")); err != nil && !errors.Is(err, errExit) {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		return 0
	}

	if term.IsTerminal(int(stdin.Fd())) {
		return shell(ctx, c, stdin, *serverURL)
	}
	return script(ctx, c, stdin, stdout, stderr)
}

// script executes newline-separated commands and stops at the first error.
func script(ctx context.Context, c *client.Client, in io.Reader, stdout, stderr io.Writer) int {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := execute(ctx, c, stdout, line); err != nil {
			if errors.Is(err, errExit) {
				return 0
			}
			fmt.Fprintf(stderr, "line %d: %v\n", lineNo, err)
			return 1
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// shell runs the interactive prompt.
func shell(ctx context.Context, c *client.Client, stdin *os.File, serverURL string) int {
	fd := int(stdin.Fd())
	state, err := term.GetState(fd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	restore := func() { term.Restore(fd, state) }

	fmt.Printf("sensorctl connected to %s (type help, exit to quit)\n", serverURL)

	executor := func(line string) {
		err := execute(ctx, c, os.Stdout, line)
		switch {
		case err == nil:
		case errors.Is(err, errExit):
			restore()
			os.Exit(0)
		default:
			fmt.Println("error:", err)
		}
	}

	p := prompt.New(executor, completer,
		prompt.OptionPrefix("sensorctl> "),
		prompt.OptionTitle("sensorctl"),
	)
	p.Run()
	restore()
	return 0
}

func completer(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	if strings.Contains(before, " ") {
		return filterSuggestions(d)
	}

	s := make([]prompt.Suggest, 0, len(commands))
	for _, name := range commandNames() {
		s = append(s, prompt.Suggest{Text: name, Description: commands[name].help})
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func filterSuggestions(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: "type=", Description: "reading type"},
		{Text: "start=", Description: "epoch seconds or ISO 8601, inclusive"},
		{Text: "end=", Description: "epoch seconds or ISO 8601, inclusive"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
