package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xtxerr/sensorstats/internal/client"
	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/export"
	"github.com/xtxerr/sensorstats/internal/query"
)

// errExit ends the interactive shell.
var errExit = errors.New("exit")

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, c *client.Client, out io.Writer, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"post": {
			usage: "post <device> <type> <value> [date_created]",
			help:  "store a reading",
			run:   cmdPost,
		},
		"list": {
			usage: "list <device> [type=T] [start=S] [end=E]",
			help:  "list readings",
			run:   cmdList,
		},
		"min":         statCommand(query.StatMin),
		"max":         statCommand(query.StatMax),
		"median":      statCommand(query.StatMedian),
		"mean":        statCommand(query.StatMean),
		"quartiles":   resultCommand("quartiles", "first and third quartile with the median", quartiles),
		"summary":     resultCommand("summary", "count, min, max, median and quartiles", summary),
		"percentiles": resultCommand("percentiles", "sketch estimates of p50, p90, p95 and p99", percentiles),
		"export": {
			usage: "export <device> <file.parquet> [type=T] [start=S] [end=E]",
			help:  "download readings as Parquet",
			run:   cmdExport,
		},
		"health": {
			usage: "health",
			help:  "check the server and its store",
			run: func(ctx context.Context, c *client.Client, out io.Writer, _ []string) error {
				if err := c.Health(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "ok")
				return nil
			},
		},
		"help": {
			usage: "help",
			help:  "show this list",
			run: func(_ context.Context, _ *client.Client, out io.Writer, _ []string) error {
				printHelp(out)
				return nil
			},
		},
		"exit": {
			usage: "exit",
			help:  "leave the shell",
			run: func(context.Context, *client.Client, io.Writer, []string) error {
				return errExit
			},
		},
	}
}

// execute runs one command line.
func execute(ctx context.Context, c *client.Client, out io.Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := fields[0]
	if name == "quit" {
		name = "exit"
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	return cmd.run(ctx, c, out, fields[1:])
}

func printHelp(out io.Writer) {
	for _, name := range commandNames() {
		cmd := commands[name]
		fmt.Fprintf(out, "  %-58s %s\n", cmd.usage, cmd.help)
	}
}

// =============================================================================
// Argument parsing
// =============================================================================

// splitArgs separates positional arguments from key=value filters.
func splitArgs(args []string) ([]string, client.Query, error) {
	var (
		pos []string
		q   client.Query
	)
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			pos = append(pos, a)
			continue
		}
		switch k {
		case "type":
			q.Type = v
		case "start":
			q.Start = v
		case "end":
			q.End = v
		default:
			return nil, q, fmt.Errorf("unknown filter %q", k)
		}
	}
	return pos, q, nil
}

func needArgs(usage string, pos []string, lo, hi int) error {
	if len(pos) < lo || len(pos) > hi {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// Commands
// =============================================================================

func cmdPost(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
	usage := commands["post"].usage
	if err := needArgs(usage, args, 3, 4); err != nil {
		return err
	}

	value, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("value must be an integer: %q", args[2])
	}
	in := query.NewReading{Type: &args[1], Value: &value}
	if len(args) == 4 {
		created, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("date_created must be epoch seconds: %q", args[3])
		}
		in.DateCreated = &created
	}

	if err := c.Post(ctx, args[0], in); err != nil {
		return err
	}
	fmt.Fprintln(out, "created")
	return nil
}

func cmdList(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
	pos, q, err := splitArgs(args)
	if err != nil {
		return err
	}
	if err := needArgs(commands["list"].usage, pos, 1, 1); err != nil {
		return err
	}

	readings, err := c.List(ctx, pos[0], q)
	if err != nil {
		return err
	}
	for _, r := range readings {
		fmt.Fprintf(out, "%d\t%s\t%d\n", r.DateCreated, r.Type, r.Value)
	}
	fmt.Fprintf(out, "%d reading(s)\n", len(readings))
	return nil
}

func statCommand(stat query.Stat) command {
	usage := fmt.Sprintf("%s <device> [type=T] [start=S] [end=E]", stat)
	return command{
		usage: usage,
		help:  string(stat) + " of the readings",
		run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
			pos, q, err := splitArgs(args)
			if err != nil {
				return err
			}
			if err := needArgs(usage, pos, 1, 1); err != nil {
				return err
			}
			res, err := c.Stat(ctx, pos[0], stat, q)
			if err != nil {
				return err
			}
			return printJSON(out, res)
		},
	}
}

type fetchFunc func(ctx context.Context, c *client.Client, device string, q client.Query) (interface{}, error)

func quartiles(ctx context.Context, c *client.Client, device string, q client.Query) (interface{}, error) {
	return c.Quartiles(ctx, device, q)
}

func summary(ctx context.Context, c *client.Client, device string, q client.Query) (interface{}, error) {
	return c.Summary(ctx, device, q)
}

func percentiles(ctx context.Context, c *client.Client, device string, q client.Query) (interface{}, error) {
	return c.Percentiles(ctx, device, q)
}

func resultCommand(name, help string, fetch fetchFunc) command {
	usage := name + " <device> [type=T] [start=S] [end=E]"
	return command{
		usage: usage,
		help:  help,
		run: func(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
			pos, q, err := splitArgs(args)
			if err != nil {
				return err
			}
			if err := needArgs(usage, pos, 1, 1); err != nil {
				return err
			}
			res, err := fetch(ctx, c, pos[0], q)
			if err != nil {
				return err
			}
			return printJSON(out, res)
		},
	}
}

func cmdExport(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
	pos, q, err := splitArgs(args)
	if err != nil {
		return err
	}
	if err := needArgs(commands["export"].usage, pos, 2, 2); err != nil {
		return err
	}

	data, err := c.Export(ctx, pos[0], q)
	if err != nil {
		return err
	}

	// Decode before writing so a truncated download never lands on disk.
	readings, err := export.ReadReadings(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("server returned an unreadable file: %w", err)
	}
	if err := os.WriteFile(pos[1], data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d reading(s), %d bytes to %s\n", len(readings), len(data), pos[1])
	return nil
}
