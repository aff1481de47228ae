// Package main is the entry point for the slicepad CLI.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/slicepad/slicepad/internal/app"
	"github.com/slicepad/slicepad/internal/command"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

type options struct {
	configPath  string
	logLevel    string
	scratchDir  string
	live        bool
	listBackups bool
}

func run() int {
	opts, args := parseFlags()

	application, err := app.New(app.Options{
		ConfigPath: opts.configPath,
		LogLevel:   opts.logLevel,
		ScratchDir: opts.scratchDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	if opts.listBackups {
		return listBackups(application)
	}

	if len(args) < 2 {
		flag.Usage()
		return 1
	}

	artifact := args[0]
	candidates, err := parseCandidates(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	res := application.Handle(ctx, command.Request{
		Action:       command.ActionSlice,
		ArtifactPath: artifact,
		Candidates:   candidates,
	})
	if !res.IsOK() {
		printResult(res)
		return 1
	}
	buffer := res.GetDataString("buffer")
	fmt.Printf("sliced %d regions into %s\n", res.GetDataInt("regions"), buffer)

	if opts.live {
		res = application.Handle(ctx, command.Request{Action: command.ActionToggleLive, BufferID: buffer})
		if !res.IsOK() {
			printResult(res)
			return 1
		}
		fmt.Println("live sync on")
	}

	return commandLoop(ctx, application, buffer)
}

// commandLoop reads commands from stdin until the session ends. An
// interrupt, or stdin closing, accepts the pending edits and exits.
func commandLoop(ctx context.Context, application *app.Application, buffer string) int {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	fmt.Println("commands: sync, preview, status, live, accept, revert")
	for {
		var cmd string
		select {
		case <-signals:
			cmd = "accept"
		case line, ok := <-lines:
			if !ok {
				cmd = "accept"
			} else {
				cmd = line
			}
		}

		switch cmd {
		case "":
			continue
		case "sync":
			printResult(application.Handle(ctx, command.Request{Action: command.ActionSync, BufferID: buffer}))
		case "preview":
			printResult(application.Handle(ctx, command.Request{Action: command.ActionPreview, BufferID: buffer}))
		case "status":
			printResult(application.Handle(ctx, command.Request{Action: command.ActionStatus, BufferID: buffer}))
		case "live":
			printResult(application.Handle(ctx, command.Request{Action: command.ActionToggleLive, BufferID: buffer}))
		case "accept":
			res := application.Handle(ctx, command.Request{Action: command.ActionAccept, BufferID: buffer})
			printResult(res)
			if res.IsOK() {
				return 0
			}
		case "revert":
			res := application.Handle(ctx, command.Request{Action: command.ActionRevert, BufferID: buffer})
			printResult(res)
			if res.IsOK() {
				return 0
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		}
	}
}

func listBackups(application *app.Application) int {
	entries, err := application.Backups().List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Println("no backups")
		return 0
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Artifact, e.File)
	}
	return 0
}

func printResult(res command.Result) {
	switch {
	case res.IsError():
		fmt.Fprintf(os.Stderr, "error: %v\n", res.Error)
	case res.Message != "":
		fmt.Println(res.Message)
	}
	if diff := res.GetDataString("diff"); diff != "" {
		fmt.Print(diff)
	}
	if status, ok := res.Data["session"].(map[string]interface{}); ok {
		for _, key := range []string{"artifact", "buffer", "regions", "live", "busy", "stale"} {
			fmt.Printf("%-8s %v\n", key, status[key])
		}
	}
}

// parseCandidates converts 1-based line arguments to 0-based lines.
func parseCandidates(args []string) ([]int, error) {
	lines := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid line number %q", arg)
		}
		lines = append(lines, n-1)
	}
	return lines, nil
}

func parseFlags() (options, []string) {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.scratchDir, "scratch-dir", "", "Directory for scratch buffer files")
	flag.BoolVar(&opts.live, "live", false, "Enable live sync immediately")
	flag.BoolVar(&opts.live, "l", false, "Enable live sync immediately (shorthand)")
	flag.BoolVar(&opts.listBackups, "backups", false, "List durable session backups and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "slicepad - region slicing and write-back for text artifacts\n\n")
		fmt.Fprintf(os.Stderr, "Usage: slicepad [options] <artifact> <line> [line...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  slicepad main.go 42             Slice a region around line 42\n")
		fmt.Fprintf(os.Stderr, "  slicepad -l main.go 42 108      Slice two regions, live sync on\n")
		fmt.Fprintf(os.Stderr, "  slicepad -backups               List durable backups\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("slicepad %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.logLevel != "" {
		switch opts.logLevel {
		case "debug", "info", "warn", "error":
		default:
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.logLevel)
			os.Exit(1)
		}
	}

	return opts, flag.Args()
}
