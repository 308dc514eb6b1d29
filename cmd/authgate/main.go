package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/app"
	"github.com/goliatone/go-auth-gate/config"
	"github.com/goliatone/go-auth-gate/logging"
	"github.com/goliatone/go-auth-gate/rpc"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// readPassword is swapped in tests.
var readPassword = term.ReadPassword

var isTerminal = term.IsTerminal

var errFailed = errors.New("operation failed")

type options struct {
	command  string
	email    string
	password string
	rpcAddr  string
	envFile  string
	timeout  time.Duration
	verbose  bool
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseArgs(args, stdout)
	if err != nil {
		return err
	}
	if opts == nil {
		return nil
	}

	var files []string
	if opts.envFile != "" {
		files = append(files, opts.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logs, err := logging.New(logging.Config{Name: "authgate", Format: cfg.LogFormat, Level: level})
	if err != nil {
		return err
	}
	defer logs.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logs)
	if err != nil {
		return err
	}
	defer a.Close()

	controllerOpts := []authgate.ControllerOption{
		authgate.WithControllerLogger(a.GetLogger("controller")),
		authgate.WithControllerActivitySink(a.Activity()),
	}

	if opts.rpcAddr != "" {
		client, err := rpc.Dial(opts.rpcAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		controllerOpts = append(controllerOpts, authgate.WithLinkRequester(client))
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.OperationTimeout
	}

	ctrl := authgate.NewController(a.Provider(), authgate.ControllerConfig{
		ContinuationURL:  cfg.ContinueURL,
		DevBypass:        cfg.AllowUnverifiedLogin,
		Environment:      cfg.Environment,
		OperationTimeout: timeout,
	}, controllerOpts...)

	if needsPassword(opts) && opts.password == "" {
		pw, err := promptPassword(stdin, stdout)
		if err != nil {
			return err
		}
		opts.password = pw
	}

	snap, err := execute(ctx, ctrl, opts.command, opts.email, opts.password)
	if err != nil {
		return err
	}

	printSnapshot(stdout, snap)
	if snap.State == authgate.StateFailed {
		return errFailed
	}
	return nil
}

func parseArgs(args []string, out io.Writer) (*options, error) {
	opts := &options{}

	flagSet := pflag.NewFlagSet("authgate", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVarP(&opts.email, "email", "e", "", "account email address")
	flagSet.StringVarP(&opts.password, "password", "p", "", "account password (prompted when omitted)")
	flagSet.StringVar(&opts.rpcAddr, "rpc", "", "verification service address, resend then needs no password")
	flagSet.StringVar(&opts.envFile, "env-file", "", "dotenv file to load")
	flagSet.DurationVar(&opts.timeout, "timeout", 0, "per operation timeout (default OPERATION_TIMEOUT)")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(out, flagSet)
			return nil, nil
		}
		return nil, err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(out, flagSet)
		return nil, nil
	}

	rest := flagSet.Args()
	if len(rest) != 1 {
		printHelp(out, flagSet)
		return nil, fmt.Errorf("expected exactly one command, got %d", len(rest))
	}

	opts.command = strings.ToLower(rest[0])
	switch opts.command {
	case "signup", "login", "resend", "recheck", "reset":
	default:
		return nil, fmt.Errorf("unknown command %q", rest[0])
	}

	return opts, nil
}

func needsPassword(opts *options) bool {
	switch opts.command {
	case "reset":
		return false
	case "resend":
		return opts.rpcAddr == ""
	default:
		return true
	}
}

func promptPassword(stdin io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")

	if f, ok := stdin.(*os.File); ok && isTerminal(int(f.Fd())) {
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	fmt.Fprintln(out)
	return strings.TrimRight(line, "\r\n"), nil
}

func execute(ctx context.Context, ctrl *authgate.Controller, command, email, password string) (authgate.Snapshot, error) {
	switch command {
	case "signup":
		return ctrl.SignUp(ctx, email, password)
	case "login":
		return ctrl.LogIn(ctx, email, password)
	case "resend":
		return ctrl.ResendVerification(ctx, email, password)
	case "recheck":
		return ctrl.RecheckVerification(ctx, email, password)
	case "reset":
		return ctrl.RequestPasswordReset(ctx, email)
	default:
		return authgate.Snapshot{}, fmt.Errorf("unknown command %q", command)
	}
}

func printSnapshot(out io.Writer, snap authgate.Snapshot) {
	fmt.Fprintf(out, "state: %s\n", snap.State)
	if snap.Email != "" {
		fmt.Fprintf(out, "email: %s\n", snap.Email)
	}
	if snap.Notice != "" {
		fmt.Fprintf(out, "notice: %s\n", snap.Notice)
	}
	if snap.Warning != "" {
		fmt.Fprintf(out, "warning: %s\n", snap.Warning)
	}
	if snap.Error != "" {
		fmt.Fprintf(out, "error: %s (%s)\n", snap.Error, snap.Kind)
	}
}

func printHelp(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(out, `authgate drives the verification gated sign in flow from a terminal.

Usage:
  authgate <signup|login|resend|recheck|reset> --email <address> [flags]

Commands:
  signup   create an account and send a verification email
  login    sign in; unverified accounts are signed out again
  resend   send another verification email
  recheck  sign in again once the email has been verified
  reset    send a password reset email

Flags:
`)
	flagSet.PrintDefaults()
}
