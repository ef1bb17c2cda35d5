// FILE: logfan/src/cmd/logfan/commands.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/listen"
	"logfan/src/internal/syslogserver"
	ltls "logfan/src/internal/tls"
	"logfan/src/internal/version"

	"github.com/lixenwraith/log"
)

// CommandHandler is one subcommand.
type CommandHandler interface {
	Execute(args []string) error
	Description() string
}

// CommandRouter dispatches subcommands before the daemon flags are parsed.
type CommandRouter struct {
	commands map[string]CommandHandler
	stdout   io.Writer
	stderr   io.Writer
}

func NewCommandRouter() *CommandRouter {
	return &CommandRouter{
		commands: map[string]CommandHandler{
			"tail":      &tailCommand{out: os.Stdout},
			"subscribe": &subscribeCommand{out: os.Stdout},
			"tls":       &tlsCommand{out: os.Stdout},
			"version":   &versionCommand{out: os.Stdout},
			"help":      &helpCommand{out: os.Stdout},
		},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Route runs the subcommand named by args[1] and exits. It returns when args
// name no subcommand.
func (r *CommandRouter) Route(args []string) {
	if len(args) < 2 {
		return
	}
	name := args[1]
	if name == "-h" || name == "--help" {
		name = "help"
	}

	handler, ok := r.commands[name]
	if !ok {
		if !strings.HasPrefix(name, "-") {
			fmt.Fprintf(r.stderr, "Unknown command: %s\n\nAvailable commands:\n", name)
			r.ShowCommands(r.stderr)
			os.Exit(1)
		}
		return
	}

	if err := handler.Execute(args[2:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(r.stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// ShowCommands lists the subcommands.
func (r *CommandRouter) ShowCommands(w io.Writer) {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, r.commands[name].Description())
	}
}

type helpCommand struct {
	out io.Writer
}

func (c *helpCommand) Execute(args []string) error {
	fmt.Fprint(c.out, helpText)
	return nil
}

func (c *helpCommand) Description() string {
	return "Display help information"
}

type versionCommand struct {
	out io.Writer
}

func (c *versionCommand) Execute(args []string) error {
	fmt.Fprintln(c.out, version.String())
	return nil
}

func (c *versionCommand) Description() string {
	return "Show version information"
}

// tailCommand follows a server listener of a running daemon.
type tailCommand struct {
	out io.Writer
}

func (c *tailCommand) Description() string {
	return "Follow a server listener"
}

func (c *tailCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	var (
		addr     = fs.String("addr", "", "Listener address host:port (required)")
		levels   = fs.String("levels", "", "Comma-separated severities to receive, e.g. warning,error")
		useTLS   = fs.Bool("tls", false, "Connect with TLS")
		caFile   = fs.String("ca", "", "CA certificate to verify the server")
		insecure = fs.Bool("insecure", false, "Skip server certificate verification")
		retryMS  = fs.Int64("retry-ms", 1000, "Reconnect interval in milliseconds")
		debug    = fs.Bool("debug", false, "Print connection diagnostics")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Follow the text stream of a logfan server listener")
		fmt.Fprintln(fs.Output(), "\nUsage: logfan tail --addr host:port [options]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *addr == "" {
		fs.Usage()
		return fmt.Errorf("--addr is required")
	}

	mask, err := core.ParseSeverityMask(*levels)
	if err != nil {
		return fmt.Errorf("invalid levels: %w", err)
	}

	diag, err := commandLogger(*debug)
	if err != nil {
		return err
	}
	defer diag.Shutdown(time.Second)

	t := &listen.Tail{
		Address: *addr,
		Mask:    mask,
		Retry:   time.Duration(*retryMS) * time.Millisecond,
		Logger:  diag,
		OnRecord: func(rec listen.TextRecord) {
			fmt.Fprintln(c.out, formatRecord(rec))
		},
		OnLevels: func(m core.SeverityMask) {
			diag.Info("msg", "Server levels", "component", "tail", "levels", m.String())
		},
	}
	if *useTLS {
		mgr, err := ltls.NewClientManager(&config.TLSClientConfig{
			Enabled:            true,
			ServerCAFile:       *caFile,
			InsecureSkipVerify: *insecure,
		}, diag)
		if err != nil {
			return err
		}
		t.TLS = mgr.GetConfig()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return t.Run(ctx)
}

func formatRecord(rec listen.TextRecord) string {
	var b strings.Builder
	if !rec.Time.IsZero() {
		b.WriteString(rec.Time.Format("2006-01-02T15:04:05.000"))
		b.WriteByte(' ')
	}
	if rec.PreText != "" {
		b.WriteString("[" + rec.PreText + "] ")
	}
	b.WriteString(strings.TrimRight(rec.Text, "\n"))
	return b.String()
}

// subscribeCommand prints the messages of a syslog publisher.
type subscribeCommand struct {
	out io.Writer
}

func (c *subscribeCommand) Description() string {
	return "Print messages from a syslog publisher"
}

func (c *subscribeCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	var (
		remote   = fs.String("remote", "", "Publisher address host:port (required)")
		useTLS   = fs.Bool("tls", false, "Connect with TLS")
		caFile   = fs.String("ca", "", "CA certificate to verify the publisher")
		insecure = fs.Bool("insecure", false, "Skip certificate verification")
		retryMS  = fs.Int64("retry-ms", 1000, "Reconnect interval in milliseconds")
		raw      = fs.Bool("raw", false, "Print the RFC 5424 encoding instead of a summary")
		debug    = fs.Bool("debug", false, "Print connection diagnostics")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Subscribe to a logfan syslog publisher")
		fmt.Fprintln(fs.Output(), "\nUsage: logfan subscribe --remote host:port [options]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *remote == "" {
		fs.Usage()
		return fmt.Errorf("--remote is required")
	}

	diag, err := commandLogger(*debug)
	if err != nil {
		return err
	}
	defer diag.Shutdown(time.Second)

	cfg := config.SyslogConfig{
		Name:    "subscribe",
		Type:    "subscriber",
		Remote:  *remote,
		RetryMS: *retryMS,
	}
	if *useTLS {
		cfg.ClientTLS = &config.TLSClientConfig{
			Enabled:            true,
			ServerCAFile:       *caFile,
			InsecureSkipVerify: *insecure,
		}
	}
	sub, err := syslogserver.NewSubscriber(cfg, diag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sub.Start(ctx); err != nil {
		return err
	}
	defer sub.Stop()

	for {
		m, ok := sub.GetMsg(ctx, true)
		if !ok {
			if ctx.Err() != nil {
				diag.Info("msg", "Subscription ended",
					"component", "subscribe",
					"received", sub.Stats().Messages,
					"gaps", sub.Gaps())
				return nil
			}
			continue
		}
		if *raw {
			fmt.Fprintln(c.out, m.String())
			continue
		}
		fmt.Fprintf(c.out, "%s %s %s[%d] %s\n",
			m.Timestamp.Format("2006-01-02T15:04:05.000"),
			m.Severity, m.AppName, m.Index, m.Text)
	}
}

// tlsCommand writes a self-signed certificate for syslog TLS endpoints.
type tlsCommand struct {
	out io.Writer
}

func (c *tlsCommand) Description() string {
	return "Generate a self-signed TLS certificate"
}

func (c *tlsCommand) Execute(args []string) error {
	fs := flag.NewFlagSet("tls", flag.ContinueOnError)
	var (
		commonName = fs.String("cn", "", "Common name (required)")
		org        = fs.String("org", "logfan", "Organization")
		hosts      = fs.String("hosts", "", "Comma-separated hostnames/IPs")
		validDays  = fs.Int("days", 365, "Validity period in days")
		certOut    = fs.String("cert-out", "", "Output certificate file")
		keyOut     = fs.String("key-out", "", "Output key file")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Generate a self-signed certificate for syslog TLS endpoints")
		fmt.Fprintln(fs.Output(), "\nUsage: logfan tls --cn localhost --hosts localhost,127.0.0.1 [options]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *commonName == "" {
		fs.Usage()
		return fmt.Errorf("--cn is required")
	}

	certFile, keyFile := *certOut, *keyOut
	if certFile == "" {
		certFile = *commonName + ".crt"
	}
	if keyFile == "" {
		keyFile = *commonName + ".key"
	}

	err := ltls.WriteSelfSigned(ltls.SelfSignedRequest{
		CommonName:   *commonName,
		Organization: *org,
		Hosts:        splitList(*hosts),
		ValidDays:    *validDays,
	}, certFile, keyFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Certificate: %s\nPrivate key: %s\n", certFile, keyFile)
	return nil
}

// commandLogger returns a stderr logger for subcommands, silent unless debug.
func commandLogger(debug bool) (*log.Logger, error) {
	l := log.NewLogger()
	cfg := log.DefaultConfig()
	cfg.DisableFile = true
	cfg.EnableConsole = debug
	cfg.ConsoleTarget = "stderr"
	cfg.Level = log.LevelDebug
	if err := l.ApplyConfig(cfg); err != nil {
		return nil, err
	}
	if err := l.Start(); err != nil {
		return nil, err
	}
	return l, nil
}
