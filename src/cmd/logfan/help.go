// FILE: logfan/src/cmd/logfan/help.go
package main

const helpText = `logfan: in-process log distribution daemon.

Usage:
  logfan [command] [options]
  logfan [options] [-- config overrides]

Commands:
  tail         Follow a server listener of a running daemon
  subscribe    Print messages from a syslog publisher
  tls          Generate a self-signed TLS certificate
  version      Display version information
  help         Display this help

Daemon Options:
  -config <path>           Path to configuration file (default: ~/.config/logfan.toml)
  -version                 Display version information and exit
  -quiet                   Suppress the banner and warnings; fatal errors still print
  -config-auto-reload      Apply listener and threshold changes when the file changes
  -threshold <severity>    Minimum severity accepted at call sites
  -log-types <list>        Enabled sink families: console, file, listen, syslog, list
  -log-output <mode>       Diagnostic log output: file, stdout, stderr, both, none
  -log-level <level>       Diagnostic log level: debug, info, warn, error

Signals:
  SIGHUP, SIGUSR1          Reload listeners, threshold and log types
  SIGINT, SIGTERM          Drain the queue and shut down

Configuration Sources (Precedence: CLI > Env > File > Defaults):
  - Overrides after -- use dotted keys: --engine.threshold=debug
  - Environment variables use the LOGFAN_ prefix: LOGFAN_ENGINE_THRESHOLD=debug
  - TOML configuration file is the primary method

Examples:
  # Pipe an application through logfan to a viewer port
  app 2>&1 | logfan -- --ingest.stdin=true --engine.log_types=console,listen

  # Follow warnings and errors
  logfan tail --addr 127.0.0.1:9100 --levels warning,error

  # Certificate for a TLS syslog server
  logfan tls --cn localhost --hosts localhost,127.0.0.1
`
