// The test-call command drives one call through the sandbox proxy the
// way a platform smoke test does: INVITE, answer any digest challenge,
// ACK the 200, hold briefly, BYE. It exits zero only when the whole
// sequence completed, so it can gate a sandbox health check.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/voipbin/sandbox/internal/logging"
	"github.com/voipbin/sandbox/pkg/sip/dns"
	"github.com/voipbin/sandbox/pkg/softphone"
)

func main() {
	cmd := &cli.Command{
		Name:  "test-call",
		Usage: "Place one test call through the sandbox proxy and hang up",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "server",
				Usage:    "SIP proxy host",
				Sources:  cli.EnvVars("TESTCALL_SERVER"),
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "SIP proxy port, 0 discovers it via DNS SRV",
				Sources: cli.EnvVars("TESTCALL_PORT"),
			},
			&cli.StringFlag{
				Name:     "customer-id",
				Usage:    "customer both extensions belong to",
				Sources:  cli.EnvVars("TESTCALL_CUSTOMER_ID"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "from",
				Usage:    "calling extension",
				Sources:  cli.EnvVars("TESTCALL_FROM"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "calling extension's password",
				Sources:  cli.EnvVars("TESTCALL_PASSWORD"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "to",
				Usage:    "called extension",
				Sources:  cli.EnvVars("TESTCALL_TO"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "domain",
				Usage:   "base domain of the registrar",
				Value:   softphone.DefaultBaseDomain,
				Sources: cli.EnvVars("TESTCALL_DOMAIN"),
			},
			&cli.DurationFlag{
				Name:    "hold",
				Usage:   "how long to hold the call before hanging up",
				Value:   softphone.DefaultHold,
				Sources: cli.EnvVars("TESTCALL_HOLD"),
			},
			&cli.IntFlag{
				Name:    "attempts",
				Usage:   "receive attempts while waiting for the answer",
				Value:   softphone.DefaultAttempts,
				Sources: cli.EnvVars("TESTCALL_ATTEMPTS"),
			},
			&cli.DurationFlag{
				Name:    "wait",
				Usage:   "timeout of each receive attempt",
				Value:   softphone.DefaultAttemptWait,
				Sources: cli.EnvVars("TESTCALL_WAIT"),
			},
			&cli.StringFlag{
				Name:    "nameserver",
				Usage:   "DNS server for proxy resolution, empty uses the system resolver",
				Sources: cli.EnvVars("TESTCALL_NAMESERVER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				Sources: cli.EnvVars("TESTCALL_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "log JSON lines instead of console output",
				Sources: cli.EnvVars("TESTCALL_LOG_JSON"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	logger, err := logging.New(c.String("log-level"), c.Bool("log-json"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := &dns.Resolver{NameServer: c.String("nameserver")}
	host := c.String("server")
	port := int(c.Int("port"))
	if port == 0 {
		host, port = resolver.DiscoverPort(ctx, host, logger)
	}
	addr, err := resolver.LookupUDPAddr(ctx, host, port)
	if err != nil {
		return fmt.Errorf("resolve proxy %s: %w", host, err)
	}

	call, err := softphone.NewCall(
		softphone.CallConfig{
			Server:   addr.IP.String(),
			Port:     addr.Port,
			Domain:   softphone.RegistrarDomain(c.String("customer-id"), c.String("domain")),
			From:     c.String("from"),
			Password: c.String("password"),
			To:       c.String("to"),
			Attempts: int(c.Int("attempts")),
			Wait:     c.Duration("wait"),
		},
		softphone.WithCallLogger(logger),
	)
	if err != nil {
		return err
	}
	defer call.Close()

	if err := call.Place(ctx); err != nil {
		var statusErr *softphone.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Errorf("call rejected with SIP %d %s", statusErr.Code, statusErr.Reason)
		}
		return fmt.Errorf("call setup failed: %w", err)
	}

	hold := c.Duration("hold")
	logger.Info("call up, holding", "hold", hold.String())
	select {
	case <-ctx.Done():
		logger.Warn("interrupted during hold, hanging up early")
	case <-time.After(hold):
	}

	// Hang up even when interrupted; context cancellation must not leave
	// the far end ringing off the hook.
	if err := call.Hangup(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("hangup failed: %w", err)
	}
	logger.Info("test call completed")
	return nil
}
