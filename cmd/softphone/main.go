// The softphone command registers a sandbox extension against the
// platform registrar and answers whatever the proxy sends it: INVITEs get
// ringing and an answer, OPTIONS gets a liveness reply, BYE tears the
// call down. It keeps the registration fresh until stopped.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/voipbin/sandbox/internal/logging"
	"github.com/voipbin/sandbox/pkg/sip/dns"
	"github.com/voipbin/sandbox/pkg/softphone"
)

func main() {
	cmd := &cli.Command{
		Name:  "softphone",
		Usage: "Register a sandbox extension and auto-answer calls placed to it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "server",
				Usage:    "SIP proxy host",
				Sources:  cli.EnvVars("SOFTPHONE_SERVER"),
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "SIP proxy port, 0 discovers it via DNS SRV",
				Sources: cli.EnvVars("SOFTPHONE_PORT"),
			},
			&cli.StringFlag{
				Name:     "customer-id",
				Usage:    "customer the extension belongs to",
				Sources:  cli.EnvVars("SOFTPHONE_CUSTOMER_ID"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "extension",
				Usage:    "extension to register",
				Sources:  cli.EnvVars("SOFTPHONE_EXTENSION"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "extension password for digest authentication",
				Sources:  cli.EnvVars("SOFTPHONE_PASSWORD"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "domain",
				Usage:   "base domain of the registrar",
				Value:   softphone.DefaultBaseDomain,
				Sources: cli.EnvVars("SOFTPHONE_DOMAIN"),
			},
			&cli.IntFlag{
				Name:    "local-port",
				Usage:   "fixed signaling port, 0 binds an ephemeral one",
				Sources: cli.EnvVars("SOFTPHONE_LOCAL_PORT"),
			},
			&cli.BoolFlag{
				Name:    "no-auto-answer",
				Usage:   "log inbound calls instead of answering them",
				Sources: cli.EnvVars("SOFTPHONE_NO_AUTO_ANSWER"),
			},
			&cli.DurationFlag{
				Name:    "register-interval",
				Usage:   "time between registration refreshes",
				Value:   softphone.DefaultRegisterInterval,
				Sources: cli.EnvVars("SOFTPHONE_REGISTER_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "serve Prometheus metrics on this address, empty disables",
				Sources: cli.EnvVars("SOFTPHONE_METRICS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "nameserver",
				Usage:   "DNS server for proxy resolution, empty uses the system resolver",
				Sources: cli.EnvVars("SOFTPHONE_NAMESERVER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				Sources: cli.EnvVars("SOFTPHONE_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "log JSON lines instead of console output",
				Sources: cli.EnvVars("SOFTPHONE_LOG_JSON"),
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

	phone, err := softphone.NewPhone(
		softphone.Config{
			Server:    addr.IP.String(),
			Port:      addr.Port,
			Domain:    softphone.RegistrarDomain(c.String("customer-id"), c.String("domain")),
			Extension: c.String("extension"),
			Password:  c.String("password"),
			LocalPort: int(c.Int("local-port")),
		},
		softphone.WithLogger(logger),
		softphone.WithAutoAnswer(!c.Bool("no-auto-answer")),
		softphone.WithRegisterInterval(c.Duration("register-interval")),
	)
	if err != nil {
		return err
	}

	if metricsAddr := c.String("metrics-addr"); metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown requested")
		phone.Close()
	}()
	return phone.Run(ctx)
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Warn("metrics server stopped", "error", err)
	}
}
