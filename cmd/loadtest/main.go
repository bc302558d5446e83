// Команда loadtest нагружает HTTP API сервиса очереди заказов и печатает
// сводку по задержкам и кодам ответов.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type loadMode string

const (
	// modeCreate только создаёт заказы.
	modeCreate loadMode = "create"
	// modeCreateProcess создаёт заказ и сразу берёт следующий в обработку.
	modeCreateProcess loadMode = "create-process"
)

type config struct {
	baseURL     string
	mode        loadMode
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	clients     int
	orderTime   int
	tag         string
	outputPath  string
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loadtest",
		Short:         "Generate order load against the queue service HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			result := run(cfg)
			printReport(cmd.OutOrStdout(), cfg, result)
			if cfg.outputPath != "" {
				if err := writeJSONReport(cfg.outputPath, result); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			if result.FailedScenarios > 0 {
				return fmt.Errorf("%d of %d scenarios failed", result.FailedScenarios, result.TotalScenarios)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("url", "http://localhost:8000", "queue-service HTTP base URL")
	f.String("mode", string(modeCreate), "load mode: create | create-process")
	f.Int("total", 400, "scenarios to run; with --duration acts as an upper bound")
	f.Duration("duration", 0, "run for a fixed time instead of a fixed count (e.g. 1m)")
	f.Int("concurrency", 20, "concurrent workers")
	f.Duration("timeout", 5*time.Second, "per-request timeout")
	f.Int("clients", 10, "distinct client ids orders are spread across")
	f.Int("order-time", 1, "estimated processing time of each order (1..99)")
	f.String("tag", "load", "order description prefix")
	f.String("output", "", "write the JSON report to this file")
	return cmd
}

// parseConfig разбирает аргументы так же, как команда, но без запуска.
func parseConfig(args []string) (config, error) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags(args); err != nil {
		return config{}, err
	}
	return configFromFlags(cmd.Flags())
}

func configFromFlags(f *pflag.FlagSet) (config, error) {
	var (
		cfg  config
		mode string
		errs []error
	)
	collect := func(err error) { errs = append(errs, err) }

	cfg.baseURL, _ = f.GetString("url")
	mode, _ = f.GetString("mode")
	cfg.total, _ = f.GetInt("total")
	cfg.duration, _ = f.GetDuration("duration")
	cfg.concurrency, _ = f.GetInt("concurrency")
	cfg.timeout, _ = f.GetDuration("timeout")
	cfg.clients, _ = f.GetInt("clients")
	cfg.orderTime, _ = f.GetInt("order-time")
	cfg.tag, _ = f.GetString("tag")
	cfg.outputPath, _ = f.GetString("output")
	cfg.totalSet = f.Changed("total")
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	switch m := loadMode(strings.TrimSpace(mode)); m {
	case modeCreate, modeCreateProcess:
		cfg.mode = m
	default:
		collect(fmt.Errorf("unsupported mode %q", mode))
	}
	if cfg.baseURL == "" {
		collect(errors.New("url is required"))
	}
	if cfg.duration < 0 {
		collect(errors.New("duration must be >= 0"))
	}
	if cfg.total <= 0 && (cfg.duration == 0 || cfg.totalSet) {
		collect(errors.New("total must be > 0"))
	}
	if cfg.concurrency <= 0 {
		collect(errors.New("concurrency must be > 0"))
	}
	if cfg.timeout <= 0 {
		collect(errors.New("timeout must be > 0"))
	}
	if cfg.clients <= 0 {
		collect(errors.New("clients must be > 0"))
	}
	if cfg.orderTime < 1 || cfg.orderTime > 99 {
		collect(errors.New("order-time must be between 1 and 99"))
	}
	if strings.TrimSpace(cfg.tag) == "" {
		collect(errors.New("tag is required"))
	}
	return cfg, errors.Join(errs...)
}

// target описывает границу прогона для отчёта.
func (c config) target() string {
	switch {
	case c.duration <= 0:
		return fmt.Sprintf("count:%d", c.total)
	case c.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", c.duration, c.total)
	default:
		return fmt.Sprintf("duration:%s", c.duration)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "loadtest:", err)
		os.Exit(1)
	}
}
