// Command cartctl drives the storefront cart from a terminal against any of
// the supported stores.
//
//	cartctl [flags] list
//	cartctl [flags] add -id a1 -title "Red Bird" -price ₪120
//	cartctl [flags] remove a1
//	cartctl [flags] qty a1 3
//	cartctl [flags] total
//	cartctl [flags] empty [-yes]
//	cartctl [flags] watch
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/nikolayk812/storefront-cart/internal/cart"
	"github.com/nikolayk812/storefront-cart/internal/config"
	"github.com/nikolayk812/storefront-cart/internal/currency"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/itemcache"
	"github.com/nikolayk812/storefront-cart/internal/logging"
	"github.com/nikolayk812/storefront-cart/internal/notify"
	"github.com/nikolayk812/storefront-cart/internal/repository"
	"github.com/nikolayk812/storefront-cart/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const serviceName = "cartctl"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	os.Exit(run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type staticSettings domain.Settings

func (s staticSettings) ActiveSettings() (domain.Settings, bool) {
	return domain.Settings(s), s.Currency != "" || s.Locale != ""
}

// run returns the process exit code: 0 on success, 1 when the cart refused
// the operation, 2 on usage or setup errors.
func run(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	backendName := fs.String("backend", string(cfg.Backend), "store: memory, sqlite, postgres or redis")
	sqlitePath := fs.String("sqlite-path", cfg.SQLitePath, "sqlite database file")
	activeCurrency := fs.String("currency", cfg.ActiveCurrency, "active currency code or symbol, overrides stored settings")
	locale := fs.String("locale", "", "active locale, used when -currency is empty")
	model := fs.String("model", cfg.CatalogModel, "catalog model: unique or stock")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg.Backend = config.Backend(strings.ToLower(*backendName))
	cfg.SQLitePath = *sqlitePath
	cfg.ActiveCurrency = *activeCurrency
	cfg.CatalogModel = *model
	cfg.LogLevel = *logLevel
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: command is required (list, add, remove, qty, total, empty, watch)")
		return 2
	}

	logger := logging.New(cfg.LogLevel)
	logger.Out = stderr

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		logger.WithError(err).Warn("telemetry disabled")
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("telemetry shutdown")
		}
	}()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() {
		if err := be.close(); err != nil {
			logger.WithError(err).Warn("close store")
		}
	}()

	term := newTerminal(stdout, stderr)
	manager, err := newManager(cfg, be, term, logger, staticSettings{Currency: cfg.ActiveCurrency, Locale: *locale})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if err := manager.Init(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	code := dispatch(ctx, manager, be, cfg, term, fs.Args(), stdin, stdout, stderr)

	for _, s := range manager.PerfLog().Samples() {
		logger.WithFields(logrus.Fields{
			"op":       s.Op,
			"duration": s.Duration.String(),
			"failed":   s.Failed,
		}).Debug("cart operation")
	}

	return code
}

func newManager(cfg config.Config, be backend, term *terminal, logger logrus.FieldLogger, active staticSettings) (*cart.Manager, error) {
	store, err := repository.NewCart(be.kv, cfg.CartKey)
	if err != nil {
		return nil, fmt.Errorf("repository.NewCart: %w", err)
	}

	resolver := currency.NewResolver(be.kv, cfg.SettingsKey, cfg.DefaultSymbol,
		currency.WithActiveSettings(active),
		currency.WithLogger(logger),
	)

	clk := clockwork.NewRealClock()
	perf := notify.NewPerfLog(notify.DefaultPerfCapacity, clk)
	notifier := notify.NewLogNotifier(logger, term.display)

	manager, err := cart.New(store, resolver,
		cart.WithRenderer(term),
		cart.WithNotifier(notifier),
		cart.WithReporter(notify.NewReporter(logger, notifier, perf)),
		cart.WithCache(itemcache.New(cfg.CacheTTL, clk)),
		cart.WithClock(clk),
		cart.WithLogger(logger),
		cart.WithPerfLog(perf),
		cart.WithCatalogModel(cfg.Model()),
		cart.WithThrottle(cfg.Throttle),
	)
	if err != nil {
		return nil, fmt.Errorf("cart.New: %w", err)
	}

	return manager, nil
}

func dispatch(ctx context.Context, m *cart.Manager, be backend, cfg config.Config, term *terminal, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd, rest := args[0], args[1:]

	show := func(ok bool) int {
		if err := term.RenderCart(ctx, domain.NewCartView(m.Items(), m.Symbol())); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if !ok {
			return 1
		}
		return 0
	}

	switch cmd {
	case "list":
		return show(true)

	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		fs.SetOutput(stderr)
		var in domain.ItemInput
		fs.StringVar(&in.ID, "id", "", "item id")
		fs.StringVar(&in.Title, "title", "", "item title")
		fs.StringVar(&in.Price, "price", "", "display price, e.g. ₪120")
		fs.StringVar(&in.Image, "image", "", "image path or URL")
		fs.StringVar(&in.Dimensions, "dimensions", "", "item dimensions")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		return show(m.AddToCart(ctx, in))

	case "remove":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "Error: usage: remove <id>")
			return 2
		}
		return show(m.RemoveFromCart(ctx, rest[0]))

	case "qty":
		if len(rest) != 2 {
			fmt.Fprintln(stderr, "Error: usage: qty <id> <quantity>")
			return 2
		}
		q, err := strconv.Atoi(rest[1])
		if err != nil {
			fmt.Fprintf(stderr, "Error: quantity[%s] is not a number\n", rest[1])
			return 2
		}
		return show(m.UpdateQuantity(ctx, rest[0], q))

	case "total":
		fmt.Fprintln(stdout, m.Total().String())
		return 0

	case "empty":
		fs := flag.NewFlagSet("empty", flag.ContinueOnError)
		fs.SetOutput(stderr)
		yes := fs.Bool("yes", false, "skip the confirmation prompt")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		confirm := func() bool {
			if *yes {
				return true
			}
			fmt.Fprint(stderr, "Empty the cart? [y/N] ")
			line, _ := bufio.NewReader(stdin).ReadString('\n')
			answer := strings.ToLower(strings.TrimSpace(line))
			return answer == "y" || answer == "yes"
		}
		return show(m.EmptyCart(ctx, confirm))

	case "watch":
		if be.watcher == nil {
			fmt.Fprintf(stderr, "Error: backend[%s] cannot watch for changes\n", cfg.Backend)
			return 2
		}
		m.Open()
		err := m.WatchStore(ctx, be.watcher, cfg.CartKey)
		m.Scheduler().Stop()
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		return 0

	default:
		fmt.Fprintf(stderr, "Error: command[%s] is not valid\n", cmd)
		return 2
	}
}
