// Command shoprec 提供批量预计算触发与在线查询的命令行入口。
//
//	shoprec [-config shoprec.yaml] <command> [flags]
//
// 命令：
//
//	recommend  -user u1 [-limit 10] [-strategy hybrid]
//	similar    -product p1 [-limit 10] [-type content_based]
//	suggest    -product p1 [-limit 5]
//	benefit    [-user u1] [-category electr] [-filter 'product.price < 100.0'] [-limit 10]
//	analytics  -category Electronics
//	batch      -kind suggestions|content_similarities|user_suggestions|behavior_similarities|feature_similarities
//	           [-top-n 5] [-min-support 0.05] [-min-confidence 0.2]
//	migrate    创建 Postgres 目录表与缓存表
//	seed       -fixture shop.yaml  把 YAML fixture 写入 Postgres 目录
//
// 配置 metrics.addr 后会在该地址暴露 /metrics。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/config"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/engine"
	"github.com/rushteam/shoprec/job"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "shoprec:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case core.IsInvalidInput(err):
		return 2
	case core.IsConflict(err):
		return 3
	default:
		return 1
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("shoprec", flag.ContinueOnError)
	configPath := global.String("config", os.Getenv("SHOPREC_CONFIG"), "path to YAML config file")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)
	if cfg.Metrics.Addr != "" {
		serveMetrics(cfg.Metrics.Addr, logger)
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "migrate":
		return migrate(ctx, cfg)
	case "seed":
		return seed(ctx, cfg, rest)
	}

	eng, err := engine.FromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	switch cmd {
	case "recommend":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		user := fs.String("user", "", "user id")
		limit := fs.Int("limit", 0, "number of results")
		strategy := fs.String("strategy", "", "collaborative | content_based | hybrid")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		items, err := eng.Recommend(ctx, *user, *limit, *strategy)
		if err != nil {
			return err
		}
		return writeJSON(out, itemViews(items))

	case "similar":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		product := fs.String("product", "", "product id")
		limit := fs.Int("limit", 0, "number of results")
		typ := fs.String("type", "", "content_based | behavior_based | feature_based")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		items, err := eng.SimilarProducts(ctx, *product, *limit, *typ)
		if err != nil {
			return err
		}
		return writeJSON(out, itemViews(items))

	case "suggest":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		product := fs.String("product", "", "product id")
		limit := fs.Int("limit", 0, "number of results")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		items, err := eng.ProductSuggestions(ctx, *product, *limit)
		if err != nil {
			return err
		}
		return writeJSON(out, itemViews(items))

	case "benefit":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		var q rank.BenefitQuery
		fs.StringVar(&q.UserID, "user", "", "personalize for user id")
		fs.StringVar(&q.Category, "category", "", "category substring")
		fs.StringVar(&q.Filter, "filter", "", "CEL product filter")
		fs.IntVar(&q.Limit, "limit", 0, "number of results")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		items, err := eng.HighBenefitProducts(ctx, q)
		if err != nil {
			return err
		}
		return writeJSON(out, itemViews(items))

	case "analytics":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		category := fs.String("category", "", "category substring")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		stats, err := eng.CategoryAnalytics(ctx, *category)
		if err != nil {
			return err
		}
		return writeJSON(out, stats)

	case "batch":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		kind := fs.String("kind", "", "batch kind")
		topN := fs.Int("top-n", 0, "rows kept per key")
		minSupport := fs.Float64("min-support", 0, "minimum itemset support")
		minConfidence := fs.Float64("min-confidence", 0, "minimum rule confidence")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		st, err := eng.RunBatch(ctx, job.Kind(*kind), map[string]any{
			"top_n":          *topN,
			"min_support":    *minSupport,
			"min_confidence": *minConfidence,
		})
		if err != nil {
			return err
		}
		return writeJSON(out, statusView{
			RunID:    st.RunID,
			Kind:     string(st.Kind),
			Rows:     st.Rows,
			Duration: st.Duration.String(),
		})

	default:
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "unknown command "+cmd)
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Catalog.Driver != config.DriverPostgres {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "migrate requires catalog.driver=postgres")
	}
	db, err := catalog.OpenPostgres(cfg.Catalog.DSN)
	if err != nil {
		return err
	}
	if err := catalog.NewGormCatalog(db).AutoMigrate(ctx); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	if cfg.Store.Driver == config.DriverPostgres {
		sdb, err := catalog.OpenPostgres(cfg.StoreDSN())
		if err != nil {
			return err
		}
		if err := store.NewGormStore(sdb).AutoMigrate(ctx); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
	}
	return nil
}

func seed(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	path := fs.String("fixture", cfg.Catalog.Fixture, "YAML fixture")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.Catalog.Driver != config.DriverPostgres {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "seed requires catalog.driver=postgres")
	}
	fh, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer fh.Close()
	f, err := catalog.ReadFixture(fh)
	if err != nil {
		return err
	}
	db, err := catalog.OpenPostgres(cfg.Catalog.DSN)
	if err != nil {
		return err
	}
	return catalog.NewGormCatalog(db).Seed(ctx, f)
}

type itemView struct {
	ID       string             `json:"id"`
	Score    float64            `json:"score"`
	Labels   map[string]string  `json:"labels,omitempty"`
	Features map[string]float64 `json:"factors,omitempty"`
}

func itemViews(items []*core.Item) []itemView {
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		v := itemView{ID: it.ID, Score: it.Score, Features: it.Features}
		if len(it.Labels) > 0 {
			v.Labels = make(map[string]string, len(it.Labels))
			for k, l := range it.Labels {
				v.Labels[k] = l.Value
			}
		}
		out = append(out, v)
	}
	return out
}

type statusView struct {
	RunID    string `json:"run_id"`
	Kind     string `json:"kind"`
	Rows     int    `json:"rows"`
	Duration string `json:"duration"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
