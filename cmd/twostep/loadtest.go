package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/twostep"
	"github.com/MrEthical07/twostep/notify"
	"github.com/MrEthical07/twostep/store"
	"github.com/MrEthical07/twostep/store/memory"
	"github.com/MrEthical07/twostep/store/sqlstore"
)

type loadtestOptions struct {
	accounts    int
	concurrency int
	ops         int
	backend     string
	dir         string
	redisAddr   string
	rateLimit   bool
}

type seededAccount struct {
	name     string
	password string
	ip       string
	device   string
	session  string
}

func newLoadtestCmd(root *rootOptions) *cobra.Command {
	opts := &loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive an in-process engine and report latency percentiles",
		Long: `Seed accounts through the create flow, then run an authenticate phase and a
full login phase against an in-process engine.

Password hashing uses the configured Argon2id parameters, so the login phase
measures them as well.

Examples:
  twostep loadtest --accounts 200 --ops 2000
  twostep loadtest --backend sqlite --rate-limit
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger, err := root.logger()
			if err != nil {
				return err
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), logger, cfg, opts)
		},
	}
	cmd.Flags().IntVar(&opts.accounts, "accounts", 100, "number of accounts to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 32, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 1000, "operations per phase")
	cmd.Flags().StringVar(&opts.backend, "backend", "memory", "store backend: memory or sqlite")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "directory for the sqlite database (default: a temporary directory)")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address for rate limiting; miniredis is used when empty")
	cmd.Flags().BoolVar(&opts.rateLimit, "rate-limit", false, "enable Redis rate limiting")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, logger *slog.Logger, cfg twostep.Config, opts *loadtestOptions) error {
	if opts.accounts <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return fmt.Errorf("accounts, concurrency and ops must be > 0")
	}

	st, closeStore, err := openBackend(ctx, opts)
	if err != nil {
		return err
	}
	defer closeStore()

	b := twostep.New().
		WithConfig(cfg).
		WithStore(st).
		WithNotifier(notify.LogNotifier{Logger: logger}).
		WithLogger(logger)

	if opts.rateLimit {
		client, cleanup, err := redisClient(opts.redisAddr, out)
		if err != nil {
			return err
		}
		defer cleanup()
		cfg.RateLimit.Enabled = true
		// Seeding and the login phase reuse each account many times.
		cfg.RateLimit.MaxIssuePerWindow = 0
		b = b.WithConfig(cfg).WithRedis(client)
	}

	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(out, "seeding %d accounts on %s...\n", opts.accounts, opts.backend)
	startSeed := time.Now()
	accounts := make([]seededAccount, opts.accounts)
	for i := range accounts {
		acc, err := seedAccount(ctx, engine, i)
		if err != nil {
			return fmt.Errorf("seed account %d: %w", i, err)
		}
		accounts[i] = acc
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, _ int) error {
		acc := accounts[r.Intn(len(accounts))]
		_, err := engine.Authenticate(ctx, acc.session, acc.ip, acc.device)
		return err
	})

	// Login on a separate device keeps the seeded sessions alive for other
	// workers; one mutex per account serializes its version counter.
	locks := make([]sync.Mutex, len(accounts))
	loginStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand, worker int) error {
		idx := r.Intn(len(accounts))
		locks[idx].Lock()
		defer locks[idx].Unlock()
		return login(ctx, engine, accounts[idx], fmt.Sprintf("loadtest-%d", worker))
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "authenticate", authStats)
	printStats(out, "login", loginStats)

	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "sessions created=%d revoked=%d rate limited=%d\n",
		snap.Counters[twostep.MetricSessionCreated],
		snap.Counters[twostep.MetricSessionRevoked],
		snap.Counters[twostep.MetricRateLimitHit],
	)
	return nil
}

func openBackend(ctx context.Context, opts *loadtestOptions) (store.Store, func(), error) {
	switch opts.backend {
	case "memory":
		return memory.New(), func() {}, nil
	case "sqlite":
		dir := opts.dir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), fmt.Sprintf("twostep-loadtest-%d", time.Now().UnixNano()))
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, err
		}
		st, err := sqlstore.OpenSQLite(ctx, filepath.Join(dir, "twostep.db"))
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", opts.backend)
	}
}

func redisClient(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seedAccount(ctx context.Context, engine *twostep.Engine, i int) (seededAccount, error) {
	acc := seededAccount{
		name:     fmt.Sprintf("user-%d", i),
		password: fmt.Sprintf("loadtest-password-%d", i),
		ip:       fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xff, (i>>8)&0xff, i&0xff),
		device:   "seed",
	}
	first, err := engine.CreateFirst(ctx, twostep.CreateRequest{
		Name:     acc.name,
		Email:    acc.name + "@loadtest.invalid",
		Password: acc.password,
		IP:       acc.ip,
	}, twostep.CreateFirstOptions{SendNotice: twostep.Bool(false)})
	if err != nil {
		return acc, err
	}
	verify, err := engine.CreateVerify(ctx, twostep.CreateVerifyRequest{
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
		IP:             acc.ip,
		Device:         acc.device,
	}, twostep.CreateVerifyOptions{})
	if err != nil {
		return acc, err
	}
	acc.session = verify.Body.SessionToken
	return acc, nil
}

func login(ctx context.Context, engine *twostep.Engine, acc seededAccount, device string) error {
	first, err := engine.LoginFirst(ctx, twostep.LoginRequest{
		Name:     acc.name,
		Password: acc.password,
		IP:       acc.ip,
		Device:   device,
	}, twostep.LoginFirstOptions{Common: twostep.CommonOptions{SendNotice: twostep.Bool(false)}})
	if err != nil {
		return err
	}
	_, err = engine.LoginVerify(ctx, twostep.LoginVerifyRequest{
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
		IP:             acc.ip,
		Device:         device,
	}, twostep.LoginVerifyOptions{ForceAllLogout: twostep.Bool(false)})
	return err
}

// runPhase runs op ops times across concurrency workers and collects the
// latency of every call.
func runPhase(ops, concurrency int, op func(r *rand.Rand, worker int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, worker)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
