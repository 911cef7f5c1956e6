package cli

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/storage/sqlite"
	"github.com/MrEthical07/goSession/user"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const loadtestUserID = "loadtest-user"

type loadtestOptions struct {
	sessions    int
	concurrency int
	ops         int
	backend     string
	redisAddr   string
	database    string
}

func newLoadtestCmd() *cobra.Command {
	opts := loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure session verify and rotate throughput",
		Long: `loadtest seeds sessions into the chosen repository and then runs two
phases against it: read-only verification and compare-and-swap rotation.
With the redis backend and no address (flag or REDIS_ADDR) an in-process
miniredis is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.sessions, "sessions", 10000, "number of sessions to seed")
	f.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	f.IntVar(&opts.ops, "ops", 50000, "operations per phase")
	f.StringVar(&opts.backend, "backend", "redis", "session repository: redis or sqlite")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; empty uses REDIS_ADDR or miniredis")
	f.StringVar(&opts.database, "database", sqlite.Memory, "sqlite path for the sqlite backend")
	return cmd
}

type loadState struct {
	mu  sync.Mutex
	id  string
	raw string
}

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("sessions, concurrency and ops must be > 0")
	}

	repo, cleanup, err := openLoadtestRepository(ctx, out, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	store, err := session.NewStore(repo, session.Config{Secret: secret, TTL: 24 * time.Hour})
	if err != nil {
		return err
	}

	states := make([]loadState, opts.sessions)
	fmt.Fprintf(out, "seeding %d sessions...\n", opts.sessions)
	seedStart := time.Now()
	for i := range states {
		raw, err := session.GenerateRefreshCredential()
		if err != nil {
			return err
		}
		sess, err := store.Create(ctx, loadtestUserID, raw, session.Metadata{UserAgent: "gosession-loadtest"})
		if err != nil {
			return fmt.Errorf("seed session %d: %w", i, err)
		}
		states[i].id, states[i].raw = sess.ID, raw
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(seedStart).Round(time.Millisecond))

	verify := runPhase(opts, states, func(s *loadState) error {
		s.mu.Lock()
		id, raw := s.id, s.raw
		s.mu.Unlock()
		_, err := store.Verify(ctx, id, raw)
		return err
	})
	rotate := runPhase(opts, states, func(s *loadState) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		next, err := session.GenerateRefreshCredential()
		if err != nil {
			return err
		}
		if _, err := store.Rotate(ctx, s.id, s.raw, next, session.Metadata{}); err != nil {
			return err
		}
		s.raw = next
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printPhase(out, "verify", verify)
	printPhase(out, "rotate", rotate)
	return nil
}

func openLoadtestRepository(ctx context.Context, out io.Writer, opts loadtestOptions) (session.Repository, func(), error) {
	switch opts.backend {
	case "sqlite":
		store, err := sqlite.Open(opts.database)
		if err != nil {
			return nil, nil, err
		}
		// Sessions reference a user row.
		if _, err := store.GetUserByID(ctx, loadtestUserID); errors.Is(err, user.ErrNotFound) {
			err = store.CreateUser(ctx, &user.User{ID: loadtestUserID, DisplayName: "Load Test", Email: "loadtest@gosession.invalid"})
			if err != nil {
				_ = store.Close()
				return nil, nil, err
			}
		} else if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		fmt.Fprintf(out, "using sqlite at %s\n", opts.database)
		return store, func() { _ = store.Close() }, nil
	case "redis":
		addr := opts.redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("start miniredis: %w", err)
			}
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
			return session.NewRedisRepository(client, "gsl"), func() {
				_ = client.Close()
				mr.Close()
			}, nil
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return session.NewRedisRepository(client, "gsl"), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("backend %q: want redis or sqlite", opts.backend)
	}
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

func runPhase(opts loadtestOptions, states []loadState, op func(*loadState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, opts.ops)
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > opts.ops {
					return
				}
				t0 := time.Now()
				err := op(&states[r.Intn(len(states))])
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
	return computeStats(time.Since(start), latencies, failures)
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

// percentile expects sorted samples.
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
	return samples[(len(samples)-1)*p/100]
}

func printPhase(out io.Writer, name string, s phaseStats) {
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
