package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Options struct {
	// MaxConns caps the pool; 0 means 10. Sale transactions hold a row lock for one
	// request, so the pool rarely needs more.
	MaxConns int32
	// SlowQuery is the duration past which a statement is logged. 0 disables the tracer.
	SlowQuery time.Duration
	Logger    *zap.SugaredLogger
}

// Connect opens the pool and pings it.
func Connect(ctx context.Context, dsn string, opts Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnIdleTime = 5 * time.Minute
	if opts.SlowQuery > 0 && opts.Logger != nil {
		cfg.ConnConfig.Tracer = &QueryLogger{Logger: opts.Logger, Threshold: opts.SlowQuery}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// QueryLogger is a pgx.QueryTracer that warns about statements slower than Threshold.
// Arguments are never logged.
type QueryLogger struct {
	Logger    *zap.SugaredLogger
	Threshold time.Duration
	Now       func() time.Time
}

type queryStartKey struct{}

type queryStart struct {
	sql string
	at  time.Time
}

func (q *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, at: q.now()})
}

func (q *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	took := q.now().Sub(start.at)
	if took < q.Threshold {
		return
	}
	kv := []any{"sql", compact(start.sql), "took", took, "rows", data.CommandTag.RowsAffected()}
	if data.Err != nil {
		kv = append(kv, "error", data.Err)
	}
	q.Logger.Warnw("slow query", kv...)
}

func (q *QueryLogger) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now()
}

// compact folds the multi-line statements used by the repos onto one line.
func compact(sql string) string {
	out := make([]byte, 0, len(sql))
	space := false
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case ' ', '\n', '\t', '\r':
			space = len(out) > 0
		default:
			if space {
				out = append(out, ' ')
				space = false
			}
			out = append(out, c)
		}
	}
	return string(out)
}
