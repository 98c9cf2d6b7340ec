package twostep

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	internalaudit "github.com/MrEthical07/twostep/internal/audit"
	"github.com/MrEthical07/twostep/internal/flows"
	"github.com/MrEthical07/twostep/internal/rate"
	"github.com/MrEthical07/twostep/notify"
	"github.com/MrEthical07/twostep/otp"
	"github.com/MrEthical07/twostep/password"
	"github.com/MrEthical07/twostep/session"
	"github.com/MrEthical07/twostep/store"
	"github.com/MrEthical07/twostep/token"
)

// instrumentationName names the tracer the engine requests.
const instrumentationName = "github.com/MrEthical07/twostep"

// Builder assembles an [Engine]. A Builder builds at most once.
type Builder struct {
	config Config

	store       store.Store
	notifier    notify.Notifier
	credentials CredentialHasher
	codes       CodeHasher
	redis       redis.UniversalClient

	logger         *slog.Logger
	auditSink      AuditSink
	tracerProvider trace.TracerProvider
	now            func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the account and session store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithNotifier sets the delivery channel for codes and notices. Required.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithCredentialHasher replaces the Argon2id hasher built from
// Config.Password.
func (b *Builder) WithCredentialHasher(h CredentialHasher) *Builder {
	b.credentials = h
	return b
}

// WithCodeHasher replaces the bcrypt code manager built from Config.Code.
func (b *Builder) WithCodeHasher(h CodeHasher) *Builder {
	b.codes = h
	return b
}

// WithRedis supplies the client for rate limiting. Required when
// Config.RateLimit.Enabled is set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider overrides the global otel tracer provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock overrides the clock used for tokens, sessions and staleness
// checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every collaborator.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, ErrStoreRequired
	}
	if b.notifier == nil {
		return nil, ErrNotifierRequired
	}
	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, ErrRedisRequired
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.usesDevelopmentSecret() {
		logger.Warn("twostep: development secret in use, set Token.Secret and Session.Secret before deploying")
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- CREDENTIALS --------
	credentials := b.credentials
	if credentials == nil {
		h, err := password.New(cfg.Password)
		if err != nil {
			return nil, err
		}
		credentials = h
	}

	codes := b.codes
	if codes == nil {
		m, err := otp.New(otp.Config{Digits: cfg.Code.Digits, Cost: cfg.Code.Cost})
		if err != nil {
			return nil, err
		}
		codes = m
	}

	// -------- TOKENS & SESSIONS --------
	tokens, err := token.NewManager(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		Secret:        []byte(cfg.Token.Secret),
		PublicKey:     bytesOrNil(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		TTL:           cfg.Token.TTL,
		Leeway:        cfg.Token.Leeway,
		KeyID:         cfg.Token.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := session.New(session.Config{
		Secret:   []byte(cfg.Session.Secret),
		Lifetime: cfg.Session.Lifetime,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		logger:  logger,
		tracer:  tp.Tracer(instrumentationName),
		metrics: NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:      cfg.Audit.Enabled,
			BufferSize:   cfg.Audit.BufferSize,
			DropIfFull:   cfg.Audit.DropIfFull,
			FailuresOnly: cfg.Audit.FailuresOnly,
			Now:          now,
		}, b.auditSink),
	}

	deps := flows.Deps{
		Store:       b.store,
		Credentials: credentials,
		Codes:       codes,
		Tokens:      tokens,
		Sessions:    sessions,
		Notifier:    b.notifier,
		Logger:      logger,
		Now:         now,
		TokenTTL:    cfg.Token.TTL,
		BidTTL:      cfg.Token.BidTTL,
		Observer:    engine.observer(),
	}

	// -------- RATE LIMITING --------
	if cfg.RateLimit.Enabled {
		deps.Limiter = rate.New(b.redis, rate.Config{
			MaxIssuePerWindow: cfg.RateLimit.MaxIssuePerWindow,
			IssueWindow:       cfg.RateLimit.IssueWindow,
			EnableIPThrottle:  cfg.RateLimit.EnableIPThrottle,
			MaxVerifyFailures: cfg.RateLimit.MaxVerifyFailures,
			VerifyCooldown:    cfg.RateLimit.VerifyCooldown,
		})
	}

	engine.flows = flows.New(deps)
	if !engine.flows.Initialized() {
		return nil, fmt.Errorf("twostep: %w", ErrEngineNotReady)
	}

	b.built = true

	return engine, nil
}

func bytesOrNil(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
