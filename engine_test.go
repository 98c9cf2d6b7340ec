package twostep

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrEthical07/twostep/notify"
	"github.com/MrEthical07/twostep/store"
	"github.com/MrEthical07/twostep/store/memory"
)

type harness struct {
	engine *Engine
	store  store.Store
	mail   *notify.Recorder
	audit  *ChannelSink
	spans  *tracetest.SpanRecorder
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = "engine-test-token-secret"
	cfg.Session.Secret = "engine-test-session-secret"
	cfg.Code.Cost = 4
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, st store.Store, configure ...func(*Builder)) *harness {
	t.Helper()

	h := &harness{
		store: st,
		mail:  &notify.Recorder{},
		audit: NewChannelSink(512),
		spans: tracetest.NewSpanRecorder(),
	}
	b := New().
		WithConfig(testConfig()).
		WithStore(st).
		WithNotifier(h.mail).
		WithAuditSink(h.audit).
		WithLogger(quietLogger()).
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans)))
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func assertKind(t *testing.T, err error, kind ErrorKind, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s failure at %d, got nil", kind, code)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, got, err)
	}
	codes := TraceOf(err)
	if len(codes) == 0 || codes[0] != code {
		t.Fatalf("expected first code %d, got %v (%v)", code, codes, err)
	}
}

func (h *harness) register(t *testing.T, name, email, pw string) string {
	t.Helper()
	ctx := context.Background()

	first, err := h.engine.CreateFirst(ctx, CreateRequest{Name: name, Email: email, Password: pw, IP: "10.0.0.1"}, CreateFirstOptions{})
	if err != nil {
		t.Fatalf("CreateFirst: %v", err)
	}
	verify, err := h.engine.CreateVerify(ctx, CreateVerifyRequest{
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
		IP:             "10.0.0.1",
		Device:         "d1",
	}, CreateVerifyOptions{})
	if err != nil {
		t.Fatalf("CreateVerify: %v", err)
	}
	return verify.Body.SessionToken
}

func (h *harness) login(t *testing.T, name, pw, ip, device string, opts LoginVerifyOptions) string {
	t.Helper()
	ctx := context.Background()

	first, err := h.engine.LoginFirst(ctx, LoginRequest{Name: name, Password: pw, IP: ip, Device: device}, LoginFirstOptions{})
	if err != nil {
		t.Fatalf("LoginFirst: %v", err)
	}
	verify, err := h.engine.LoginVerify(ctx, LoginVerifyRequest{
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
		IP:             ip,
		Device:         device,
	}, opts)
	if err != nil {
		t.Fatalf("LoginVerify: %v", err)
	}
	return verify.Body.SessionToken
}

func (h *harness) account(t *testing.T, name string) store.Account {
	t.Helper()
	a, err := h.store.FindAccount(context.Background(), store.AccountFilter{Name: name}, nil)
	if err != nil {
		t.Fatalf("FindAccount(%q): %v", name, err)
	}
	return a
}

func (h *harness) sessionCount(t *testing.T, name string) int {
	t.Helper()
	list, err := h.engine.ListSessions(context.Background(), name)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	return len(list)
}

// drainAudit closes the engine and returns every audit event emitted so far.
func (h *harness) drainAudit() []AuditEvent {
	h.engine.Close()
	var events []AuditEvent
	for {
		select {
		case ev := <-h.audit.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithNotifier(&notify.Recorder{}).Build(); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
	if _, err := New().WithConfig(testConfig()).WithStore(memory.New()).Build(); !errors.Is(err, ErrNotifierRequired) {
		t.Fatalf("expected ErrNotifierRequired, got %v", err)
	}

	cfg := testConfig()
	cfg.RateLimit.Enabled = true
	_, err := New().WithConfig(cfg).WithStore(memory.New()).WithNotifier(&notify.Recorder{}).WithLogger(quietLogger()).Build()
	if !errors.Is(err, ErrRedisRequired) {
		t.Fatalf("expected ErrRedisRequired, got %v", err)
	}

	cfg = testConfig()
	cfg.Token.TTL = 0
	if _, err := New().WithConfig(cfg).WithStore(memory.New()).WithNotifier(&notify.Recorder{}).Build(); err == nil {
		t.Fatalf("expected config validation error")
	}
}

func TestBuilderBuildsOnce(t *testing.T) {
	b := New().WithConfig(testConfig()).WithStore(memory.New()).WithNotifier(&notify.Recorder{}).WithLogger(quietLogger())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestBuilderWarnsOnDevelopmentSecret(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := testConfig()
	cfg.Token.Secret = DevelopmentSecret
	engine, err := New().WithConfig(cfg).WithStore(memory.New()).WithNotifier(&notify.Recorder{}).WithLogger(logger).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	engine.Close()
	if !strings.Contains(buf.String(), "development secret") {
		t.Fatalf("expected development secret warning, got %q", buf.String())
	}

	buf.Reset()
	engine, err = New().WithConfig(testConfig()).WithStore(memory.New()).WithNotifier(&notify.Recorder{}).WithLogger(logger).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	engine.Close()
	if strings.Contains(buf.String(), "development secret") {
		t.Fatalf("expected no warning with real secrets, got %q", buf.String())
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	_, err := e.LoginFirst(context.Background(), LoginRequest{Name: "a", Password: "b"}, LoginFirstOptions{})
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Authenticate(context.Background(), "tok", "ip", "d"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.AuditDropped() != 0 || len(e.MetricsSnapshot().Counters) != 0 {
		t.Fatalf("expected zero values from nil engine")
	}
}

func TestEngineCreateRoundTrip(t *testing.T) {
	h := newHarness(t, memory.New())
	ctx := context.Background()

	first, err := h.engine.CreateFirst(ctx, CreateRequest{Name: "alice", Email: "a@x.com", Password: "pw1", IP: "10.0.0.1"}, CreateFirstOptions{})
	if err != nil {
		t.Fatalf("CreateFirst: %v", err)
	}
	if first.Status != http.StatusCreated || first.Body.AlternateToken == "" {
		t.Fatalf("unexpected create result: %+v", first)
	}

	raw := first.Body.AlternateToken
	i := len(raw) / 2
	c := byte('A')
	if raw[i] == c {
		c = 'B'
	}
	mutated := raw[:i] + string(c) + raw[i+1:]
	_, err = h.engine.CreateVerify(ctx, CreateVerifyRequest{AlternateToken: mutated, Code: first.System.OneTimePassword, IP: "10.0.0.1", Device: "d1"}, CreateVerifyOptions{})
	assertKind(t, err, KindUnauthorized, 2324)
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unauthorized invalid-token error, got %v", err)
	}
	if StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", StatusOf(err))
	}

	verify, err := h.engine.CreateVerify(ctx, CreateVerifyRequest{
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
		IP:             "10.0.0.1",
		Device:         "d1",
	}, CreateVerifyOptions{})
	if err != nil {
		t.Fatalf("CreateVerify: %v", err)
	}

	p, err := h.engine.Authenticate(ctx, verify.Body.SessionToken, "10.0.0.1", "d1", store.ColumnEmail)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.Account.Name != "alice" || p.Account.Email != "a@x.com" {
		t.Fatalf("unexpected principal: %+v", p.Account)
	}
	if p.Account.Status != store.StatusActive {
		t.Fatalf("expected active account, got %s", p.Account.Status)
	}
}

func TestEngineLoginSecondDevice(t *testing.T) {
	h := newHarness(t, memory.New())
	h.register(t, "alice", "a@x.com", "pw1")

	h.login(t, "alice", "pw1", "10.0.0.1", "d1", LoginVerifyOptions{})
	if n := h.sessionCount(t, "alice"); n != 1 {
		t.Fatalf("expected one session after login, got %d", n)
	}

	second := h.login(t, "alice", "pw1", "10.0.0.2", "d2", LoginVerifyOptions{ForceAllLogout: Bool(false)})
	if n := h.sessionCount(t, "alice"); n != 2 {
		t.Fatalf("expected two sessions, got %d", n)
	}

	// Sessions are bound to the address and device they were issued to.
	_, err := h.engine.Authenticate(context.Background(), second, "10.0.0.1", "d2")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session lookup to fail from another address, got %v", err)
	}
	if _, err := h.engine.Authenticate(context.Background(), second, "10.0.0.2", "d2"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	h.login(t, "alice", "pw1", "10.0.0.3", "d3", LoginVerifyOptions{})
	if n := h.sessionCount(t, "alice"); n != 1 {
		t.Fatalf("expected forced logout to leave one session, got %d", n)
	}
}

func TestEngineLoginCodeIsSingleUse(t *testing.T) {
	h := newHarness(t, memory.New())
	h.register(t, "alice", "a@x.com", "pw1")
	ctx := context.Background()

	stale, err := h.engine.LoginFirst(ctx, LoginRequest{Name: "alice", Password: "pw1"}, LoginFirstOptions{})
	if err != nil {
		t.Fatalf("LoginFirst: %v", err)
	}
	fresh, err := h.engine.LoginFirst(ctx, LoginRequest{Name: "alice", Password: "pw1"}, LoginFirstOptions{})
	if err != nil {
		t.Fatalf("LoginFirst: %v", err)
	}

	_, err = h.engine.LoginVerify(ctx, LoginVerifyRequest{
		AlternateToken: stale.Body.AlternateToken,
		Code:           stale.System.OneTimePassword,
		IP:             "10.0.0.1",
		Device:         "d1",
	}, LoginVerifyOptions{})
	assertKind(t, err, KindUnauthorized, 2364)

	req := LoginVerifyRequest{
		AlternateToken: fresh.Body.AlternateToken,
		Code:           fresh.System.OneTimePassword,
		IP:             "10.0.0.1",
		Device:         "d1",
	}
	if _, err := h.engine.LoginVerify(ctx, req, LoginVerifyOptions{}); err != nil {
		t.Fatalf("LoginVerify: %v", err)
	}
	_, err = h.engine.LoginVerify(ctx, req, LoginVerifyOptions{})
	assertKind(t, err, KindUnauthorized, 2364)
}

func TestEngineChangeEmail(t *testing.T) {
	h := newHarness(t, memory.New())
	sess := h.register(t, "alice", "a@x.com", "pw1")
	ctx := context.Background()

	first, err := h.engine.ChangeEmailFirst(ctx, ChangeEmailRequest{SessionToken: sess, NewEmail: "b@x.com", IP: "10.0.0.1", Device: "d1"}, ChangeEmailFirstOptions{})
	if err != nil {
		t.Fatalf("ChangeEmailFirst: %v", err)
	}
	if msg, _ := h.mail.Last(); msg.To != "b@x.com" {
		t.Fatalf("expected code mail to the new address, got %q", msg.To)
	}
	verify, err := h.engine.ChangeEmailVerify(ctx, ChangeEmailVerifyRequest{
		SessionToken:   sess,
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
		IP:             "10.0.0.1",
		Device:         "d1",
	}, ChangeEmailVerifyOptions{})
	if err != nil {
		t.Fatalf("ChangeEmailVerify: %v", err)
	}
	if verify.Body.SessionToken == "" || verify.Body.SessionToken == sess {
		t.Fatalf("expected rotated session token, got %+v", verify)
	}
	if got := h.account(t, "alice").Email; got != "b@x.com" {
		t.Fatalf("expected b@x.com, got %q", got)
	}
	if _, err := h.engine.Authenticate(ctx, sess, "10.0.0.1", "d1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected old session revoked, got %v", err)
	}
}

func (h *harness) deleteAccount(t *testing.T, sess string, opts DeleteVerifyOptions) {
	t.Helper()
	ctx := context.Background()

	first, err := h.engine.DeleteFirst(ctx, DeleteRequest{SessionToken: sess, IP: "10.0.0.1", Device: "d1"}, DeleteFirstOptions{})
	if err != nil {
		t.Fatalf("DeleteFirst: %v", err)
	}
	res, err := h.engine.DeleteVerify(ctx, DeleteVerifyRequest{
		SessionToken:   sess,
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
		IP:             "10.0.0.1",
		Device:         "d1",
	}, opts)
	if err != nil {
		t.Fatalf("DeleteVerify: %v", err)
	}
	if res.Status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Status)
	}
}

func TestEngineLogicalDeletion(t *testing.T) {
	h := newHarness(t, memory.New())
	sess := h.register(t, "alice", "a@x.com", "pw1")
	h.deleteAccount(t, sess, DeleteVerifyOptions{PhysicalDeletion: Bool(false)})

	if _, err := h.store.FindAccount(context.Background(), store.AccountFilter{Name: "alice"}, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected overwritten identity to be free, got %v", err)
	}
	sess = h.register(t, "alice", "a@x.com", "pw2")

	h.deleteAccount(t, sess, DeleteVerifyOptions{
		PhysicalDeletion:           Bool(false),
		OverwriteOnLogicalDeletion: Bool(false),
	})
	if a := h.account(t, "alice"); a.Status != store.StatusInactive {
		t.Fatalf("expected inactive account, got %s", a.Status)
	}
	_, err := h.engine.CreateFirst(context.Background(), CreateRequest{Name: "alice", Email: "c@x.com", Password: "pw3"}, CreateFirstOptions{})
	assertKind(t, err, KindConflict, 2321)
}

func TestEngineResetPassword(t *testing.T) {
	h := newHarness(t, memory.New())
	h.register(t, "alice", "a@x.com", "pw1")
	h.login(t, "alice", "pw1", "10.0.0.2", "d2", LoginVerifyOptions{ForceAllLogout: Bool(false)})
	ctx := context.Background()

	first, err := h.engine.ResetPasswordFirst(ctx, ResetRequest{Email: "a@x.com"}, ResetPasswordFirstOptions{})
	if err != nil {
		t.Fatalf("ResetPasswordFirst: %v", err)
	}
	if first.Status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", first.Status)
	}
	second, err := h.engine.ResetPasswordSecond(ctx, ResetSecondRequest{AlternateToken: first.System.AlternateToken}, ResetPasswordSecondOptions{})
	if err != nil {
		t.Fatalf("ResetPasswordSecond: %v", err)
	}
	verify, err := h.engine.ResetPasswordVerify(ctx, ResetVerifyRequest{
		AlternateToken: second.Body.AlternateToken,
		NewPassword:    "pw-new",
		IP:             "10.0.0.3",
		Device:         "d3",
	}, ResetPasswordVerifyOptions{})
	if err != nil {
		t.Fatalf("ResetPasswordVerify: %v", err)
	}
	if verify.Body.SessionToken == "" {
		t.Fatalf("expected a session token")
	}
	if n := h.sessionCount(t, "alice"); n != 1 {
		t.Fatalf("expected one session after reset, got %d", n)
	}

	// The old password no longer works and the new one does.
	_, err = h.engine.LoginFirst(ctx, LoginRequest{Name: "alice", Password: "pw1"}, LoginFirstOptions{})
	assertKind(t, err, KindUnauthorized, 2357)
	h.login(t, "alice", "pw-new", "10.0.0.3", "d3", LoginVerifyOptions{})

	// Both reset tokens are spent.
	_, err = h.engine.ResetPasswordSecond(ctx, ResetSecondRequest{AlternateToken: first.System.AlternateToken}, ResetPasswordSecondOptions{})
	assertKind(t, err, KindUnauthorized, 2382)
}

func TestEngineAfterStateChangeRollback(t *testing.T) {
	h := newHarness(t, memory.New())
	h.register(t, "alice", "a@x.com", "pw1")
	ctx := context.Background()

	first, err := h.engine.LoginFirst(ctx, LoginRequest{Name: "alice", Password: "pw1"}, LoginFirstOptions{})
	if err != nil {
		t.Fatalf("LoginFirst: %v", err)
	}
	before := h.account(t, "alice")

	hookErr := errors.New("downstream unavailable")
	_, err = h.engine.LoginVerify(ctx, LoginVerifyRequest{
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
		IP:             "10.0.0.9",
		Device:         "d9",
	}, LoginVerifyOptions{Common: CommonOptions{Hooks: []Hook{{
		Point: AfterStateChange,
		Interceptor: InterceptorFunc(func(ctx context.Context, hc HookContext) error {
			return hookErr
		}),
	}}}})
	assertKind(t, err, KindInternal, 2370)
	if !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error to be wrapped, got %v", err)
	}

	after := h.account(t, "alice")
	if after.Version != before.Version || after.CodeHash == nil {
		t.Fatalf("expected account unchanged, before=%+v after=%+v", before, after)
	}
	if n := h.sessionCount(t, "alice"); n != 1 {
		t.Fatalf("expected sessions unchanged, got %d", n)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricRollback]; got != 1 {
		t.Fatalf("expected one rollback, got %d", got)
	}
}

func TestEngineMetricsAndAudit(t *testing.T) {
	h := newHarness(t, memory.New())
	h.register(t, "alice", "a@x.com", "pw1")
	ctx := context.Background()

	_, err := h.engine.LoginFirst(ctx, LoginRequest{Name: "alice", Password: "wrong", IP: "10.0.0.5"}, LoginFirstOptions{})
	assertKind(t, err, KindUnauthorized, 2357)

	snap := h.engine.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricCreateFirstSuccess:  1,
		MetricCreateVerifySuccess: 1,
		MetricLoginFirstFailure:   1,
		MetricSessionCreated:      1,
	}
	for id, n := range want {
		if snap.Counters[id] != n {
			t.Fatalf("metric %d: expected %d, got %d", id, n, snap.Counters[id])
		}
	}
	var samples uint64
	for _, v := range snap.Histograms[MetricFlowLatency] {
		samples += v
	}
	if samples != 3 {
		t.Fatalf("expected 3 latency samples, got %d", samples)
	}

	events := h.drainAudit()
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}
	if events[0].EventType != "create_first_success" || events[0].Name != "alice" || events[0].Status != http.StatusCreated {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].EventType != "create_verify_success" || events[1].Device != "d1" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	failed := events[2]
	if failed.Success || failed.EventType != "login_first_failure" || failed.Error != string(auditErrUnauthorized) {
		t.Fatalf("unexpected failure event: %+v", failed)
	}
	if failed.IP != "10.0.0.5" || failed.Status != http.StatusUnauthorized || len(failed.Codes) == 0 || failed.Codes[0] != 2357 {
		t.Fatalf("unexpected failure event detail: %+v", failed)
	}
	if failed.Metadata["trace_id"] == "" || failed.ID == "" {
		t.Fatalf("expected trace id and event id, got %+v", failed)
	}
}

func TestEngineRecordsSpans(t *testing.T) {
	h := newHarness(t, memory.New())
	h.register(t, "alice", "a@x.com", "pw1")
	_, _ = h.engine.LoginFirst(context.Background(), LoginRequest{Name: "alice", Password: "wrong"}, LoginFirstOptions{})

	ended := h.spans.Ended()
	if len(ended) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(ended))
	}
	names := []string{"twostep.create_first", "twostep.create_verify", "twostep.login_first"}
	for i, want := range names {
		if ended[i].Name() != want {
			t.Fatalf("span %d: expected %s, got %s", i, want, ended[i].Name())
		}
	}
	if ended[2].Status().Code != codes.Error {
		t.Fatalf("expected failed login span to carry an error status, got %v", ended[2].Status())
	}
}

func TestEngineUsesContextIdentity(t *testing.T) {
	h := newHarness(t, memory.New())
	ctx := WithDevice(WithClientIP(context.Background(), "10.9.9.9"), "d7")

	first, err := h.engine.CreateFirst(ctx, CreateRequest{Name: "alice", Email: "a@x.com", Password: "pw1"}, CreateFirstOptions{})
	if err != nil {
		t.Fatalf("CreateFirst: %v", err)
	}
	verify, err := h.engine.CreateVerify(ctx, CreateVerifyRequest{
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
	}, CreateVerifyOptions{})
	if err != nil {
		t.Fatalf("CreateVerify: %v", err)
	}

	if _, err := h.engine.Authenticate(context.Background(), verify.Body.SessionToken, "10.9.9.9", "d7"); err != nil {
		t.Fatalf("expected session bound to context address and device: %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, verify.Body.SessionToken, "", ""); err != nil {
		t.Fatalf("expected Authenticate to read identity from context: %v", err)
	}
}

func TestEngineLogoutKeepsOtherDevices(t *testing.T) {
	h := newHarness(t, memory.New())
	first := h.register(t, "alice", "a@x.com", "pw1")
	second := h.login(t, "alice", "pw1", "10.0.0.2", "d2", LoginVerifyOptions{ForceAllLogout: Bool(false)})
	ctx := context.Background()

	if err := h.engine.Logout(ctx, second, "10.0.0.2", "d2"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, second, "10.0.0.2", "d2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected logged-out session to be gone, got %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, first, "10.0.0.1", "d1"); err != nil {
		t.Fatalf("expected first device to stay signed in: %v", err)
	}

	list, err := h.engine.ListSessions(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 || list[0].Device != "d1" {
		t.Fatalf("unexpected sessions: %+v", list)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricLogout]; got != 1 {
		t.Fatalf("expected one logout, got %d", got)
	}
}

func TestEngineClockExpiresTokensAndSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	h := newHarness(t, memory.New(memory.WithClock(clock)), func(b *Builder) {
		b.WithClock(clock)
	})
	sess := h.register(t, "alice", "a@x.com", "pw1")
	ctx := context.Background()

	first, err := h.engine.LoginFirst(ctx, LoginRequest{Name: "alice", Password: "pw1"}, LoginFirstOptions{})
	if err != nil {
		t.Fatalf("LoginFirst: %v", err)
	}

	now = now.Add(11 * time.Minute)
	_, err = h.engine.LoginVerify(ctx, LoginVerifyRequest{
		AlternateToken: first.Body.AlternateToken,
		Code:           first.System.OneTimePassword,
		IP:             "10.0.0.1",
		Device:         "d1",
	}, LoginVerifyOptions{})
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("expected expired continuation token to be rejected, got %v", err)
	}

	if _, err := h.engine.Authenticate(ctx, sess, "10.0.0.1", "d1"); err != nil {
		t.Fatalf("expected session to be live: %v", err)
	}
	now = now.Add(31 * 24 * time.Hour)
	if _, err := h.engine.Authenticate(ctx, sess, "10.0.0.1", "d1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session past its lifetime to be gone, got %v", err)
	}
}
