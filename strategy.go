// Package spidpassport implements a SPID (Sistema Pubblico di Identità
// Digitale) SAML2 service-provider authentication strategy: per-request
// identity-provider and assurance-level resolution, AuthnRequest
// construction, response and logout dispatch, and signed SP metadata
// generation. The SAML protocol engine is consumed through a port; a
// crewjam/saml backed adapter lives in internal/adapters/driven/engine.
package spidpassport

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/BeAdopt/spid-passport/internal/adapters/driven/metrics"
	"github.com/BeAdopt/spid-passport/internal/core/domain"
	"github.com/BeAdopt/spid-passport/internal/core/ports"
)

// AuthenticationStrategy is the surface an application mounts: one pass per
// inbound request, reporting exactly one outcome through the Responder.
type AuthenticationStrategy interface {
	Authenticate(ctx context.Context, r *http.Request, responder ports.Responder)
	Logout(ctx context.Context, r *http.Request, responder ports.Responder)
}

// ProfileProvider returns the currently authenticated profile for a request,
// or nil when the request carries no session. Supplied by the application;
// session storage is not owned by this layer.
type ProfileProvider func(r *http.Request) *domain.Profile

// Strategy orchestrates the SPID request/response flows against an injected
// protocol engine. It holds no per-request state: each pass derives a fresh
// effective configuration overlay and discards it.
type Strategy struct {
	config  *domain.ProviderConfig
	engine  ports.ProtocolEngine
	store   ports.RequestStore
	logger  *zap.Logger
	metrics ports.MetricsRecorder

	verify        ports.VerifyFunc
	verifyRequest ports.VerifyRequestFunc
	sessionEnder  ports.SessionEnder
	profileOf     ProfileProvider
}

// StrategyOption configures a Strategy.
type StrategyOption func(*Strategy)

// WithLogger sets the strategy logger.
func WithLogger(logger *zap.Logger) StrategyOption {
	return func(s *Strategy) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder ports.MetricsRecorder) StrategyOption {
	return func(s *Strategy) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithRequestStore sets the replay-prevention store recorded against by the
// AuthnRequest builder and consulted by the protocol engine.
func WithRequestStore(store ports.RequestStore) StrategyOption {
	return func(s *Strategy) {
		s.store = store
	}
}

// WithVerify sets the application verification callback.
func WithVerify(verify ports.VerifyFunc) StrategyOption {
	return func(s *Strategy) {
		s.verify = verify
	}
}

// WithVerifyRequest sets the request-aware verification callback, used when
// the provider configuration sets PassReqToCallback.
func WithVerifyRequest(verify ports.VerifyRequestFunc) StrategyOption {
	return func(s *Strategy) {
		s.verifyRequest = verify
	}
}

// WithSessionEnder sets the local session terminator invoked on logout.
func WithSessionEnder(ender ports.SessionEnder) StrategyOption {
	return func(s *Strategy) {
		s.sessionEnder = ender
	}
}

// WithProfileProvider sets how the strategy obtains the authenticated
// profile when starting an SP-initiated logout.
func WithProfileProvider(provider ProfileProvider) StrategyOption {
	return func(s *Strategy) {
		s.profileOf = provider
	}
}

// NewStrategy creates a Strategy for the given immutable provider
// configuration and protocol engine.
func NewStrategy(cfg *domain.ProviderConfig, engine ports.ProtocolEngine, opts ...StrategyOption) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Strategy{
		config:  cfg,
		engine:  engine,
		logger:  zap.NewNop(),
		metrics: metrics.NewNoopMetricsRecorder(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.PassReqToCallback && s.verifyRequest == nil && s.verify == nil {
		return nil, domain.ConfigError("pass_req_to_callback set but no request-aware verify callback configured")
	}
	return s, nil
}

// Authenticate runs one pass of the orchestration state machine: classify
// the inbound request, dispatch to the protocol engine or to the
// AuthnRequest builder, and report the outcome.
func (s *Strategy) Authenticate(ctx context.Context, r *http.Request, responder ports.Responder) {
	entityID := r.URL.Query().Get("entityID")
	authLevel := r.URL.Query().Get("authLevel")

	effective, err := ResolveEffectiveConfig(s.config, entityID, authLevel, s.logger)
	if err != nil {
		s.logger.Error("identity provider resolution failed",
			zap.String("entity_id", entityID), zap.Error(err))
		responder.Error(err)
		return
	}

	if r.Method == http.MethodPost {
		if encoded := r.PostFormValue("SAMLResponse"); encoded != "" {
			s.validateResponse(ctx, r, encoded, effective, responder)
			return
		}
		if encoded := r.PostFormValue("SAMLRequest"); encoded != "" {
			s.validateRequest(ctx, r, encoded, effective, responder)
			return
		}
	}

	s.initiateFlow(ctx, r, entityID, effective, responder)
}

// Logout is the SP-initiated logout entry point: it redirects the user
// agent to the IdP's logout endpoint for the current session.
func (s *Strategy) Logout(ctx context.Context, r *http.Request, responder ports.Responder) {
	entityID := r.URL.Query().Get("entityID")

	effective, err := ResolveEffectiveConfig(s.config, entityID, "", s.logger)
	if err != nil {
		responder.Error(err)
		return
	}

	logoutURL, err := s.engine.LogoutURL(ctx, s.currentProfile(r), effective)
	if err != nil {
		responder.Error(err)
		return
	}
	responder.Redirect(logoutURL)
}

// validateResponse handles a login-response POST: either a fresh login
// assertion or the confirmation of an SP-initiated logout.
func (s *Strategy) validateResponse(ctx context.Context, r *http.Request, encoded string, cfg *domain.EffectiveConfig, responder ports.Responder) {
	result, err := s.engine.ValidatePostResponse(ctx, encoded, cfg)
	if err != nil {
		s.metrics.RecordAuthAttempt(s.metricsLabel(cfg), false)
		s.logger.Warn("response validation failed", zap.Error(err))
		responder.Error(err)
		return
	}
	s.dispatchResult(ctx, r, result, cfg, responder)
}

// validateRequest handles a login-request POST, which is an IdP-initiated
// logout request.
func (s *Strategy) validateRequest(ctx context.Context, r *http.Request, encoded string, cfg *domain.EffectiveConfig, responder ports.Responder) {
	result, err := s.engine.ValidatePostRequest(ctx, encoded, cfg)
	if err != nil {
		s.logger.Warn("logout request validation failed", zap.Error(err))
		responder.Error(err)
		return
	}
	s.dispatchResult(ctx, r, result, cfg, responder)
}

// dispatchResult maps a validated message to the strategy outcome.
func (s *Strategy) dispatchResult(ctx context.Context, r *http.Request, result *ports.ValidationResult, cfg *domain.EffectiveConfig, responder ports.Responder) {
	if result.LoggedOut {
		s.completeLogout(ctx, r, result.Profile, cfg, responder)
		return
	}

	profile, info, err := s.runVerify(ctx, r, result.Profile)
	if err != nil {
		s.metrics.RecordAuthAttempt(s.metricsLabel(cfg), false)
		responder.Error(err)
		return
	}
	if profile == nil {
		s.metrics.RecordAuthAttempt(s.metricsLabel(cfg), false)
		responder.Fail(failReason(info))
		return
	}

	s.metrics.RecordAuthAttempt(profile.Issuer, true)
	s.logger.Info("authentication succeeded",
		zap.String("issuer", profile.Issuer),
		zap.String("authn_context", profile.AuthnContextURI))
	responder.Success(profile, info)
}

// completeLogout terminates the local session and, when the message carried
// a logout profile, answers the IdP with a logout response redirect.
// A bare confirmation terminates passively.
func (s *Strategy) completeLogout(ctx context.Context, r *http.Request, profile *domain.Profile, cfg *domain.EffectiveConfig, responder ports.Responder) {
	if s.sessionEnder != nil {
		if err := s.sessionEnder.End(r); err != nil {
			responder.Error(err)
			return
		}
	}

	s.metrics.RecordLogout(s.metricsLabel(cfg))

	if profile == nil {
		responder.Pass()
		return
	}

	responseURL, err := s.engine.LogoutResponseURL(ctx, profile, cfg)
	if err != nil {
		responder.Error(err)
		return
	}
	responder.Redirect(responseURL)
}

// initiateFlow starts a new protocol exchange for a request that carried no
// SAML payload, dispatching on the configured fallback mode.
func (s *Strategy) initiateFlow(ctx context.Context, r *http.Request, entityID string, cfg *domain.EffectiveConfig, responder ports.Responder) {
	fallback := s.config.Fallback
	if fallback == "" {
		fallback = domain.FlowLoginRequest
	}

	switch fallback {
	case domain.FlowLoginRequest:
		s.startLogin(ctx, r, entityID, cfg, responder)
	case domain.FlowLogoutRequest:
		logoutURL, err := s.engine.LogoutURL(ctx, s.currentProfile(r), cfg)
		if err != nil {
			responder.Error(err)
			return
		}
		responder.Redirect(logoutURL)
	default:
		s.logger.Warn("unknown fallback flow", zap.String("fallback", string(fallback)))
		responder.Fail("unknown fallback flow")
	}
}

// startLogin builds a fresh AuthnRequest and redirects to the IdP.
func (s *Strategy) startLogin(ctx context.Context, r *http.Request, entityID string, cfg *domain.EffectiveConfig, responder ports.Responder) {
	doc, err := BuildAuthnRequest(ctx, cfg, s.engine, s.store)
	if err != nil {
		responder.Error(err)
		return
	}

	relayState := r.URL.Query().Get("RelayState")
	if relayState == "" {
		relayState = r.PostFormValue("RelayState")
	}

	redirectURL, err := s.engine.RequestToURL(ctx, doc, ports.OperationLogin, relayState, cfg)
	if err != nil {
		responder.Error(err)
		return
	}

	s.metrics.RecordAuthnRequest(s.metricsLabel(cfg))
	s.logger.Debug("authn request issued",
		zap.String("entity_id", entityID),
		zap.Bool("force_authn", cfg.ForceAuthn))
	responder.Redirect(redirectURL)
}

// runVerify invokes the application verification callback exactly once.
// With no callback configured the extracted profile is established as-is.
func (s *Strategy) runVerify(ctx context.Context, r *http.Request, profile *domain.Profile) (*domain.Profile, map[string]any, error) {
	if s.config.PassReqToCallback && s.verifyRequest != nil {
		return s.verifyRequest(ctx, r, profile)
	}
	if s.verify != nil {
		return s.verify(ctx, profile)
	}
	return profile, nil, nil
}

func (s *Strategy) currentProfile(r *http.Request) *domain.Profile {
	if s.profileOf == nil {
		return nil
	}
	return s.profileOf(r)
}

// metricsLabel picks the IdP label for metrics: the resolved entry point
// when a single IdP was selected, otherwise "unknown".
func (s *Strategy) metricsLabel(cfg *domain.EffectiveConfig) string {
	if cfg.EntryPoint != "" {
		for _, idp := range s.config.IdentityProviders {
			if idp.EntryPoint == cfg.EntryPoint {
				return idp.EntityID
			}
		}
	}
	return "unknown"
}

// failReason extracts a human-readable failure reason from verify info.
func failReason(info map[string]any) string {
	if msg, ok := info["message"].(string); ok && msg != "" {
		return msg
	}
	return "verification rejected the profile"
}

// Ensure Strategy implements AuthenticationStrategy
var _ AuthenticationStrategy = (*Strategy)(nil)
