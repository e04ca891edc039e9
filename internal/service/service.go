package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/agency-service/internal/config"
	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/emailcheck"
	"github.com/spec-kit/agency-service/internal/events"
	"github.com/spec-kit/agency-service/internal/identity"
	"github.com/spec-kit/agency-service/internal/observability"
	"github.com/spec-kit/agency-service/internal/repository"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs struct tag validation and reports every failing field
// as invalid-argument.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if dot := strings.Index(field, "."); dot >= 0 {
			field = field[dot+1:]
		}
		details[field] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid input", details)
}

// OrchestratorDependencies encapsulates the collaborators of AgencyService.
type OrchestratorDependencies struct {
	Identity   identity.Provider
	Documents  repository.DocumentStore
	Emails     *emailcheck.Validator
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// AgencyService hosts the agency orchestrators: creation, update and the
// deletion cascade. It holds no per-request state.
type AgencyService struct {
	identity    identity.Provider
	documents   repository.DocumentStore
	provisioner *Provisioner
	emails      *emailcheck.Validator
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	fanout      int
	strictEmail bool
	newID       func() string
}

// NewAgencyService constructs the service.
func NewAgencyService(cfg config.Config, deps OrchestratorDependencies) *AgencyService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fanout := cfg.Orchestrator.FanoutLimit
	if fanout <= 0 {
		fanout = 8
	}
	return &AgencyService{
		identity:    deps.Identity,
		documents:   deps.Documents,
		provisioner: NewProvisioner(deps.Identity, deps.Documents, logger),
		emails:      deps.Emails,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		fanout:      fanout,
		strictEmail: cfg.Orchestrator.StrictEmailProvisioning,
		newID:       uuid.NewString,
	}
}

// checkManagerEmail applies the syntax check, or the full gate when strict
// provisioning is enabled.
func (s *AgencyService) checkManagerEmail(ctx context.Context, email string) error {
	if s.strictEmail && s.emails != nil {
		return s.emails.Validate(ctx, email)
	}
	return emailcheck.CheckSyntax(email)
}

func (s *AgencyService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("company_id", event.CompanyID),
			zap.Error(err))
	}
}

// observe records one orchestrator call under its outcome code.
func (s *AgencyService) observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperrors.CodeOf(err)
	}
	s.metrics.RecordOperation(operation, outcome)
}

// loadAgency maps a missing agency to not-found.
func (s *AgencyService) loadAgency(ctx context.Context, companyID, agencyID string) (*domain.Agency, error) {
	agency, err := s.documents.GetAgency(ctx, companyID, agencyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("agency", map[string]any{"agencyId": agencyID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return agency, nil
}

// mergeClaims rewrites the company and agency scope of prior claims. Role and
// email verification survive unless role is given.
func mergeClaims(prior domain.Claims, companyID string, agencyID *string, role *domain.Role) domain.Claims {
	claims := domain.Claims{
		Role:          prior.Role,
		CompanyID:     companyID,
		AgencyID:      agencyID,
		EmailVerified: prior.EmailVerified,
	}
	if role != nil {
		claims.Role = *role
	}
	return claims
}

func ptr[T any](v T) *T {
	return &v
}
