package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"citizenly/internal/audit"
	"citizenly/internal/identity"
	"citizenly/internal/registration/models"
	"citizenly/internal/registration/service/mocks"
	"citizenly/internal/registration/store/profile"
	dErrors "citizenly/pkg/domain-errors"
	"citizenly/pkg/platform/sentinel"
	"citizenly/pkg/retry"
)

type RegistrationSuite struct {
	suite.Suite
	ctrl           *gomock.Controller
	mockIdentities *mocks.MockIdentityProvider
	mockProfiles   *mocks.MockProfileStore
	mockRoles      *mocks.MockRoleStore
	mockAudit      *mocks.MockAuditPublisher
	service        *Service
}

func TestRegistrationSuite(t *testing.T) {
	suite.Run(t, new(RegistrationSuite))
}

func (s *RegistrationSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockIdentities = mocks.NewMockIdentityProvider(s.ctrl)
	s.mockProfiles = mocks.NewMockProfileStore(s.ctrl)
	s.mockRoles = mocks.NewMockRoleStore(s.ctrl)
	s.mockAudit = mocks.NewMockAuditPublisher(s.ctrl)
	s.service = NewService(
		s.mockIdentities,
		s.mockProfiles,
		s.mockRoles,
		WithVisibilityPolicy(retry.Policy{
			MaxAttempts:       3,
			InitialDelay:      time.Millisecond,
			BackoffMultiplier: 1,
			MaxDelay:          time.Millisecond,
		}),
		WithAuditPublisher(s.mockAudit),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *RegistrationSuite) TearDownTest() {
	s.ctrl.Finish()
}

func residentRole() *models.Role {
	return &models.Role{ID: uuid.New(), Name: models.RoleResident}
}

func adminRole() *models.Role {
	return &models.Role{ID: uuid.New(), Name: models.RoleBarangayAdmin}
}

func residentRequest() models.SignupRequest {
	return models.SignupRequest{
		Email:     "juan.cruz@example.com",
		Password:  "Str0ng!pw",
		FirstName: "Juan",
		LastName:  "Cruz",
		RoleName:  "resident",
	}
}

func adminRequest() models.SignupRequest {
	req := residentRequest()
	req.RoleName = "barangay_admin"
	req.JurisdictionCode = "097332001"
	return req
}

func (s *RegistrationSuite) TestRegister_SucceedsAfterVisibilityLag() {
	ctx := context.Background()
	req := residentRequest()
	role := residentRole()
	ident := &identity.Identity{ID: uuid.New(), Email: req.Email, CreatedAt: time.Now()}

	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleResident).Return(role, nil)
	s.mockProfiles.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, sentinel.ErrNotFound)
	s.mockIdentities.EXPECT().Create(gomock.Any(), req.Email, req.Password).Return(ident, nil)
	// First read races replication; second read finds the identity.
	gomock.InOrder(
		s.mockIdentities.EXPECT().FindByID(gomock.Any(), ident.ID).Return(nil, sentinel.ErrNotFound),
		s.mockIdentities.EXPECT().FindByID(gomock.Any(), ident.ID).Return(ident, nil),
	)
	s.mockProfiles.EXPECT().ReserveAndUpsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *models.Profile) (*models.Profile, error) {
			s.Equal(ident.ID, p.ID)
			s.Equal(role.ID, p.RoleID)
			s.Equal(models.ProfileStatusPendingApproval, p.Status)
			stored := *p
			stored.CreatedAt = time.Now()
			return &stored, nil
		})

	var event audit.Event
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, e audit.Event) { event = e })

	stored, err := s.service.Register(ctx, req)
	s.Require().NoError(err)
	s.Equal(ident.ID, stored.ID)
	s.Equal(audit.EventRegistrationCompleted, event.Type)
	s.Equal(ident.ID.String(), event.ProfileID)
}

func (s *RegistrationSuite) TestRegister_RejectsMalformedInput() {
	// No collaborator expectations: validation must fail before any side
	// effect or lookup.
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any())

	_, err := s.service.Register(context.Background(), models.SignupRequest{Email: "not-an-email"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RegistrationSuite) TestRegister_RejectsUnknownRole() {
	req := residentRequest()
	req.RoleName = "mayor"
	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleName("mayor")).Return(nil, sentinel.ErrNotFound)
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any())

	_, err := s.service.Register(context.Background(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RegistrationSuite) TestRegister_RequiresJurisdictionForAdmin() {
	req := adminRequest()
	req.JurisdictionCode = ""
	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleBarangayAdmin).Return(adminRole(), nil)
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any())

	_, err := s.service.Register(context.Background(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	var de *dErrors.Error
	s.Require().True(errors.As(err, &de))
	s.Contains(de.Fields, "jurisdiction_code")
}

func (s *RegistrationSuite) TestRegister_RejectsAlreadyRegisteredEmail() {
	req := residentRequest()
	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleResident).Return(residentRole(), nil)
	// Same email but different details: a different person, not a retry.
	s.mockProfiles.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(&models.Profile{
		RoleName:  models.RoleStaff,
		FirstName: "Maria",
		LastName:  "Santos",
	}, nil)
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any())

	_, err := s.service.Register(context.Background(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIdentityConflict))
}

func (s *RegistrationSuite) TestRegister_ReplaysCompletedRegistration() {
	req := residentRequest()
	role := residentRole()
	existing := &models.Profile{
		ID:        uuid.New(),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		RoleID:    role.ID,
		RoleName:  role.Name,
		Status:    models.ProfileStatusPendingApproval,
	}

	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleResident).Return(role, nil)
	s.mockProfiles.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(existing, nil)
	// No identity creation, no upsert: the retry observes the completed work.

	stored, err := s.service.Register(context.Background(), req)
	s.Require().NoError(err)
	s.Equal(existing.ID, stored.ID)
}

func (s *RegistrationSuite) TestRegister_SurfacesProviderConflict() {
	req := residentRequest()
	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleResident).Return(residentRole(), nil)
	s.mockProfiles.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, sentinel.ErrNotFound)
	s.mockIdentities.EXPECT().Create(gomock.Any(), req.Email, req.Password).Return(nil, sentinel.ErrConflict)
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any())

	_, err := s.service.Register(context.Background(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIdentityConflict))
}

func (s *RegistrationSuite) TestRegister_TimesOutWhenIdentityNeverVisible() {
	req := residentRequest()
	ident := &identity.Identity{ID: uuid.New(), Email: req.Email}

	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleResident).Return(residentRole(), nil)
	s.mockProfiles.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, sentinel.ErrNotFound)
	s.mockIdentities.EXPECT().Create(gomock.Any(), req.Email, req.Password).Return(ident, nil)
	s.mockIdentities.EXPECT().FindByID(gomock.Any(), ident.ID).Return(nil, sentinel.ErrNotFound).Times(3)
	// ReserveAndUpsert must not be called: no profile row may exist after a
	// propagation timeout.
	var event audit.Event
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, e audit.Event) { event = e })

	_, err := s.service.Register(context.Background(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePropagationTimeout))
	s.True(dErrors.Retryable(err))
	s.Equal(audit.EventRegistrationFailed, event.Type)
	s.Equal(string(dErrors.CodePropagationTimeout), event.ErrorCode)
}

func (s *RegistrationSuite) TestRegister_MapsJurisdictionConflict() {
	req := adminRequest()
	role := adminRole()
	ident := &identity.Identity{ID: uuid.New(), Email: req.Email}

	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleBarangayAdmin).Return(role, nil)
	s.mockProfiles.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, sentinel.ErrNotFound)
	s.mockIdentities.EXPECT().Create(gomock.Any(), req.Email, req.Password).Return(ident, nil)
	s.mockIdentities.EXPECT().FindByID(gomock.Any(), ident.ID).Return(ident, nil)
	s.mockProfiles.EXPECT().ReserveAndUpsert(gomock.Any(), gomock.Any()).Return(nil, profile.ErrJurisdictionTaken)
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any())

	_, err := s.service.Register(context.Background(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeJurisdictionConflict))
}

func (s *RegistrationSuite) TestRegister_InvalidatesAdminCacheOnSuccess() {
	req := adminRequest()
	role := adminRole()
	ident := &identity.Identity{ID: uuid.New(), Email: req.Email}
	invalidator := mocks.NewMockAdminStatusInvalidator(s.ctrl)
	svc := NewService(
		s.mockIdentities, s.mockProfiles, s.mockRoles,
		WithAdminStatusInvalidator(invalidator),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleBarangayAdmin).Return(role, nil)
	s.mockProfiles.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, sentinel.ErrNotFound)
	s.mockIdentities.EXPECT().Create(gomock.Any(), req.Email, req.Password).Return(ident, nil)
	s.mockIdentities.EXPECT().FindByID(gomock.Any(), ident.ID).Return(ident, nil)
	s.mockProfiles.EXPECT().ReserveAndUpsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *models.Profile) (*models.Profile, error) { return p, nil })
	invalidator.EXPECT().Invalidate(gomock.Any(), req.JurisdictionCode)

	_, err := svc.Register(context.Background(), req)
	s.Require().NoError(err)
}

func (s *RegistrationSuite) TestRegister_CancellationMapsToDeadlineExceeded() {
	req := residentRequest()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleResident).Return(residentRole(), nil)
	s.mockProfiles.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, sentinel.ErrNotFound)
	s.mockIdentities.EXPECT().Create(gomock.Any(), req.Email, req.Password).Return(nil, context.Canceled)
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any())

	_, err := s.service.Register(ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDeadlineExceeded))
}

func (s *RegistrationSuite) TestRegister_StoreUnavailable() {
	req := residentRequest()
	ident := &identity.Identity{ID: uuid.New(), Email: req.Email}

	s.mockRoles.EXPECT().FindByName(gomock.Any(), models.RoleResident).Return(residentRole(), nil)
	s.mockProfiles.EXPECT().FindByEmail(gomock.Any(), req.Email).Return(nil, sentinel.ErrNotFound)
	s.mockIdentities.EXPECT().Create(gomock.Any(), req.Email, req.Password).Return(ident, nil)
	s.mockIdentities.EXPECT().FindByID(gomock.Any(), ident.ID).Return(ident, nil)
	s.mockProfiles.EXPECT().ReserveAndUpsert(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrUnavailable)
	s.mockAudit.EXPECT().Publish(gomock.Any(), gomock.Any())

	_, err := s.service.Register(context.Background(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}
