package handler

//go:generate mockgen -source=handler.go -destination=mocks/verification-mocks.go -package=mocks Service

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"licensure/internal/application/models"
	"licensure/internal/verification/handler/mocks"
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
	"licensure/pkg/testutil"
)

type VerificationHandlerSuite struct {
	suite.Suite
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func newTestHandler(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(mockService, logger).Register(r)
	return r, mockService
}

func (s *VerificationHandlerSuite) TestVerifyItem() {
	router, mockService := newTestHandler(s.T())
	reviewer := id.Actor{ID: id.NewUserID(), Role: id.RoleReviewer}
	itemID := id.NewItemID()
	now := time.Now().UTC()
	verified := &models.VerifiableItem{
		ID:               itemID,
		ApplicationID:    id.NewApplicationID(),
		Kind:             models.ItemKindEducation,
		IsVerified:       true,
		VerifiedBy:       &reviewer.ID,
		VerificationDate: &now,
		CreatedAt:        now,
	}

	mockService.EXPECT().
		VerifyItem(gomock.Any(), models.ItemKindEducation, itemID, reviewer, "transcript checked").
		Return(verified, nil)

	body := map[string]string{"notes": "transcript checked"}
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/items/education/"+itemID.String()+"/verify", body), reviewer)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	got := testutil.UnmarshalResponse[models.VerifiableItem](s.T(), rr)
	s.True(got.IsVerified)
}

func (s *VerificationHandlerSuite) TestVerifyItem_NoBody() {
	router, mockService := newTestHandler(s.T())
	reviewer := id.Actor{ID: id.NewUserID(), Role: id.RoleReviewer}
	itemID := id.NewItemID()

	mockService.EXPECT().
		VerifyItem(gomock.Any(), models.ItemKindDocument, itemID, reviewer, "").
		Return(&models.VerifiableItem{ID: itemID, IsVerified: true}, nil)

	req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodPost, "/items/document/"+itemID.String()+"/verify"), reviewer)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *VerificationHandlerSuite) TestVerifyItem_UnknownKind() {
	router, _ := newTestHandler(s.T())
	req := testutil.WithRole(testutil.NewRequest(s.T(), http.MethodPost, "/items/references/"+id.NewItemID().String()+"/verify"), id.RoleReviewer)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *VerificationHandlerSuite) TestVerifyItem_InvalidItemID() {
	router, _ := newTestHandler(s.T())
	req := testutil.WithRole(testutil.NewRequest(s.T(), http.MethodPost, "/items/education/not-a-uuid/verify"), id.RoleReviewer)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *VerificationHandlerSuite) TestVerifyItem_ServiceErrorMapped() {
	tests := []struct {
		name       string
		code       dErrors.Code
		wantStatus int
	}{
		{"not found", dErrors.CodeNotFound, http.StatusNotFound},
		{"forbidden", dErrors.CodeForbidden, http.StatusForbidden},
		{"lock timeout", dErrors.CodeTimeout, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			router, mockService := newTestHandler(s.T())
			itemID := id.NewItemID()

			mockService.EXPECT().
				VerifyItem(gomock.Any(), models.ItemKindTraining, itemID, gomock.Any(), "").
				Return(nil, dErrors.New(tc.code, tc.name))

			req := testutil.WithRole(testutil.NewRequest(s.T(), http.MethodPost, "/items/training/"+itemID.String()+"/verify"), id.RoleReviewer)
			rr := testutil.DoRequest(router, req)

			testutil.AssertStatusAndError(s.T(), rr, tc.wantStatus, string(tc.code))
		})
	}
}
