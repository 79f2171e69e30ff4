package handler

//go:generate mockgen -source=handler.go -destination=mocks/application-mocks.go -package=mocks Service

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"licensure/internal/application/handler/mocks"
	"licensure/internal/application/models"
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
	"licensure/pkg/testutil"
)

type ApplicationHandlerSuite struct {
	suite.Suite
}

func TestApplicationHandlerSuite(t *testing.T) {
	suite.Run(t, new(ApplicationHandlerSuite))
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

func testApplication(applicantID id.UserID, status models.Status) *models.Application {
	return &models.Application{
		ID:          id.NewApplicationID(),
		ApplicantID: applicantID,
		Status:      status,
		Version:     1,
		CreatedAt:   time.Date(2026, 5, 25, 10, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 5, 25, 10, 0, 0, 0, time.UTC),
	}
}

func (s *ApplicationHandlerSuite) TestCreate() {
	router, mockService := newTestHandler(s.T())
	applicant := id.Actor{ID: id.NewUserID(), Role: id.RoleApplicant}
	app := testApplication(applicant.ID, models.StatusDraft)

	mockService.EXPECT().
		Create(gomock.Any(), applicant.ID).
		Return(app, nil)

	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications", nil), applicant)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	got := testutil.UnmarshalResponse[models.Application](s.T(), rr)
	s.Equal(app.ID, got.ID)
	s.Equal(models.StatusDraft, got.Status)
}

func (s *ApplicationHandlerSuite) TestCreate_ForOtherUserNeedsAdmin() {
	router, _ := newTestHandler(s.T())
	applicant := id.Actor{ID: id.NewUserID(), Role: id.RoleApplicant}

	body := map[string]string{"applicant_id": id.NewUserID().String()}
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications", body), applicant)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *ApplicationHandlerSuite) TestGet() {
	router, mockService := newTestHandler(s.T())
	applicant := id.Actor{ID: id.NewUserID(), Role: id.RoleApplicant}
	app := testApplication(applicant.ID, models.StatusSubmitted)

	mockService.EXPECT().
		Get(gomock.Any(), app.ID).
		Return(app, nil)

	req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodGet, "/applications/"+app.ID.String()), applicant)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	got := testutil.UnmarshalResponse[models.Application](s.T(), rr)
	s.Equal(models.StatusSubmitted, got.Status)
}

func (s *ApplicationHandlerSuite) TestGet_OtherApplicantForbidden() {
	router, mockService := newTestHandler(s.T())
	app := testApplication(id.NewUserID(), models.StatusSubmitted)
	stranger := id.Actor{ID: id.NewUserID(), Role: id.RoleApplicant}

	mockService.EXPECT().
		Get(gomock.Any(), app.ID).
		Return(app, nil)

	req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodGet, "/applications/"+app.ID.String()), stranger)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *ApplicationHandlerSuite) TestGet_InvalidID() {
	router, _ := newTestHandler(s.T())
	req := testutil.WithRole(testutil.NewRequest(s.T(), http.MethodGet, "/applications/not-a-uuid"), id.RoleReviewer)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *ApplicationHandlerSuite) TestTransition() {
	router, mockService := newTestHandler(s.T())
	reviewer := id.Actor{ID: id.NewUserID(), Role: id.RoleReviewer}
	app := testApplication(id.NewUserID(), models.StatusUnderReview)

	mockService.EXPECT().
		Transition(gomock.Any(), app.ID, models.StatusUnderReview, reviewer, "").
		Return(app, nil)

	body := map[string]string{"target": "under_review"}
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+app.ID.String()+"/transition", body), reviewer)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *ApplicationHandlerSuite) TestTransition_UnknownTarget() {
	router, _ := newTestHandler(s.T())
	body := map[string]string{"target": "escalated"}
	req := testutil.WithRole(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+id.NewApplicationID().String()+"/transition", body), id.RoleReviewer)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *ApplicationHandlerSuite) TestTransition_ServiceErrorMapped() {
	tests := []struct {
		name       string
		code       dErrors.Code
		wantStatus int
	}{
		{"illegal transition", dErrors.CodeIllegalTransition, http.StatusConflict},
		{"incomplete verification", dErrors.CodeIncompleteVerification, http.StatusConflict},
		{"concurrent modification", dErrors.CodeConcurrentModification, http.StatusConflict},
		{"forbidden", dErrors.CodeForbidden, http.StatusForbidden},
		{"not found", dErrors.CodeNotFound, http.StatusNotFound},
		{"lock timeout", dErrors.CodeTimeout, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			router, mockService := newTestHandler(s.T())
			appID := id.NewApplicationID()

			mockService.EXPECT().
				Transition(gomock.Any(), appID, models.StatusApproved, gomock.Any(), "").
				Return(nil, dErrors.New(tc.code, tc.name))

			body := map[string]string{"target": "approved"}
			req := testutil.WithRole(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+appID.String()+"/transition", body), id.RoleReviewer)
			rr := testutil.DoRequest(router, req)

			testutil.AssertStatusAndError(s.T(), rr, tc.wantStatus, string(tc.code))
		})
	}
}

func (s *ApplicationHandlerSuite) TestAttachItem() {
	router, mockService := newTestHandler(s.T())
	applicant := id.Actor{ID: id.NewUserID(), Role: id.RoleApplicant}
	appID := id.NewApplicationID()
	item := &models.VerifiableItem{
		ID:            id.NewItemID(),
		ApplicationID: appID,
		Kind:          models.ItemKindDocument,
		FileRef:       "s3://bucket/diploma.pdf",
		CreatedAt:     time.Now().UTC(),
	}

	mockService.EXPECT().
		AttachItem(gomock.Any(), appID, models.ItemKindDocument, "s3://bucket/diploma.pdf", applicant).
		Return(item, nil)

	body := map[string]string{"kind": "document", "file_ref": "s3://bucket/diploma.pdf"}
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+appID.String()+"/items", body), applicant)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	got := testutil.UnmarshalResponse[models.VerifiableItem](s.T(), rr)
	s.Equal(item.ID, got.ID)
}

func (s *ApplicationHandlerSuite) TestAttachItem_UnknownKind() {
	router, _ := newTestHandler(s.T())
	body := map[string]string{"kind": "references"}
	req := testutil.WithRole(testutil.NewJSONRequest(s.T(), http.MethodPost, "/applications/"+id.NewApplicationID().String()+"/items", body), id.RoleApplicant)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *ApplicationHandlerSuite) TestList_ApplicantCannotQueryOthers() {
	router, _ := newTestHandler(s.T())
	req := testutil.WithRole(testutil.NewRequest(s.T(), http.MethodGet, "/applications?applicant_id="+id.NewUserID().String()), id.RoleApplicant)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *ApplicationHandlerSuite) TestList_ReviewerQueriesApplicant() {
	router, mockService := newTestHandler(s.T())
	applicantID := id.NewUserID()

	mockService.EXPECT().
		ListByApplicant(gomock.Any(), applicantID).
		Return([]*models.Application{testApplication(applicantID, models.StatusDraft)}, nil)

	req := testutil.WithRole(testutil.NewRequest(s.T(), http.MethodGet, "/applications?applicant_id="+applicantID.String()), id.RoleReviewer)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	got := testutil.UnmarshalResponse[[]*models.Application](s.T(), rr)
	s.Len(*got, 1)
}
