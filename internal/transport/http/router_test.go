package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"sovid/internal/audit"
	"sovid/internal/credential"
	"sovid/internal/identity"
	"sovid/internal/ledger"
	"sovid/internal/reputation"
	"sovid/internal/verification"
	id "sovid/pkg/domain"
)

const testSigningKey = "test-signing-key"

// RouterSuite exercises the full HTTP surface over in-memory stores: auth
// middleware, decoding, service semantics, and the error envelope.
type RouterSuite struct {
	suite.Suite
	handler     http.Handler
	principals  identity.Store
	credentials credential.Store
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.Default()
	s.principals = identity.NewInMemoryStore()
	s.credentials = credential.NewInMemoryStore()
	publisher := audit.NewPublisher(audit.NewInMemoryStore(), logger)

	registrar := identity.NewRegistrar(s.principals, ledger.NewInMemoryClient(), publisher, logger, nil)
	scores := reputation.NewService(reputation.NewInMemoryEventStore(), s.principals, publisher, logger, nil)
	verifications := verification.NewService(
		verification.NewInMemoryStore(), s.credentials, s.principals,
		scores, 5, publisher, logger, nil)

	router := NewRouter(
		NewIdentityHandler(registrar, logger),
		NewReputationHandler(scores, logger),
		NewVerificationHandler(verifications, s.credentials, logger),
		NewTokenValidator(testSigningKey),
		logger,
	)
	s.handler = router.Handler()
}

func (s *RouterSuite) token(principalID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": principalID})
	signed, err := token.SignedString([]byte(testSigningKey))
	s.Require().NoError(err)
	return signed
}

func (s *RouterSuite) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func (s *RouterSuite) register(principalID string) string {
	token := s.token(principalID)
	rec, _ := s.do(http.MethodPost, "/v1/principals", token, nil)
	s.Require().Equal(http.StatusCreated, rec.Code)
	return token
}

func (s *RouterSuite) TestHealthz() {
	rec, body := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", body["status"])
}

func (s *RouterSuite) TestAuthRequired() {
	rec, body := s.do(http.MethodPost, "/v1/principals", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("unauthorized", body["error"])

	rec, body = s.do(http.MethodPost, "/v1/principals", "not-a-jwt", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("unauthorized", body["error"])
}

func (s *RouterSuite) TestWrongSigningKeyRejected() {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "p-1"})
	signed, err := token.SignedString([]byte("some-other-key"))
	s.Require().NoError(err)

	rec, _ := s.do(http.MethodPost, "/v1/principals", signed, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestRegisterAndIssueDID() {
	token := s.register("p-1")

	rec, body := s.do(http.MethodPost, "/v1/dids", token, nil)
	s.Require().Equal(http.StatusCreated, rec.Code)
	did, _ := body["did"].(string)
	s.Contains(did, id.DIDKeyPrefix)
	s.NotEmpty(body["private_key"])

	// A second issue conflicts.
	rec, body = s.do(http.MethodPost, "/v1/dids", token, nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("already_registered", body["error"])

	// The DID is readable by any authenticated principal.
	other := s.register("p-2")
	rec, body = s.do(http.MethodGet, "/v1/principals/p-1/did", other, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(did, body["did"])
}

func (s *RouterSuite) TestGetDIDBeforeIssue() {
	token := s.register("p-1")
	rec, body := s.do(http.MethodGet, "/v1/principals/p-1/did", token, nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", body["error"])
}

func (s *RouterSuite) TestReputationEndpoints() {
	token := s.register("p-1")

	rec, body := s.do(http.MethodPost, "/v1/principals/p-1/reputation", token,
		adjustRequest{Delta: 10, Reason: "endorsement"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.EqualValues(10, body["score"])

	rec, body = s.do(http.MethodPost, "/v1/principals/p-1/reputation", token,
		adjustRequest{Delta: -3, Reason: "dispute"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.EqualValues(7, body["score"])

	rec, body = s.do(http.MethodGet, "/v1/principals/p-1/reputation", token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.EqualValues(7, body["score"])

	// Zero delta is rejected as a no-op.
	rec, body = s.do(http.MethodPost, "/v1/principals/p-1/reputation", token,
		adjustRequest{Delta: 0, Reason: "nothing"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("noop_adjustment", body["error"])

	req := httptest.NewRequest(http.MethodGet, "/v1/principals/p-1/reputation/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recHist := httptest.NewRecorder()
	s.handler.ServeHTTP(recHist, req)
	s.Equal(http.StatusOK, recHist.Code)
	var events []eventResponse
	s.Require().NoError(json.Unmarshal(recHist.Body.Bytes(), &events))
	s.Require().Len(events, 2)
	s.EqualValues(1, events[0].Seq)
	s.EqualValues(10, events[0].Delta)
}

func (s *RouterSuite) TestVerificationFlow() {
	subject := s.register("subject-1")
	verifier := s.register("verifier-1")

	rec, _ := s.do(http.MethodPost, "/v1/credentials", subject,
		saveCredentialRequest{Ref: "cred-1", Type: "membership", Issuer: "issuer-1"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec, body := s.do(http.MethodPost, "/v1/verifications", subject,
		requestVerificationRequest{CredentialRef: "cred-1", Verifier: "verifier-1"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.Equal("pending", body["status"])
	requestID, _ := body["id"].(string)
	s.Require().NotEmpty(requestID)

	rec, body = s.do(http.MethodPost, "/v1/verifications/"+requestID+"/review", verifier, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("in_review", body["status"])

	rec, body = s.do(http.MethodPost, "/v1/verifications/"+requestID+"/resolution", verifier,
		resolveRequest{Outcome: "verified"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("verified", body["status"])

	// The verified award landed on the subject's score.
	rec, body = s.do(http.MethodGet, "/v1/principals/subject-1/reputation", subject, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.EqualValues(5, body["score"])

	rec, body = s.do(http.MethodGet, "/v1/verifications/"+requestID, subject, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("verified", body["status"])
}

func (s *RouterSuite) TestVerificationUnknownCredential() {
	s.register("subject-1")
	subject := s.token("subject-1")
	s.register("verifier-1")

	rec, body := s.do(http.MethodPost, "/v1/verifications", subject,
		requestVerificationRequest{CredentialRef: "missing", Verifier: "verifier-1"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("invalid_credential", body["error"])
}

func (s *RouterSuite) TestReviewByWrongVerifier() {
	subject := s.register("subject-1")
	s.register("verifier-1")
	stranger := s.register("verifier-2")

	rec, _ := s.do(http.MethodPost, "/v1/credentials", subject,
		saveCredentialRequest{Ref: "cred-1", Type: "membership", Issuer: "issuer-1"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec, body := s.do(http.MethodPost, "/v1/verifications", subject,
		requestVerificationRequest{CredentialRef: "cred-1", Verifier: "verifier-1"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	requestID, _ := body["id"].(string)

	rec, body = s.do(http.MethodPost, "/v1/verifications/"+requestID+"/review", stranger, nil)
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("forbidden", body["error"])
}

func (s *RouterSuite) TestCredentialEndpoints() {
	token := s.register("p-1")

	rec, _ := s.do(http.MethodPost, "/v1/credentials", token,
		saveCredentialRequest{Ref: "cred-1", Type: "membership", Issuer: "issuer-1"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	// Duplicate refs conflict.
	rec, body := s.do(http.MethodPost, "/v1/credentials", token,
		saveCredentialRequest{Ref: "cred-1", Type: "membership", Issuer: "issuer-1"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("already_registered", body["error"])

	rec, body = s.do(http.MethodGet, "/v1/credentials/cred-1", token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("membership", body["type"])

	// Credentials are scoped to their owner.
	other := s.register("p-2")
	rec, body = s.do(http.MethodGet, "/v1/credentials/cred-1", other, nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", body["error"])
}

func (s *RouterSuite) TestMalformedBody() {
	token := s.register("p-1")

	req := httptest.NewRequest(http.MethodPost, "/v1/principals/p-1/reputation",
		bytes.NewReader([]byte("{bad-json")))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("bad_request", body["error"])
}

func (s *RouterSuite) TestDisableSelfOnly() {
	token := s.register("p-1")
	other := s.register("p-2")

	rec, body := s.do(http.MethodDelete, "/v1/principals/p-1", other, nil)
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("forbidden", body["error"])

	rec, _ = s.do(http.MethodDelete, "/v1/principals/p-1", token, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	// Disabled principals can no longer issue DIDs.
	rec, body = s.do(http.MethodPost, "/v1/dids", token, nil)
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("forbidden", body["error"])
}
