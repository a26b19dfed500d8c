package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"virtus/internal/auth"
	"virtus/internal/config"
	"virtus/internal/models"
	"virtus/internal/ratelimit"
	"virtus/internal/services"
	"virtus/internal/store"
	"virtus/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
)

const testSecret = "secret"

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, user models.User) error
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
	updateFn     func(ctx context.Context, tx store.Execer, user models.User) error
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, user models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, user)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) Update(ctx context.Context, tx store.Execer, user models.User) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, tx, user)
}

type stubAccountStore struct {
	createFn    func(ctx context.Context, tx store.Execer, id string, userID *string, ownerKind string) error
	reconcileFn func(ctx context.Context) ([]store.AccountBalanceSummary, error)
	summaryFn   func(ctx context.Context, userID string) (store.AccountBalanceSummary, error)
	listFn      func(ctx context.Context) ([]store.AccountWithUser, error)
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Execer, id string, userID *string, ownerKind string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, userID, ownerKind)
}

func (s stubAccountStore) Reconcile(ctx context.Context) ([]store.AccountBalanceSummary, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx)
}

func (s stubAccountStore) Summary(ctx context.Context, userID string) (store.AccountBalanceSummary, error) {
	if s.summaryFn == nil {
		return store.AccountBalanceSummary{}, sql.ErrNoRows
	}
	return s.summaryFn(ctx, userID)
}

func (s stubAccountStore) ListAllWithUsers(ctx context.Context) ([]store.AccountWithUser, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

type stubInstitutionStore struct {
	listFn   func(ctx context.Context) ([]models.Institution, error)
	existsFn func(ctx context.Context, institutionID string) (bool, error)
	linkFn   func(ctx context.Context, tx store.Execer, userID, institutionID string) error
}

func (s stubInstitutionStore) List(ctx context.Context) ([]models.Institution, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s stubInstitutionStore) Exists(ctx context.Context, institutionID string) (bool, error) {
	if s.existsFn == nil {
		return true, nil
	}
	return s.existsFn(ctx, institutionID)
}

func (s stubInstitutionStore) Link(ctx context.Context, tx store.Execer, userID, institutionID string) error {
	if s.linkFn == nil {
		return nil
	}
	return s.linkFn(ctx, tx, userID, institutionID)
}

type stubTransactionStore struct {
	listAllFn func(ctx context.Context, limit, offset int) ([]models.Transaction, error)
}

func (s stubTransactionStore) ListAll(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx, limit, offset)
}

type stubAdminStore struct {
	isAdminFn     func(ctx context.Context, userID string) (bool, bool, error)
	hasRoleFn     func(ctx context.Context, userID, role string) (bool, error)
	createAdminFn func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
	grantRoleFn   func(ctx context.Context, tx store.Execer, userID, role string) error
	rolesFn       func(ctx context.Context, userID string) ([]string, error)
}

func (s stubAdminStore) GrantRole(ctx context.Context, tx store.Execer, userID, role string) error {
	if s.grantRoleFn == nil {
		return nil
	}
	return s.grantRoleFn(ctx, tx, userID, role)
}

func (s stubAdminStore) Roles(ctx context.Context, userID string) ([]string, error) {
	if s.rolesFn == nil {
		return []string{}, nil
	}
	return s.rolesFn(ctx, userID)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

func (s stubAdminStore) CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
	if s.createAdminFn == nil {
		return nil
	}
	return s.createAdminFn(ctx, tx, userID, isSuper, createdBy)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data map[string]any) error
	listFn func(ctx context.Context, entityType string, limit, offset int) ([]store.AuditEntry, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data map[string]any) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, entityType string, limit, offset int) ([]store.AuditEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, entityType, limit, offset)
}

type stubTransfers struct {
	transferFn  func(ctx context.Context, req services.TransferRequest) (services.Receipt, error)
	allowanceFn func(ctx context.Context, adminID, professorID string, amount int64, memo string) (services.Receipt, error)
	balanceFn   func(ctx context.Context, userID string) (models.Account, error)
	statementFn func(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	studentsFn  func(ctx context.Context, professorID string) ([]store.StudentSummary, error)
}

func (s stubTransfers) Transfer(ctx context.Context, req services.TransferRequest) (services.Receipt, error) {
	if s.transferFn == nil {
		return services.Receipt{}, nil
	}
	return s.transferFn(ctx, req)
}

func (s stubTransfers) GrantAllowance(ctx context.Context, adminID, professorID string, amount int64, memo string) (services.Receipt, error) {
	if s.allowanceFn == nil {
		return services.Receipt{}, nil
	}
	return s.allowanceFn(ctx, adminID, professorID, amount, memo)
}

func (s stubTransfers) Balance(ctx context.Context, userID string) (models.Account, error) {
	if s.balanceFn == nil {
		return models.Account{}, nil
	}
	return s.balanceFn(ctx, userID)
}

func (s stubTransfers) Statement(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	if s.statementFn == nil {
		return nil, nil
	}
	return s.statementFn(ctx, userID, limit, offset)
}

func (s stubTransfers) Students(ctx context.Context, professorID string) ([]store.StudentSummary, error) {
	if s.studentsFn == nil {
		return nil, nil
	}
	return s.studentsFn(ctx, professorID)
}

type stubCatalog struct {
	createFn        func(ctx context.Context, companyID string, in services.AdvantageInput) (models.Advantage, error)
	listAllFn       func(ctx context.Context) ([]models.Advantage, error)
	listActiveFn    func(ctx context.Context) ([]models.Advantage, error)
	listByCompanyFn func(ctx context.Context, companyID string) ([]models.Advantage, error)
	getFn           func(ctx context.Context, advantageID string) (models.Advantage, error)
	setActiveFn     func(ctx context.Context, companyID, advantageID string, active bool) (models.Advantage, error)
	updatePriceFn   func(ctx context.Context, companyID, advantageID string, price int64) (models.Advantage, error)
	deleteFn        func(ctx context.Context, companyID, advantageID string) error
}

func (s stubCatalog) Create(ctx context.Context, companyID string, in services.AdvantageInput) (models.Advantage, error) {
	if s.createFn == nil {
		return models.Advantage{}, nil
	}
	return s.createFn(ctx, companyID, in)
}

func (s stubCatalog) ListAll(ctx context.Context) ([]models.Advantage, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx)
}

func (s stubCatalog) ListActive(ctx context.Context) ([]models.Advantage, error) {
	if s.listActiveFn == nil {
		return nil, nil
	}
	return s.listActiveFn(ctx)
}

func (s stubCatalog) ListByCompany(ctx context.Context, companyID string) ([]models.Advantage, error) {
	if s.listByCompanyFn == nil {
		return nil, nil
	}
	return s.listByCompanyFn(ctx, companyID)
}

func (s stubCatalog) Get(ctx context.Context, advantageID string) (models.Advantage, error) {
	if s.getFn == nil {
		return models.Advantage{}, nil
	}
	return s.getFn(ctx, advantageID)
}

func (s stubCatalog) SetActive(ctx context.Context, companyID, advantageID string, active bool) (models.Advantage, error) {
	if s.setActiveFn == nil {
		return models.Advantage{}, nil
	}
	return s.setActiveFn(ctx, companyID, advantageID, active)
}

func (s stubCatalog) UpdatePrice(ctx context.Context, companyID, advantageID string, price int64) (models.Advantage, error) {
	if s.updatePriceFn == nil {
		return models.Advantage{}, nil
	}
	return s.updatePriceFn(ctx, companyID, advantageID, price)
}

func (s stubCatalog) Delete(ctx context.Context, companyID, advantageID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, companyID, advantageID)
}

type stubRedemptions struct {
	issueFn   func(ctx context.Context, studentID, advantageID string) (models.Voucher, error)
	consumeFn func(ctx context.Context, identifier string, by services.Principal) (models.Voucher, error)
	getFn     func(ctx context.Context, identifier string, by services.Principal) (models.Voucher, error)
	listFn    func(ctx context.Context, studentID string, consumed *bool) ([]models.Voucher, error)
}

func (s stubRedemptions) Issue(ctx context.Context, studentID, advantageID string) (models.Voucher, error) {
	if s.issueFn == nil {
		return models.Voucher{}, nil
	}
	return s.issueFn(ctx, studentID, advantageID)
}

func (s stubRedemptions) Consume(ctx context.Context, identifier string, by services.Principal) (models.Voucher, error) {
	if s.consumeFn == nil {
		return models.Voucher{}, nil
	}
	return s.consumeFn(ctx, identifier, by)
}

func (s stubRedemptions) Get(ctx context.Context, identifier string, by services.Principal) (models.Voucher, error) {
	if s.getFn == nil {
		return models.Voucher{}, nil
	}
	return s.getFn(ctx, identifier, by)
}

func (s stubRedemptions) List(ctx context.Context, studentID string, consumed *bool) ([]models.Voucher, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, studentID, consumed)
}

func (s stubRedemptions) URL(v models.Voucher) string {
	return "https://virtus.test/resgates/" + v.ID
}

type stubPayments struct {
	createFn  func(ctx context.Context, beneficiaryID string, amount int64) (services.PaymentLink, error)
	currentFn func(ctx context.Context, beneficiaryID string) (services.PaymentLink, error)
	revokeFn  func(ctx context.Context, beneficiaryID string) error
	applyFn   func(ctx context.Context, applierID, tokenOrLink string) (services.Receipt, error)
}

func (s stubPayments) CreateToken(ctx context.Context, beneficiaryID string, amount int64) (services.PaymentLink, error) {
	if s.createFn == nil {
		return services.PaymentLink{}, nil
	}
	return s.createFn(ctx, beneficiaryID, amount)
}

func (s stubPayments) Current(ctx context.Context, beneficiaryID string) (services.PaymentLink, error) {
	if s.currentFn == nil {
		return services.PaymentLink{}, nil
	}
	return s.currentFn(ctx, beneficiaryID)
}

func (s stubPayments) Revoke(ctx context.Context, beneficiaryID string) error {
	if s.revokeFn == nil {
		return nil
	}
	return s.revokeFn(ctx, beneficiaryID)
}

func (s stubPayments) ApplyToken(ctx context.Context, applierID, tokenOrLink string) (services.Receipt, error) {
	if s.applyFn == nil {
		return services.Receipt{}, nil
	}
	return s.applyFn(ctx, applierID, tokenOrLink)
}

type stubCodes struct {
	applyFn func(ctx context.Context, by services.Principal, input string) (services.CodeResult, error)
}

func (s stubCodes) Apply(ctx context.Context, by services.Principal, input string) (services.CodeResult, error) {
	if s.applyFn == nil {
		return services.CodeResult{}, nil
	}
	return s.applyFn(ctx, by, input)
}

type stubLimiter struct {
	mu       sync.Mutex
	exceeded bool
	hits     []string
}

func (s *stubLimiter) Exceeded(context.Context, string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exceeded, nil
}

func (s *stubLimiter) Hit(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, key)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		AdminEmail:     "reitoria@virtus.test",
	}
}

// newTestHandler fills every dependency left nil with an empty stub.
func newTestHandler(stores Stores, svc Services, limiter ratelimit.Limiter) (*Handler, *test.Hook) {
	if stores.Users == nil {
		stores.Users = stubUserStore{}
	}
	if stores.Accounts == nil {
		stores.Accounts = stubAccountStore{}
	}
	if stores.Institutions == nil {
		stores.Institutions = stubInstitutionStore{}
	}
	if stores.Transactions == nil {
		stores.Transactions = stubTransactionStore{}
	}
	if stores.Admin == nil {
		stores.Admin = stubAdminStore{}
	}
	if stores.Audit == nil {
		stores.Audit = stubAuditStore{}
	}
	if svc.Transfers == nil {
		svc.Transfers = stubTransfers{}
	}
	if svc.Catalog == nil {
		svc.Catalog = stubCatalog{}
	}
	if svc.Redemptions == nil {
		svc.Redemptions = stubRedemptions{}
	}
	if svc.Payments == nil {
		svc.Payments = stubPayments{}
	}
	if svc.Codes == nil {
		svc.Codes = stubCodes{}
	}
	log, hook := test.NewNullLogger()
	return New(fakeTxRunner{}, testConfig(), log, stores, svc, limiter, websocket.NewHub()), hook
}

// serve sends a request through the full router. An empty userID sends no
// token.
func serve(t *testing.T, h *Handler, method, path, body, userID string, kind models.UserKind) *httptest.ResponseRecorder {
	t.Helper()
	return serveWithHeader(t, h, method, path, body, userID, kind, "", "")
}

func serveWithHeader(t *testing.T, h *Handler, method, path, body, userID string, kind models.UserKind, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if header != "" {
		req.Header.Set(header, value)
	}
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, kind, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
}

func errorKind(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	decode(t, rr, &body)
	return body.Kind
}

func stringPtr(value string) *string {
	return &value
}
