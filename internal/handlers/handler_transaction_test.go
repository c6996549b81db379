package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payledger/payledger/internal/apperrors"
	"github.com/payledger/payledger/internal/core/domain"
	"github.com/payledger/payledger/internal/core/services"
	"github.com/payledger/payledger/internal/dto"
	"github.com/payledger/payledger/internal/handlers"
	"github.com/payledger/payledger/internal/middleware"
	"github.com/payledger/payledger/internal/platform/config"
	"github.com/payledger/payledger/internal/utils"
	"github.com/payledger/payledger/internal/utils/pagination"
)

const testJWTSecret = "test-secret-key-for-handler-tests"

// memStore is an in-memory stand-in for both repositories, enough to drive
// the HTTP layer end to end without Postgres.
type memStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	accounts map[string]domain.Account
	txns     map[string]domain.Transaction
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]domain.User),
		accounts: make(map[string]domain.Account),
		txns:     make(map[string]domain.Transaction),
	}
}

func (m *memStore) SaveUser(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperrors.ErrDuplicate
		}
	}
	m.users[user.UserID] = user
	return nil
}

func (m *memStore) FindUserByID(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memStore) UpdateProfileData(_ context.Context, userID string, profileData json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.ProfileData = profileData
	m.users[userID] = u
	return nil
}

func (m *memStore) UpdateTokenVersion(_ context.Context, userID string, tokenVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.TokenVersion = tokenVersion
	m.users[userID] = u
	return nil
}

func (m *memStore) CreateTransaction(_ context.Context, txn domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[txn.TxnID]; ok {
		return apperrors.ErrDuplicate
	}
	m.txns[txn.TxnID] = txn
	return nil
}

func (m *memStore) FindTransactionByID(_ context.Context, txnID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[txnID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &t, nil
}

func (m *memStore) FindAccountByID(_ context.Context, accountID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) FindAccountByUserID(_ context.Context, userID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.UserID == userID {
			out := a
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memStore) CreateAccount(_ context.Context, account domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.AccountID] = account
	return nil
}

func (m *memStore) ApplySettlement(_ context.Context, txnID string, newStatus domain.TransactionStatus, accountID string, delta decimal.Decimal, expectedBalance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[txnID]
	if !ok || txn.Status != domain.StatusPending {
		return apperrors.ErrConflict
	}
	if !delta.IsZero() {
		acc, ok := m.accounts[accountID]
		if !ok || !acc.Balance.Equal(expectedBalance) {
			return apperrors.ErrConflict
		}
		acc.Balance = acc.Balance.Add(delta)
		m.accounts[accountID] = acc
	}
	txn.Status = newStatus
	m.txns[txnID] = txn
	return nil
}

func (m *memStore) ListTransactionsByAccountID(_ context.Context, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.Transaction, 0, len(m.txns))
	for _, t := range m.txns {
		if t.AccountID == accountID {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].TxnID > all[j].TxnID
	})

	if nextToken != nil {
		cursorTime, cursorID, err := pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, apperrors.ErrValidation
		}
		filtered := all[:0]
		for _, t := range all {
			if t.CreatedAt.Before(cursorTime) || (t.CreatedAt.Equal(cursorTime) && t.TxnID < cursorID) {
				filtered = append(filtered, t)
			}
		}
		all = filtered
	}

	if len(all) <= limit {
		return all, nil, nil
	}
	page := all[:limit]
	last := page[len(page)-1]
	token := pagination.EncodeToken(last.CreatedAt, last.TxnID)
	return page, &token, nil
}

type nopPublisher struct {
	mu        sync.Mutex
	published []domain.Transaction
	err       error
}

func (p *nopPublisher) PublishTransaction(_ context.Context, txn domain.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, txn)
	return nil
}

type testEnv struct {
	router *gin.Engine
	store  *memStore
	pub    *nopPublisher
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	pub := &nopPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		JWTSecret:         testJWTSecret,
		JWTExpiryDuration: time.Hour,
		JWTIssuer:         "payledger-test",
		DefaultCurrency:   "INR",
	}

	userSvc := services.NewUserService(store, store, cfg.DefaultCurrency)
	accountSvc := services.NewAccountService(store)
	txnSvc := services.NewTransactionService(store, pub, logger)

	router := gin.New()
	router.Use(middleware.StructuredLoggingMiddleware(logger))
	handlers.RegisterRoutes(router, cfg, handlers.Services{
		User:        userSvc,
		Account:     accountSvc,
		Transaction: txnSvc,
	})

	return &testEnv{router: router, store: store, pub: pub, cfg: cfg}
}

// seedUser creates a user with an account and returns a valid bearer token.
func (e *testEnv) seedUser(t *testing.T, email, balance string) (userID, accountID, token string) {
	t.Helper()
	hash, err := utils.HashPassword("a-long-enough-password")
	require.NoError(t, err)

	userID = "user-" + email
	user := domain.User{
		UserID:       userID,
		Email:        email,
		PasswordHash: hash,
		TokenVersion: 1,
		KYCStatus:    "pending",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.store.SaveUser(context.Background(), user))

	accountID = "acc-" + email
	require.NoError(t, e.store.CreateAccount(context.Background(), domain.Account{
		AccountID:    accountID,
		UserID:       userID,
		CurrencyCode: "INR",
		Balance:      decimal.RequireFromString(balance),
		UpdatedAt:    time.Now().UTC(),
	}))

	token, err = utils.GenerateJWT(userID, 1, e.cfg.JWTSecret, e.cfg.JWTExpiryDuration, e.cfg.JWTIssuer)
	require.NoError(t, err)
	return userID, accountID, token
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreateTransactionReturnsPending(t *testing.T) {
	env := newTestEnv(t)
	_, accountID, token := env.seedUser(t, "alice@example.com", "100.00")

	w := env.do(http.MethodPost, "/api/v1/transactions", token, gin.H{
		"amount":   "25.50",
		"txn_type": "purchase",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp dto.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, accountID, resp.AccountID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "purchase", resp.TxnType)
	assert.True(t, decimal.RequireFromString("25.50").Equal(resp.Amount))

	// The event went to the broker keyed by this transaction.
	require.Len(t, env.pub.published, 1)
	assert.Equal(t, resp.TxnID, env.pub.published[0].TxnID)

	// Balance is untouched until settlement.
	bw := env.do(http.MethodGet, "/api/v1/accounts/balance", token, nil)
	require.Equal(t, http.StatusOK, bw.Code)
	var bal dto.BalanceResponse
	require.NoError(t, json.Unmarshal(bw.Body.Bytes(), &bal))
	assert.True(t, decimal.RequireFromString("100.00").Equal(bal.Balance))
}

func TestCreateTransactionRejectsBadType(t *testing.T) {
	env := newTestEnv(t)
	_, _, token := env.seedUser(t, "alice@example.com", "100.00")

	w := env.do(http.MethodPost, "/api/v1/transactions", token, gin.H{
		"amount":   "10.00",
		"txn_type": "refund",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.pub.published)
}

func TestCreateTransactionRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/transactions", "", gin.H{
		"amount":   "10.00",
		"txn_type": "credit",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetTransactionHidesOtherUsersRows(t *testing.T) {
	env := newTestEnv(t)
	_, _, aliceToken := env.seedUser(t, "alice@example.com", "100.00")
	_, _, bobToken := env.seedUser(t, "bob@example.com", "50.00")

	w := env.do(http.MethodPost, "/api/v1/transactions", aliceToken, gin.H{
		"amount":   "10.00",
		"txn_type": "credit",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	var created dto.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	owner := env.do(http.MethodGet, "/api/v1/transactions/"+created.TxnID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, owner.Code)

	stranger := env.do(http.MethodGet, "/api/v1/transactions/"+created.TxnID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, stranger.Code)
}

func TestListTransactionsPaginates(t *testing.T) {
	env := newTestEnv(t)
	_, accountID, token := env.seedUser(t, "alice@example.com", "0.00")

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, env.store.CreateTransaction(context.Background(), domain.Transaction{
			TxnID:        "tx-" + string(rune('a'+i)),
			AccountID:    accountID,
			Amount:       decimal.New(int64(i+1), 0),
			CurrencyCode: "INR",
			TxnType:      domain.Credit,
			Status:       domain.StatusSuccess,
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}))
	}

	first := env.do(http.MethodGet, "/api/v1/transactions?limit=2", token, nil)
	require.Equal(t, http.StatusOK, first.Code)
	var page1 dto.ListTransactionsResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &page1))
	require.Len(t, page1.Transactions, 2)
	require.NotNil(t, page1.NextToken)
	assert.Equal(t, "tx-e", page1.Transactions[0].TxnID)
	assert.Equal(t, "tx-d", page1.Transactions[1].TxnID)

	second := env.do(http.MethodGet, "/api/v1/transactions?limit=2&next_token="+url.QueryEscape(*page1.NextToken), token, nil)
	require.Equal(t, http.StatusOK, second.Code)
	var page2 dto.ListTransactionsResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &page2))
	require.Len(t, page2.Transactions, 2)
	assert.Equal(t, "tx-c", page2.Transactions[0].TxnID)
	assert.Equal(t, "tx-b", page2.Transactions[1].TxnID)
}

func TestLoginRotatesTokenVersion(t *testing.T) {
	env := newTestEnv(t)
	_, _, oldToken := env.seedUser(t, "alice@example.com", "0.00")

	// Old token works before the rotation.
	before := env.do(http.MethodGet, "/api/v1/auth/me", oldToken, nil)
	require.Equal(t, http.StatusOK, before.Code)

	login := env.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "a-long-enough-password",
	})
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())
	var tok dto.TokenResponse
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &tok))

	// The pre-login token is invalidated, the fresh one works.
	after := env.do(http.MethodGet, "/api/v1/auth/me", oldToken, nil)
	assert.Equal(t, http.StatusUnauthorized, after.Code)

	fresh := env.do(http.MethodGet, "/api/v1/auth/me", tok.Token, nil)
	assert.Equal(t, http.StatusOK, fresh.Code)
}

func TestRegisterCreatesUserAndRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)

	body := gin.H{
		"email":      "carol@example.com",
		"password":   "a-long-enough-password",
		"first_name": "Carol",
		"last_name":  "Danvers",
	}
	w := env.do(http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "carol@example.com", resp.Email)
	assert.Equal(t, "Carol", resp.FirstName)
	assert.Equal(t, "pending", resp.KYCStatus)

	// The settlement account exists with zero balance.
	account, err := env.store.FindAccountByUserID(context.Background(), resp.UserID)
	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero())
	assert.Equal(t, "INR", account.CurrencyCode)

	dup := env.do(http.MethodPost, "/api/v1/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, dup.Code)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    "dave@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProfileMergesFields(t *testing.T) {
	env := newTestEnv(t)
	_, _, token := env.seedUser(t, "alice@example.com", "0.00")

	w := env.do(http.MethodPut, "/api/v1/profile", token, gin.H{"first_name": "Alice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodPut, "/api/v1/profile", token, gin.H{"last_name": "Liddell"})
	require.Equal(t, http.StatusOK, w.Code)

	get := env.do(http.MethodGet, "/api/v1/profile", token, nil)
	require.Equal(t, http.StatusOK, get.Code)
	var resp dto.UserResponse
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &resp))
	assert.Equal(t, "Alice", resp.FirstName)
	assert.Equal(t, "Liddell", resp.LastName)
}
