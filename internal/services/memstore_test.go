package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"virtus/internal/models"
	"virtus/internal/store"
	"virtus/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func sqlErrNoRows() error {
	return sql.ErrNoRows
}

// memState is an in-memory stand-in for the database. memTxRunner
// serializes transactions and restores a snapshot when one fails, which is
// the behavior the real serializable transactions give the services.
type memState struct {
	users         map[string]models.User
	accounts      map[string]models.Account
	transactions  []store.TransactionInput
	entries       []store.LedgerEntryInput
	advantages    map[string]models.Advantage
	vouchers      map[string]models.Voucher
	tokens        map[string]models.PaymentToken
	notifications []store.NotificationInput
	audits        []string
	institutions  map[string][]string
}

func (s memState) clone() memState {
	out := memState{
		users:         map[string]models.User{},
		accounts:      map[string]models.Account{},
		transactions:  append([]store.TransactionInput(nil), s.transactions...),
		entries:       append([]store.LedgerEntryInput(nil), s.entries...),
		advantages:    map[string]models.Advantage{},
		vouchers:      map[string]models.Voucher{},
		tokens:        map[string]models.PaymentToken{},
		notifications: append([]store.NotificationInput(nil), s.notifications...),
		audits:        append([]string(nil), s.audits...),
		institutions:  map[string][]string{},
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.advantages {
		out.advantages[k] = v
	}
	for k, v := range s.vouchers {
		out.vouchers[k] = v
	}
	for k, v := range s.tokens {
		out.tokens[k] = v
	}
	for k, v := range s.institutions {
		out.institutions[k] = append([]string(nil), v...)
	}
	return out
}

type memDB struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state memState
	now   func() time.Time
}

func newMemDB(now func() time.Time) *memDB {
	db := &memDB{now: now, state: memState{}.clone()}
	db.state.accounts[store.SystemAccountID] = models.Account{ID: store.SystemAccountID, OwnerKind: "system", IsSystem: true}
	return db
}

func (db *memDB) addUser(id string, kind models.UserKind, balance int64, institutions ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	userID := id
	db.state.users[id] = models.User{ID: id, Email: id + "@virtus.test", Name: "Name " + id, Kind: kind}
	db.state.accounts["acc-"+id] = models.Account{ID: "acc-" + id, UserID: &userID, OwnerKind: string(kind), Balance: balance}
	db.state.institutions[id] = institutions
}

func (db *memDB) addAdvantage(id, companyID string, price int64, active bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.advantages[id] = models.Advantage{ID: id, CompanyID: companyID, Name: "Advantage " + id, Price: price, Active: active}
}

func (db *memDB) balance(userID string) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.accounts["acc-"+userID].Balance
}

func (db *memDB) snapshot() memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.clone()
}

type memTxRunner struct {
	db *memDB
}

func (r memTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()
	saved := r.db.snapshot()
	if err := fn(nil); err != nil {
		r.db.mu.Lock()
		r.db.state = saved
		r.db.mu.Unlock()
		return err
	}
	return nil
}

type memAccounts struct{ db *memDB }

func (m memAccounts) GetByUser(_ context.Context, userID string) (models.Account, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, account := range m.db.state.accounts {
		if account.UserID != nil && *account.UserID == userID {
			return account, nil
		}
	}
	return models.Account{}, sql.ErrNoRows
}

func (m memAccounts) GetForUpdate(_ context.Context, _ store.Getter, accountID string) (models.Account, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	account, ok := m.db.state.accounts[accountID]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return account, nil
}

func (m memAccounts) UpdateBalance(_ context.Context, _ store.Execer, accountID string, balance int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	account := m.db.state.accounts[accountID]
	account.Balance = balance
	m.db.state.accounts[accountID] = account
	return nil
}

func (m memAccounts) GetSystemAccount(context.Context) (string, error) {
	return store.SystemAccountID, nil
}

type memLedger struct{ db *memDB }

func (m memLedger) InsertEntries(_ context.Context, _ store.Execer, entries []store.LedgerEntryInput) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.state.entries = append(m.db.state.entries, entries...)
	return nil
}

type memTransactions struct{ db *memDB }

func (m memTransactions) Create(_ context.Context, _ store.Execer, input store.TransactionInput) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.state.transactions = append(m.db.state.transactions, input)
	return nil
}

// row resolves account owners the way the statement join does. Callers hold
// db.mu.
func (m memTransactions) row(input store.TransactionInput) models.Transaction {
	owner := func(accountID *string) *string {
		if accountID == nil {
			return nil
		}
		return m.db.state.accounts[*accountID].UserID
	}
	return models.Transaction{
		ID:              input.ID,
		Type:            input.Type,
		ActorID:         input.ActorID,
		FromAccountID:   input.FromAccountID,
		ToAccountID:     input.ToAccountID,
		FromUserID:      owner(input.FromAccountID),
		ToUserID:        owner(input.ToAccountID),
		Amount:          input.Amount,
		Memo:            input.Memo,
		ClientRequestID: input.ClientRequestID,
	}
}

func (m memTransactions) GetByClientRequestID(_ context.Context, actorID, clientRequestID string) (models.Transaction, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, input := range m.db.state.transactions {
		if input.ActorID == actorID && input.ClientRequestID != nil && *input.ClientRequestID == clientRequestID {
			return m.row(input), nil
		}
	}
	return models.Transaction{}, sql.ErrNoRows
}

func (m memTransactions) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var rows []models.Transaction
	for i := len(m.db.state.transactions) - 1; i >= 0; i-- {
		input := m.db.state.transactions[i]
		if *input.FromAccountID == accountID || *input.ToAccountID == accountID {
			rows = append(rows, m.row(input))
		}
	}
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type memAudit struct{ db *memDB }

func (m memAudit) Log(_ context.Context, _ store.Execer, _, action, entityType, _ string, _ map[string]any) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.state.audits = append(m.db.state.audits, entityType+"."+action)
	return nil
}

type memNotifications struct{ db *memDB }

func (m memNotifications) Enqueue(_ context.Context, _ store.Execer, input store.NotificationInput) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.state.notifications = append(m.db.state.notifications, input)
	return nil
}

type memUsers struct{ db *memDB }

func (m memUsers) GetByID(_ context.Context, userID string) (models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	user, ok := m.db.state.users[userID]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return user, nil
}

type memInstitutions struct{ db *memDB }

func (m memInstitutions) ShareInstitution(_ context.Context, _ store.Getter, first, second string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, a := range m.db.state.institutions[first] {
		for _, b := range m.db.state.institutions[second] {
			if a == b {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m memInstitutions) ListStudentsFor(ctx context.Context, professorID string) ([]store.StudentSummary, error) {
	var out []store.StudentSummary
	for _, user := range m.db.snapshot().users {
		if user.Kind != models.KindStudent {
			continue
		}
		shared, _ := m.ShareInstitution(ctx, nil, professorID, user.ID)
		if shared {
			out = append(out, store.StudentSummary{ID: user.ID, Name: user.Name, Email: user.Email, Balance: m.db.balance(user.ID)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memAdvantages struct{ db *memDB }

func (m memAdvantages) Create(_ context.Context, _ store.Execer, adv models.Advantage) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.state.advantages[adv.ID] = adv
	return nil
}

func (m memAdvantages) GetByID(_ context.Context, advantageID string) (models.Advantage, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	adv, ok := m.db.state.advantages[advantageID]
	if !ok {
		return models.Advantage{}, sql.ErrNoRows
	}
	return adv, nil
}

func (m memAdvantages) GetForShare(ctx context.Context, _ store.Getter, advantageID string) (models.Advantage, error) {
	return m.GetByID(ctx, advantageID)
}

func (m memAdvantages) List(_ context.Context, filter store.AdvantageFilter) ([]models.Advantage, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Advantage
	for _, adv := range m.db.state.advantages {
		if filter.ActiveOnly && !adv.Active {
			continue
		}
		if filter.CompanyID != "" && adv.CompanyID != filter.CompanyID {
			continue
		}
		out = append(out, adv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memAdvantages) SetActive(_ context.Context, _ store.Execer, advantageID, companyID string, active bool) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	adv, ok := m.db.state.advantages[advantageID]
	if !ok || adv.CompanyID != companyID {
		return 0, nil
	}
	adv.Active = active
	m.db.state.advantages[advantageID] = adv
	return 1, nil
}

func (m memAdvantages) UpdatePrice(_ context.Context, _ store.Execer, advantageID, companyID string, price int64) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	adv, ok := m.db.state.advantages[advantageID]
	if !ok || adv.CompanyID != companyID {
		return 0, nil
	}
	for _, v := range m.db.state.vouchers {
		if v.AdvantageID != nil && *v.AdvantageID == advantageID {
			return 0, nil
		}
	}
	adv.Price = price
	m.db.state.advantages[advantageID] = adv
	return 1, nil
}

func (m memAdvantages) Delete(_ context.Context, _ store.Execer, advantageID, companyID string) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	adv, ok := m.db.state.advantages[advantageID]
	if !ok || adv.CompanyID != companyID {
		return 0, nil
	}
	delete(m.db.state.advantages, advantageID)
	for id, v := range m.db.state.vouchers {
		if v.AdvantageID != nil && *v.AdvantageID == advantageID {
			v.AdvantageID = nil
			m.db.state.vouchers[id] = v
		}
	}
	return 1, nil
}

type memVouchers struct{ db *memDB }

func (m memVouchers) Create(_ context.Context, _ store.Execer, v models.Voucher) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.state.vouchers[v.ID] = v
	return nil
}

func (m memVouchers) find(identifier string) (models.Voucher, bool) {
	for _, v := range m.db.state.vouchers {
		if v.ID == identifier || v.Code == identifier {
			return v, true
		}
	}
	return models.Voucher{}, false
}

func (m memVouchers) Get(ctx context.Context, identifier string) (models.Voucher, error) {
	return m.GetTx(ctx, nil, identifier)
}

func (m memVouchers) GetTx(_ context.Context, _ store.Getter, identifier string) (models.Voucher, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	v, ok := m.find(identifier)
	if !ok {
		return models.Voucher{}, sql.ErrNoRows
	}
	return v, nil
}

func (m memVouchers) ListByStudent(_ context.Context, studentID string, consumed *bool) ([]models.Voucher, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Voucher
	for _, v := range m.db.state.vouchers {
		if v.StudentID != studentID {
			continue
		}
		if consumed != nil && v.Consumed != *consumed {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memVouchers) Consume(_ context.Context, _ store.Getter, identifier, consumedBy string) (models.Voucher, bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	v, ok := m.find(identifier)
	if !ok || v.Consumed {
		return models.Voucher{}, false, nil
	}
	now := m.db.now()
	v.Consumed = true
	v.ConsumedAt = &now
	v.ConsumedBy = &consumedBy
	m.db.state.vouchers[v.ID] = v
	return v, true, nil
}

type memTokens struct{ db *memDB }

func (m memTokens) Create(_ context.Context, _ store.Execer, t models.PaymentToken) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.state.tokens[t.Token] = t
	return nil
}

func (m memTokens) RevokeActive(_ context.Context, _ store.Execer, beneficiaryID string) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	now := m.db.now()
	for key, t := range m.db.state.tokens {
		if t.BeneficiaryID == beneficiaryID && !t.Applied && t.RevokedAt == nil {
			t.RevokedAt = &now
			m.db.state.tokens[key] = t
			n++
		}
	}
	return n, nil
}

func (m memTokens) Current(_ context.Context, beneficiaryID string) (models.PaymentToken, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, t := range m.db.state.tokens {
		if t.BeneficiaryID == beneficiaryID && !t.Applied && t.RevokedAt == nil {
			return t, nil
		}
	}
	return models.PaymentToken{}, sql.ErrNoRows
}

func (m memTokens) GetByToken(_ context.Context, _ store.Getter, token string) (models.PaymentToken, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.state.tokens[token]
	if !ok {
		return models.PaymentToken{}, sql.ErrNoRows
	}
	return t, nil
}

func (m memTokens) Claim(_ context.Context, _ store.Getter, token, applierID string) (models.PaymentToken, bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.state.tokens[token]
	now := m.db.now()
	if !ok || t.Applied || t.RevokedAt != nil || t.Expired(now) {
		return models.PaymentToken{}, false, nil
	}
	t.Applied = true
	t.AppliedAt = &now
	t.AppliedBy = &applierID
	m.db.state.tokens[token] = t
	return t, true, nil
}

func (m memTokens) AttachTransaction(_ context.Context, _ store.Execer, tokenID, transactionID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for key, t := range m.db.state.tokens {
		if t.ID == tokenID {
			t.TransactionID = &transactionID
			m.db.state.tokens[key] = t
		}
	}
	return nil
}

func (m memTokens) DeleteExpired(context.Context) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	now := m.db.now()
	for key, t := range m.db.state.tokens {
		if !t.Applied && t.Expired(now) {
			delete(m.db.state.tokens, key)
			n++
		}
	}
	return n, nil
}

type fixture struct {
	db          *memDB
	hub         *stubHub
	hubMu       sync.Mutex
	clock       time.Time
	engine      *Engine
	transfers   *TransferService
	redemptions *RedemptionService
	payments    *PaymentService
	catalog     *CatalogService
	codes       *CodeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{hub: &stubHub{}, clock: time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }
	f.db = newMemDB(now)
	logger, _ := test.NewNullLogger()
	f.engine = NewEngine(memTxRunner{db: f.db}, memAccounts{f.db}, memLedger{f.db}, memTransactions{f.db},
		memAudit{f.db}, memNotifications{f.db}, lockedHub{f}, logger)
	f.engine.now = now
	users := memUsers{f.db}
	f.transfers = NewTransferService(f.engine, users, memInstitutions{f.db})
	f.redemptions = NewRedemptionService(f.engine, users, memAdvantages{f.db}, memVouchers{f.db}, "https://virtus.test")
	f.payments = NewPaymentService(f.engine, users, memTokens{f.db}, "https://virtus.test", 5*time.Minute)
	f.catalog = NewCatalogService(f.engine, users, memAdvantages{f.db})
	f.codes = NewCodeService(f.redemptions, f.payments)
	return f
}

// lockedHub makes the recording hub safe for concurrent broadcasts.
type lockedHub struct{ f *fixture }

func (h lockedHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	h.f.hubMu.Lock()
	defer h.f.hubMu.Unlock()
	h.f.hub.BroadcastBalance(userID, update)
}

func requireTotalConserved(t *testing.T, db *memDB, want int64) {
	t.Helper()
	var total int64
	for _, account := range db.snapshot().accounts {
		total += account.Balance
	}
	require.Equal(t, want, total)
}
