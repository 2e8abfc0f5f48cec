package checkout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/billvault/checkout-service/internal/domain"
	publisher "github.com/billvault/checkout-service/internal/infrastructure/kafka"
	"github.com/billvault/checkout-service/internal/infrastructure/metrics"
)

// Prometheus collectors register globally, so the whole test binary shares
// one instance.
var testMetrics = metrics.NewCheckoutMetrics()

// memRepo is an in-memory TransactionRepository with the same conditional
// transition and lease semantics as the postgres implementation.
type memRepo struct {
	mu     sync.Mutex
	txs    map[string]*domain.Transaction
	leases map[string]time.Time
	events []*domain.TransactionEvent
}

func newMemRepo() *memRepo {
	return &memRepo{
		txs:    make(map[string]*domain.Transaction),
		leases: make(map[string]time.Time),
	}
}

func cloneTx(tx *domain.Transaction) *domain.Transaction {
	out := *tx
	if tx.Payload != nil {
		out.Payload = make(map[string]string, len(tx.Payload))
		for k, v := range tx.Payload {
			out.Payload[k] = v
		}
	}
	if tx.FailureReason != nil {
		reason := *tx.FailureReason
		out.FailureReason = &reason
	}
	if tx.TerminalAt != nil {
		terminalAt := *tx.TerminalAt
		out.TerminalAt = &terminalAt
	}
	return &out
}

func patchTx(tx *domain.Transaction, patch domain.TransactionPatch) {
	if patch.GatewayReference != nil {
		tx.GatewayReference = *patch.GatewayReference
	}
	if patch.ProviderRequestID != nil {
		tx.ProviderRequestID = *patch.ProviderRequestID
	}
	if patch.DeliveredArtifact != nil {
		tx.DeliveredArtifact = *patch.DeliveredArtifact
	}
	if patch.FailureReason != nil {
		tx.FailureReason = patch.FailureReason
	}
	if patch.Attempts != nil {
		tx.Attempts = *patch.Attempts
	}
	if patch.NextPollAt != nil {
		tx.NextPollAt = *patch.NextPollAt
	}
}

func (r *memRepo) CreateTransaction(tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.ClientToken != "" {
		for _, existing := range r.txs {
			if existing.UserID == tx.UserID && existing.ClientToken == tx.ClientToken {
				return errors.New("duplicate key value violates unique constraint \"ux_user_client_token\"")
			}
		}
	}
	r.txs[tx.ID] = cloneTx(tx)
	return nil
}

func (r *memRepo) GetTransactionByID(id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTx(tx), nil
}

func (r *memRepo) GetTransactionByClientToken(userID, clientToken string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.UserID == userID && tx.ClientToken == clientToken {
			return cloneTx(tx), nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *memRepo) TransitionState(id string, from, to domain.TransactionState, patch domain.TransactionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if tx.State != from {
		return domain.ErrStateConflict
	}
	tx.State = to
	tx.UpdatedAt = time.Now()
	if to.Terminal() {
		now := time.Now()
		tx.TerminalAt = &now
		delete(r.leases, id)
	}
	patchTx(tx, patch)
	return nil
}

func (r *memRepo) UpdateFields(id string, patch domain.TransactionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	patchTx(tx, patch)
	tx.UpdatedAt = time.Now()
	return nil
}

func (r *memRepo) ListTransactions(filter domain.TransactionFilter, page, limit int64) ([]*domain.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Transaction
	for _, tx := range r.txs {
		if filter.UserID != "" && tx.UserID != filter.UserID {
			continue
		}
		if filter.State != "" && tx.State != filter.State {
			continue
		}
		matched = append(matched, cloneTx(tx))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	offset := (page - 1) * limit
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

var pollableStates = map[domain.TransactionState]bool{
	domain.StateCreated:         true,
	domain.StateFundingPending:  true,
	domain.StateFulfilling:      true,
	domain.StateProviderPending: true,
}

func (r *memRepo) ClaimPollable(now time.Time, lease time.Duration, limit int) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*domain.Transaction
	for id, tx := range r.txs {
		if len(claimed) >= limit {
			break
		}
		if !pollableStates[tx.State] {
			continue
		}
		if tx.NextPollAt.After(now) {
			continue
		}
		if leaseUntil, held := r.leases[id]; held && leaseUntil.After(now) {
			continue
		}
		r.leases[id] = now.Add(lease)
		claimed = append(claimed, cloneTx(tx))
	}
	return claimed, nil
}

func (r *memRepo) AppendEvent(event *domain.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *event
	r.events = append(r.events, &copied)
	return nil
}

func (r *memRepo) GetEventsByTransactionID(transactionID string) ([]*domain.TransactionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TransactionEvent
	for _, event := range r.events {
		if event.TransactionID == transactionID {
			copied := *event
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fakeLedger keeps balances in memory and honors idempotency keys the way
// the wallet service does.
type fakeLedger struct {
	mu          sync.Mutex
	balances    map[string]int64
	postings    map[string]int64
	debitCalls  int
	creditCalls int
	debitErr    error
	creditErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[string]int64),
		postings: make(map[string]int64),
	}
}

func (l *fakeLedger) Debit(_ context.Context, userID string, amountMinorUnits int64, idempotencyKey string) (*domain.LedgerResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debitCalls++
	if l.debitErr != nil {
		return nil, l.debitErr
	}
	if _, done := l.postings[idempotencyKey]; done {
		return &domain.LedgerResult{NewBalanceMinorUnits: l.balances[userID]}, nil
	}
	if l.balances[userID] < amountMinorUnits {
		return nil, domain.ErrInsufficientFunds
	}
	l.balances[userID] -= amountMinorUnits
	l.postings[idempotencyKey] = amountMinorUnits
	return &domain.LedgerResult{NewBalanceMinorUnits: l.balances[userID]}, nil
}

func (l *fakeLedger) Credit(_ context.Context, userID string, amountMinorUnits int64, idempotencyKey string) (*domain.LedgerResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.creditCalls++
	if l.creditErr != nil {
		return nil, l.creditErr
	}
	if _, done := l.postings[idempotencyKey]; done {
		return &domain.LedgerResult{NewBalanceMinorUnits: l.balances[userID]}, nil
	}
	l.balances[userID] += amountMinorUnits
	l.postings[idempotencyKey] = amountMinorUnits
	return &domain.LedgerResult{NewBalanceMinorUnits: l.balances[userID]}, nil
}

func (l *fakeLedger) posted(idempotencyKey string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	amount, ok := l.postings[idempotencyKey]
	return amount, ok
}

func (l *fakeLedger) balance(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

type fakeGateway struct {
	mu           sync.Mutex
	initErr      error
	initRef      string
	initRedirect string
	initCalls    int
	verifyErr    error
	verifyQueue  []domain.ChargeStatus
	verifyCalls  int
}

func (g *fakeGateway) Initialize(_ context.Context, _ string, _ int64) (*domain.ChargeInit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &domain.ChargeInit{GatewayReference: g.initRef, RedirectURL: g.initRedirect}, nil
}

func (g *fakeGateway) Verify(_ context.Context, _ string) (domain.ChargeStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return "", g.verifyErr
	}
	if len(g.verifyQueue) == 0 {
		return domain.ChargePending, nil
	}
	status := g.verifyQueue[0]
	g.verifyQueue = g.verifyQueue[1:]
	return status, nil
}

type fakeProvider struct {
	mu          sync.Mutex
	submitErr   error
	submitQueue []*domain.FulfillmentResult
	submitKeys  []string
	queryErr    error
	queryQueue  []*domain.FulfillmentResult
	queryCalls  int
}

func (p *fakeProvider) Submit(_ context.Context, idempotencyKey string, _ domain.ServiceKind, _ map[string]string, _ int64) (*domain.FulfillmentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitKeys = append(p.submitKeys, idempotencyKey)
	if p.submitErr != nil {
		return nil, p.submitErr
	}
	if len(p.submitQueue) == 0 {
		return &domain.FulfillmentResult{Status: domain.FulfillmentPending, ProviderRequestID: "prov-req-default"}, nil
	}
	result := p.submitQueue[0]
	p.submitQueue = p.submitQueue[1:]
	return result, nil
}

func (p *fakeProvider) QueryStatus(_ context.Context, _ string) (*domain.FulfillmentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryCalls++
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if len(p.queryQueue) == 0 {
		return &domain.FulfillmentResult{Status: domain.FulfillmentPending}, nil
	}
	result := p.queryQueue[0]
	p.queryQueue = p.queryQueue[1:]
	return result, nil
}

func (p *fakeProvider) submitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.submitKeys)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publisher.TransactionEvent
	alerts []publisher.ReconciliationAlert
}

func (p *fakePublisher) PublishTransaction(event publisher.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) PublishReconciliationAlert(alert publisher.ReconciliationAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert)
	return nil
}

func (p *fakePublisher) alertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

type testEnv struct {
	repo     *memRepo
	ledger   *fakeLedger
	gateway  *fakeGateway
	provider *fakeProvider
	pub      *fakePublisher
	uc       *DefaultCheckoutUsecase
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:     newMemRepo(),
		ledger:   newFakeLedger(),
		gateway:  &fakeGateway{initRef: "chg_test_1", initRedirect: "https://gateway.test/pay/chg_test_1"},
		provider: &fakeProvider{},
		pub:      &fakePublisher{},
	}

	policies := domain.NewPolicyRegistry(
		domain.ServicePolicy{
			Kind:                domain.ServiceAirtime,
			MinAmountMinorUnits: 100,
			MaxAmountMinorUnits: 5_000_000,
			RequiredFields:      []string{"msisdn"},
		},
		domain.ServicePolicy{
			Kind:                domain.ServiceTransfer,
			MinAmountMinorUnits: 100,
			WalletOnly:          true,
			RequiredFields:      []string{"account_number"},
		},
	)

	env.uc = NewDefaultCheckoutUsecase(
		env.repo, env.ledger, env.gateway, env.provider, policies, env.pub, testMetrics,
		ReconcilerSettings{
			MinPollInterval: 0,
			MaxPollInterval: time.Minute,
			MaxAttempts:     3,
			StaleFundingAge: time.Hour,
		},
	)
	return env
}
