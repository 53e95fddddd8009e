package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mmeshcher/reward-system/internal/ledger"
	"github.com/mmeshcher/reward-system/internal/model"
	"github.com/mmeshcher/reward-system/internal/store"
)

const testBaseURL = "http://localhost:3001/api/v1/reward"

// fakeGateway имитирует реестр токенов: учитывает выпуск и гашение,
// баланс адреса растёт только при гашении.
type fakeGateway struct {
	mu        sync.Mutex
	nextToken int
	tokens    map[string]int64  // token id -> value
	owners    map[string]string // token id -> owner address
	balances  map[string]int64

	mintErr   error
	redeemErr error

	redeemCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		tokens:   make(map[string]int64),
		owners:   make(map[string]string),
		balances: make(map[string]int64),
	}
}

func (g *fakeGateway) Mint(ctx context.Context, toAddress string, value int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.mintErr != nil {
		return "", g.mintErr
	}

	g.nextToken++
	tokenID := fmt.Sprintf("token-%d", g.nextToken)
	g.tokens[tokenID] = value
	g.owners[tokenID] = toAddress

	return tokenID, nil
}

func (g *fakeGateway) Redeem(ctx context.Context, ownerAddress, tokenID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.redeemCalls++

	if g.redeemErr != nil {
		return g.redeemErr
	}

	value, ok := g.tokens[tokenID]
	if !ok {
		return fmt.Errorf("%w: unknown token %s", ledger.ErrRedeem, tokenID)
	}
	if g.owners[tokenID] != ownerAddress {
		return fmt.Errorf("%w: wrong owner", ledger.ErrRedeem)
	}

	delete(g.tokens, tokenID)
	delete(g.owners, tokenID)
	g.balances[ownerAddress] += value

	return nil
}

func (g *fakeGateway) Balance(ctx context.Context, address string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[address], nil
}

func newTestService(gw ledger.Gateway) (*Service, *store.MemoryRepository[model.User], *store.MemoryRepository[model.Reward]) {
	users := store.NewMemoryRepository[model.User]()
	rewards := store.NewMemoryRepository[model.Reward]()
	return NewService(users, rewards, gw, testBaseURL), users, rewards
}

func TestRegisterUser(t *testing.T) {
	svc, users, _ := newTestService(newFakeGateway())
	ctx := context.Background()

	if err := svc.RegisterUser(ctx, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	stored, err := users.Read(ctx, "u1")
	if err != nil {
		t.Fatalf("read stored user: %v", err)
	}
	if stored == nil {
		t.Fatalf("user not persisted")
	}
	if len(stored.Key) == 0 {
		t.Fatalf("user has no key material")
	}

	firstKey := stored.Key.Hex()

	// Повторная регистрация не перезаписывает запись.
	err = svc.RegisterUser(ctx, "u1")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	stored, err = users.Read(ctx, "u1")
	if err != nil {
		t.Fatalf("read stored user: %v", err)
	}
	if stored.Key.Hex() != firstKey {
		t.Fatalf("stored key changed after duplicate registration")
	}
}

func TestMintReward(t *testing.T) {
	gw := newFakeGateway()
	svc, _, rewards := newTestService(gw)
	ctx := context.Background()

	if err := svc.RegisterUser(ctx, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	reward, err := svc.MintReward(ctx, "u1", 1337)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if reward.Value != 1337 {
		t.Fatalf("value = %d, want 1337", reward.Value)
	}
	if reward.URL != testBaseURL+"/"+reward.ID {
		t.Fatalf("url = %q, want %q", reward.URL, testBaseURL+"/"+reward.ID)
	}
	if reward.TokenID == "" {
		t.Fatalf("token id not assigned")
	}
	if reward.Redeemed {
		t.Fatalf("new reward must not be redeemed")
	}
	if reward.OwnerID != "u1" {
		t.Fatalf("owner = %q, want u1", reward.OwnerID)
	}

	stored, err := rewards.Read(ctx, reward.ID)
	if err != nil {
		t.Fatalf("read stored reward: %v", err)
	}
	if stored == nil {
		t.Fatalf("reward not persisted")
	}
	if stored.TokenID != reward.TokenID || stored.Value != reward.Value {
		t.Fatalf("stored reward differs: %+v", stored)
	}
}

func TestMintReward_NegativeValue(t *testing.T) {
	svc, _, _ := newTestService(newFakeGateway())

	_, err := svc.MintReward(context.Background(), "u1", -1)
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestMintReward_OwnerNotFound(t *testing.T) {
	svc, _, _ := newTestService(newFakeGateway())

	_, err := svc.MintReward(context.Background(), "ghost", 10)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMintReward_GatewayFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.mintErr = fmt.Errorf("%w: connection refused", ledger.ErrMint)

	svc, _, _ := newTestService(gw)
	ctx := context.Background()

	if err := svc.RegisterUser(ctx, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.MintReward(ctx, "u1", 10)
	if !errors.Is(err, ledger.ErrMint) {
		t.Fatalf("expected ledger.ErrMint, got %v", err)
	}
}

// failingUserRepo возвращает ошибку чтения для проверки того, что сбой
// хранилища не трактуется как отсутствие записи.
type failingUserRepo struct {
	readErr error
}

func (r *failingUserRepo) Create(ctx context.Context, key string, value model.User) error {
	return nil
}

func (r *failingUserRepo) Read(ctx context.Context, key string) (*model.User, error) {
	return nil, r.readErr
}

func (r *failingUserRepo) Update(ctx context.Context, key string, value model.User) error {
	return nil
}

func (r *failingUserRepo) Delete(ctx context.Context, key string) (*model.User, error) {
	return nil, r.readErr
}

func TestMintReward_ReadFailureIsNotNotFound(t *testing.T) {
	readErr := errors.New("connection reset by peer")
	users := &failingUserRepo{readErr: readErr}
	rewards := store.NewMemoryRepository[model.Reward]()

	svc := NewService(users, rewards, newFakeGateway(), testBaseURL)

	_, err := svc.MintReward(context.Background(), "u1", 10)
	if errors.Is(err, ErrUserNotFound) {
		t.Fatalf("read failure reported as not found: %v", err)
	}
	if !errors.Is(err, readErr) {
		t.Fatalf("read failure not propagated: %v", err)
	}
}

func TestRedeemReward_Scenario(t *testing.T) {
	gw := newFakeGateway()
	svc, users, _ := newTestService(gw)
	ctx := context.Background()

	if err := svc.RegisterUser(ctx, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	reward, err := svc.MintReward(ctx, "u1", 1337)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Выпуск не меняет баланс в реестре.
	balance, err := svc.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance after mint = %d, want 0", balance)
	}

	value, err := svc.RedeemReward(ctx, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if value != 1337 {
		t.Fatalf("redeemed value = %d, want 1337", value)
	}

	balance, err = svc.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1337 {
		t.Fatalf("balance after redeem = %d, want 1337", balance)
	}

	// Повторное гашение — ошибка, а не вторая выплата.
	_, err = svc.RedeemReward(ctx, reward.ID)
	if !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
	}

	user, err := users.Read(ctx, "u1")
	if err != nil || user == nil {
		t.Fatalf("read user: %v", err)
	}
	address, err := user.Key.Address()
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}
	if gw.balances[address] != 1337 {
		t.Fatalf("ledger paid %d, want 1337", gw.balances[address])
	}
}

func TestRedeemReward_NotFound(t *testing.T) {
	svc, _, _ := newTestService(newFakeGateway())

	_, err := svc.RedeemReward(context.Background(), "never-minted")
	if !errors.Is(err, ErrRewardNotFound) {
		t.Fatalf("expected ErrRewardNotFound, got %v", err)
	}
}

func TestRedeemReward_GatewayFailureKeepsRewardActive(t *testing.T) {
	gw := newFakeGateway()
	svc, _, rewards := newTestService(gw)
	ctx := context.Background()

	if err := svc.RegisterUser(ctx, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	reward, err := svc.MintReward(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	gw.redeemErr = fmt.Errorf("%w: timeout", ledger.ErrRedeem)

	if _, err := svc.RedeemReward(ctx, reward.ID); !errors.Is(err, ledger.ErrRedeem) {
		t.Fatalf("expected ledger.ErrRedeem, got %v", err)
	}

	stored, err := rewards.Read(ctx, reward.ID)
	if err != nil || stored == nil {
		t.Fatalf("read reward: %v", err)
	}
	if stored.Redeemed {
		t.Fatalf("reward marked redeemed after gateway failure")
	}

	// После восстановления реестра гашение проходит.
	gw.redeemErr = nil
	value, err := svc.RedeemReward(ctx, reward.ID)
	if err != nil {
		t.Fatalf("redeem after recovery: %v", err)
	}
	if value != 10 {
		t.Fatalf("value = %d, want 10", value)
	}
}

func TestRedeemReward_Concurrent(t *testing.T) {
	gw := newFakeGateway()
	svc, _, _ := newTestService(gw)
	ctx := context.Background()

	if err := svc.RegisterUser(ctx, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	reward, err := svc.MintReward(ctx, "u1", 500)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	const attempts = 8

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RedeemReward(ctx, reward.ID)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var succeeded, alreadyRedeemed int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyRedeemed):
			alreadyRedeemed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}
	if alreadyRedeemed != attempts-1 {
		t.Fatalf("already redeemed = %d, want %d", alreadyRedeemed, attempts-1)
	}
	if gw.redeemCalls != 1 {
		t.Fatalf("ledger redeem called %d times, want 1", gw.redeemCalls)
	}
}

func TestGetBalance_OwnerNotFound(t *testing.T) {
	svc, _, _ := newTestService(newFakeGateway())

	_, err := svc.GetBalance(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRewardURLFormat(t *testing.T) {
	gw := newFakeGateway()
	svc, _, _ := newTestService(gw)
	ctx := context.Background()

	if err := svc.RegisterUser(ctx, "u1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	reward, err := svc.MintReward(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if !strings.HasPrefix(reward.URL, testBaseURL+"/") {
		t.Fatalf("url %q does not start with base", reward.URL)
	}
	if !strings.HasSuffix(reward.URL, reward.ID) {
		t.Fatalf("url %q does not end with reward id", reward.URL)
	}
}
