// Package service реализует жизненный цикл наград: выпуск, хранение и погашение.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/reward-system/internal/ledger"
	"github.com/mmeshcher/reward-system/internal/model"
	"github.com/mmeshcher/reward-system/internal/store"
	"github.com/mmeshcher/reward-system/internal/wallet"
)

// ErrUserExists возвращается при повторной регистрации занятого идентификатора.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrRewardExists возвращается при коллизии идентификатора награды.
	ErrRewardExists = errors.New("reward already exists")
	// ErrRewardNotFound возвращается, если награда не найдена.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrAlreadyRedeemed возвращается при повторном погашении награды.
	// Повтор — ошибка, а не тихий успех: вторая выплата недопустима.
	ErrAlreadyRedeemed = errors.New("reward already redeemed")
	// ErrInvalidValue возвращается при отрицательном номинале награды.
	ErrInvalidValue = errors.New("reward value must be non-negative")
)

// Service содержит бизнес-логику сервиса наград.
type Service struct {
	users   store.Repository[model.User]
	rewards store.Repository[model.Reward]
	gateway ledger.Gateway
	baseURL string

	redeemLocks keyMutex
}

// NewService создаёт сервис с указанными репозиториями и клиентом реестра.
// baseURL — базовый адрес метаданных наград.
func NewService(users store.Repository[model.User], rewards store.Repository[model.Reward], gateway ledger.Gateway, baseURL string) *Service {
	return &Service{
		users:   users,
		rewards: rewards,
		gateway: gateway,
		baseURL: baseURL,
	}
}

// RegisterUser регистрирует нового пользователя: генерирует секретный ключ
// и сохраняет запись. Повторная регистрация того же идентификатора не
// перезаписывает существующую запись.
func (s *Service) RegisterUser(ctx context.Context, id string) error {
	key, err := wallet.Generate()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	defer key.Zero()

	user := model.User{
		ID:        id,
		Key:       key,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.users.Create(ctx, id, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("%w: %s", ErrUserExists, id)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (s *Service) readUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.Read(ctx, id)
	if err != nil {
		// Ошибка чтения не означает отсутствие пользователя.
		return nil, fmt.Errorf("read user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return user, nil
}

// MintReward выпускает награду указанного номинала для пользователя ownerID.
// Сначала токен выпускается в реестре, затем запись сохраняется локально.
func (s *Service) MintReward(ctx context.Context, ownerID string, value int64) (*model.Reward, error) {
	if value < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidValue, value)
	}

	user, err := s.readUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer user.Key.Zero()

	address, err := user.Key.Address()
	if err != nil {
		return nil, fmt.Errorf("derive address: %w", err)
	}

	tokenID, err := s.gateway.Mint(ctx, address, value)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	reward := model.Reward{
		ID:        id,
		OwnerID:   ownerID,
		TokenID:   tokenID,
		Value:     value,
		URL:       s.baseURL + "/" + id,
		Redeemed:  false,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.rewards.Create(ctx, id, reward); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrRewardExists, id)
		}
		return nil, fmt.Errorf("create reward: %w", err)
	}

	return &reward, nil
}

// RedeemReward гасит награду и возвращает её номинал. Погашение однократно:
// повторный вызов возвращает ErrAlreadyRedeemed. Конкурентные вызовы для
// одного идентификатора сериализуются замком по ключу, поэтому из двух
// одновременных попыток выигрывает ровно одна.
func (s *Service) RedeemReward(ctx context.Context, rewardID string) (int64, error) {
	unlock := s.redeemLocks.Lock(rewardID)
	defer unlock()

	reward, err := s.rewards.Read(ctx, rewardID)
	if err != nil {
		return 0, fmt.Errorf("read reward: %w", err)
	}
	if reward == nil {
		return 0, fmt.Errorf("%w: %s", ErrRewardNotFound, rewardID)
	}

	if reward.Redeemed {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyRedeemed, rewardID)
	}

	user, err := s.readUser(ctx, reward.OwnerID)
	if err != nil {
		return 0, err
	}
	defer user.Key.Zero()

	address, err := user.Key.Address()
	if err != nil {
		return 0, fmt.Errorf("derive address: %w", err)
	}

	// Сначала гашение в реестре, затем локальная запись. Если процесс упадёт
	// между этими шагами, награда останется непогашенной локально при уже
	// погашенном токене реестра.
	if err := s.gateway.Redeem(ctx, address, reward.TokenID); err != nil {
		return 0, err
	}

	reward.Redeemed = true
	if err := s.rewards.Update(ctx, rewardID, *reward); err != nil {
		// Запись исчезла между чтением и обновлением — это ошибка хранилища.
		return 0, fmt.Errorf("update reward: %w", err)
	}

	return reward.Value, nil
}

// GetBalance возвращает баланс пользователя в реестре токенов.
func (s *Service) GetBalance(ctx context.Context, ownerID string) (int64, error) {
	user, err := s.readUser(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	defer user.Key.Zero()

	address, err := user.Key.Address()
	if err != nil {
		return 0, fmt.Errorf("derive address: %w", err)
	}

	return s.gateway.Balance(ctx, address)
}
