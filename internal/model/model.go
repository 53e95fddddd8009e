// Package model содержит доменные сущности сервиса наград.
package model

import (
	"time"

	"github.com/mmeshcher/reward-system/internal/wallet"
)

// User представляет зарегистрированного пользователя с ключом доступа к реестру.
type User struct {
	ID        string        `json:"id"`
	Key       wallet.Secret `json:"key"`
	CreatedAt time.Time     `json:"created_at"`
}

// Reward описывает токен награды, выпущенный во внешнем реестре.
type Reward struct {
	// ID — уникальный идентификатор награды, назначается при создании.
	ID string `json:"id"`
	// OwnerID — идентификатор пользователя-владельца.
	OwnerID string `json:"owner_id"`
	// TokenID — идентификатор токена, назначенный реестром при выпуске.
	// После выпуска не меняется.
	TokenID string `json:"token_id"`
	// Value — номинал награды, фиксируется при создании.
	Value int64 `json:"value"`
	// URL — адрес метаданных награды, выводится из ID.
	URL string `json:"url"`
	// Redeemed показывает, была ли награда погашена. Переход только false -> true.
	Redeemed  bool      `json:"redeemed"`
	CreatedAt time.Time `json:"created_at"`
}
