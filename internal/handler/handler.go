// Package handler содержит HTTP-обработчики API сервиса наград.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/reward-system/internal/model"
	"github.com/mmeshcher/reward-system/internal/service"
	"github.com/mmeshcher/reward-system/internal/validation"
)

// Version — версия API, отдаётся обработчиком статуса.
const Version = "v1"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, id string) error
	MintReward(ctx context.Context, ownerID string, value int64) (*model.Reward, error)
	RedeemReward(ctx context.Context, rewardID string) (int64, error)
	GetBalance(ctx context.Context, ownerID string) (int64, error)
}

// Handler реализует HTTP-обработчики API сервиса наград.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type errorDetails struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetails `json:"error"`
}

// Стабильные коды ошибок API. Внутренние причины в ответ не попадают,
// только в лог.
const (
	kindValidation      = "ValidationError"
	kindNotFound        = "NotFound"
	kindAlreadyExists   = "AlreadyExists"
	kindAlreadyRedeemed = "AlreadyRedeemed"
	kindRepository      = "RepositoryError"
	kindLedger          = "LedgerError"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetails{Kind: kind, Message: message}})
}

// writeServiceError переводит ошибку бизнес-логики в стабильный код ответа.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUserExists):
		writeError(w, http.StatusConflict, kindAlreadyExists, "user already exists")
	case errors.Is(err, service.ErrRewardExists):
		writeError(w, http.StatusConflict, kindAlreadyExists, "reward already exists")
	case errors.Is(err, service.ErrAlreadyRedeemed):
		writeError(w, http.StatusConflict, kindAlreadyRedeemed, "reward already redeemed")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, "user not found")
	case errors.Is(err, service.ErrRewardNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, "reward not found")
	case errors.Is(err, service.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, kindValidation, "reward value must be non-negative")
	case isLedgerError(err):
		h.logger.Error(op, zap.Error(err))
		writeError(w, http.StatusBadGateway, kindLedger, "ledger operation failed")
	default:
		h.logger.Error(op, zap.Error(err))
		writeError(w, http.StatusInternalServerError, kindRepository, "internal error")
	}
}

type statusResponse struct {
	Version string `json:"version"`
}

// Status возвращает версию API.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Version: Version})
}

type registerRequest struct {
	ID string `json:"id"`
}

type registerResponse struct {
	Success bool `json:"success"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid payload")
		return
	}

	if !validation.IsValidUserID(req.ID) {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid user id")
		return
	}

	if err := h.service.RegisterUser(r.Context(), req.ID); err != nil {
		h.writeServiceError(w, "register user error", err)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{Success: true})
}

type mintRequest struct {
	Value int64 `json:"value"`
}

type mintResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// MintReward выпускает награду для указанного пользователя.
func (h *Handler) MintReward(w http.ResponseWriter, r *http.Request) {
	ownerID := pathParam(r, "id")
	if !validation.IsValidUserID(ownerID) {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid user id")
		return
	}

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid payload")
		return
	}

	reward, err := h.service.MintReward(r.Context(), ownerID, req.Value)
	if err != nil {
		h.writeServiceError(w, "mint reward error", err)
		return
	}

	writeJSON(w, http.StatusOK, mintResponse{ID: reward.ID, URL: reward.URL})
}

type redeemResponse struct {
	ID     string `json:"id"`
	Reward string `json:"reward"`
}

// RedeemReward гасит награду по идентификатору.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	rewardID := pathParam(r, "id")
	if rewardID == "" {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid reward id")
		return
	}

	value, err := h.service.RedeemReward(r.Context(), rewardID)
	if err != nil {
		h.writeServiceError(w, "redeem reward error", err)
		return
	}

	writeJSON(w, http.StatusOK, redeemResponse{
		ID:     rewardID,
		Reward: strconv.FormatInt(value, 10),
	})
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

// GetBalance возвращает баланс пользователя в реестре токенов.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ownerID := pathParam(r, "id")
	if !validation.IsValidUserID(ownerID) {
		writeError(w, http.StatusBadRequest, kindValidation, "invalid user id")
		return
	}

	balance, err := h.service.GetBalance(r.Context(), ownerID)
	if err != nil {
		h.writeServiceError(w, "get balance error", err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Balance: strconv.FormatInt(balance, 10)})
}
