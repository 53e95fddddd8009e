package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/reward-system/internal/ledger"
	custommiddleware "github.com/mmeshcher/reward-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса наград.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/"+Version, func(r chi.Router) {
		r.Get("/status", h.Status)

		r.Post("/user", h.Register)
		r.Get("/user/{id}/balance", h.GetBalance)
		r.Post("/user/{id}/reward", h.MintReward)

		r.Post("/reward/{id}/redeem", h.RedeemReward)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, kindNotFound, "route not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, kindValidation, "method not allowed")
	})

	return r
}

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func isLedgerError(err error) bool {
	return errors.Is(err, ledger.ErrMint) ||
		errors.Is(err, ledger.ErrRedeem) ||
		errors.Is(err, ledger.ErrBalance)
}
