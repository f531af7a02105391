package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/giftshift/giftshift-backend/internal/api/handlers"
	"github.com/giftshift/giftshift-backend/internal/api/httpx"
	"github.com/giftshift/giftshift-backend/internal/api/validate"
	"github.com/giftshift/giftshift-backend/internal/config"
	"github.com/giftshift/giftshift-backend/internal/metrics"
	"github.com/giftshift/giftshift-backend/internal/middleware"
	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
	"github.com/giftshift/giftshift-backend/internal/services"
)

type Deps struct {
	Cfg        config.Config
	Auth       *handlers.AuthHandler
	AuthMW     *middleware.AuthMiddleware
	Settlement *handlers.SettlementHandler
	Ledger     *services.LedgerService
	Deposits   *services.DepositService
	GiftCards  *services.GiftCardService
	Txns       *services.TransactionQuery
	Users      *services.UserService
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	// internal triggers, guarded by the cron secret
	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.RequireCronSecret(d.Cfg.CronSecret))
		r.Post("/sweep", d.Settlement.Sweep)
		r.Post("/recover", d.Settlement.Recover)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", d.Auth.Register)
		r.Post("/auth/login", d.Auth.Login)
		r.Post("/auth/refresh", d.Auth.Refresh)

		r.Get("/coins", func(w http.ResponseWriter, r *http.Request) {
			coins, err := d.Deposits.Coins(r.Context())
			if err != nil {
				httpx.WriteError(w, http.StatusBadGateway, "exchange_error", "coin list unavailable", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, coins)
		})

		r.Group(func(r chi.Router) {
			r.Use(d.AuthMW.Auth)

			r.Get("/balance", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				b, err := d.Ledger.Read(r.Context(), uid)
				if err != nil {
					httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "balance unavailable", nil)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, b)
			})

			r.Get("/ledger", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				limit, offset := pageParams(r)
				entries, err := d.Ledger.Entries(r.Context(), uid, limit, offset)
				if err != nil {
					httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "ledger unavailable", nil)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, entries)
			})

			r.Get("/transactions", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				limit, offset := pageParams(r)
				txs, err := d.Txns.ListByUser(r.Context(), uid, limit, offset)
				if err != nil {
					httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "history unavailable", nil)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, txs)
			})

			r.Post("/deposits", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				var req struct {
					Amount  money.Cents `json:"amount"`
					Coin    string      `json:"coin"`
					Network string      `json:"network"`
				}
				if err := httpx.Decode(r, &req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				if err := validate.Collect(
					validate.Positive("amount", req.Amount),
					validate.Required("coin", req.Coin),
					validate.Required("network", req.Network),
				); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "validation", err.Error(), err)
					return
				}
				dep, err := d.Deposits.Create(r.Context(), uid, req.Amount, req.Coin, req.Network)
				if err != nil {
					httpx.WriteError(w, http.StatusBadGateway, "exchange_error", err.Error(), nil)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, dep)
			})

			r.Post("/deposits/confirm", d.Settlement.ConfirmDeposit)

			r.Post("/giftcards", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				var req struct {
					Value          money.Cents `json:"value"`
					PayWith        string      `json:"pay_with"`
					Coin           string      `json:"coin"`
					Network        string      `json:"network"`
					Password       string      `json:"password"`
					RecipientName  string      `json:"recipient_name"`
					RecipientEmail string      `json:"recipient_email"`
				}
				if err := httpx.Decode(r, &req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				if err := validate.Collect(
					validate.Positive("value", req.Value),
					validate.OneOf("pay_with", req.PayWith, "balance", "crypto"),
				); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "validation", err.Error(), err)
					return
				}
				card, err := d.GiftCards.Purchase(r.Context(), uid, services.PurchaseRequest{
					Value: req.Value, PayWith: req.PayWith, Coin: req.Coin, Network: req.Network,
					Password: req.Password, RecipientName: req.RecipientName, RecipientEmail: req.RecipientEmail,
				})
				if err != nil {
					writeServiceErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, card)
			})

			r.Post("/giftcards/redeem", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				var req struct {
					Code       string `json:"code"`
					SecretCode string `json:"secret_code"`
					Password   string `json:"password"`
					Target     string `json:"target"`
					Coin       string `json:"coin"`
					Network    string `json:"network"`
					Address    string `json:"address"`
				}
				if err := httpx.Decode(r, &req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				if err := validate.Collect(
					validate.Required("code", req.Code),
					validate.Required("secret_code", req.SecretCode),
					validate.OneOf("target", req.Target, "balance", "crypto"),
				); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "validation", err.Error(), err)
					return
				}
				red, bal, err := d.GiftCards.Redeem(r.Context(), uid, services.RedeemRequest{
					Code: req.Code, SecretCode: req.SecretCode, Password: req.Password,
					Target: req.Target, Coin: req.Coin, Network: req.Network, Address: req.Address,
				})
				if err != nil {
					writeServiceErr(w, err)
					return
				}
				resp := map[string]any{"success": true}
				if bal != nil {
					resp["new_balance"] = bal.Balance
				}
				if red != nil {
					resp["redemption"] = red
				}
				httpx.WriteJSON(w, http.StatusOK, resp)
			})

			// admin surface
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(d.Cfg))
				r.Post("/admin/redemptions/process", d.Settlement.ProcessRedemption)
				r.Get("/admin/users", func(w http.ResponseWriter, r *http.Request) {
					users, err := d.Users.List(r.Context())
					if err != nil {
						httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "list failed", nil)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, users)
				})
				r.Get("/admin/redemptions", func(w http.ResponseWriter, r *http.Request) {
					status := models.RedemptionStatus(r.URL.Query().Get("status"))
					if status == "" {
						status = models.RedemptionQuoted
					}
					reds, err := d.GiftCards.ListRedemptions(r.Context(), status, 100)
					if err != nil {
						httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "list failed", nil)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, reds)
				})
			})
		})
	})

	return r
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, services.ErrInsufficientFunds):
		httpx.WriteError(w, http.StatusBadRequest, "insufficient_funds", "balance does not cover the amount", nil)
	case errors.Is(err, services.ErrContention):
		httpx.WriteError(w, http.StatusConflict, "conflict", "balance changed concurrently, retry", nil)
	case errors.Is(err, services.ErrAlreadyProcessed):
		httpx.WriteError(w, http.StatusConflict, "already_processed", "already processed", nil)
	case errors.Is(err, services.ErrInvalidState):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_state", "record not in a usable state", nil)
	default:
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
}
