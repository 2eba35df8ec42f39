package preorder_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/auth"
	"ms-preorder/internal/config"
	"ms-preorder/internal/logger"
	"ms-preorder/internal/models"
	"ms-preorder/internal/preorder"
	"ms-preorder/internal/preorder/db"
	"ms-preorder/internal/session"
	"ms-preorder/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	ResumePath = "/preorder/quote"
	CartPath   = "/checkout/cart"

	MessageResumeInProgress = "Your quote is still loading. Please wait a moment."
)

type PreOrders interface {
	CreateForCart(ctx context.Context, admin string, req models.CreatePreOrderRequest) (*models.PreOrder, error)
	CreateGuest(ctx context.Context, in models.PreOrderInput) (*models.PreOrder, error)
	Get(ctx context.Context, id int64) (*models.PreOrder, error)
	GetByHash(ctx context.Context, hash string) (*models.PreOrder, error)
	GetQuoteByHash(ctx context.Context, hash string) (*models.Cart, error)
	Update(ctx context.Context, id int64, in models.PreOrderInput) (*models.PreOrder, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, f preorder.ListFilter) (*models.PreOrderPage, error)
	Resume(ctx context.Context, sessionID, hash, tracking string) (*preorder.ResumeResult, error)
}

type Sessions interface {
	CartID(ctx context.Context, sessionID string) (int64, bool, error)
	AddMessages(ctx context.Context, sessionID string, msgs ...models.FlashMessage) error
	PopMessages(ctx context.Context, sessionID string) ([]models.FlashMessage, error)
	LockResume(ctx context.Context, sessionID, owner string) (bool, error)
	UnlockResume(ctx context.Context, sessionID, owner string) error
}

type Carts interface {
	GetCart(ctx context.Context, id int64) (*models.Cart, error)
}

type StoreSettings interface {
	For(storeID int64) config.Store
}

type Handler struct {
	Service  PreOrders
	Sessions Sessions
	Carts    Carts
	Stores   StoreSettings
	Logger   *logger.Logger
}

func NewHandler(service PreOrders, sessions Sessions, carts Carts, stores StoreSettings, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Handler{Service: service, Sessions: sessions, Carts: carts, Stores: stores, Logger: log}
}

// RegisterRoutes mounts the admin API behind adminAuth and the public routes
// behind the session middleware.
func (h *Handler) RegisterRoutes(r chi.Router, adminAuth, sessions func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(adminAuth)
		r.Route("/api/admin/preorders", func(r chi.Router) {
			r.Post("/", h.CreatePreOrder)
			r.Get("/", h.ListPreOrders)
			r.Get("/{id}", h.GetPreOrder)
			r.Put("/{id}", h.UpdatePreOrder)
			r.Delete("/{id}", h.DeletePreOrder)
		})
	})

	r.Route("/api/guest/preorders", func(r chi.Router) {
		r.Post("/", h.CreateGuestPreOrder)
		r.Get("/{hash}", h.GetGuestPreOrder)
		r.Get("/{hash}/quote", h.GetGuestQuote)
	})

	r.Group(func(r chi.Router) {
		r.Use(sessions)
		r.Get(ResumePath, h.ResumeQuote)
		r.Get(CartPath, h.ViewCart)
	})
}

// ---------------- ADMIN ----------------

func (h *Handler) CreatePreOrder(w http.ResponseWriter, r *http.Request) {
	admin := auth.Username(r.Context())
	h.Logger.Info("API", fmt.Sprintf("CreatePreOrder: admin=%s", admin))

	var req models.CreatePreOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreatePreOrder: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, models.CreatePreOrderResponse{Error: "invalid request body"})
		return
	}

	rec, err := h.Service.CreateForCart(r.Context(), admin, req)
	if rec == nil {
		h.Logger.Error("API", fmt.Sprintf("CreatePreOrder: quote %d: %v", req.QuoteID, err))
		h.writeJSON(w, statusFor(err), models.CreatePreOrderResponse{Error: err.Error()})
		return
	}

	resp := models.CreatePreOrderResponse{
		Success:     err == nil,
		RedirectURL: fmt.Sprintf("/api/admin/preorders/%d", rec.ID),
		Hash:        rec.Hash,
	}
	status := http.StatusCreated
	if err != nil {
		// the record exists, only the email failed
		h.Logger.Warn("API", fmt.Sprintf("CreatePreOrder: pre-order %d saved but not sent: %v", rec.ID, err))
		resp.Error = err.Error()
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) ListPreOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := preorder.ListFilter{
		ListQuery: db.ListQuery{
			Admin:         q.Get("admin"),
			Tracking:      q.Get("tracking"),
			SortField:     q.Get("sort"),
			SortDirection: q.Get("dir"),
			Page:          atoi(q.Get("page")),
			PageSize:      atoi(q.Get("page_size")),
		},
		Email:     q.Get("email"),
		EmailLike: q.Get("email_like") == "1" || q.Get("email_like") == "true",
	}

	page, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListPreOrders: %v", err))
		h.writeError(w, err)
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("ListPreOrders: %d of %d", len(page.Items), page.TotalCount))
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) GetPreOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) UpdatePreOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in models.PreOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdatePreOrder: failed to decode request body: %v", err))
		h.writeError(w, apperr.Validation("", "invalid request body"))
		return
	}

	rec, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdatePreOrder: id=%d: %v", id, err))
		h.writeError(w, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("UpdatePreOrder: id=%d updated by %s", id, auth.Username(r.Context())))
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) DeletePreOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.Service.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !deleted {
		h.writeError(w, apperr.NotFound("pre-order", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- GUEST ----------------

func (h *Handler) CreateGuestPreOrder(w http.ResponseWriter, r *http.Request) {
	var in models.PreOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, apperr.Validation("", "invalid request body"))
		return
	}
	rec, err := h.Service.CreateGuest(r.Context(), in)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateGuestPreOrder: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) GetGuestPreOrder(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.GetByHash(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) GetGuestQuote(w http.ResponseWriter, r *http.Request) {
	cart, err := h.Service.GetQuoteByHash(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cart)
}

// ---------------- STOREFRONT ----------------

// ResumeQuote turns a pre-order link into the visitor's active cart and
// always ends on the cart page, with the outcome as flash messages.
func (h *Handler) ResumeQuote(w http.ResponseWriter, r *http.Request) {
	sid := session.FromContext(r.Context())
	if sid == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	// a resume runs to completion even if the browser goes away
	ctx := context.WithoutCancel(r.Context())
	hash := r.URL.Query().Get("hash")
	tracking := r.URL.Query().Get("tracking")

	owner := uuid.NewString()
	locked, err := h.Sessions.LockResume(ctx, sid, owner)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ResumeQuote: lock session %s: %v", sid, err))
	}
	if err == nil && !locked {
		h.Logger.Warn("API", fmt.Sprintf("ResumeQuote: session %s is already resuming a quote", sid))
		if err := h.Sessions.AddMessages(ctx, sid, models.FlashMessage{Type: models.MessageWarning, Text: MessageResumeInProgress}); err != nil {
			h.Logger.Error("API", fmt.Sprintf("ResumeQuote: could not store messages: %v", err))
		}
		http.Redirect(w, r, CartPath, http.StatusFound)
		return
	}
	if locked {
		defer func() {
			if err := h.Sessions.UnlockResume(ctx, sid, owner); err != nil {
				h.Logger.Error("API", fmt.Sprintf("ResumeQuote: unlock session %s: %v", sid, err))
			}
		}()
	}

	res, err := h.Service.Resume(ctx, sid, hash, tracking)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("ResumeQuote: session %s: %v", sid, err))
	}
	if res != nil && len(res.Messages) > 0 {
		if err := h.Sessions.AddMessages(ctx, sid, res.Messages...); err != nil {
			h.Logger.Error("API", fmt.Sprintf("ResumeQuote: could not store messages: %v", err))
		}
	}

	var storeID int64
	switch {
	case res == nil:
	case res.Cart != nil:
		storeID = res.Cart.StoreID
	case res.Source != nil:
		storeID = res.Source.StoreID
	}
	store := h.Stores.For(storeID)
	if store.SuppressReferrer {
		w.Header().Set("Referrer-Policy", "no-referrer")
	}

	target := CartPath
	if tracking != "" && store.TrackingEnabled {
		target += "?" + url.Values{"tracking": {tracking}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) ViewCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := session.FromContext(ctx)
	view := models.CartView{Messages: []models.FlashMessage{}}

	cartID, ok, err := h.Sessions.CartID(ctx, sid)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ViewCart: session %s: %v", sid, err))
		h.writeError(w, err)
		return
	}
	if ok {
		cart, err := h.Carts.GetCart(ctx, cartID)
		switch {
		case err == nil:
			view.Cart = cart
		case errors.Is(err, apperr.ErrNotFound):
			h.Logger.Warn("API", fmt.Sprintf("ViewCart: session %s points at missing cart %d", sid, cartID))
		default:
			h.writeError(w, err)
			return
		}
	}

	msgs, err := h.Sessions.PopMessages(ctx, sid)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ViewCart: could not read messages: %v", err))
	} else if msgs != nil {
		view.Messages = msgs
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ---------------- HELPERS ----------------

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, apperr.Validation("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	if err := utils.WriteJSON(w, status, v); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	h.writeJSON(w, status, utils.ErrorResponse(http.StatusText(status), msg))
}

func statusFor(err error) int {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
