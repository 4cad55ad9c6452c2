package kiosk

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
)

const MaxBodyBytes = 1 << 20

// Handler exposes the kiosk controller to the screen over HTTP.
type Handler struct {
	controller *Controller
	logger     apt.Logger
	config     *apt.Config
	tlm        *telemetry.HTTP
}

func NewHandler(controller *Controller, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		controller: controller,
		logger:     logger,
		config:     config,
		tlm:        telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/kiosk", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/logout", h.Logout)
		r.Get("/menu", h.GetMenu)
		r.Post("/cart/items", h.AddCartItem)
		r.Delete("/cart/items/{index}", h.RemoveCartItem)
		r.Post("/orders", h.SubmitOrder)
		r.Post("/view", h.SwitchView)
		r.Get("/kds", h.GetKitchenView)
		r.Get("/recommendations", h.GetRecommendations)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetState")
	defer finish()

	apt.Respond(w, http.StatusOK, h.controller.View(), nil)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Login")
	defer finish()
	log := h.log(r)

	var payload struct {
		Phone string `json:"phone"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	if _, err := h.controller.Login(r.Context(), payload.Phone); err != nil {
		log.Errorf("cannot log in: %v", err)
		h.respondError(w, err)
		return
	}

	apt.Respond(w, http.StatusOK, h.controller.View(), nil)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Register")
	defer finish()
	log := h.log(r)

	var payload struct {
		Name    *string `json:"name"`
		Profile string  `json:"profile"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	if _, err := h.controller.Register(r.Context(), payload.Name, payload.Profile); err != nil {
		log.Errorf("cannot register: %v", err)
		h.respondError(w, err)
		return
	}

	apt.Respond(w, http.StatusCreated, h.controller.View(), nil)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Logout")
	defer finish()
	log := h.log(r)

	if err := h.controller.Logout(r.Context()); err != nil {
		log.Errorf("cannot log out: %v", err)
		h.respondError(w, err)
		return
	}

	apt.Respond(w, http.StatusOK, h.controller.View(), nil)
}

func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetMenu")
	defer finish()

	items := h.controller.Menu
	if r.URL.Query().Get("refresh") == "true" {
		items = h.controller.ReloadMenu
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"items": items(r.Context()),
	}, nil)
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddCartItem")
	defer finish()
	log := h.log(r)

	var payload struct {
		ItemID string `json:"item_id"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.ItemID == "" {
		apt.RespondError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	cart, err := h.controller.AddItem(r.Context(), payload.ItemID)
	if err != nil {
		log.Errorf("cannot add cart item: %v", err)
		h.respondError(w, err)
		return
	}

	apt.Respond(w, http.StatusOK, cartPayload(cart), nil)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveCartItem")
	defer finish()
	log := h.log(r)

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid cart index")
		return
	}

	cart, err := h.controller.RemoveItem(index)
	if err != nil {
		log.Errorf("cannot remove cart item: %v", err)
		h.respondError(w, err)
		return
	}

	apt.Respond(w, http.StatusOK, cartPayload(cart), nil)
}

func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitOrder")
	defer finish()
	log := h.log(r)

	ticket, err := h.controller.SubmitOrder(r.Context())
	if err != nil {
		log.Errorf("cannot submit order: %v", err)
		h.respondError(w, err)
		return
	}

	apt.Respond(w, http.StatusCreated, ticket, nil)
}

func (h *Handler) SwitchView(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SwitchView")
	defer finish()
	log := h.log(r)

	var payload struct {
		View string `json:"view"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	var err error
	switch Screen(payload.View) {
	case ScreenKitchenDisplay:
		err = h.controller.ShowKitchen(r.Context())
	case ScreenOrdering:
		err = h.controller.ShowOrdering()
	default:
		apt.RespondError(w, http.StatusBadRequest, "Unknown view")
		return
	}
	if err != nil {
		log.Errorf("cannot switch view to %s: %v", payload.View, err)
		h.respondError(w, err)
		return
	}

	apt.Respond(w, http.StatusOK, h.controller.View(), nil)
}

func (h *Handler) GetKitchenView(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetKitchenView")
	defer finish()

	apt.Respond(w, http.StatusOK, h.controller.KitchenView(), nil)
}

func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetRecommendations")
	defer finish()

	if r.URL.Query().Get("refresh") == "true" {
		h.controller.RefreshRecommendations()
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"recommendations": h.controller.Recommendations(),
	}, nil)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var rangeErr *IndexOutOfRangeError
	var rejected *OrderRejectedError
	var transport *TransportError

	switch {
	case errors.Is(err, ErrPhoneRequired), errors.Is(err, ErrEmptyCart):
		apt.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &rangeErr):
		apt.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnknownMenuItem):
		apt.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrSubmitInFlight):
		apt.RespondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &rejected):
		apt.RespondError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &transport), errors.Is(err, ErrRegistrationFailed):
		apt.RespondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, ErrControllerStopped):
		apt.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		apt.RespondError(w, http.StatusInternalServerError, "Unexpected kiosk error")
	}
}

func cartPayload(cart Cart) map[string]interface{} {
	return map[string]interface{}{
		"items": cart,
		"total": cart.Total(),
	}
}
