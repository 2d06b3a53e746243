package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/service"
)

type agentRequest struct {
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Branch      string `json:"branch"`
	Email       string `json:"email"`
	DateJoining string `json:"date_joining"`
}

type agentResponse struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Branch      string `json:"branch"`
	Email       string `json:"email,omitempty"`
	DateJoining string `json:"date_joining"`
}

func toAgentResponse(a model.Agent) agentResponse {
	return agentResponse{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Surname:     a.Surname,
		Branch:      string(a.Branch),
		Email:       a.Email,
		DateJoining: formatDate(a.DateJoining),
	}
}

// CreateAgent регистрирует агента.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	branch, err := service.ParseBranch(req.Branch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	joined, err := parseDate(req.DateJoining)
	if err != nil {
		badRequest(w, "date_joining: use YYYY-MM-DD")
		return
	}

	a, err := h.service.CreateAgent(r.Context(), service.NewAgent{
		Name:        req.Name,
		Surname:     req.Surname,
		Branch:      branch,
		Email:       req.Email,
		DateJoining: joined,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAgentResponse(*a))
}

// ListAgents возвращает всех агентов.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.ListAgents(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]agentResponse, 0, len(agents))
	for _, a := range agents {
		resp = append(resp, toAgentResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAgent возвращает агента по коду.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAgent(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(*a))
}

type clientRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	IDNumber string `json:"id_number"`
	DOB      string `json:"dob"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	Location string `json:"location"`
	City     string `json:"city"`
}

type clientResponse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	IDNumber string `json:"id_number"`
	DOB      string `json:"dob"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Street   string `json:"street,omitempty"`
	Location string `json:"location,omitempty"`
	City     string `json:"city,omitempty"`
}

func toClientResponse(c model.Client) clientResponse {
	return clientResponse{
		ID:       c.ID,
		Code:     c.Code,
		Name:     c.Name,
		Surname:  c.Surname,
		IDNumber: c.IDNumber,
		DOB:      formatDate(c.DOB),
		Email:    c.Email,
		Phone:    c.Phone,
		Street:   c.Street,
		Location: c.Location,
		City:     c.City,
	}
}

// CreateClient регистрирует клиента.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	dob, err := parseDate(req.DOB)
	if err != nil {
		badRequest(w, "dob: use YYYY-MM-DD")
		return
	}

	c, err := h.service.CreateClient(r.Context(), service.NewClient{
		Name:     req.Name,
		Surname:  req.Surname,
		IDNumber: req.IDNumber,
		DOB:      dob,
		Email:    req.Email,
		Phone:    req.Phone,
		Street:   req.Street,
		Location: req.Location,
		City:     req.City,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClientResponse(*c))
}

// ListClients возвращает всех клиентов.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.ListClients(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		resp = append(resp, toClientResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetClient возвращает клиента по коду.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetClient(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(*c))
}

type paypointRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	DateJoined string `json:"date_joined"`
}

type paypointResponse struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	DateJoined string `json:"date_joined"`
}

func toPaypointResponse(p model.Paypoint) paypointResponse {
	return paypointResponse{ID: p.ID, Code: p.Code, Name: p.Name, DateJoined: formatDate(p.DateJoined)}
}

// CreatePaypoint регистрирует точку удержания.
func (h *Handler) CreatePaypoint(w http.ResponseWriter, r *http.Request) {
	var req paypointRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	joined, err := parseDate(req.DateJoined)
	if err != nil {
		badRequest(w, "date_joined: use YYYY-MM-DD")
		return
	}

	p, err := h.service.CreatePaypoint(r.Context(), service.NewPaypoint{Code: req.Code, Name: req.Name, DateJoined: joined})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPaypointResponse(*p))
}

// ListPaypoints возвращает все точки удержания.
func (h *Handler) ListPaypoints(w http.ResponseWriter, r *http.Request) {
	paypoints, err := h.service.ListPaypoints(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]paypointResponse, 0, len(paypoints))
	for _, p := range paypoints {
		resp = append(resp, toPaypointResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPaypoint возвращает точку удержания по идентификатору, коду или названию.
func (h *Handler) GetPaypoint(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPaypoint(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaypointResponse(*p))
}
