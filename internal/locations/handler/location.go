package handler

import (
	"net/http"
	"strconv"

	"uniparking/internal/locations/service"
	apperrors "uniparking/pkg/errors"
	httputil "uniparking/pkg/http"
	"uniparking/pkg/logger"
	"uniparking/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type LocationHandler struct {
	service service.LocationService
	log     *logger.Logger
}

func NewLocationHandler(service service.LocationService, log *logger.Logger) *LocationHandler {
	return &LocationHandler{
		service: service,
		log:     log,
	}
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	locations, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, locations); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := httputil.IDParam(ps, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	location, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, location); err != nil {
		h.log.Error("failed to write success response", "handler", "Get", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := httputil.Actor(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req model.LocationCreate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	location, err := h.service.Create(r.Context(), actor, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, location); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *LocationHandler) Resize(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, id, err := actorAndID(r, ps)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req model.SpaceResize
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	location, err := h.service.Resize(r.Context(), actor, id, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, location); err != nil {
		h.log.Error("failed to write success response", "handler", "Resize", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LocationHandler) SetStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, id, err := actorAndID(r, ps)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req model.LocationStatusUpdate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	location, err := h.service.SetStatus(r.Context(), actor, id, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, location); err != nil {
		h.log.Error("failed to write success response", "handler", "SetStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LocationHandler) SetSpace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, id, err := actorAndID(r, ps)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	number, err := strconv.Atoi(ps.ByName("number"))
	if err != nil || number <= 0 {
		httputil.WriteError(w, apperrors.InvalidInput("invalid number parameter: "+ps.ByName("number")))
		return
	}

	var req model.SpaceUpdate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	space, err := h.service.SetSpace(r.Context(), actor, id, number, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, space); err != nil {
		h.log.Error("failed to write success response", "handler", "SetSpace", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, id, err := actorAndID(r, ps)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func actorAndID(r *http.Request, ps httprouter.Params) (model.Actor, int64, error) {
	actor, err := httputil.Actor(r)
	if err != nil {
		return model.Actor{}, 0, err
	}
	id, err := httputil.IDParam(ps, "id")
	if err != nil {
		return model.Actor{}, 0, err
	}
	return actor, id, nil
}

func (h *LocationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/locations", h.List)
	router.GET("/api/v1/locations/id/:id", h.Get)
	router.POST("/api/v1/admin/locations", h.Create)
	router.PUT("/api/v1/admin/locations/:id/spaces", h.Resize)
	router.PATCH("/api/v1/admin/locations/:id/spaces/:number", h.SetSpace)
	router.PUT("/api/v1/admin/locations/:id/status", h.SetStatus)
	router.DELETE("/api/v1/admin/locations/:id", h.Delete)
}
