package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/life-admin-system/internal/service"
)

const maxUploadSize = 10 << 20

// Import принимает файл CSV или XLSX (поле формы file) и загружает записи
// вида {entity}: agents, clients, paypoints, policies или receipts.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	ctx := r.Context()
	var res *service.ImportResult
	switch entity := chi.URLParam(r, "entity"); entity {
	case "agents":
		res, err = h.service.ImportAgents(ctx, header.Filename, file)
	case "clients":
		res, err = h.service.ImportClients(ctx, header.Filename, file)
	case "paypoints":
		res, err = h.service.ImportPaypoints(ctx, header.Filename, file)
	case "policies":
		res, err = h.service.ImportPolicies(ctx, userID, header.Filename, file)
	case "receipts":
		res, err = h.service.ImportReceipts(ctx, userID, header.Filename, file)
	default:
		http.Error(w, "unknown import type "+entity, http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
