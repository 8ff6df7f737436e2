package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kegstock/kegstock/internal/handler/dto"
	"github.com/kegstock/kegstock/internal/service"
)

// Error codes returned in dto.ErrorResponse.Code.
const (
	CodeInvalidJSON      = "INVALID_JSON"
	CodeBodyTooLarge     = "BODY_TOO_LARGE"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInvalidID        = "INVALID_ID"
	CodeNotFound         = "BEER_TYPE_NOT_FOUND"
	CodeNameTaken        = "NAME_TAKEN"
	CodeInsufficientKegs = "INSUFFICIENT_KEGS"
	CodeInternal         = "INTERNAL_ERROR"
)

// BeerTypeHandler handles HTTP requests for beer type operations.
type BeerTypeHandler struct {
	svc    *service.BeerTypeService
	logger *slog.Logger
}

// NewBeerTypeHandler creates a new BeerTypeHandler.
func NewBeerTypeHandler(svc *service.BeerTypeService, logger *slog.Logger) *BeerTypeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BeerTypeHandler{
		svc:    svc,
		logger: logger,
	}
}

// Routes mounts the beer type endpoints on r.
func (h *BeerTypeHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/add-kegs", h.AddKegs)
	r.Post("/{id}/remove-kegs", h.RemoveKegs)
	r.Put("/{id}/keg-count", h.SetKegCount)
}

// List handles GET /api/beer-types.
func (h *BeerTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListBeerTypes(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToBeerTypeListResponse(list))
}

// Get handles GET /api/beer-types/{id}.
func (h *BeerTypeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	bt, err := h.svc.GetBeerType(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToBeerTypeResponse(bt))
}

// Create handles POST /api/beer-types.
func (h *BeerTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBeerTypeRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := service.CreateBeerTypeInput{Name: req.Name}
	count, present, err := dto.ParseInteger(req.KegCount)
	if err != nil {
		h.writeValidation(w, "kegCount", integerMessage(err, "Keg count must be an integer", "Keg count is too large"))
		return
	}
	if present {
		input.KegCount = &count
	}

	bt, err := h.svc.CreateBeerType(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("beer_type_created",
		"beer_type_id", bt.ID,
		"name", bt.Name,
		"keg_count", bt.KegCount,
	)

	writeJSON(w, http.StatusCreated, dto.ToBeerTypeResponse(bt))
}

// Delete handles DELETE /api/beer-types/{id}.
func (h *BeerTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteBeerType(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("beer_type_deleted", "beer_type_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// AddKegs handles POST /api/beer-types/{id}/add-kegs.
func (h *BeerTypeHandler) AddKegs(w http.ResponseWriter, r *http.Request) {
	id, amount, ok := h.parseAmountRequest(w, r)
	if !ok {
		return
	}

	bt, err := h.svc.AddKegs(r.Context(), id, amount)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("kegs_added",
		"beer_type_id", bt.ID,
		"amount", amount,
		"keg_count", bt.KegCount,
	)

	writeJSON(w, http.StatusOK, dto.ToBeerTypeResponse(bt))
}

// RemoveKegs handles POST /api/beer-types/{id}/remove-kegs.
func (h *BeerTypeHandler) RemoveKegs(w http.ResponseWriter, r *http.Request) {
	id, amount, ok := h.parseAmountRequest(w, r)
	if !ok {
		return
	}

	bt, err := h.svc.RemoveKegs(r.Context(), id, amount)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("kegs_removed",
		"beer_type_id", bt.ID,
		"amount", amount,
		"keg_count", bt.KegCount,
	)

	writeJSON(w, http.StatusOK, dto.ToBeerTypeResponse(bt))
}

// SetKegCount handles PUT /api/beer-types/{id}/keg-count.
func (h *BeerTypeHandler) SetKegCount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req dto.SetKegCountRequest
	if !h.decode(w, r, &req) {
		return
	}

	count, present, err := dto.ParseInteger(req.KegCount)
	switch {
	case err != nil:
		h.writeValidation(w, "kegCount", integerMessage(err, "Keg count must be an integer", "Keg count is too large"))
		return
	case !present:
		h.writeValidation(w, "kegCount", "Keg count is required")
		return
	}

	bt, err := h.svc.SetKegCount(r.Context(), id, count)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("keg_count_set",
		"beer_type_id", bt.ID,
		"keg_count", bt.KegCount,
	)

	writeJSON(w, http.StatusOK, dto.ToBeerTypeResponse(bt))
}

func (h *BeerTypeHandler) parseAmountRequest(w http.ResponseWriter, r *http.Request) (int64, int, bool) {
	id, ok := h.parseID(w, r)
	if !ok {
		return 0, 0, false
	}

	var req dto.KegAmountRequest
	if !h.decode(w, r, &req) {
		return 0, 0, false
	}

	amount, present, err := dto.ParseInteger(req.Amount)
	switch {
	case err != nil:
		h.writeValidation(w, "amount", integerMessage(err, "Amount must be a positive integer", "Amount is too large"))
		return 0, 0, false
	case !present:
		h.writeValidation(w, "amount", "Amount is required")
		return 0, 0, false
	}

	return id, amount, true
}

func integerMessage(err error, invalid, outOfRange string) string {
	if errors.Is(err, dto.ErrIntegerRange) {
		return outOfRange
	}
	return invalid
}

// parseID reads the {id} path parameter. A non-numeric id is answered with
// 400; a numeric one that can never exist, zero or negative, with 404.
func (h *BeerTypeHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	switch {
	case err != nil:
		h.writeError(w, http.StatusBadRequest, CodeInvalidID, service.MsgInvalidID, nil)
		return 0, false
	case id <= 0:
		h.writeError(w, http.StatusNotFound, CodeNotFound, service.MsgNotFound, nil)
		return 0, false
	}
	return id, true
}

func (h *BeerTypeHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeError(w, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "Request body too large", nil)
		return false
	}

	h.writeError(w, http.StatusBadRequest, CodeInvalidJSON, "Invalid request body", nil)
	return false
}

// handleServiceError maps every service.Kind to a response.
func (h *BeerTypeHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		svcErr = &service.Error{Kind: service.KindStorage, Err: err}
	}

	switch svcErr.Kind {
	case service.KindValidation:
		h.writeError(w, http.StatusBadRequest, CodeValidationFailed, svcErr.Message, svcErr.Fields)
	case service.KindNotFound:
		h.writeError(w, http.StatusNotFound, CodeNotFound, svcErr.Message, nil)
	case service.KindConflict:
		h.writeError(w, http.StatusConflict, CodeNameTaken, svcErr.Message, nil)
	case service.KindInvariant:
		h.writeError(w, http.StatusBadRequest, CodeInsufficientKegs, svcErr.Message, nil)
	case service.KindStorage:
		h.logger.Error("internal_error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		msg := svcErr.Message
		if msg == "" {
			msg = "An internal error occurred"
		}
		h.writeError(w, http.StatusInternalServerError, CodeInternal, msg, nil)
	default:
		h.logger.Error("unhandled_error_kind", "kind", svcErr.Kind.String(), "error", err)
		h.writeError(w, http.StatusInternalServerError, CodeInternal, "An internal error occurred", nil)
	}
}

func (h *BeerTypeHandler) writeValidation(w http.ResponseWriter, field, message string) {
	h.writeError(w, http.StatusBadRequest, CodeValidationFailed, service.MsgInvalidInput, map[string]string{field: message})
}

// writeError writes an error response.
func (h *BeerTypeHandler) writeError(w http.ResponseWriter, status int, code, message string, fields map[string]string) {
	writeJSON(w, status, dto.ErrorResponse{
		Message: message,
		Code:    code,
		Errors:  fields,
	})
}
