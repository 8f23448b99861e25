package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gwi.com/cardscan/internal/auth"
	"gwi.com/cardscan/internal/core"
	"gwi.com/cardscan/internal/store"
	"gwi.com/cardscan/internal/utils"
)

type userStore interface {
	CreateUser(ctx context.Context, externalUserID, passwordHash string) (*store.User, error)
	GetUserByExternalID(ctx context.Context, externalUserID string) (*store.User, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	Ping(ctx context.Context) error
}

type APIHandler struct {
	users     userStore
	jwt       *auth.JWTManager
	ocr       *core.OCRService
	cards     *core.CardService
	metrics   *core.MetricsService
	contacts  *core.ContactService
	maxUpload int64
	now       func() time.Time
}

type Services struct {
	OCR      *core.OCRService
	Cards    *core.CardService
	Metrics  *core.MetricsService
	Contacts *core.ContactService
}

func NewAPIHandler(users userStore, jwt *auth.JWTManager, svc Services, maxUpload int64) *APIHandler {
	return &APIHandler{
		users:     users,
		jwt:       jwt,
		ocr:       svc.OCR,
		cards:     svc.Cards,
		metrics:   svc.Metrics,
		contacts:  svc.Contacts,
		maxUpload: maxUpload,
		now:       time.Now,
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Ping(r.Context()); err != nil {
		logger(r).Error("health check", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "User ID and password are required")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		logger(r).Error("hashing password", "external_user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.UserID, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "User already exists")
			return
		}
		writeServiceError(w, r, "creating user", err, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.UserID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "User ID and password are required")
		return
	}

	user, err := h.users.GetUserByExternalID(r.Context(), strings.TrimSpace(req.UserID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger(r).Error("loading user", "external_user_id", req.UserID, "error", err)
	}
	if err != nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwt.Generate(user.ID)
	if err != nil {
		logger(r).Error("generating token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type extractResponse struct {
	ExtractedText string `json:"extractedText"`
	ResponseID    int64  `json:"responseId"`
}

// ExtractHandler accepts a multipart upload with the image in the "image"
// field. Anonymous uploads are processed as demo scans.
func (h *APIHandler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "Image exceeds the upload limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "No image file uploaded.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file uploaded.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded image")
		return
	}

	rec, err := h.ocr.Process(r.Context(), callerFrom(r.Context()), core.Upload{
		Filename: header.Filename,
		MIMEType: uploadContentType(header.Header.Get("Content-Type"), data),
		Data:     data,
	})
	if err != nil {
		writeServiceError(w, r, "processing upload", err, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{ExtractedText: rec.ExtractedText, ResponseID: rec.ID})
}

// uploadContentType prefers the declared part type and sniffs the bytes
// when the client sent none or a generic one.
func uploadContentType(declared string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return mediaType
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return sniffed
}

func (h *APIHandler) ListExtractionsHandler(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	result, err := h.ocr.List(r.Context(), callerFrom(r.Context()), page, limit)
	if err != nil {
		writeServiceError(w, r, "listing extractions", err, "Failed to fetch OCR responses")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) SearchExtractionsHandler(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeError(w, http.StatusBadRequest, "Search term is required")
		return
	}
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	result, err := h.ocr.Search(r.Context(), callerFrom(r.Context()), term, page, limit)
	if err != nil {
		writeServiceError(w, r, "searching extractions", err, "Failed to search OCR responses")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) ExtractionStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ocr.Stats(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, "computing extraction stats", err, "Failed to fetch OCR statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) GetExtractionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	rec, err := h.ocr.Get(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, "loading extraction", err, "Failed to fetch OCR response")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *APIHandler) DeleteExtractionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.ocr.Delete(r.Context(), callerFrom(r.Context()), id); err != nil {
		writeServiceError(w, r, "deleting extraction", err, "Failed to delete OCR response")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OCR response deleted successfully"})
}

func (h *APIHandler) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	result, err := h.cards.List(r.Context(), callerFrom(r.Context()), page, limit, h.now())
	if err != nil {
		writeServiceError(w, r, "listing cards", err, "Failed to fetch business cards")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) PromoteCardHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	contact, err := h.cards.Promote(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, "promoting card", err, "Failed to create contact")
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

func (h *APIHandler) DashboardMetricsHandler(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.metrics.Dashboard(r.Context(), callerFrom(r.Context()), h.now())
	if err != nil {
		writeServiceError(w, r, "computing dashboard metrics", err, "Failed to fetch dashboard metrics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": metrics})
}

func (h *APIHandler) ListContactsHandler(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := store.ContactFilter{Search: q.Get("search"), Status: q.Get("status")}

	result, err := h.contacts.List(r.Context(), callerFrom(r.Context()), filter, page, limit, h.now())
	if err != nil {
		writeServiceError(w, r, "listing contacts", err, "Failed to fetch contacts")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) CreateContactHandler(w http.ResponseWriter, r *http.Request) {
	var req store.ContactFields
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	contact, err := h.contacts.Create(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, "creating contact", err, "Failed to create contact")
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

func (h *APIHandler) GetContactHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	contact, err := h.contacts.Get(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, "loading contact", err, "Failed to fetch contact")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *APIHandler) UpdateContactHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req store.ContactFields
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	contact, err := h.contacts.Update(r.Context(), callerFrom(r.Context()), id, req)
	if err != nil {
		writeServiceError(w, r, "updating contact", err, "Failed to update contact")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (h *APIHandler) DeleteContactHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.contacts.Delete(r.Context(), callerFrom(r.Context()), id); err != nil {
		writeServiceError(w, r, "deleting contact", err, "Failed to delete contact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pageParams reads page and limit, defaulting to 1 and 10.
func pageParams(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	q := r.URL.Query()
	page, errPage := intParam(q.Get("page"), utils.DefaultPage)
	limit, errLimit := intParam(q.Get("limit"), utils.DefaultLimit)
	if errPage != nil || errLimit != nil || utils.ValidatePage(page, limit) != nil {
		writeError(w, http.StatusBadRequest, "Invalid pagination parameters")
		return 0, 0, false
	}
	return page, limit, true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}
