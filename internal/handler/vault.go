package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/vault"
	"github.com/dukerupert/hearth/internal/websocket"
)

// VaultHandler serves vault items and their documents. Item content is
// sealed before it reaches the database and opened on the way out.
type VaultHandler struct {
	items     *store.VaultStore
	cipher    *vault.Cipher
	blobs     vault.BlobStore
	maxUpload int64
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewVaultHandler(vs *store.VaultStore, cipher *vault.Cipher, blobs vault.BlobStore, maxUploadBytes int64, hub *websocket.Hub, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{
		items:     vs,
		cipher:    cipher,
		blobs:     blobs,
		maxUpload: maxUploadBytes,
		hub:       hub,
		logger:    logger.With("component", "vault"),
	}
}

type vaultRequest struct {
	Title      string `json:"title" validate:"notblank,max=200"`
	Category   string `json:"category" validate:"omitempty,oneof=INSURANCE MEDICAL FINANCIAL LEGAL IDENTIFICATION EMERGENCY OTHER"`
	Content    string `json:"content" validate:"max=20000"`
	Restricted bool   `json:"restricted"`
}

type vaultUpdateRequest struct {
	Title      *string `json:"title" validate:"omitnil,notblank,max=200"`
	Category   *string `json:"category" validate:"omitnil,oneof=INSURANCE MEDICAL FINANCIAL LEGAL IDENTIFICATION EMERGENCY OTHER"`
	Content    *string `json:"content" validate:"omitnil,max=20000"`
	Restricted *bool   `json:"restricted"`
}

// open decrypts v in place.
func (h *VaultHandler) open(v *model.VaultItem) error {
	content, err := h.cipher.Open(v.HouseholdID, v.Content)
	if err != nil {
		return err
	}
	v.Content = content
	return nil
}

// List hides restricted items from callers without restricted access.
func (h *VaultHandler) List(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	f := store.VaultFilter{
		Category:          r.URL.Query().Get("category"),
		IncludeRestricted: id.Can(auth.CapVaultRestricted),
	}
	items, err := h.items.List(r.Context(), id.HouseholdID, f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	for i := range items {
		if err := h.open(&items[i]); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// Create stamps the session member as the item's creator.
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req vaultRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Category == "" {
		req.Category = "OTHER"
	}
	content, err := h.cipher.Seal(id.HouseholdID, strings.TrimSpace(req.Content))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.items.Create(r.Context(), &model.VaultItem{
		HouseholdID: id.HouseholdID,
		CreatedByID: &id.MemberID,
		Title:       strings.TrimSpace(req.Title),
		Category:    req.Category,
		Content:     content,
		Restricted:  req.Restricted && id.Can(auth.CapVaultRestricted),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.open(item); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("vault_item", "created", item.ID, nil))
	writeJSON(w, http.StatusCreated, item)
}

// get loads an item of the caller's household, enforcing the restricted flag.
func (h *VaultHandler) get(r *http.Request) (*model.VaultItem, error) {
	id := identity(r)
	itemID, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	item, err := h.items.Get(r.Context(), id.HouseholdID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, notFound("Item")
	}
	if item.Restricted && !id.Can(auth.CapVaultRestricted) {
		return nil, auth.ErrForbidden
	}
	return item, nil
}

func (h *VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.open(item); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *VaultHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req vaultUpdateRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if req.Title != nil {
		existing.Title = strings.TrimSpace(*req.Title)
	}
	if req.Category != nil {
		existing.Category = *req.Category
	}
	if req.Content != nil {
		content, err := h.cipher.Seal(id.HouseholdID, strings.TrimSpace(*req.Content))
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		existing.Content = content
	}
	// Only callers with restricted access may change the flag.
	if req.Restricted != nil && id.Can(auth.CapVaultRestricted) {
		existing.Restricted = *req.Restricted
	}

	item, err := h.items.Update(r.Context(), existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.open(item); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("vault_item", "updated", item.ID, nil))
	writeJSON(w, http.StatusOK, item)
}

// Delete removes the item's blobs before the rows.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	for _, d := range existing.Documents {
		if err := h.blobs.Delete(r.Context(), d.StorageKey); err != nil {
			h.logger.Warn("delete document blob", "document_id", d.ID, "error", err)
		}
	}
	if err := h.items.Delete(r.Context(), id.HouseholdID, existing.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("vault_item", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Upload stores the multipart "file" field as a document of the item.
func (h *VaultHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	item, err := h.get(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, h.logger, validate.Errorf("File is too large or malformed"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, validate.Errorf("file is required"))
		return
	}
	defer file.Close()
	if header.Size > h.maxUpload {
		writeError(w, h.logger, validate.Errorf("File exceeds the %d MB limit", h.maxUpload>>20))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := vault.NewKey(id.HouseholdID)
	if err := h.blobs.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		writeError(w, h.logger, err)
		return
	}

	doc, err := h.items.AddDocument(r.Context(), id.HouseholdID, &model.VaultDocument{
		VaultItemID: item.ID,
		FileName:    filepath.Base(header.Filename),
		ContentType: contentType,
		SizeBytes:   header.Size,
		StorageKey:  key,
	})
	if err != nil {
		if derr := h.blobs.Delete(r.Context(), key); derr != nil {
			h.logger.Warn("delete orphaned blob", "key", key, "error", derr)
		}
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("document uploaded", "item_id", item.ID, "document_id", doc.ID, "size", doc.SizeBytes)
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("vault_item", "updated", item.ID, nil))
	writeJSON(w, http.StatusCreated, doc)
}

// Download streams a document, enforcing its item's restricted flag.
func (h *VaultHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	docID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	doc, restricted, err := h.items.GetDocument(r.Context(), id.HouseholdID, docID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if doc == nil {
		writeError(w, h.logger, notFound("Document"))
		return
	}
	if restricted && !id.Can(auth.CapVaultRestricted) {
		writeError(w, h.logger, auth.ErrForbidden)
		return
	}

	body, err := h.blobs.Get(r.Context(), doc.StorageKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream document", "document_id", doc.ID, "error", err)
	}
}
