package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/http/middleware"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

// ListingService is the server-side listing logic behind the handlers.
type ListingService interface {
	ListListings(ctx context.Context, q domain.ListQuery) ([]*domain.Listing, error)
	GetListing(ctx context.Context, id int64) (*domain.Listing, error)
	CreateListing(ctx context.Context, userID string, in domain.Listing) (*domain.Listing, error)
	UpdateListing(ctx context.Context, userID string, in domain.Listing) (*domain.Listing, error)
	DeleteListing(ctx context.Context, userID string, id int64) error
}

type PhotoService interface {
	UploadPhoto(ctx context.Context, fileName string, data []byte) (string, error)
}

type ListingHandler struct {
	listings       ListingService
	photos         PhotoService
	maxUploadBytes int64
	logger         *logger.Logger
}

func NewListingHandler(listings ListingService, photos PhotoService, maxUploadBytes int64, log *logger.Logger) *ListingHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 5 << 20
	}
	return &ListingHandler{listings: listings, photos: photos, maxUploadBytes: maxUploadBytes, logger: log}
}

type listResponse struct {
	Listings []*domain.Listing `json:"listings"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

func listingID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}

func decodeListing(r *http.Request) (domain.Listing, error) {
	var l domain.Listing
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		return domain.Listing{}, &domain.ValidationError{Field: "body", Reason: "is not a valid listing: " + err.Error()}
	}
	return l, nil
}

// HandleListListings serves GET /api/listings?category=&sellerId=.
func (h *ListingHandler) HandleListListings(w http.ResponseWriter, r *http.Request) {
	q := domain.ListQuery{
		Category: r.URL.Query().Get("category"),
		SellerID: r.URL.Query().Get("sellerId"),
	}
	listings, err := h.listings.ListListings(r.Context(), q)
	if err != nil {
		h.logger.Warn("ListingHandler.HandleListListings: failed", "category", q.Category, "error", err.Error())
		writeError(w, err)
		return
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}
	writeJSON(w, http.StatusOK, listResponse{Listings: listings})
}

func (h *ListingHandler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	listing, err := h.listings.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) HandleCreateListing(w http.ResponseWriter, r *http.Request) {
	in, err := decodeListing(r)
	if err != nil {
		writeError(w, err)
		return
	}
	created, err := h.listings.CreateListing(r.Context(), middleware.UserIDFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ListingHandler) HandleUpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := decodeListing(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in.ID = id
	updated, err := h.listings.UpdateListing(r.Context(), middleware.UserIDFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ListingHandler) HandleDeleteListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.listings.DeleteListing(r.Context(), middleware.UserIDFrom(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpload serves POST /api/upload with the image in the multipart field "file".
func (h *ListingHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, &domain.ValidationError{Field: "file", Reason: "is too large"})
			return
		}
		writeError(w, &domain.ValidationError{Field: "file", Reason: "is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.logger.Error("ListingHandler.HandleUpload: failed to read upload", "error", err.Error())
		writeError(w, err)
		return
	}
	url, err := h.photos.UploadPhoto(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{URL: url})
}
