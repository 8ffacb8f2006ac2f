package marketplace

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/bazaar/internal/api"
	"github.com/sudo-init-do/bazaar/internal/apperr"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Routes() []api.Route {
	return []api.Route{
		{Method: http.MethodGet, Path: "/postings", Handler: h.ListListings, Access: api.OptionalAuth},
		{Method: http.MethodPost, Path: "/postings", Handler: h.CreateListing, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/postings/:id", Handler: h.GetListing, Access: api.Public},
		{Method: http.MethodGet, Path: "/sellers/:id/postings", Handler: h.ListSellerListings, Access: api.Public},
		{Method: http.MethodPatch, Path: "/postings/:id", Handler: h.UpdateListing, Access: api.Authenticated},
		{Method: http.MethodDelete, Path: "/postings/:id", Handler: h.DeleteListing, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/postings/:id/images", Handler: h.AddImage, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/postings/:id/tags", Handler: h.AttachTag, Access: api.Authenticated},
		{Method: http.MethodDelete, Path: "/postings/:id/tags/:tag_id", Handler: h.DetachTag, Access: api.Authenticated},

		{Method: http.MethodGet, Path: "/categories", Handler: h.ListCategories, Access: api.Public},
		{Method: http.MethodPost, Path: "/categories", Handler: h.CreateCategory, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/tags", Handler: h.ListTags, Access: api.Public},
		{Method: http.MethodPost, Path: "/tags", Handler: h.CreateTag, Access: api.Authenticated},
		{Method: http.MethodGet, Path: "/payment-methods", Handler: h.ListPaymentMethods, Access: api.Public},
		{Method: http.MethodGet, Path: "/offerings", Handler: h.ListOfferings, Access: api.Public},

		{Method: http.MethodGet, Path: "/favorites", Handler: h.ListFavorites, Access: api.Authenticated},
		{Method: http.MethodPost, Path: "/favorites", Handler: h.AddFavorite, Access: api.Authenticated},
		{Method: http.MethodDelete, Path: "/favorites/:listing_id", Handler: h.RemoveFavorite, Access: api.Authenticated},
	}
}

type listingRequest struct {
	Title            *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Description      *string          `json:"description" validate:"omitempty,max=5000"`
	CategoryID       *string          `json:"category_id" validate:"omitempty,uuid"`
	Price            *decimal.Decimal `json:"price"`
	ClearPrice       bool             `json:"clear_price"`
	Location         *string          `json:"location" validate:"omitempty,max=200"`
	PaymentMethodIDs []string         `json:"payment_method_ids" validate:"omitempty,dive,uuid"`
	OfferingIDs      []string         `json:"offering_ids" validate:"omitempty,dive,uuid"`
}

func (r listingRequest) input() (ListingInput, error) {
	if r.Price != nil && r.Price.IsNegative() {
		return ListingInput{}, apperr.Validation("price must not be negative", nil)
	}
	if r.Price != nil && !r.Price.Equal(r.Price.Round(2)) {
		return ListingInput{}, apperr.Validation("price supports at most two decimal places", nil)
	}
	return ListingInput{
		Title:            r.Title,
		Description:      r.Description,
		CategoryID:       r.CategoryID,
		Price:            r.Price,
		ClearPrice:       r.ClearPrice,
		Location:         r.Location,
		PaymentMethodIDs: r.PaymentMethodIDs,
		OfferingIDs:      r.OfferingIDs,
	}, nil
}

// ListListings supports ?mine=true, category, tag, q, min_price, max_price, limit, offset.
func (h *Handler) ListListings(c echo.Context) error {
	limit, offset := api.Page(c)
	f := Filter{
		CategoryID: c.QueryParam("category"),
		TagID:      c.QueryParam("tag"),
		Query:      strings.TrimSpace(c.QueryParam("q")),
		Limit:      limit,
		Offset:     offset,
	}
	if c.QueryParam("mine") == "true" {
		acc, err := api.Caller(c)
		if err != nil {
			return err
		}
		f.OwnerID = acc.ID
	}
	var err error
	if f.MinPrice, err = parsePrice(c.QueryParam("min_price"), "min_price"); err != nil {
		return err
	}
	if f.MaxPrice, err = parsePrice(c.QueryParam("max_price"), "max_price"); err != nil {
		return err
	}

	listings, err := h.store.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listings)
}

func parsePrice(raw, field string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperr.Validation(field+" must be a number", err)
	}
	return &d, nil
}

// ListSellerListings is a seller's public storefront, newest first.
func (h *Handler) ListSellerListings(c echo.Context) error {
	sellerID := strings.TrimSpace(c.Param("id"))
	if sellerID == "" {
		return apperr.Validation("missing seller id", nil)
	}
	limit, offset := api.Page(c)
	listings, err := h.store.ListByOwner(c.Request().Context(), sellerID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"seller_id": sellerID, "postings": listings})
}

func (h *Handler) GetListing(c echo.Context) error {
	l, err := h.store.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) CreateListing(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	var req listingRequest
	if err := api.Bind(c, &req); err != nil {
		return err
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return apperr.Validation("title is required", nil)
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	l, err := h.store.Create(c.Request().Context(), acc.ID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) UpdateListing(c echo.Context) error {
	id, err := h.requireOwner(c)
	if err != nil {
		return err
	}
	var req listingRequest
	if err := api.Bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	l, err := h.store.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteListing(c echo.Context) error {
	id, err := h.requireOwner(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type imageRequest struct {
	URL string `json:"url" validate:"required,url"`
}

func (h *Handler) AddImage(c echo.Context) error {
	id, err := h.requireOwner(c)
	if err != nil {
		return err
	}
	var req imageRequest
	if err := api.Bind(c, &req); err != nil {
		return err
	}
	img, err := h.store.AddImage(c.Request().Context(), id, req.URL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, img)
}

type tagRequest struct {
	TagID string `json:"tag_id" validate:"required,uuid"`
}

func (h *Handler) AttachTag(c echo.Context) error {
	id, err := h.requireOwner(c)
	if err != nil {
		return err
	}
	var req tagRequest
	if err := api.Bind(c, &req); err != nil {
		return err
	}
	if err := h.store.AttachTag(c.Request().Context(), id, req.TagID); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"listing_id": id, "tag_id": req.TagID})
}

func (h *Handler) DetachTag(c echo.Context) error {
	id, err := h.requireOwner(c)
	if err != nil {
		return err
	}
	if err := h.store.DetachTag(c.Request().Context(), id, c.Param("tag_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// requireOwner resolves :id and rejects callers who do not own the listing.
func (h *Handler) requireOwner(c echo.Context) (string, error) {
	acc, err := api.Caller(c)
	if err != nil {
		return "", err
	}
	id := c.Param("id")
	if err := RequireOwner(c.Request().Context(), h.store, id, acc.ID); err != nil {
		return "", err
	}
	return id, nil
}

// Ownership is the narrow view RequireOwner needs.
type Ownership interface {
	IsOwner(ctx context.Context, listingID, accountID string) (bool, error)
}

// RequireOwner returns NOT_FOUND for a missing listing and FORBIDDEN for anyone but its owner.
func RequireOwner(ctx context.Context, store Ownership, listingID, accountID string) error {
	owner, err := store.IsOwner(ctx, listingID, accountID)
	if err != nil {
		return err
	}
	if !owner {
		return apperr.Forbidden("only the listing owner can do this")
	}
	return nil
}

type nameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

func (h *Handler) ListCategories(c echo.Context) error {
	cats, err := h.store.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *Handler) CreateCategory(c echo.Context) error {
	var req nameRequest
	if err := api.Bind(c, &req); err != nil {
		return err
	}
	cat, err := h.store.CreateCategory(c.Request().Context(), strings.TrimSpace(req.Name))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *Handler) ListTags(c echo.Context) error {
	tags, err := h.store.Tags(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tags)
}

func (h *Handler) CreateTag(c echo.Context) error {
	var req nameRequest
	if err := api.Bind(c, &req); err != nil {
		return err
	}
	tag, err := h.store.CreateTag(c.Request().Context(), strings.ToLower(strings.TrimSpace(req.Name)))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tag)
}

func (h *Handler) ListPaymentMethods(c echo.Context) error {
	pms, err := h.store.PaymentMethods(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pms)
}

func (h *Handler) ListOfferings(c echo.Context) error {
	offs, err := h.store.Offerings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, offs)
}

func (h *Handler) ListFavorites(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	favs, err := h.store.Favorites(c.Request().Context(), acc.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, favs)
}

type favoriteRequest struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
}

func (h *Handler) AddFavorite(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	var req favoriteRequest
	if err := api.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.store.GetByID(ctx, req.ListingID); err != nil {
		return err
	}
	if err := h.store.AddFavorite(ctx, acc.ID, req.ListingID); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"listing_id": req.ListingID})
}

func (h *Handler) RemoveFavorite(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	if err := h.store.RemoveFavorite(c.Request().Context(), acc.ID, c.Param("listing_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
