package query

import (
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/errors"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/filter"
)

// Límites de paginación de los listados.
const (
	DefaultLimit = 50
	MaxLimit     = 500
	DefaultSort  = "created_at"
	DefaultOrder = "DESC"
)

// Page es la paginación ya validada de un listado. SortColumn es la
// columna real (resuelta por el allow-list de la entidad), nunca texto
// del cliente.
type Page struct {
	Limit      int
	Offset     int
	SortColumn string
	Order      string // ASC | DESC
}

// ParsePage valida limit/offset/sort/order de la query string contra la
// entidad. El parámetro sort usa los mismos paths que los filtros
// (created_at, responsible.id); cualquier path fuera del allow-list es
// INVALID_PARAMETER.
func ParsePage(params url.Values, entity string) (Page, error) {
	page := Page{Limit: DefaultLimit, Order: DefaultOrder}

	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return Page{}, apperrors.ErrInvalidParameter.WithDetail("limit must be a positive integer")
		}
		if limit > MaxLimit {
			return Page{}, apperrors.ErrInvalidParameter.WithDetail("limit exceeds maximum of " + strconv.Itoa(MaxLimit))
		}
		page.Limit = limit
	}

	if raw := params.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return Page{}, apperrors.ErrInvalidParameter.WithDetail("offset must be a non-negative integer")
		}
		page.Offset = offset
	}

	sortPath := DefaultSort
	if raw := params.Get("sort"); raw != "" {
		sortPath = raw
	}
	col, ok := filter.ColumnFor(entity, sortPath)
	if !ok {
		return Page{}, apperrors.ErrInvalidParameter.WithDetail("sort field " + strconv.Quote(sortPath) + " is not sortable")
	}
	page.SortColumn = col

	if raw := params.Get("order"); raw != "" {
		switch strings.ToUpper(raw) {
		case "ASC":
			page.Order = "ASC"
		case "DESC":
			page.Order = "DESC"
		default:
			return Page{}, apperrors.ErrInvalidParameter.WithDetail("order must be asc or desc")
		}
	}
	return page, nil
}
