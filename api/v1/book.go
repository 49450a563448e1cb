package v1

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/http/request"
	"github.com/openshelf/openshelf/http/response"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// searchParams pulls the query string and pagination out of a search
// request. Zero means absent; the search service decides whether the query
// itself supplies pagination.
func searchParams(r *http.Request) (query string, page, limit int) {
	query = request.QueryStringParam(r, "query", "")
	page = request.QueryIntParam(r, "page", 0)
	limit = request.QueryIntParam(r, "limit", 0)
	return query, page, limit
}

func (h *Handler) searchBooks(w http.ResponseWriter, r *http.Request) {
	query, page, limit := searchParams(r)
	results, err := h.search.Books(query, page, limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, results)
}

func (h *Handler) searchBooksWithLoan(w http.ResponseWriter, r *http.Request) {
	query, page, limit := searchParams(r)
	results, err := h.search.BooksWithLoan(query, page, limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, results)
}

func (h *Handler) createBook(w http.ResponseWriter, r *http.Request) {
	create := &model.BookCreateRequest{}
	if err := json.NewDecoder(r.Body).Decode(create); err != nil {
		log.Warn("Failed to decode book create request", zap.Error(err))
		response.Error(w, r, errs.Validationf("invalid request body"))
		return
	}

	book, err := h.circulation.AddBook(create)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, r, book)
}
