package v1

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/http/request"
	"github.com/openshelf/openshelf/http/response"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
)

func (h *Handler) searchBorrowers(w http.ResponseWriter, r *http.Request) {
	query, page, limit := searchParams(r)
	results, err := h.search.Borrowers(query, page, limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, results)
}

func (h *Handler) searchBorrowersWithInfo(w http.ResponseWriter, r *http.Request) {
	query, page, limit := searchParams(r)
	results, err := h.search.BorrowersWithInfo(query, page, limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, results)
}

func (h *Handler) getBorrowerFines(w http.ResponseWriter, r *http.Request) {
	cardID := request.QueryStringParam(r, "card_id", "")
	includePaid := request.QueryBoolParam(r, "include_paid", false)

	total, err := h.circulation.BorrowerFineTotal(cardID, includePaid)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, map[string]any{
		"card_id": cardID,
		"total":   total,
	})
}

func (h *Handler) payBorrowerFines(w http.ResponseWriter, r *http.Request) {
	req := &model.PayFinesRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		log.Warn("Failed to decode pay fines request", zap.Error(err))
		response.Error(w, r, errs.Validationf("invalid request body"))
		return
	}

	loans, err := h.circulation.PayBorrowerFines(req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, loans)
}

func (h *Handler) createBorrower(w http.ResponseWriter, r *http.Request) {
	create := &model.BorrowerCreateRequest{}
	if err := json.NewDecoder(r.Body).Decode(create); err != nil {
		log.Warn("Failed to decode borrower create request", zap.Error(err))
		response.Error(w, r, errs.Validationf("invalid request body"))
		return
	}

	borrower, err := h.circulation.RegisterBorrower(create)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, r, map[string]string{
		"card_id": borrower.CardID,
		"name":    borrower.Name,
	})
}
