package v1

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/openshelf/openshelf/errs"
	"github.com/openshelf/openshelf/http/response"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
)

func (h *Handler) searchLoans(w http.ResponseWriter, r *http.Request) {
	query, page, limit := searchParams(r)
	results, err := h.search.Loans(query, page, limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, results)
}

func (h *Handler) searchLoansWithBook(w http.ResponseWriter, r *http.Request) {
	query, page, limit := searchParams(r)
	results, err := h.search.LoansWithBook(query, page, limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, results)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	req := &model.CheckoutRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		log.Warn("Failed to decode checkout request", zap.Error(err))
		response.Error(w, r, errs.Validationf("invalid request body"))
		return
	}

	loan, err := h.circulation.Checkout(req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, map[string]int64{"loan_id": loan.LoanID})
}

func (h *Handler) checkin(w http.ResponseWriter, r *http.Request) {
	req := &model.CheckinRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		log.Warn("Failed to decode checkin request", zap.Error(err))
		response.Error(w, r, errs.Validationf("invalid request body"))
		return
	}

	loan, err := h.circulation.Checkin(req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, map[string]int64{"loan_id": loan.LoanID})
}
