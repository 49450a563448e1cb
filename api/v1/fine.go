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

func (h *Handler) payLoanFine(w http.ResponseWriter, r *http.Request) {
	loanID := request.RouteInt64Param(r, "loanID")

	if _, err := h.circulation.PayLoanFine(loanID); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, map[string]any{})
}

func (h *Handler) updateFines(w http.ResponseWriter, r *http.Request) {
	req := &model.UpdateFinesRequest{}
	// An empty body means "as of today".
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			log.Warn("Failed to decode update fines request", zap.Error(err))
			response.Error(w, r, errs.Validationf("invalid request body"))
			return
		}
	}

	if err := h.circulation.UpdateFines(req.Date); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, r, map[string]any{})
}
