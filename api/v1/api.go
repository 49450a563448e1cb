// Package v1 wires the circulation and search services to their HTTP
// routes.
package v1

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openshelf/openshelf/circulation"
	"github.com/openshelf/openshelf/middleware"
	"github.com/openshelf/openshelf/search"
	"github.com/openshelf/openshelf/store"
)

type Handler struct {
	store       *store.Store
	search      *search.Service
	circulation *circulation.Service
	router      *mux.Router
}

func Server(router *mux.Router, store *store.Store, search *search.Service, circulation *circulation.Service) {
	handler := &Handler{
		store:       store,
		search:      search,
		circulation: circulation,
		router:      router,
	}

	sr := router.PathPrefix("/api/v1").Subrouter()
	sr.Use(middleware.CORS)
	sr.Use(middleware.RequestContext)
	sr.Methods(http.MethodOptions)

	sr.HandleFunc("/books/search", handler.searchBooks).Methods(http.MethodGet)
	sr.HandleFunc("/books/search_with_loan", handler.searchBooksWithLoan).Methods(http.MethodGet)
	sr.HandleFunc("/books/create", handler.createBook).Methods(http.MethodPost)

	sr.HandleFunc("/borrower/search", handler.searchBorrowers).Methods(http.MethodGet)
	sr.HandleFunc("/borrower/search_with_info", handler.searchBorrowersWithInfo).Methods(http.MethodGet)
	sr.HandleFunc("/borrower/fines", handler.getBorrowerFines).Methods(http.MethodGet)
	sr.HandleFunc("/borrower/pay_fines", handler.payBorrowerFines).Methods(http.MethodPost)
	sr.HandleFunc("/borrower/create", handler.createBorrower).Methods(http.MethodPost)

	sr.HandleFunc("/loans/search", handler.searchLoans).Methods(http.MethodGet)
	sr.HandleFunc("/loans/search_with_book", handler.searchLoansWithBook).Methods(http.MethodGet)
	sr.HandleFunc("/loans/checkout", handler.checkout).Methods(http.MethodPost)
	sr.HandleFunc("/loans/checkin", handler.checkin).Methods(http.MethodPost)

	sr.HandleFunc("/fines/pay/{loanID}", handler.payLoanFine).Methods(http.MethodPost)
	sr.HandleFunc("/fines/update", handler.updateFines).Methods(http.MethodPost)
}
