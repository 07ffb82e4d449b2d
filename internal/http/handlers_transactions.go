package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
)

// handleTransactions lists transactions through the filter/sort engine or
// creates a new one through the transaction service.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filters, sortState, err := parseListParams(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		txs := core.ApplyFiltersAndSort(s.store.Transactions(), filters, sortState)
		writeJSON(w, http.StatusOK, txs)

	case http.MethodPost:
		t, err := decodeTransaction(r)
		if err != nil {
			s.writeDecodeError(w, err)
			return
		}
		created, err := s.transactions.Create(r.Context(), t)
		if err != nil {
			writeError(w, err)
			return
		}
		s.invalidateDerived()
		writeJSON(w, http.StatusCreated, created)

	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/api/transactions/")
	if id == "" {
		writeBadRequest(w, "missing transaction id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := s.store.Transaction(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)

	case http.MethodPut:
		t, err := decodeTransaction(r)
		if err != nil {
			s.writeDecodeError(w, err)
			return
		}
		t.ID = id
		if err := s.transactions.Update(r.Context(), t); err != nil {
			writeError(w, err)
			return
		}
		s.invalidateDerived()
		writeJSON(w, http.StatusOK, t)

	case http.MethodDelete:
		if err := s.transactions.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		s.invalidateDerived()
		writeNoContent(w)

	default:
		writeMethodNotAllowed(w)
	}
}

// writeDecodeError distinguishes a malformed body (400) from a well-formed
// body with an invalid field (422).
func (s *Server) writeDecodeError(w http.ResponseWriter, err error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		writeError(w, err)
		return
	}
	writeBadRequest(w, err.Error())
}
