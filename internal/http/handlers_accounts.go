package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Accounts())

	case http.MethodPost:
		var a core.Account
		if err := decodeBody(r, &a); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		created, err := s.store.AddAccount(a)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) handleAccountByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/api/accounts/")
	if id == "" {
		writeBadRequest(w, "missing account id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var a core.Account
		if err := decodeBody(r, &a); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		a.ID = id
		if err := s.store.UpdateAccount(a); err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)

	case http.MethodDelete:
		// Blocked with 409 while transactions still reference the account.
		if err := s.store.RemoveAccount(id); err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeNoContent(w)

	default:
		writeMethodNotAllowed(w)
	}
}

// handleCategories lists the category reference data, optionally narrowed by
// kind, or replaces it wholesale.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		kind := core.CategoryKind(r.URL.Query().Get("kind"))
		if kind != "" && !kind.IsValid() {
			writeBadRequest(w, "invalid kind")
			return
		}
		writeJSON(w, http.StatusOK, s.store.Categories(kind))

	case http.MethodPut:
		var cats []core.Category
		if err := decodeBody(r, &cats); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		if err := s.store.SetCategories(cats); err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		s.invalidateDerived()
		writeJSON(w, http.StatusOK, cats)

	default:
		writeMethodNotAllowed(w)
	}
}

// goalView is a saving goal joined with its derived progress for the
// requested month.
type goalView struct {
	core.SavingGoal
	CurrentAmount core.Money `json:"currentAmount"`
	Remaining     core.Money `json:"remaining"`
	Progress      float64    `json:"progress"`
}

func goalViewFor(g core.SavingGoal, m core.Month) goalView {
	return goalView{
		SavingGoal:    g,
		CurrentAmount: g.CurrentAmount(m),
		Remaining:     g.Remaining(m),
		Progress:      g.Progress(m),
	}
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		month, err := parseMonthParam(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		goals := s.store.Goals()
		views := make([]goalView, len(goals))
		for i, g := range goals {
			views[i] = goalViewFor(g, month)
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var g core.SavingGoal
		if err := decodeBody(r, &g); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		created, err := s.store.AddGoal(g)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		writeMethodNotAllowed(w)
	}
}

// handleGoalByID routes /api/goals/{id} and the entries/complete
// subresources.
func (s *Server) handleGoalByID(w http.ResponseWriter, r *http.Request) {
	id, action := goalAction(r, "/api/goals/")
	if id == "" {
		writeBadRequest(w, "missing goal id")
		return
	}

	switch action {
	case "":
		s.handleGoal(w, r, id)
	case "entries":
		s.handleGoalEntry(w, r, id)
	case "complete":
		s.handleGoalComplete(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	}
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodPut:
		var g core.SavingGoal
		if err := decodeBody(r, &g); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		g.ID = id
		if err := s.store.UpdateGoal(g); err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)

	case http.MethodDelete:
		if err := s.store.RemoveGoal(id); err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeNoContent(w)

	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) handleGoalEntry(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var entry core.GoalEntry
	if err := decodeBody(r, &entry); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.store.AppendGoalEntry(id, entry); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Save(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type completeGoalRequest struct {
	Date core.Date `json:"date"`
}

func (s *Server) handleGoalComplete(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req completeGoalRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := s.store.CompleteGoal(id, req.Date); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Save(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handlePreference(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Preference())

	case http.MethodPut:
		var p core.Preference
		if err := decodeBody(r, &p); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		if err := s.store.SetPreference(p); err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	default:
		writeMethodNotAllowed(w)
	}
}
