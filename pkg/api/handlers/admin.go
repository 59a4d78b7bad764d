package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"noticeboard/internal/sweep"
	"noticeboard/pkg/auth"
	"noticeboard/pkg/utils"
)

// RegisterAdmin registers operator endpoints.
func RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/admin/sweep", auth.RequireRole(auth.RoleAdmin, runSweep)).Methods(http.MethodPost)
}

// runSweep triggers an immediate expiry sweep outside the cron schedule.
func runSweep(w http.ResponseWriter, r *http.Request) {
	res, err := sweep.RunImmediate()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, res)
}
