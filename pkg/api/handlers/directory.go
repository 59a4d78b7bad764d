package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"noticeboard/pkg/auth"
	"noticeboard/pkg/models"
	"noticeboard/pkg/store"
	"noticeboard/pkg/utils"
)

// RegisterDirectory registers the backend-only user and listing mirror
// endpoints. Profile and feed services push copies here so conversation
// views can resolve names and titles locally.
func RegisterDirectory(r *mux.Router) {
	r.HandleFunc("/users/{id}", auth.RequireRole(auth.RoleBackend, putUser)).Methods(http.MethodPut)
	r.HandleFunc("/listings/{id}", auth.RequireRole(auth.RoleBackend, putListing)).Methods(http.MethodPut)
}

func putUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u.ID = id
	if err := store.SaveUser(u); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

func putListing(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var l models.Listing
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	l.ID = id
	if err := store.SaveListing(l); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, l)
}
