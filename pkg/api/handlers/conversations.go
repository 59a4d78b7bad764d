package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"noticeboard/pkg/auth"
	"noticeboard/pkg/channel"
	"noticeboard/pkg/convkey"
	"noticeboard/pkg/convo"
	"noticeboard/pkg/directory"
	"noticeboard/pkg/store"
	"noticeboard/pkg/utils"
	"noticeboard/pkg/view"
)

// Deps carries the lookups and settings the conversation handlers need.
type Deps struct {
	Dir       directory.Lookup
	Retention time.Duration
	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RegisterConversations registers the conversation and message routes.
func RegisterConversations(r *mux.Router, deps Deps) {
	h := &convHandlers{deps: deps}
	r.HandleFunc("/conversations/contact", h.contactSeller).Methods(http.MethodPost)
	r.HandleFunc("/conversations/bundle", h.bundleEnquiry).Methods(http.MethodPost)
	r.HandleFunc("/conversations", h.listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/stream", h.streamConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{key}/messages", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{key}/messages", h.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{key}/stream", h.streamMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{key}", h.hideConversation).Methods(http.MethodDelete)
}

type convHandlers struct {
	deps Deps
}

// contactSeller opens (or reuses) the conversation between the caller and
// a seller about one listing and sends the first message.
func (h *convHandlers) contactSeller(w http.ResponseWriter, r *http.Request) {
	me := auth.UserIDFromContext(r.Context())
	var body struct {
		Seller  string `json:"seller"`
		Listing string `json:"listing"`
		Text    string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	key, err := convkey.Resolve(me, body.Seller, body.Listing)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.sendInto(w, key, me, body.Text)
}

// bundleEnquiry opens a single bundle-keyed conversation covering several
// listings; the message text enumerates them.
func (h *convHandlers) bundleEnquiry(w http.ResponseWriter, r *http.Request) {
	me := auth.UserIDFromContext(r.Context())
	var body struct {
		Seller   string   `json:"seller"`
		Listings []string `json:"listings"`
		Note     string   `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(body.Listings) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "listings required")
		return
	}
	key, err := convkey.Resolve(me, body.Seller, convkey.BundleContext)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.sendInto(w, key, me, h.bundleText(body.Listings, body.Note))
}

// bundleText composes the enquiry body: every listing is enumerated by
// title (falling back to its id when the listing is gone).
func (h *convHandlers) bundleText(listings []string, note string) string {
	items := make([]string, 0, len(listings))
	for _, id := range listings {
		label := id
		if l, err := h.deps.Dir.Listing(id); err == nil && l.Title != "" {
			label = l.Title
		}
		items = append(items, label)
	}
	text := "Enquiry about: " + strings.Join(items, ", ")
	if strings.TrimSpace(note) != "" {
		text += "\n" + note
	}
	return text
}

func (h *convHandlers) sendInto(w http.ResponseWriter, key convkey.Key, sender, text string) {
	msg, err := channel.Send(key, sender, text, h.deps.now())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, channel.ErrEmptyText) || errors.Is(err, channel.ErrNotParticipant) {
			status = http.StatusBadRequest
		}
		utils.JSONError(w, status, err.Error())
		return
	}
	c, err := store.GetConversation(key.String())
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]interface{}{
		"conversation": c,
		"message":      msg,
	})
}

func (h *convHandlers) listConversations(w http.ResponseWriter, r *http.Request) {
	me := auth.UserIDFromContext(r.Context())
	lv := view.NewListView(me, h.deps.Dir, h.deps.Retention)
	entries, err := lv.Render()
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{"conversations": entries})
}

func (h *convHandlers) streamConversations(w http.ResponseWriter, r *http.Request) {
	me := auth.UserIDFromContext(r.Context())
	lv := view.NewListView(me, h.deps.Dir, h.deps.Retention)
	snapshots, cancel := lv.Subscribe(r.Context())
	defer cancel()
	streamSSE(w, r, func() (interface{}, bool) {
		entries, ok := <-snapshots
		return entries, ok
	})
}

func (h *convHandlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	me := auth.UserIDFromContext(r.Context())
	key, ok := h.parseKey(w, r, me)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	msg, err := channel.Send(key, me, body.Text, h.deps.now())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, channel.ErrEmptyText) || errors.Is(err, channel.ErrNotParticipant) {
			status = http.StatusBadRequest
		}
		utils.JSONError(w, status, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, msg)
}

func (h *convHandlers) listMessages(w http.ResponseWriter, r *http.Request) {
	me := auth.UserIDFromContext(r.Context())
	key, ok := h.parseKey(w, r, me)
	if !ok {
		return
	}
	msgs, err := store.ListMessages(key.String())
	if err != nil {
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{
		"conversation": key.String(),
		"messages":     msgs,
	})
}

func (h *convHandlers) streamMessages(w http.ResponseWriter, r *http.Request) {
	me := auth.UserIDFromContext(r.Context())
	key, ok := h.parseKey(w, r, me)
	if !ok {
		return
	}
	snapshots, cancel := channel.Subscribe(r.Context(), key)
	defer cancel()
	streamSSE(w, r, func() (interface{}, bool) {
		msgs, okc := <-snapshots
		return msgs, okc
	})
}

// hideConversation soft-deletes the caller's view. The record stays live
// for the other participant. confirm=true is required.
func (h *convHandlers) hideConversation(w http.ResponseWriter, r *http.Request) {
	me := auth.UserIDFromContext(r.Context())
	key, ok := h.parseKey(w, r, me)
	if !ok {
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		utils.JSONError(w, http.StatusBadRequest, "confirm=true required")
		return
	}
	if err := convo.MarkHidden(key, me); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "hidden"})
}

func (h *convHandlers) parseKey(w http.ResponseWriter, r *http.Request, me string) (convkey.Key, bool) {
	raw := mux.Vars(r)["key"]
	key, err := convkey.Decompose(raw)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "malformed conversation key")
		return convkey.Key{}, false
	}
	if !key.Has(me) && auth.RoleFromContext(r.Context()) < auth.RoleBackend {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return convkey.Key{}, false
	}
	return key, true
}
