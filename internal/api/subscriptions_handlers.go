package api

import (
	"fmt"
	"net/http"
	"strings"

	"streamnest/internal/models"
)

type subscriptionStateResponse struct {
	Subscribed  bool `json:"subscribed"`
	Subscribers int  `json:"subscribers"`
}

func (h *Handler) toggleSubscription(w http.ResponseWriter, r *http.Request, channel models.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	subscribed, err := h.Store.ToggleSubscription(actor.ID, channel.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionStateResponse{
		Subscribed:  subscribed,
		Subscribers: h.Store.CountSubscribers(channel.ID),
	})
}

// Subscriptions routes /api/subscriptions requests: the channels the caller
// follows, and under /subscribers the accounts following the caller.
func (h *Handler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/subscriptions"), "/")
	switch path {
	case "":
		channels := h.Store.ListSubscribedChannels(actor.ID)
		writeJSON(w, http.StatusOK, map[string]interface{}{"channels": newUserListResponse(channels)})
	case "subscribers":
		subscribers := h.Store.ListSubscribers(actor.ID)
		writeJSON(w, http.StatusOK, map[string]interface{}{"subscribers": newUserListResponse(subscribers)})
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown subscriptions path"))
	}
}

func newUserListResponse(users []models.User) []userResponse {
	response := make([]userResponse, 0, len(users))
	for _, user := range users {
		response = append(response, newUserResponse(user))
	}
	return response
}
