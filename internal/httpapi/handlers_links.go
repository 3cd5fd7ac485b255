package httpapi

import (
	"errors"
	"net/http"
	"time"

	"formlink/internal/domain"
)

func (a *api) handleCreateLink(w http.ResponseWriter, r *http.Request, u domain.User) {
	link, err := a.links.CreateLink(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, struct {
		Status  string `json:"status"`
		LinkURL string `json:"linkUrl"`
	}{Status: "success", LinkURL: a.absoluteURL(r, "/form/"+link.ID)})
}

type submitResponseRequest struct {
	Text string `json:"text"`
}

func (a *api) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req submitResponseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteFail(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := a.links.SubmitResponse(r.Context(), r.PathValue("id"), req.Text); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			WriteFail(w, http.StatusBadRequest, "invalid link")
			return
		}
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "response saved"})
}

type linkResponseBody struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type linkBody struct {
	ID        string             `json:"id"`
	Owner     *userResponse      `json:"owner,omitempty"`
	Responses []linkResponseBody `json:"responses"`
	CreatedAt time.Time          `json:"created_at"`
}

func (a *api) handleListLinks(w http.ResponseWriter, r *http.Request, u domain.User) {
	links, err := a.links.ListLinks(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out := make([]linkBody, 0, len(links))
	for _, l := range links {
		body := linkBody{ID: l.ID, CreatedAt: l.CreatedAt, Responses: []linkResponseBody{}}
		if l.Owner != nil {
			owner := toUserResponse(*l.Owner)
			body.Owner = &owner
		}
		for _, resp := range l.Responses {
			body.Responses = append(body.Responses, linkResponseBody{Text: resp.Text, CreatedAt: resp.CreatedAt})
		}
		out = append(out, body)
	}

	WriteJSON(w, http.StatusOK, struct {
		Status string     `json:"status"`
		Links  []linkBody `json:"links"`
	}{Status: "success", Links: out})
}
