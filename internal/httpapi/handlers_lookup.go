package httpapi

import (
	"encoding/json"
	"net/http"

	"formlink/internal/domain"
)

const dictionaryURL = "https://api.dictionaryapi.dev/api/v2/entries/en/hello"

// handleRandomData relays a word definition from the public dictionary API.
// Demo endpoint, not security relevant beyond requiring a login.
func (a *api) handleRandomData(w http.ResponseWriter, r *http.Request, _ domain.User) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, dictionaryURL, nil)
	if err != nil {
		WriteFail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("dictionary fetch failed", "err", err)
		WriteFail(w, http.StatusBadGateway, "upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	var entries []struct {
		Word     string          `json:"word"`
		Meanings json.RawMessage `json:"meanings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil || len(entries) == 0 {
		a.logger.Error("dictionary response malformed", "err", err)
		WriteFail(w, http.StatusBadGateway, "upstream response malformed")
		return
	}

	WriteJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		Data   struct {
			Word    string          `json:"word"`
			Meaning json.RawMessage `json:"meaning"`
		} `json:"data"`
	}{Status: "success", Data: struct {
		Word    string          `json:"word"`
		Meaning json.RawMessage `json:"meaning"`
	}{Word: entries[0].Word, Meaning: entries[0].Meanings}})
}
