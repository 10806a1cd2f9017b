package apicommon

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Rhymond/go-money"
	"go.vocdoni.io/dvote/log"
)

// HTTPWriteJSON helper function allows to write a JSON response.
func HTTPWriteJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warnw("failed to encode response", "error", err)
	}
}

// HTTPWriteText writes a plain text 200 response.
func HTTPWriteText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// FormatAmount renders an amount in minor units with the symbol and
// separators of its currency, e.g. 50000 sgd is "$500.00".
func FormatAmount(amount int64, currency string) string {
	if currency == "" {
		return ""
	}
	return money.New(amount, strings.ToUpper(currency)).Display()
}
