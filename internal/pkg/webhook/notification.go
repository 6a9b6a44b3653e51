// Package webhook authenticates and applies provider withdrawal
// notifications.
package webhook

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Withdrawal statuses reported by the provider.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusError     = "error"
)

// ErrMalformed wraps every shape failure of an inbound notification.
var ErrMalformed = errors.New("malformed webhook payload")

var validate = validator.New()

// Notification is a normalized withdrawal webhook. All fields are trimmed;
// Status and Type are lower case.
type Notification struct {
	ID          string `json:"id" validate:"required"`
	Status      string `json:"status" validate:"required"`
	HashedOrder string `json:"-" validate:"required"`
	ProcessedAt string `json:"processed_at,omitempty"`
	Fee         string `json:"fee,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Address     string `json:"address,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Type        string `json:"type,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ParseForm normalizes form values into a Notification. The notification is
// returned even when the shape check fails so callers can still journal it.
func ParseForm(values url.Values) (Notification, error) {
	field := func(key string) string {
		return strings.TrimSpace(values.Get(key))
	}
	n := Notification{
		ID:          field("id"),
		Status:      strings.ToLower(field("status")),
		HashedOrder: field("hashed_order"),
		ProcessedAt: field("processed_at"),
		Fee:         field("fee"),
		Amount:      field("amount"),
		Address:     field("address"),
		Reference:   field("reference"),
		Type:        strings.ToLower(field("type")),
		Error:       field("error"),
	}
	return n, n.Validate()
}

// Validate checks that id, status and hashed_order are present.
func (n Notification) Validate() error {
	err := validate.Struct(n)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, formName(fe.Field()))
		}
		return fmt.Errorf("%w: missing %s", ErrMalformed, strings.Join(missing, ", "))
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

func formName(field string) string {
	switch field {
	case "ID":
		return "id"
	case "Status":
		return "status"
	case "HashedOrder":
		return "hashed_order"
	default:
		return strings.ToLower(field)
	}
}
