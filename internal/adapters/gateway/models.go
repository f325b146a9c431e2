package gateway

import "rollcall/internal/core/activity"

// Contact is one number handed to the gateway for import
type Contact struct {
	ClientID int64  `json:"client_id"`
	Phone    string `json:"phone"`
}

type connectRequest struct {
	FilePath string `json:"file_path,omitempty"`
}

type authorizedResponse struct {
	Authorized bool `json:"authorized"`
}

type importRequest struct {
	Contacts []Contact `json:"contacts"`
	// DeleteAfter asks the gateway to remove the imported contacts again
	DeleteAfter bool `json:"delete_after"`
	// WithPresence asks for the presence of each matched user
	WithPresence bool `json:"with_presence"`
}

// Imported is one matched contact
type Imported struct {
	ClientID int64         `json:"client_id"`
	Phone    string        `json:"phone"`
	User     activity.User `json:"user"`
}

type importResponse struct {
	Imported []Imported `json:"imported"`
}
