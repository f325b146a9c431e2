package module

import "rollcall/internal/services/sessions/domain"

// Ports exposed by the sessions module
type Ports struct {
	Sessions domain.ServicePort
	Run      domain.RunPort
}
