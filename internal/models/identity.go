package models

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Plan   string
}

func (i Identity) IsPro() bool {
	return i.Plan == PlanPro
}
