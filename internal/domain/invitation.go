package domain

// Invitation asks Recipient to join a plan. Accepted is nil until replied.
type Invitation struct {
	ID        ID     `json:"_id"`
	PlanID    *ID    `json:"plan_id"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Accepted  *bool  `json:"accepted"`
}

func (i Invitation) Replied() bool { return i.Accepted != nil }
