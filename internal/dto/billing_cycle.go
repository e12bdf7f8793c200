package dto

// RunCycleRequest enqueues a full billing cycle (payment generation plus salary
// materialisation) for one month.
type RunCycleRequest struct {
	Month string `json:"month" validate:"required"`
}

// CyclePayload is the queued job payload for a billing cycle run.
type CyclePayload struct {
	OrganizationID string `json:"organization_id"`
	Month          string `json:"month"`
}
