package asynq

const (
	TaskRunDueCycle  = "publish:run_due"
	TaskPublishDraft = "publish:draft"
)

type RunDueCyclePayload struct {
	Limit int `json:"limit"`
}

type PublishDraftPayload struct {
	DraftID string `json:"draft_id"`
}
