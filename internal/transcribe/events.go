package transcribe

import "encoding/json"

// Job state change events arrive out-of-band once a submitted job reaches a
// terminal status. The TranscriptionJobName in the detail equals the job id
// acknowledged at submission, which is what makes correlation-record lookup
// by exact string match possible.

const (
	// StateChangeDetailType is the detail-type of job state change events.
	StateChangeDetailType = "Transcribe Job State Change"

	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// StateChangeDetail is the detail payload of a job state change event.
type StateChangeDetail struct {
	TranscriptionJobName   string `json:"TranscriptionJobName"`
	TranscriptionJobStatus string `json:"TranscriptionJobStatus"`
}

// StateChangeEvent is the full event envelope as delivered to the webhook
// receiver.
type StateChangeEvent struct {
	Version    string            `json:"version"`
	ID         string            `json:"id"`
	DetailType string            `json:"detail-type"`
	Source     string            `json:"source"`
	Time       string            `json:"time"`
	Region     string            `json:"region"`
	Detail     StateChangeDetail `json:"detail"`
}

// ParseStateChangeDetail decodes the raw detail of an incoming event.
func ParseStateChangeDetail(raw []byte) (StateChangeDetail, error) {
	var d StateChangeDetail
	err := json.Unmarshal(raw, &d)
	return d, err
}
