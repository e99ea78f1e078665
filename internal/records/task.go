package records

import "time"

// TaskType discriminates task records.
type TaskType string

const (
	TaskDeleteTransfer  TaskType = "DeleteTransfer"
	TaskFetchDebtorInfo TaskType = "FetchDebtorInfo"
)

// Task is a scheduled fire-and-forget server operation.
type Task struct {
	TaskID       int64     `json:"taskId"`
	UserID       int64     `json:"userId"`
	Type         TaskType  `json:"taskType"`
	ScheduledFor time.Time `json:"scheduledFor"`
	Attempts     int       `json:"attempts"`

	// TransferURI is the transfer to delete (DeleteTransfer).
	TransferURI string `json:"transferUri,omitempty"`

	// IRI is the document to fetch and AccountURI the account that needs it
	// (FetchDebtorInfo).
	IRI        string `json:"iri,omitempty"`
	AccountURI string `json:"accountUri,omitempty"`
}
