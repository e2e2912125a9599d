package model

import "time"

type AuditOutcome string

const (
	AuditSucceeded AuditOutcome = "succeeded"
	AuditRejected  AuditOutcome = "rejected"
	AuditFailed    AuditOutcome = "failed"
)

// CommandAudit records one processed submission, whether or not it reached the cluster.
type CommandAudit struct {
	ID           string            `json:"id"`
	JobID        string            `json:"job_id"`
	UserID       string            `json:"user_id"`
	UserEmail    string            `json:"user_email"`
	ChannelID    string            `json:"channel_id"`
	Verb         Verb              `json:"verb"`
	ResourceType ResourceType      `json:"resource_type"`
	ResourceName string            `json:"resource_name"`
	Namespace    string            `json:"namespace"`
	Command      string            `json:"command"`
	Outcome      AuditOutcome      `json:"outcome"`
	ErrorKind    string            `json:"error_kind"`
	Message      string            `json:"message"`
	Duration     time.Duration     `json:"duration"`
	Metadata     map[string]string `json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}

func NewCommandAudit(jobID, userID, channelID string) CommandAudit {
	return CommandAudit{
		ID:        NewID(),
		JobID:     jobID,
		UserID:    userID,
		ChannelID: channelID,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
}

func (a CommandAudit) WithCommand(cmd Command) CommandAudit {
	a.Verb = cmd.Verb
	a.ResourceType = cmd.ResourceType
	a.ResourceName = cmd.ResourceName
	a.Namespace = cmd.Namespace
	a.Command = cmd.String()
	return a
}

func (a CommandAudit) WithOutcome(outcome AuditOutcome, errorKind, message string) CommandAudit {
	a.Outcome = outcome
	a.ErrorKind = errorKind
	a.Message = message
	return a
}

func (a CommandAudit) WithMetadata(key, value string) CommandAudit {
	meta := make(map[string]string, len(a.Metadata)+1)
	for k, v := range a.Metadata {
		meta[k] = v
	}
	meta[key] = value
	a.Metadata = meta
	return a
}
