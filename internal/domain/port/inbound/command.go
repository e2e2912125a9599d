package inbound

import "context"

// CommandPort is the boundary between chat front ends and the command gateway.
type CommandPort interface {
	// HandleSubmission queues the request and returns without waiting for the result.
	HandleSubmission(ctx context.Context, sub Submission) (Ack, error)
	SearchOptions(ctx context.Context, q OptionsQuery) ([]Option, error)
	IsAdmin(ctx context.Context, userID string) bool
}

// Submission is the structured payload of a completed command form.
type Submission struct {
	UserID    string
	UserName  string
	ChannelID string
	Namespace string
	Verb      string
	Resource  string
	Replicas  string
	ExecLine  string
}

type Ack struct {
	Accepted bool
	JobID    string
	Text     string
}

type OptionsQuery struct {
	UserID    string
	Verb      string
	Namespace string
	Query     string
}

type Option struct {
	Label string
	Value string
}
