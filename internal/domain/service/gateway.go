package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/inbound"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
	"github.com/v-yash/jarvis/pkg/apierror"
	"github.com/v-yash/jarvis/pkg/metrics"
)

const (
	msgQueued      = "Working on it. The result will arrive as a direct message."
	msgBusy        = "The bot is busy right now, please try again in a moment."
	msgRateLimited = "You are sending commands too quickly, please wait a moment."
	deliverTimeout = 30 * time.Second
)

type GatewayConfig struct {
	Workers   int
	QueueSize int
	// PerUserRate is submissions per second per user; zero disables limiting.
	PerUserRate  float64
	PerUserBurst int
	// SummaryChannel receives a copy of every successful command when the
	// submission did not come from a channel (no channel or a DM).
	SummaryChannel string
}

// Job is one accepted submission waiting for a worker.
type Job struct {
	ID         string
	Submission inbound.Submission
	Accepted   time.Time
}

// Completion is a worker's result, handed to the delivery loop.
type Completion struct {
	Job      Job
	User     outbound.UserInfo
	Command  model.Command
	Output   string
	Err      error
	Duration time.Duration
}

// Gateway accepts submissions from the chat front end, executes them on a
// worker pool and delivers the results as messages.
type Gateway struct {
	dispatcher *Dispatcher
	access     *AccessPolicy
	search     NameSearcher
	notifier   outbound.Notifier
	audits     outbound.AuditRepository
	pool       *Pool[Job, Completion]
	cfg        GatewayConfig
	logger     *slog.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

var _ inbound.CommandPort = (*Gateway)(nil)

// NewGateway wires the gateway. audits may be nil.
func NewGateway(
	dispatcher *Dispatcher,
	access *AccessPolicy,
	search NameSearcher,
	notifier outbound.Notifier,
	audits outbound.AuditRepository,
	cfg GatewayConfig,
	logger *slog.Logger,
) *Gateway {
	g := &Gateway{
		dispatcher: dispatcher,
		access:     access,
		search:     search,
		notifier:   notifier,
		audits:     audits,
		cfg:        cfg,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
	}
	g.pool = NewPool(cfg.Workers, cfg.QueueSize, g.execute)
	return g
}

// Run processes submissions until ctx is cancelled, then drains in-flight jobs
// and their deliveries.
func (g *Gateway) Run(ctx context.Context) error {
	eg := new(errgroup.Group)
	eg.Go(func() error { return g.pool.Run(ctx) })
	eg.Go(func() error {
		for c := range g.pool.Completions() {
			g.deliver(c)
		}
		return nil
	})
	return eg.Wait()
}

// HandleSubmission implements inbound.CommandPort. It never waits for the
// command itself.
func (g *Gateway) HandleSubmission(_ context.Context, sub inbound.Submission) (inbound.Ack, error) {
	if !g.allow(sub.UserID) {
		metrics.SubmissionsRejectedTotal.WithLabelValues("rate_limited").Inc()
		return inbound.Ack{Accepted: false, Text: msgRateLimited}, nil
	}

	job := Job{ID: model.NewID(), Submission: sub, Accepted: time.Now()}
	if err := g.pool.Submit(job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			metrics.SubmissionsRejectedTotal.WithLabelValues("queue_full").Inc()
			g.logger.Warn("submission rejected, queue full", "user", sub.UserID, "verb", sub.Verb)
			return inbound.Ack{Accepted: false, Text: msgBusy}, nil
		}
		return inbound.Ack{}, fmt.Errorf("submit job: %w", err)
	}
	g.logger.Info("submission queued", "job_id", job.ID, "user", sub.UserID, "verb", sub.Verb, "namespace", sub.Namespace)
	return inbound.Ack{Accepted: true, JobID: job.ID, Text: msgQueued}, nil
}

// SearchOptions implements inbound.CommandPort.
func (g *Gateway) SearchOptions(ctx context.Context, q inbound.OptionsQuery) ([]inbound.Option, error) {
	if g.search == nil {
		return nil, nil
	}
	kind := model.ResourcePod
	if v, ok := model.ParseVerb(q.Verb); ok && (v == model.VerbRestart || v == model.VerbScale) {
		kind = model.ResourceDeployment
	}
	names := g.search.Search(ctx, kind, q.Query, q.Namespace)
	opts := make([]inbound.Option, 0, len(names))
	for _, n := range names {
		opts = append(opts, inbound.Option{Label: n, Value: n})
	}
	return opts, nil
}

// IsAdmin implements inbound.CommandPort.
func (g *Gateway) IsAdmin(ctx context.Context, userID string) bool {
	return g.access.IsAdmin(ctx, userID)
}

func (g *Gateway) allow(userID string) bool {
	if g.cfg.PerUserRate <= 0 {
		return true
	}
	g.limitersMu.Lock()
	lim, ok := g.limiters[userID]
	if !ok {
		burst := g.cfg.PerUserBurst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(g.cfg.PerUserRate), burst)
		g.limiters[userID] = lim
	}
	g.limitersMu.Unlock()
	return lim.Allow()
}

// execute runs on a pool worker. Every failure is captured in the Completion,
// including a panic in the command path.
func (g *Gateway) execute(ctx context.Context, job Job) (result Completion) {
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	start := time.Now()
	c := Completion{Job: job}
	finish := func(err error) Completion {
		c.Err = err
		c.Duration = time.Since(start)
		g.record(ctx, c)
		return c
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("command panicked", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			result = finish(apierror.Dispatchf("internal error: %v", r))
		}
	}()

	sub := job.Submission
	verb, _ := model.ParseVerb(sub.Verb)
	user, err := g.access.Authorize(ctx, sub.UserID, verb)
	c.User = user
	if err != nil {
		return finish(err)
	}

	cmd, err := Validate(SubmissionTokens(sub))
	if err != nil {
		return finish(err)
	}
	if cmd.Namespace == "" && cmd.ResourceType.Namespaced() {
		cmd.Namespace = sub.Namespace
	}
	c.Command = cmd

	c.Output, err = g.dispatcher.Dispatch(ctx, cmd)
	return finish(err)
}

func (g *Gateway) record(ctx context.Context, c Completion) {
	outcome := model.AuditSucceeded
	kind := ""
	msg := ""
	if c.Err != nil {
		outcome = model.AuditFailed
		if apiErr, ok := apierror.As(c.Err); ok {
			kind = string(apiErr.Kind)
			if apiErr.Kind != apierror.KindDispatch {
				outcome = model.AuditRejected
			}
		}
		msg = c.Err.Error()
	}

	verb := string(c.Command.Verb)
	if verb == "" {
		verb = strings.ToLower(c.Job.Submission.Verb)
	}
	metrics.CommandsTotal.WithLabelValues(verb, string(outcome)).Inc()
	if c.Err == nil {
		metrics.CommandDurationSeconds.WithLabelValues(verb).Observe(c.Duration.Seconds())
	}

	level := slog.LevelInfo
	if outcome == model.AuditFailed {
		level = slog.LevelError
	}
	g.logger.Log(ctx, level, "command processed",
		"job_id", c.Job.ID, "user", c.Job.Submission.UserID, "command", c.Command.String(),
		"outcome", outcome, "error", c.Err)

	if g.audits == nil {
		return
	}
	audit := model.NewCommandAudit(c.Job.ID, c.Job.Submission.UserID, c.Job.Submission.ChannelID).
		WithCommand(c.Command).
		WithOutcome(outcome, kind, msg)
	audit.UserEmail = c.User.Email
	audit.Duration = c.Duration
	if c.Command.Verb == "" {
		audit.Verb = model.Verb(verb)
		audit.Command = strings.Join(SubmissionTokens(c.Job.Submission), " ")
	}
	if err := g.audits.Create(ctx, audit); err != nil {
		g.logger.Warn("failed to write audit record", "job_id", c.Job.ID, "error", err)
	}
}

// deliver sends the result to the requesting user and, on success, a short
// summary to the channel the command came from.
func (g *Gateway) deliver(c Completion) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	user := c.Job.Submission.UserID
	if c.Err != nil {
		text := fmt.Sprintf("%s\n%s", describeSubmission(c), apierror.UserMessage(c.Err))
		if err := g.notifier.SendMessage(ctx, user, text, outbound.NotificationError); err != nil {
			metrics.DeliveryFailuresTotal.Inc()
			g.logger.Error("failed to deliver rejection", "job_id", c.Job.ID, "user", user, "error", err)
		}
		return
	}

	text := fmt.Sprintf("`%s`\n```\n%s\n```", c.Command.String(), c.Output)
	if err := g.notifier.SendMessage(ctx, user, text, outbound.NotificationSuccess); err != nil {
		metrics.DeliveryFailuresTotal.Inc()
		g.logger.Error("failed to deliver result", "job_id", c.Job.ID, "user", user, "error", err)
	}

	channel := c.Job.Submission.ChannelID
	if !isChannelID(channel) {
		channel = g.cfg.SummaryChannel
	}
	if !isChannelID(channel) {
		return
	}
	who := c.User.RealName
	if who == "" {
		who = c.Job.Submission.UserName
	}
	if who == "" {
		who = "<@" + user + ">"
	}
	summary := fmt.Sprintf("`%s` executed by %s", c.Command.String(), who)
	if err := g.notifier.SendMessage(ctx, channel, summary, outbound.NotificationInfo); err != nil {
		g.logger.Warn("failed to post channel summary", "job_id", c.Job.ID, "channel", channel, "error", err)
	}
}

// isChannelID reports whether id names a conversation channel. Direct
// messages (D...) and group DMs never receive summaries.
func isChannelID(id string) bool {
	return len(id) > 1 && id[0] == 'C'
}

func describeSubmission(c Completion) string {
	if c.Command.Verb != "" {
		return fmt.Sprintf("`%s` failed", c.Command.String())
	}
	return "Your command was rejected"
}

// SubmissionTokens renders a structured form submission as kubectl-style tokens.
func SubmissionTokens(sub inbound.Submission) []string {
	verb := strings.ToLower(strings.TrimSpace(sub.Verb))
	resource := strings.TrimSpace(sub.Resource)

	kind := string(model.ResourcePod)
	if verb == string(model.VerbRestart) || verb == string(model.VerbScale) {
		kind = string(model.ResourceDeployment)
	}
	target := kind + "s"
	if resource != "" {
		target = kind + "/" + resource
	}

	tokens := []string{verb, target}
	if sub.Namespace != "" {
		tokens = append(tokens, "-n", sub.Namespace)
	}
	switch model.Verb(verb) {
	case model.VerbScale:
		if r := strings.TrimSpace(sub.Replicas); r != "" {
			tokens = append(tokens, "--replicas="+r)
		}
	case model.VerbExec:
		tokens = append(tokens, "--")
		tokens = append(tokens, strings.Fields(sub.ExecLine)...)
	}
	return tokens
}
