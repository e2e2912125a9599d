package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/inbound"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
)

type sentMessage struct {
	target string
	text   string
	level  outbound.NotificationLevel
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) SendMessage(_ context.Context, target, text string, level outbound.NotificationLevel) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{target: target, text: text, level: level})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type mapDirectory map[string]outbound.UserInfo

func (d mapDirectory) LookupUser(_ context.Context, id string) (outbound.UserInfo, error) {
	u, ok := d[id]
	if !ok {
		return outbound.UserInfo{}, errors.New("user_not_found")
	}
	return u, nil
}

type memoryAudits struct {
	mu   sync.Mutex
	rows []model.CommandAudit
}

func (m *memoryAudits) Create(_ context.Context, a model.CommandAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, a)
	return nil
}

func (m *memoryAudits) List(context.Context, outbound.AuditFilter, outbound.PageRequest) (outbound.PageResult[model.CommandAudit], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return outbound.PageResult[model.CommandAudit]{Items: append([]model.CommandAudit(nil), m.rows...), TotalCount: int64(len(m.rows))}, nil
}

func (m *memoryAudits) all() []model.CommandAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.CommandAudit(nil), m.rows...)
}

var testUsers = mapDirectory{
	"UADMIN": {ID: "UADMIN", Email: "Admin@example.com", RealName: "Ada Admin"},
	"UOPS":   {ID: "UOPS", Email: "ops@example.com", RealName: "Olu Ops"},
	"UOUT":   {ID: "UOUT", Email: "outsider@example.com"},
}

type gatewayFixture struct {
	gw       *Gateway
	cluster  *fakeCluster
	notifier *recordingNotifier
	audits   *memoryAudits
}

func newGatewayFixture(t *testing.T, cfg GatewayConfig) *gatewayFixture {
	t.Helper()
	c := &fakeCluster{
		pods:        []model.PodSummary{{Name: "web-1", Phase: "Running"}},
		deployments: []string{"api"},
	}
	access := NewAccessPolicy(testUsers, AccessConfig{
		AllowedUsers: []string{"ops@example.com"},
		AdminUsers:   []string{"admin@example.com"},
	})
	n := &recordingNotifier{}
	a := &memoryAudits{}
	gw := NewGateway(newTestDispatcher(c, nil), access, nil, n, a, cfg, discardLogger())
	return &gatewayFixture{gw: gw, cluster: c, notifier: n, audits: a}
}

func (f *gatewayFixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.gw.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("gateway did not stop")
		}
	})
}

func (f *gatewayFixture) waitMessages(t *testing.T, n int) []sentMessage {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.notifier.messages()) >= n }, 2*time.Second, 5*time.Millisecond)
	return f.notifier.messages()
}

func TestGateway_SuccessDeliversDMAndChannelSummary(t *testing.T) {
	f := newGatewayFixture(t, GatewayConfig{Workers: 2, QueueSize: 4})
	f.run(t)

	ack, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{
		UserID: "UOPS", ChannelID: "C1", Namespace: "default", Verb: "get",
	})
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.NotEmpty(t, ack.JobID)

	msgs := f.waitMessages(t, 2)
	assert.Equal(t, "UOPS", msgs[0].target)
	assert.Equal(t, outbound.NotificationSuccess, msgs[0].level)
	assert.Contains(t, msgs[0].text, "web-1  Running")
	assert.Equal(t, "C1", msgs[1].target)
	assert.Contains(t, msgs[1].text, "executed by Olu Ops")

	require.Eventually(t, func() bool { return len(f.audits.all()) == 1 }, time.Second, 5*time.Millisecond)
	row := f.audits.all()[0]
	assert.Equal(t, model.AuditSucceeded, row.Outcome)
	assert.Equal(t, "ops@example.com", row.UserEmail)
	assert.Equal(t, ack.JobID, row.JobID)
}

func TestGateway_SummarySkipsDirectMessages(t *testing.T) {
	cases := []struct {
		name        string
		channel     string
		summaryTo   string
		wantTargets []string
	}{
		{"dm without summary channel", "D024BE91L", "", []string{"UOPS"}},
		{"dm falls back to summary channel", "D024BE91L", "C0AUDIT", []string{"UOPS", "C0AUDIT"}},
		{"no channel uses summary channel", "", "C0AUDIT", []string{"UOPS", "C0AUDIT"}},
		{"non-channel summary target ignored", "", "D0AUDIT", []string{"UOPS"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newGatewayFixture(t, GatewayConfig{Workers: 1, QueueSize: 4, SummaryChannel: tc.summaryTo})
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- f.gw.Run(ctx) }()

			_, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{
				UserID: "UOPS", ChannelID: tc.channel, Namespace: "default", Verb: "get",
			})
			require.NoError(t, err)

			// The audit row is written before the result is handed to delivery;
			// Run drains pending deliveries before it returns.
			require.Eventually(t, func() bool { return len(f.audits.all()) == 1 }, time.Second, 5*time.Millisecond)
			cancel()
			require.NoError(t, <-done)

			msgs := f.notifier.messages()
			var targets []string
			for _, m := range msgs {
				targets = append(targets, m.target)
			}
			assert.Equal(t, tc.wantTargets, targets)
		})
	}
}

func TestGateway_UnauthorizedUserGetsRejection(t *testing.T) {
	f := newGatewayFixture(t, GatewayConfig{Workers: 1, QueueSize: 4})
	f.run(t)

	ack, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{UserID: "UOUT", ChannelID: "C1", Namespace: "default", Verb: "get"})
	require.NoError(t, err)
	assert.True(t, ack.Accepted, "authorization happens off the interaction path")

	msgs := f.waitMessages(t, 1)
	assert.Equal(t, "UOUT", msgs[0].target)
	assert.Equal(t, outbound.NotificationError, msgs[0].level)
	assert.Contains(t, msgs[0].text, "not authorized")

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, f.notifier.messages(), 1, "no channel summary for rejections")

	require.Eventually(t, func() bool { return len(f.audits.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.AuditRejected, f.audits.all()[0].Outcome)
}

func TestGateway_ScaleRequiresAdmin(t *testing.T) {
	f := newGatewayFixture(t, GatewayConfig{Workers: 1, QueueSize: 4})
	f.run(t)

	_, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{UserID: "UOPS", Namespace: "default", Verb: "scale", Resource: "api", Replicas: "3"})
	require.NoError(t, err)
	msgs := f.waitMessages(t, 1)
	assert.Contains(t, msgs[0].text, "Only administrators can run scale commands.")

	_, err = f.gw.HandleSubmission(context.Background(), inbound.Submission{UserID: "UADMIN", Namespace: "default", Verb: "scale", Resource: "api", Replicas: "3"})
	require.NoError(t, err)
	msgs = f.waitMessages(t, 2)
	assert.Equal(t, outbound.NotificationSuccess, msgs[1].level)
	assert.Contains(t, msgs[1].text, "Scaled deployment/api in namespace default to 3 replicas.")
}

func TestGateway_DispatchErrorDelivered(t *testing.T) {
	f := newGatewayFixture(t, GatewayConfig{Workers: 1, QueueSize: 4})
	f.run(t)

	_, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{UserID: "UADMIN", Namespace: "default", Verb: "scale", Resource: "api", Replicas: "42"})
	require.NoError(t, err)

	msgs := f.waitMessages(t, 1)
	assert.Equal(t, outbound.NotificationError, msgs[0].level)
	assert.Contains(t, msgs[0].text, "Replicas must be 1-10")

	require.Eventually(t, func() bool { return len(f.audits.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.AuditFailed, f.audits.all()[0].Outcome)
	assert.Equal(t, "dispatch", f.audits.all()[0].ErrorKind)
}

type panickingCluster struct{ *fakeCluster }

func (panickingCluster) ListPods(context.Context, string, outbound.ListOptions) ([]model.PodSummary, error) {
	panic("nil informer")
}

func TestGateway_PanicBecomesDispatchFailure(t *testing.T) {
	access := NewAccessPolicy(testUsers, AccessConfig{AllowedUsers: []string{"ops@example.com"}})
	dispatcher := NewDispatcher(panickingCluster{&fakeCluster{}}, newTestSanitizer(false), nil, DispatcherConfig{}, discardLogger())
	n := &recordingNotifier{}
	a := &memoryAudits{}
	f := &gatewayFixture{gw: NewGateway(dispatcher, access, nil, n, a, GatewayConfig{Workers: 1, QueueSize: 4}, discardLogger()), notifier: n, audits: a}
	f.run(t)

	for i := 0; i < 2; i++ {
		ack, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{UserID: "UOPS", Namespace: "default", Verb: "get"})
		require.NoError(t, err)
		require.True(t, ack.Accepted)
	}

	// The worker survives the first panic and handles the second job too.
	msgs := f.waitMessages(t, 2)
	for _, m := range msgs {
		assert.Equal(t, outbound.NotificationError, m.level)
		assert.Contains(t, m.text, "internal error: nil informer")
	}
	require.Eventually(t, func() bool { return len(f.audits.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.AuditFailed, f.audits.all()[0].Outcome)
	assert.Equal(t, "dispatch", f.audits.all()[0].ErrorKind)
}

func TestGateway_QueueFull(t *testing.T) {
	// Not running and unbuffered: nothing can accept the job.
	f := newGatewayFixture(t, GatewayConfig{Workers: 1, QueueSize: 0})

	ack, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{UserID: "UOPS", Namespace: "default", Verb: "get"})
	require.NoError(t, err)
	assert.False(t, ack.Accepted)
	assert.Equal(t, msgBusy, ack.Text)
}

func TestGateway_PerUserRateLimit(t *testing.T) {
	f := newGatewayFixture(t, GatewayConfig{Workers: 1, QueueSize: 10, PerUserRate: 0.001, PerUserBurst: 1})

	first, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{UserID: "UOPS", Namespace: "default", Verb: "get"})
	require.NoError(t, err)
	assert.True(t, first.Accepted)

	second, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{UserID: "UOPS", Namespace: "default", Verb: "get"})
	require.NoError(t, err)
	assert.False(t, second.Accepted)
	assert.Equal(t, msgRateLimited, second.Text)

	other, err := f.gw.HandleSubmission(context.Background(), inbound.Submission{UserID: "UADMIN", Namespace: "default", Verb: "get"})
	require.NoError(t, err)
	assert.True(t, other.Accepted, "limits are per user")
}

type recordingSearcher struct {
	kind model.ResourceType
	ns   string
}

func (r *recordingSearcher) Search(_ context.Context, kind model.ResourceType, _ string, ns string) []string {
	r.kind, r.ns = kind, ns
	return []string{"a", "b"}
}

func (r *recordingSearcher) Names(context.Context, model.ResourceType, string) []string { return nil }

func TestGateway_SearchOptions(t *testing.T) {
	s := &recordingSearcher{}
	gw := NewGateway(nil, nil, s, &recordingNotifier{}, nil, GatewayConfig{}, discardLogger())

	opts, err := gw.SearchOptions(context.Background(), inbound.OptionsQuery{Verb: "scale", Namespace: "prod", Query: "ap"})
	require.NoError(t, err)
	assert.Equal(t, []inbound.Option{{Label: "a", Value: "a"}, {Label: "b", Value: "b"}}, opts)
	assert.Equal(t, model.ResourceDeployment, s.kind)
	assert.Equal(t, "prod", s.ns)

	_, _ = gw.SearchOptions(context.Background(), inbound.OptionsQuery{Verb: "exec", Namespace: "prod", Query: "we"})
	assert.Equal(t, model.ResourcePod, s.kind)
}

func TestGateway_IsAdmin(t *testing.T) {
	f := newGatewayFixture(t, GatewayConfig{})
	assert.True(t, f.gw.IsAdmin(context.Background(), "UADMIN"))
	assert.False(t, f.gw.IsAdmin(context.Background(), "UOPS"))
	assert.False(t, f.gw.IsAdmin(context.Background(), "UNKNOWN"))
}

func TestSubmissionTokens(t *testing.T) {
	cases := []struct {
		name string
		sub  inbound.Submission
		want []string
	}{
		{"get all pods", inbound.Submission{Verb: "get", Namespace: "prod"}, []string{"get", "pods", "-n", "prod"}},
		{"describe pod", inbound.Submission{Verb: "describe", Resource: "web-1", Namespace: "prod"}, []string{"describe", "pod/web-1", "-n", "prod"}},
		{"restart", inbound.Submission{Verb: "restart", Resource: "api"}, []string{"restart", "deployment/api"}},
		{"scale", inbound.Submission{Verb: "scale", Resource: "api", Namespace: "prod", Replicas: " 3 "}, []string{"scale", "deployment/api", "-n", "prod", "--replicas=3"}},
		{"exec", inbound.Submission{Verb: "exec", Resource: "web-1", Namespace: "prod", ExecLine: "ps aux | grep java"}, []string{"exec", "pod/web-1", "-n", "prod", "--", "ps", "aux", "|", "grep", "java"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SubmissionTokens(tc.sub))
		})
	}
}

func TestPool_RunsInFlightJobsToCompletion(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := NewPool(1, 1, func(ctx context.Context, n int) int {
		close(started)
		<-release
		return n * 2
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, p.Submit(21))
	<-started
	cancel()
	close(release)

	var results []int
	for r := range p.Completions() {
		results = append(results, r)
	}
	require.NoError(t, <-done)
	assert.Equal(t, []int{42}, results)
	assert.ErrorIs(t, p.Submit(1), ErrPoolClosed)
}
