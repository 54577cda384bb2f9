package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	alertdomain "github.com/smallbiznis/payequity/internal/alert/domain"
	"github.com/smallbiznis/payequity/internal/config"
	"github.com/smallbiznis/payequity/internal/observability/logger"
	"github.com/smallbiznis/payequity/internal/observability/metrics"
	"github.com/smallbiznis/payequity/internal/providers/slack"
	"github.com/smallbiznis/payequity/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SplitFailure describes an equity split that could not be settled. Class
// tells the receiver whether the company must fix its share price
// (configuration), issue a larger grant (capacity) or whether the request
// itself was malformed (validation).
type SplitFailure struct {
	CompanyID    string
	ContractorID string
	InvoiceID    string
	InvoiceYear  int
	Kind         string
	Class        string
	Detail       string
	// Source is "preview", "acceptance" or "settlement".
	Source string
}

func (f SplitFailure) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "equity split failed (%s): %s for contractor %s, company %s, year %d",
		f.Source, f.Kind, f.ContractorID, f.CompanyID, f.InvoiceYear)
	if f.InvoiceID != "" {
		fmt.Fprintf(&b, ", invoice %s", f.InvoiceID)
	}
	if f.Detail != "" {
		fmt.Fprintf(&b, ": %s", f.Detail)
	}
	return b.String()
}

// Notifier reports split failures without blocking the caller.
type Notifier interface {
	NotifySplitFailure(ctx context.Context, f SplitFailure)
}

type Params struct {
	fx.In

	Config   config.Config
	Policy   *config.EquityPolicyHolder
	Provider slack.Provider
	Log      *zap.Logger
	Metrics  *metrics.Metrics       `optional:"true"`
	Alerts   alertdomain.Repository `optional:"true"`
}

type job struct {
	ctx     context.Context
	failure SplitFailure
}

// AsyncNotifier queues alerts and delivers them from one worker goroutine.
// A full queue drops the alert; delivery errors are logged and swallowed.
type AsyncNotifier struct {
	provider slack.Provider
	policy   *config.EquityPolicyHolder
	channel  string
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
	alerts   alertdomain.Repository

	// mu guards stopped so nothing is queued once the worker starts draining.
	mu      sync.RWMutex
	stopped bool
	queue   chan job
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewAsyncNotifier(p Params) *AsyncNotifier {
	size := p.Config.Alert.QueueSize
	if size <= 0 {
		size = 256
	}
	timeout := time.Duration(p.Config.Alert.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	provider := p.Provider
	if provider == nil {
		provider = &slack.NoOpProvider{}
	}
	return &AsyncNotifier{
		provider: provider,
		policy:   p.Policy,
		channel:  p.Config.Alert.Channel,
		timeout:  timeout,
		log:      p.Log.Named("alert.notifier"),
		metrics:  p.Metrics,
		alerts:   p.Alerts,
		queue:    make(chan job, size),
		done:     make(chan struct{}),
	}
}

func (n *AsyncNotifier) Start() {
	n.wg.Add(1)
	go n.run()
}

// Stop delivers what is already queued, giving up when ctx ends.
func (n *AsyncNotifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.stopped {
		n.stopped = true
		close(n.done)
	}
	n.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *AsyncNotifier) NotifySplitFailure(ctx context.Context, f SplitFailure) {
	if !n.policy.Get().AlertsEnabled {
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stopped {
		n.drop(ctx, f, "stopped")
		return
	}

	j := job{ctx: correlation.Detach(ctx), failure: f}
	select {
	case n.queue <- j:
	default:
		n.drop(ctx, f, "queue_full")
	}
}

func (n *AsyncNotifier) drop(ctx context.Context, f SplitFailure, reason string) {
	n.metrics.RecordAlert(ctx, "slack", "dropped")
	logger.WithContext(ctx, n.log).Warn("equity alert dropped",
		zap.String("reason", reason),
		zap.String("kind", f.Kind),
		zap.String("contractor_id", f.ContractorID),
	)
	n.record(ctx, f, alertdomain.AlertStatusDropped, reason)
}

// record keeps the delivery history. Failures to write it are only logged.
func (n *AsyncNotifier) record(ctx context.Context, f SplitFailure, status alertdomain.AlertStatus, reason string) {
	if n.alerts == nil {
		return
	}
	err := n.alerts.Insert(ctx, &alertdomain.Alert{
		CompanyID:    f.CompanyID,
		ContractorID: f.ContractorID,
		InvoiceID:    f.InvoiceID,
		InvoiceYear:  f.InvoiceYear,
		Kind:         f.Kind,
		Class:        f.Class,
		Source:       f.Source,
		Detail:       f.Detail,
		Channel:      n.channel,
		Status:       status,
		Reason:       reason,
	})
	if err != nil {
		logger.WithContext(ctx, n.log).Warn("equity alert history not recorded",
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (n *AsyncNotifier) run() {
	defer n.wg.Done()
	for {
		select {
		case j := <-n.queue:
			n.deliver(j)
		case <-n.done:
			for {
				select {
				case j := <-n.queue:
					n.deliver(j)
				default:
					return
				}
			}
		}
	}
}

func (n *AsyncNotifier) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, n.timeout)
	defer cancel()

	log := logger.WithContext(ctx, n.log)
	if err := n.provider.PostMessage(ctx, n.channel, j.failure.Message()); err != nil {
		n.metrics.RecordAlert(ctx, "slack", "failed")
		log.Warn("equity alert delivery failed",
			zap.String("kind", j.failure.Kind),
			zap.String("contractor_id", j.failure.ContractorID),
			zap.Error(err),
		)
		n.record(j.ctx, j.failure, alertdomain.AlertStatusFailed, err.Error())
		return
	}
	n.metrics.RecordAlert(ctx, "slack", "sent")
	n.record(j.ctx, j.failure, alertdomain.AlertStatusSent, "")
	log.Info("equity alert sent",
		zap.String("kind", j.failure.Kind),
		zap.String("class", j.failure.Class),
		zap.String("contractor_id", j.failure.ContractorID),
	)
}

var _ Notifier = (*AsyncNotifier)(nil)
