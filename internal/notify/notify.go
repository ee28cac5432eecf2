// Package notify delivers shopper-facing notices and keeps a rolling log of
// operation timings. Nothing here is on the consistency path of the cart.
package notify

import (
	"context"
	"sync"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logging"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/sirupsen/logrus"
)

// LogNotifier writes notices to the log and hands them to an optional
// display callback (a toast widget, a terminal line).
type LogNotifier struct {
	logger  logrus.FieldLogger
	display func(domain.Notice)
}

func NewLogNotifier(logger logrus.FieldLogger, display func(domain.Notice)) *LogNotifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LogNotifier{logger: logger, display: display}
}

func (n *LogNotifier) Notify(_ context.Context, notice domain.Notice) {
	entry := n.logger.WithFields(logrus.Fields{
		"notice_id": notice.ID.String(),
		"kind":      string(notice.Kind),
		"ttl":       notice.TTL.String(),
	})
	if notice.Kind == domain.NoticeError {
		entry.Warn(notice.Message)
	} else {
		entry.Info(notice.Message)
	}

	if n.display != nil {
		n.display(notice)
	}
}

// Reporter is the error hook handed to every component: it logs, shows an
// error notice and counts the failure.
type Reporter struct {
	logger   logrus.FieldLogger
	notifier port.Notifier
	perf     *PerfLog

	mu   sync.Mutex
	last error
}

func NewReporter(logger logrus.FieldLogger, notifier port.Notifier, perf *PerfLog) *Reporter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reporter{logger: logger, notifier: notifier, perf: perf}
}

func (r *Reporter) Report(message string, err error) {
	r.logger.WithError(err).Error(message)

	r.mu.Lock()
	r.last = err
	r.mu.Unlock()

	if r.perf != nil {
		r.perf.RecordFailure(message)
	}
	if r.notifier != nil {
		r.notifier.Notify(context.Background(), domain.NewNotice(domain.NoticeError, message))
	}
}

// Last returns the most recently reported error.
func (r *Reporter) Last() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
