// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package notify sends notification mails to account holders.

A Dispatcher renders localized html templates and hands the result to a Mailer
from a pool of workers. Sending never blocks the caller and never reports an
error back: when the queue is full the notification is dropped, failed
deliveries are retried a few times with increasing delay and then logged.
*/
package notify

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/labadmin/core/account"
	"github.com/relabs-tech/labadmin/core/logger"
)

// Builder is a builder helper for the Dispatcher
type Builder struct {
	// Mailer delivers the messages. Defaults to LogMailer.
	Mailer Mailer
	// From is the sender address
	From string
	// BaseURL is the url of the web application, used for links in mails
	BaseURL string
	// Concurrency is the number of workers. Defaults to 2.
	Concurrency int
	// QueueSize is the number of notifications waiting for a worker before new ones
	// are dropped. Defaults to 100.
	QueueSize int
	// Attempts is the number of delivery attempts per notification. Defaults to 3.
	Attempts int
	// RetryDelay is the delay before the second attempt, doubled for every further one.
	// Defaults to one second.
	RetryDelay time.Duration
	// SlowThreshold is the duration after which a delivery attempt is reported as slow.
	// Defaults to 20 seconds.
	SlowThreshold time.Duration
	// Registerer registers the notification counter. If nil, the counter is not registered.
	Registerer prometheus.Registerer
}

type job struct {
	template    string
	titleKey    string
	recipient   account.Account
	to          string
	vars        map[string]interface{}
	contextData []byte
}

// Dispatcher sends notifications asynchronously
type Dispatcher struct {
	mailer        Mailer
	from          string
	baseURL       string
	attempts      int
	retryDelay    time.Duration
	slowThreshold time.Duration
	catalog       *catalog
	counter       *prometheus.CounterVec

	mutex  sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// New creates a dispatcher and starts its workers
func New(nb *Builder) (*Dispatcher, error) {
	c, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	counter, err := newNotificationsCounter(nb.Registerer)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		mailer:        nb.Mailer,
		from:          nb.From,
		baseURL:       nb.BaseURL,
		attempts:      nb.Attempts,
		retryDelay:    nb.RetryDelay,
		slowThreshold: nb.SlowThreshold,
		catalog:       c,
		counter:       counter,
	}
	if d.mailer == nil {
		d.mailer = LogMailer{}
	}
	if d.attempts <= 0 {
		d.attempts = 3
	}
	if d.retryDelay <= 0 {
		d.retryDelay = time.Second
	}
	if d.slowThreshold <= 0 {
		d.slowThreshold = 20 * time.Second
	}
	concurrency := nb.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	queueSize := nb.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	d.queue = make(chan job, queueSize)
	for i := 0; i < concurrency; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d, nil
}

// Send queues the notification templateName for recipient and returns immediately. The
// subject is the message titleKey in the recipient's language, vars are
// available in the template next to user and baseUrl.
func (d *Dispatcher) Send(ctx context.Context, templateName string, recipient account.Account, titleKey string, vars map[string]interface{}) {
	d.send(ctx, job{
		template:  templateName,
		titleKey:  titleKey,
		recipient: recipient,
		to:        recipient.Email,
		vars:      vars,
	})
}

func (d *Dispatcher) send(ctx context.Context, j job) {
	rlog := logger.FromContext(ctx)
	j.contextData = logger.SerializeLoggerContext(ctx)

	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if d.closed {
		rlog.Warnf("dispatcher closed, dropping %s mail to %s", j.template, j.to)
		d.counter.WithLabelValues(j.template, OutcomeDropped).Inc()
		return
	}
	select {
	case d.queue <- j:
		rlog.Debugf("queued %s mail to %s", j.template, j.to)
	default:
		rlog.Errorf("Error 4801: notification queue full, dropping %s mail to %s", j.template, j.to)
		d.counter.WithLabelValues(j.template, OutcomeDropped).Inc()
	}
}

// SendCreation notifies a new account holder that an account was created for them.
// It implements account.Notifier.
func (d *Dispatcher) SendCreation(ctx context.Context, a account.Account) {
	d.Send(ctx, TemplateCreation, a, TitleActivation, nil)
}

// SendActivation asks receiver to review the activation of account a
func (d *Dispatcher) SendActivation(ctx context.Context, a account.Account, receiver, receiverFirstName string) {
	d.send(ctx, job{
		template:  TemplateActivation,
		titleKey:  TitleActivation,
		recipient: a,
		to:        receiver,
		vars:      map[string]interface{}{"firstname": receiverFirstName},
	})
}

// SendActivationConfirmation tells the account holder that the account is active
func (d *Dispatcher) SendActivationConfirmation(ctx context.Context, a account.Account) {
	d.Send(ctx, TemplateActivationConfirmation, a, TitleActivationConfirmation, nil)
}

// SendPasswordReset sends the account holder a link to reset the password
func (d *Dispatcher) SendPasswordReset(ctx context.Context, a account.Account) {
	d.Send(ctx, TemplatePasswordReset, a, TitleReset, nil)
}

// SendSubscription tells the leader of project that lab subscribed to it
func (d *Dispatcher) SendSubscription(ctx context.Context, leader account.Account, lab account.Lab, project account.Project) {
	d.Send(ctx, TemplateSubscription, leader, TitleSubscription, map[string]interface{}{
		"lab":     lab,
		"project": project,
	})
}

// Close stops accepting notifications, delivers the queued ones and stops the workers
func (d *Dispatcher) Close() {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mutex.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		ctx := logger.ContextWithLoggerFromData(context.Background(), j.contextData)
		rlog := logger.FromContext(ctx)
		if err := d.deliver(ctx, j); err != nil {
			rlog.WithError(err).Errorf("Error 4802: cannot send %s mail to %s", j.template, j.to)
			d.counter.WithLabelValues(j.template, OutcomeFailed).Inc()
			continue
		}
		rlog.Infof("sent %s mail to %s", j.template, j.to)
		d.counter.WithLabelValues(j.template, OutcomeSent).Inc()
	}
}

// deliver renders the job and sends it, retrying failed attempts
func (d *Dispatcher) deliver(ctx context.Context, j job) error {
	msg, err := d.render(ctx, j)
	if err != nil {
		return err
	}
	delay := d.retryDelay
	for attempt := 1; ; attempt++ {
		err = d.attempt(ctx, msg)
		if err == nil {
			return nil
		}
		if attempt >= d.attempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		logger.FromContext(ctx).WithError(err).Warnf("attempt %d to send %s mail to %s failed", attempt, j.template, j.to)
		time.Sleep(delay)
		delay *= 2
	}
}

func (d *Dispatcher) render(ctx context.Context, j job) (Message, error) {
	lang := d.catalog.lang(j.recipient.LangKey)
	vars := map[string]interface{}{}
	for k, v := range j.vars {
		vars[k] = v
	}
	vars["user"] = j.recipient
	vars["baseUrl"] = d.baseURL
	vars["lang"] = lang

	subject, body, err := d.catalog.render(j.template, j.titleKey, lang, vars)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Template:  j.template,
		From:      d.from,
		To:        j.to,
		Subject:   subject,
		Body:      body,
		Lang:      lang,
		RequestID: logger.RequestIDFromContext(ctx),
	}, nil
}

// attempt calls the mailer in a panic/recover envelope
func (d *Dispatcher) attempt(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v", r)
			debug.PrintStack()
		}
	}()
	timeout := time.AfterFunc(d.slowThreshold, func() {
		logger.FromContext(ctx).Errorf("This (%s mail to %s) is taking a long time...", msg.Template, msg.To)
	})
	defer timeout.Stop()
	return d.mailer.Send(ctx, msg)
}
