package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drawdownwatch/internal/asset"
	"drawdownwatch/internal/fetcher"
	"drawdownwatch/internal/monitor"
	"drawdownwatch/internal/scheduler"
	"drawdownwatch/internal/storage"
	"drawdownwatch/internal/threshold"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *recordingNotifier) Send(ctx context.Context, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return nil
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.subjects...)
}

func history() []decimal.Decimal {
	out := make([]decimal.Decimal, 12)
	for i := range out {
		out[i] = decimal.NewFromInt(100)
	}
	return out
}

func build(source fetcher.PriceSource, notifier *recordingNotifier, opts monitor.Options) []*monitor.Monitor {
	store := storage.NewMemoryStore(nil)
	var monitors []*monitor.Monitor
	for _, id := range asset.All() {
		ctrl := threshold.New(store.Partition(id), threshold.DefaultOptions(), nil, zerolog.Nop())
		monitors = append(monitors, monitor.New(id, source, ctrl, notifier, opts, nil, zerolog.Nop()))
	}
	return monitors
}

func schedulerFactory(interval time.Duration) func() *scheduler.Scheduler {
	return func() *scheduler.Scheduler {
		return scheduler.New(scheduler.Options{Interval: interval, RunImmediately: true}, zerolog.Nop())
	}
}

func TestFatalMonitorStopsOthers(t *testing.T) {
	source := fetcher.NewStatic(map[asset.ID]fetcher.StaticQuote{
		asset.EquityIndex: {Historical: history(), Current: decimal.NewFromInt(99)},
		asset.Crypto:      {HistoricalErr: fetcher.ErrAuth},
	})
	notifier := &recordingNotifier{}
	monitors := build(source, notifier, monitor.Options{MaxConsecutiveFailures: 2})
	sup := New(monitors, schedulerFactory(5*time.Millisecond), notifier, Options{}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, scheduler.ErrFatal) {
			t.Fatalf("应返回致命错误, 实际 %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor 未在致命错误后退出")
	}

	subjects := notifier.all()
	if len(subjects) != 1 || !strings.Contains(subjects[0], "Bitcoin") {
		t.Fatalf("应发送一次致命错误通知, got %v", subjects)
	}
}

func TestCancelStopsAllMonitors(t *testing.T) {
	source := fetcher.NewStatic(map[asset.ID]fetcher.StaticQuote{
		asset.EquityIndex: {Historical: history(), Current: decimal.NewFromInt(99)},
		asset.Crypto:      {Historical: history(), Current: decimal.NewFromInt(99)},
	})
	notifier := &recordingNotifier{}
	monitors := build(source, notifier, monitor.Options{})
	sup := New(monitors, schedulerFactory(time.Hour), notifier, Options{NotifyOnStart: true}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		sp, _ := source.Calls(asset.EquityIndex)
		btc, _ := source.Calls(asset.Crypto)
		if sp == 1 && btc == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitors did not run their first cycle")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("用户中断应正常退出, 实际 %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop after cancel")
	}

	subjects := notifier.all()
	if len(subjects) != 1 || subjects[0] != "drawdownwatch started" {
		t.Fatalf("应只发送启动通知, got %v", subjects)
	}
}

func TestRunWithoutMonitors(t *testing.T) {
	sup := New(nil, schedulerFactory(time.Hour), nil, Options{}, zerolog.Nop())
	if err := sup.Run(context.Background()); err == nil {
		t.Fatal("没有资产时应报错")
	}
}
