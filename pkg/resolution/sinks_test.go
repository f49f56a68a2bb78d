package resolution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var errSink = errors.New("sink unavailable")

// fakeSinks records every call and fails the ones listed in failSteps or
// failKinds.
type fakeSinks struct {
	mu        sync.Mutex
	calls     []string
	failSteps map[string]bool
	failKinds map[ActionKind]bool
	block     chan struct{}
	messages  []string
	seq       int
}

func newFakeSinks() *fakeSinks {
	return &fakeSinks{
		failSteps: map[string]bool{},
		failKinds: map[ActionKind]bool{},
	}
}

func (f *fakeSinks) sinks() Sinks {
	return Sinks{Remote: f, Persistence: f, Notifier: f, Refunds: f, Escalations: f}
}

func (f *fakeSinks) record(kind ActionKind, req ActionRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, string(kind)+":"+req.StepID)
	fail := f.failSteps[req.StepID] || f.failKinds[kind]
	f.seq++
	ref := fmt.Sprintf("%s-%d", kind, f.seq)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if fail {
		return "", errSink
	}
	return ref, nil
}

func (f *fakeSinks) count(kind ActionKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	prefix := string(kind) + ":"
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeSinks) Call(_ context.Context, req ActionRequest, _ RemoteCall) (map[string]any, error) {
	ref, err := f.record(ActionRemoteCall, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{"reference": ref}, nil
}

func (f *fakeSinks) Update(_ context.Context, req ActionRequest, _ PersistenceUpdate) error {
	_, err := f.record(ActionPersistenceUpdate, req)
	return err
}

func (f *fakeSinks) Notify(_ context.Context, req ActionRequest, _, message string) error {
	_, err := f.record(ActionNotification, req)
	if err == nil {
		f.mu.Lock()
		f.messages = append(f.messages, message)
		f.mu.Unlock()
	}
	return err
}

func (f *fakeSinks) Refund(_ context.Context, req ActionRequest, _ Refund) (string, error) {
	return f.record(ActionRefund, req)
}

func (f *fakeSinks) Escalate(_ context.Context, req ActionRequest, _ Escalation) (string, error) {
	return f.record(ActionEscalation, req)
}

// mapDeduper remembers completed keys.
type mapDeduper struct {
	mu   sync.Mutex
	done map[string]string
}

func newMapDeduper() *mapDeduper {
	return &mapDeduper{done: map[string]string{}}
}

func (d *mapDeduper) Do(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (string, bool, error) {
	d.mu.Lock()
	if ref, ok := d.done[key]; ok {
		d.mu.Unlock()
		return ref, true, nil
	}
	d.mu.Unlock()

	ref, err := fn(ctx)
	if err != nil {
		return "", false, err
	}
	d.mu.Lock()
	d.done[key] = ref
	d.mu.Unlock()
	return ref, false, nil
}
