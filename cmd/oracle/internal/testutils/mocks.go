package testutils

import (
	"sync"

	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

// PublisherRecorder captures change events published by the write pipeline.
type PublisherRecorder struct {
	Mu     sync.Mutex
	Events []models.ChangeEvent
}

func (p *PublisherRecorder) Publish(ev models.ChangeEvent) {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.Events = append(p.Events, ev)
}

func (p *PublisherRecorder) Last() *models.ChangeEvent {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if len(p.Events) == 0 {
		return nil
	}
	ev := p.Events[len(p.Events)-1]
	return &ev
}

func (p *PublisherRecorder) Count() int {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	return len(p.Events)
}

// LimiterStub answers every quota check with a fixed verdict and records
// which subjects were checked.
type LimiterStub struct {
	Mu      sync.Mutex
	Verdict bool
	Calls   []string
}

func (l *LimiterStub) Allow(subject string) bool {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	l.Calls = append(l.Calls, subject)
	return l.Verdict
}

func (l *LimiterStub) CallCount() int {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return len(l.Calls)
}
