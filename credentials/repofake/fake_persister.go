package credentialsrepofake

import (
	"context"
	"slices"
	"sync"

	"github.com/jrsteele09/go-session-guard/credentials"
)

var _ credentials.Persister = (*FakePersister)(nil)

// FakePersister keeps the persisted session in memory and can be told to fail.
type FakePersister struct {
	lock    sync.Mutex
	stored  *credentials.Persisted
	saveErr error
	loadErr error
	clears  int
	saves   int
}

func NewFakePersister() *FakePersister {
	return &FakePersister{}
}

// Seed stores p as if a previous process had persisted it.
func (f *FakePersister) Seed(p credentials.Persisted) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.stored = clonePersisted(&p)
}

func (f *FakePersister) FailSaves(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.saveErr = err
}

func (f *FakePersister) FailLoads(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.loadErr = err
}

func (f *FakePersister) Load(_ context.Context) (*credentials.Persisted, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return clonePersisted(f.stored), nil
}

func (f *FakePersister) Save(_ context.Context, p credentials.Persisted) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.stored = clonePersisted(&p)
	return nil
}

func (f *FakePersister) Clear(_ context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.clears++
	f.stored = nil
	return nil
}

// Stored returns the current persisted form, nil when cleared.
func (f *FakePersister) Stored() *credentials.Persisted {
	f.lock.Lock()
	defer f.lock.Unlock()
	return clonePersisted(f.stored)
}

func (f *FakePersister) Saves() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.saves
}

func (f *FakePersister) Clears() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.clears
}

func clonePersisted(p *credentials.Persisted) *credentials.Persisted {
	if p == nil {
		return nil
	}
	dup := *p
	dup.Roles = slices.Clone(p.Roles)
	return &dup
}
