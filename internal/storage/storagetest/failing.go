package storagetest

import (
	"context"
	"errors"
	"sync"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/storage"
)

// ErrStoreDown is returned by Failing once it starts failing writes
var ErrStoreDown = errors.New("store down")

// Failing wraps a store and fails item and player writes after a set
// number of them have succeeded. Reads always pass through.
type Failing struct {
	storage.Storage

	mu        sync.Mutex
	remaining int
	failing   bool
}

// NewFailing wraps store. It behaves like store until FailAfter is called.
func NewFailing(store storage.Storage) *Failing {
	return &Failing{Storage: store}
}

// FailAfter lets n more writes through and fails the rest
func (f *Failing) FailAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = n
	f.failing = true
}

// Recover lets every write through again
func (f *Failing) Recover() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = false
}

func (f *Failing) allow() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.failing {
		return nil
	}
	if f.remaining == 0 {
		return ErrStoreDown
	}
	f.remaining--
	return nil
}

func (f *Failing) CreateItem(ctx context.Context, item *model.Item) error {
	if err := f.allow(); err != nil {
		return err
	}
	return f.Storage.CreateItem(ctx, item)
}

func (f *Failing) SaveItem(ctx context.Context, item *model.Item) error {
	if err := f.allow(); err != nil {
		return err
	}
	return f.Storage.SaveItem(ctx, item)
}

func (f *Failing) SavePlayer(ctx context.Context, player *model.Player) error {
	if err := f.allow(); err != nil {
		return err
	}
	return f.Storage.SavePlayer(ctx, player)
}
