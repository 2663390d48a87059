package main

import (
	"context"

	"github.com/and161185/bloomplan/internal/estimator"
	"github.com/and161185/bloomplan/internal/plandraft"
)

// priceFeed hands estimate snapshots from the estimator to the command
// goroutine. Only the newest snapshot is kept, so observe never blocks.
type priceFeed struct {
	ch   chan plandraft.Estimate
	done chan struct{}
}

func newPriceFeed() *priceFeed {
	return &priceFeed{ch: make(chan plandraft.Estimate, 1), done: make(chan struct{})}
}

// observe replaces any unread snapshot with st. Observer calls are serialized,
// so after the drain the slot is free.
func (f *priceFeed) observe(st plandraft.Estimate) {
	select {
	case <-f.ch:
	default:
	}
	select {
	case f.ch <- st:
	default:
	}
}

func (f *priceFeed) stop() { close(f.done) }

func final(st plandraft.Estimate) bool {
	return st.Phase == estimator.PhaseSettled || st.Phase == estimator.PhaseFailed
}

// wait returns the first final snapshot for seq or later.
func (f *priceFeed) wait(ctx context.Context, seq uint64) (plandraft.Estimate, error) {
	for {
		select {
		case st := <-f.ch:
			if st.Seq >= seq && final(st) {
				return st, nil
			}
		case <-ctx.Done():
			return plandraft.Estimate{}, ctx.Err()
		}
	}
}
