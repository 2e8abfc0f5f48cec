package background

import (
	"context"

	"github.com/billvault/checkout-service/internal/usecase/reconciler"
)

type BackgroundTasks struct {
	Poller *reconciler.Poller
}

func NewBackgroundTasks(poller *reconciler.Poller) *BackgroundTasks {
	return &BackgroundTasks{
		Poller: poller,
	}
}

func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	go bt.Poller.Run(ctx)
}
