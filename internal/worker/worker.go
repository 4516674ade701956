package worker

import (
	"context"

	"asset-service/internal/broker"
	"asset-service/internal/service"
	"asset-service/internal/util"

	"go.uber.org/zap"
)

// LedgerWorker audits each committed invoice against the movement ledger
type LedgerWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewLedgerWorker creates a new ledger worker
func NewLedgerWorker(consumer *broker.Consumer, reconciler *service.Reconciler) *LedgerWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnInvoiceCreated(reconciler.HandleInvoiceCreated)

	return &LedgerWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *LedgerWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ledger worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *LedgerWorker) Stop() error {
	w.logger.Info("Stopping ledger worker")
	return w.consumer.Close()
}
