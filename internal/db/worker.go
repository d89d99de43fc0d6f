package db

import (
	"context"
	"database/sql"
)

// TxFn runs inside one transaction owned by the Worker.
type TxFn func(ctx context.Context, tx *sql.Tx) error

type writeReq struct {
	ctx    context.Context
	fn     TxFn
	result chan error
}

// Worker serializes every write transaction through one goroutine.
// SQLite with a single connection tolerates concurrent writers badly;
// funneling commits through here keeps credential updates and audit
// appends from ever contending.
type Worker struct {
	db    *sql.DB
	queue chan writeReq
	done  chan struct{}
}

func NewWorker(db *sql.DB) *Worker {
	w := &Worker{
		db:    db,
		queue: make(chan writeReq, 256),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Close drains the queue and stops the write loop. Pending writes still
// commit before Close returns.
func (w *Worker) Close() {
	close(w.queue)
	<-w.done
}

// Do submits fn for execution in its own transaction and waits for the
// result. If ctx expires while the write is queued or running, Do
// returns early; the worker still finishes the transaction and the
// result is discarded via the buffered channel.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	result := make(chan error, 1)

	select {
	case w.queue <- writeReq{ctx: ctx, fn: fn, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.done)

	for req := range w.queue {
		tx, err := w.db.BeginTx(req.ctx, nil)
		if err != nil {
			req.result <- err
			continue
		}

		if err := req.fn(req.ctx, tx); err != nil {
			_ = tx.Rollback()
			req.result <- err
			continue
		}

		req.result <- tx.Commit()
	}
}
