package worker

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
	"github.com/openshelf/openshelf/store"
)

// FineUpdateJob recomputes one loan's fine as of a reference date.
type FineUpdateJob struct {
	Loan *model.Loan
	AsOf string
	Rate decimal.Decimal
}

type fineTask struct {
	job       FineUpdateJob
	wg        *sync.WaitGroup
	collector *errCollector
}

// FineUpdatePool fans a fine-update batch out over a fixed set of workers.
// Each job is an independent single-loan upsert, so failures do not stop the
// rest of the batch.
type FineUpdatePool struct {
	queue chan fineTask
}

// NewFineUpdatePool starts the workers. At least one worker always runs so a
// misconfigured size cannot leave Process waiting on an unconsumed queue.
func NewFineUpdatePool(store *store.Store, size int) *FineUpdatePool {
	if size < 1 {
		size = 1
	}
	pool := &FineUpdatePool{
		queue: make(chan fineTask),
	}

	for i := 0; i < size; i++ {
		worker := &FineUpdateWorker{id: i, store: store}
		go worker.Run(pool.queue)
	}
	return pool
}

// Process runs the batch to completion and returns the first error, if any.
func (p *FineUpdatePool) Process(jobs []FineUpdateJob) error {
	var wg sync.WaitGroup
	collector := &errCollector{}

	wg.Add(len(jobs))
	for _, job := range jobs {
		p.queue <- fineTask{job: job, wg: &wg, collector: collector}
	}
	wg.Wait()
	return collector.first()
}

type FineUpdateWorker struct {
	id    int
	store *store.Store
}

func (w *FineUpdateWorker) Run(c <-chan fineTask) {
	log.Debug("FineUpdateWorker is running", zap.Int("worker_id", w.id))

	for task := range c {
		log.Debug("Job received by worker",
			zap.Int("worker_id", w.id),
			zap.Int64("loan_id", task.job.Loan.LoanID))

		if err := w.process(task.job); err != nil {
			log.Error("Failed to update fine",
				zap.Int64("loan_id", task.job.Loan.LoanID),
				zap.Error(err))
			task.collector.add(err)
		}
		task.wg.Done()
	}
}

// process accrues against date_in for a returned loan, the reference date
// otherwise. The upsert skips fines already marked paid, so rerunning a batch
// is idempotent.
func (w *FineUpdateWorker) process(job FineUpdateJob) error {
	reference := job.AsOf
	if job.Loan.DateIn != nil {
		reference = *job.Loan.DateIn
	}

	amount, err := model.FineAmount(job.Loan.DueDate, reference, job.Rate)
	if err != nil {
		return err
	}
	return w.store.UpsertFineAmount(job.Loan.LoanID, amount)
}

type errCollector struct {
	mu  sync.Mutex
	err error
}

func (c *errCollector) add(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *errCollector) first() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
