// internal/common/camunda/worker.go
package camunda

import (
	"fmt"
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"college-predictor/internal/common/config"
	"college-predictor/internal/common/logger"
)

// JobHandler is implemented by every job worker handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Pool opens job workers on one Zeebe client and closes them together.
type Pool struct {
	client  zbc.Client
	logger  logger.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewPool(client zbc.Client, log logger.Logger) *Pool {
	return &Pool{
		client:  client,
		logger:  log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a worker for taskType unless it is disabled. It reports whether
// a worker was opened.
func (p *Pool) Start(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		p.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, running := p.workers[taskType]; running {
		p.logger.Warn("worker already started", map[string]interface{}{"taskType": taskType})
		return false
	}

	p.workers[taskType] = p.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Name(fmt.Sprintf("%s-worker", taskType)).
		Open()

	p.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

// Len returns the number of open workers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Close stops every worker and waits for in-flight jobs.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for taskType, w := range p.workers {
		p.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		w.Close()
		w.AwaitClose()
		delete(p.workers, taskType)
	}
}
