// internal/common/camunda/worker.go
package camunda

import (
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Registration describes one job worker subscription.
type Registration struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
	Handler       worker.JobHandler
}

// OpenWorker opens a job worker for reg on the wrapped client.
func (c *Client) OpenWorker(reg Registration) (worker.JobWorker, error) {
	if reg.TaskType == "" {
		return nil, fmt.Errorf("task type is required")
	}
	if reg.Handler == nil {
		return nil, fmt.Errorf("handler is required for %s", reg.TaskType)
	}
	if reg.MaxJobsActive <= 0 {
		reg.MaxJobsActive = 5
	}

	step := c.client.NewJobWorker().
		JobType(reg.TaskType).
		Handler(reg.Handler).
		MaxJobsActive(reg.MaxJobsActive).
		Name(fmt.Sprintf("%s-worker", reg.TaskType))
	if reg.Timeout > 0 {
		step = step.Timeout(reg.Timeout)
	}

	return step.Open(), nil
}
