package dispatcher

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

// Named task queues with independent rate limits
const (
	QueueDefault     = "default"
	QueueCrawl       = "crawl_queue"
	QueueMaintenance = "maintenance_queue"
)

// queueLimits holds per-queue token buckets
type queueLimits struct {
	crawl       *rate.Limiter
	maintenance *rate.Limiter
	fallback    *rate.Limiter
}

func newQueueLimits(config *common.DispatcherConfig) *queueLimits {
	perMinute := func(n int) *rate.Limiter {
		if n <= 0 {
			n = 1
		}
		return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	perHour := func(n int) *rate.Limiter {
		if n <= 0 {
			n = 1
		}
		return rate.NewLimiter(rate.Every(time.Hour/time.Duration(n)), 1)
	}

	return &queueLimits{
		crawl:       perMinute(config.CrawlPerMinute),
		maintenance: perHour(config.MaintenancePerHour),
		fallback:    perMinute(config.DefaultPerMinute),
	}
}

// limiter maps a queue name to its token bucket
func (q *queueLimits) limiter(queue string) *rate.Limiter {
	switch queue {
	case QueueCrawl:
		return q.crawl
	case QueueMaintenance:
		return q.maintenance
	default:
		return q.fallback
	}
}

// queueForJob maps a job to its rate-limit queue by task kind. Unknown kinds
// land on the default queue.
func queueForJob(job *models.CrawlJob) string {
	switch job.JobType {
	case models.JobTypeScheduled, models.JobTypeOnDemand:
		return QueueCrawl
	default:
		return QueueDefault
	}
}
