package usecase

import (
	"context"
	"encoding/json"

	"UrbanPull/internal/domain/models"
	drepo "UrbanPull/internal/domain/repository"
	"UrbanPull/pkg/logger"
	"UrbanPull/pkg/queue"
)

// RefreshJobType is the queue message type for asynchronous refreshes.
const RefreshJobType = "indicator.refresh"

// RefreshTask is the queued form of a descriptor. AdminLevel stays a pointer
// so a task without a level is rejected rather than read as level 0.
type RefreshTask struct {
	Indicator  string `json:"indicator"`
	AdminLevel *int   `json:"admin_level"`
	Taxonomy   string `json:"taxonomy,omitempty"`
	Period     string `json:"period,omitempty"`
}

func NewRefreshTask(ind *models.Indicator) RefreshTask {
	t := RefreshTask{Indicator: ind.Indicator, Taxonomy: ind.Taxonomy, Period: ind.Period}
	if level, ok := ind.AdminLevelValue(); ok {
		l := int(level)
		t.AdminLevel = &l
	}
	return t
}

func (t RefreshTask) Descriptor() *models.Indicator {
	ind := &models.Indicator{Indicator: t.Indicator, Taxonomy: t.Taxonomy, Period: t.Period}
	if t.AdminLevel != nil {
		ind.SetAdminLevel(models.AdminLevel(*t.AdminLevel))
	}
	return ind
}

// RefreshJob executes queued refresh tasks with a cache-bypassing fetch.
type RefreshJob struct {
	query   *IndicatorQuery
	bcast   drepo.Broadcaster
	metrics drepo.Metrics
	log     *logger.Logger
}

var _ queue.Job = (*RefreshJob)(nil)

// NewRefreshJob creates the job. bcast may be nil.
func NewRefreshJob(query *IndicatorQuery, bcast drepo.Broadcaster, metrics drepo.Metrics, log *logger.Logger) *RefreshJob {
	if log == nil {
		log = logger.Nop()
	}
	return &RefreshJob{query: query, bcast: bcast, metrics: metrics, log: log.With(logger.String("component", "refresh_job"))}
}

func (j *RefreshJob) Type() string { return RefreshJobType }

// Handle fetches the task's descriptor. Tasks that can never succeed are
// dropped with a warning instead of being retried.
func (j *RefreshJob) Handle(ctx context.Context, payload json.RawMessage) error {
	task, err := queue.Decode[RefreshTask](payload)
	if err != nil {
		j.metrics.RecordError("refresh_decode")
		j.log.Warn("dropping undecodable refresh task", logger.Error(err))
		return nil
	}
	ind := task.Descriptor()
	if err := ind.Validate(); err != nil {
		j.metrics.RecordError("refresh_invalid")
		j.log.Warn("dropping invalid refresh task", logger.String("indicator", task.Indicator), logger.Error(err))
		return nil
	}

	snap, err := j.query.Get(ctx, ind, true)
	if err != nil {
		return err
	}
	if j.bcast != nil {
		j.bcast.Broadcast(snap)
	}
	return nil
}
