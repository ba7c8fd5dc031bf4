package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/model"
)

// BigQuery is the optional streaming sink for interaction log entries. The
// admin analytics pipeline aggregates from the destination table; this layer
// only appends.
type BigQuery interface {
	// InsertInteractions streams interaction rows into the sink table
	InsertInteractions(ctx context.Context, rows []*model.Interaction) error
}

type bigqueryClient struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*bigqueryClient)

// WithTable overrides the destination table name
func WithTable(table string) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.table = table
	}
}

// NewBigQuery creates a new BigQuery sink client
func NewBigQuery(ctx context.Context, projectID, dataset string, opts ...BigQueryOption) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &bigqueryClient{
		client:  client,
		dataset: dataset,
		table:   "idea_interactions",
	}

	for _, opt := range opts {
		opt(bq)
	}

	return bq, nil
}

// interactionRow flattens model.Interaction for the streaming inserter
type interactionRow struct {
	UserID       string    `bigquery:"user_id"`
	SessionID    string    `bigquery:"session_id"`
	IdeaName     string    `bigquery:"idea_name"`
	IdeaCategory string    `bigquery:"idea_category"`
	IdeaRating   float64   `bigquery:"idea_rating"`
	Action       string    `bigquery:"action"`
	Timestamp    time.Time `bigquery:"timestamp"`
	TimeSpentSec int64     `bigquery:"time_spent_sec"`
	Swipe        string    `bigquery:"swipe_direction"`
}

func (bq *bigqueryClient) InsertInteractions(ctx context.Context, rows []*model.Interaction) error {
	if len(rows) == 0 {
		return nil
	}

	records := make([]*interactionRow, 0, len(rows))
	for _, r := range rows {
		records = append(records, &interactionRow{
			UserID:       string(r.UserID),
			SessionID:    string(r.SessionID),
			IdeaName:     r.IdeaName,
			IdeaCategory: r.IdeaCategory,
			IdeaRating:   r.IdeaRating,
			Action:       string(r.Action),
			Timestamp:    r.Timestamp,
			TimeSpentSec: r.TimeSpentSec,
			Swipe:        string(r.Swipe),
		})
	}

	inserter := bq.client.Dataset(bq.dataset).Table(bq.table).Inserter()
	if err := inserter.Put(ctx, records); err != nil {
		return goerr.Wrap(err, "failed to insert interaction rows",
			goerr.V("dataset", bq.dataset), goerr.V("table", bq.table), goerr.V("count", len(records)))
	}

	return nil
}
