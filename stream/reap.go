// Package stream provides DynamoDB Streams handlers for reap jobs.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/grove/reaper"
	"github.com/jacentio/grove/tree"
)

// Handler processes DynamoDB stream events of the reap jobs table.
type Handler struct {
	reaper *reaper.Reaper
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(r *reaper.Reaper, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		reaper: r,
		logger: logger,
	}
}

// HandleReapJobs reaps the subtree of every newly inserted reap job.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleReapJobs(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Jobs are removed once processed, so only INSERT carries work
	if record.EventName != "INSERT" {
		return nil
	}

	job, err := h.jobFromRecord(ctx, record)
	if err != nil {
		return err
	}
	if job == nil || job.State != tree.ReapPending {
		return nil
	}
	if job.NodeID == "" {
		h.logger.Warn("skipping malformed reap job", "eventID", record.EventID, "job", job.ID)
		return nil
	}

	h.logger.Info("processing reap job",
		"job", job.ID,
		"node", job.NodeID,
		"owner", job.Owner,
	)
	return h.reaper.Process(ctx, *job)
}

// jobFromRecord decodes the job from the stream image. Streams configured
// with KEYS_ONLY carry no image, so the job is loaded from the table; a job
// that is already gone returns nil.
func (h *Handler) jobFromRecord(ctx context.Context, record events.DynamoDBEventRecord) (*tree.ReapJob, error) {
	image := record.Change.NewImage
	if len(image) == 0 {
		id := getStringAttr(record.Change.Keys, "id")
		if id == "" {
			return nil, fmt.Errorf("stream record %s has no job id", record.EventID)
		}
		job, err := h.reaper.Job(ctx, id)
		if errors.Is(err, tree.ErrNotFound) {
			return nil, nil
		}
		return job, err
	}

	job := &tree.ReapJob{
		ID:     getStringAttr(image, "id"),
		NodeID: getStringAttr(image, "node_id"),
		Owner:  getStringAttr(image, "owner"),
		State:  getStringAttr(image, "state"),
	}
	if created := getStringAttr(image, "created_at"); created != "" {
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			job.CreatedAt = t
		}
	}
	return job, nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
