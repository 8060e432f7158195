// Command sync-events pulls recent provider events and runs them through
// the ingestion pipeline. Safe to run repeatedly: already-seen events are
// deduplicated by (provider, provider_event_id).
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	"github.com/ignite/outreach-engine/internal/config"
	"github.com/ignite/outreach-engine/internal/ingest"
	"github.com/ignite/outreach-engine/internal/jobs"
	"github.com/ignite/outreach-engine/internal/smartlead"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	var (
		sinceHours = flag.Int("since-hours", 24, "pull events newer than this many hours")
		limit      = flag.Int("limit", 500, "max events per pull")
		dryRun     = flag.Bool("dry-run", false, "pull and normalize without writing")
		assumeNow  = flag.Bool("assume-now", false, "fill missing occurred_at with the pull time instead of failing")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}

	client := smartlead.NewClient(cfg.Smartlead)
	pipeline := ingest.NewPipeline(db)
	jobStore := jobs.NewStore(db)

	job := jobs.New(jobs.TypeEventSync, nil, nil, map[string]interface{}{
		"since_hours": *sinceHours,
		"limit":       *limit,
		"dry_run":     *dryRun,
	})
	if err := jobStore.Create(ctx, job); err != nil {
		log.Printf("Warning: failed to record job: %v", err)
		job = nil
	}
	if job != nil {
		if err := jobStore.MarkRunning(ctx, job.ID); err != nil {
			log.Printf("Warning: failed to mark job running: %v", err)
		}
	}

	events, err := client.PullEvents(ctx, smartlead.PullOptions{
		Since:               time.Now().Add(-time.Duration(*sinceHours) * time.Hour),
		Limit:               *limit,
		DryRun:              *dryRun,
		AssumeNowOccurredAt: *assumeNow,
		OnTimestampFill: func(filled int) {
			log.Printf("Filled occurred_at on %d event(s)", filled)
		},
	})
	if err != nil {
		if job != nil {
			jobStore.Fail(ctx, job.ID, err.Error())
		}
		log.Fatalf("Pull failed: %v", err)
	}
	log.Printf("Pulled %d event(s)", len(events))

	totals := ingestBatch(ctx, pipeline, events, *dryRun)

	if job != nil {
		if totals.failed > 0 {
			jobStore.Fail(ctx, job.ID, "some events failed to ingest")
		} else {
			jobStore.Complete(ctx, job.ID, map[string]interface{}{
				"pulled":   len(events),
				"inserted": totals.inserted,
				"deduped":  totals.deduped,
			})
		}
	}

	log.Printf("Done: %d inserted, %d deduped, %d failed (dry_run=%v)",
		totals.inserted, totals.deduped, totals.failed, *dryRun)
	if totals.failed > 0 {
		log.Fatal("sync finished with errors")
	}
}

type syncTotals struct {
	inserted int
	deduped  int
	failed   int
}

// ingestBatch runs each pulled event through the pipeline. Deduped counts
// events the store had already seen; a failed event does not stop the batch.
func ingestBatch(ctx context.Context, pipeline *ingest.Pipeline, events []smartlead.Event, dryRun bool) syncTotals {
	var t syncTotals
	for _, ev := range events {
		result, err := pipeline.Ingest(ctx, ev.AsPayload(), ingest.Options{DryRun: dryRun})
		if err != nil {
			log.Printf("Ingest failed for event %s: %v", ev.ProviderEventID, err)
			t.failed++
			continue
		}
		t.inserted += result.Inserted
		if result.Deduped {
			t.deduped++
		}
	}
	return t
}
