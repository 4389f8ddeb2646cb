package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/introvirght/engagement-backend/internal/app"
	"github.com/introvirght/engagement-backend/internal/domain"
	"github.com/introvirght/engagement-backend/internal/platform/dbctx"
	"github.com/introvirght/engagement-backend/internal/services"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	*l = append(*l, strings.TrimSpace(v))
	return nil
}

// Re-enqueues embedding jobs for stored diary vectors, e.g. after the embedder changes.
func main() {
	var users idList
	var dryRun bool
	var limit int
	flag.Var(&users, "user", "user id to backfill (repeatable)")
	flag.BoolVar(&dryRun, "dry-run", false, "print actions without enqueuing")
	flag.IntVar(&limit, "limit", 0, "max entries to enqueue (0 = no limit)")
	flag.Parse()

	_ = godotenv.Load()
	if len(users) == 0 {
		fmt.Println("at least one -user is required")
		os.Exit(2)
	}

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app failed: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	dbc := dbctx.Context{Ctx: ctx}
	enqueued := 0
	for _, raw := range users {
		userID, err := uuid.Parse(raw)
		if err != nil {
			fmt.Printf("skip invalid user id %q: %v\n", raw, err)
			continue
		}
		rows, err := application.Repos.DiaryVector.ListByUser(dbc, userID)
		if err != nil {
			fmt.Printf("list vectors failed for user %s: %v\n", userID, err)
			continue
		}
		for _, row := range rows {
			if limit > 0 && enqueued >= limit {
				fmt.Printf("limit reached; enqueued=%d\n", enqueued)
				return
			}
			if dryRun {
				fmt.Printf("[dry-run] enqueue %s entry_id=%s user_id=%s\n", services.JobTypeDiaryEmbeddingUpsert, row.EntryID, userID)
				enqueued++
				continue
			}
			job, err := application.Services.Recall.EnqueueStore(ctx, services.StoreDiaryVectorInput{
				EntryID:  row.EntryID,
				UserID:   row.UserID,
				Content:  row.Content,
				Metadata: metadataOf(row),
			})
			if err != nil {
				fmt.Printf("enqueue failed for entry %s: %v\n", row.EntryID, err)
				continue
			}
			enqueued++
			fmt.Printf("enqueued %s job_id=%s entry_id=%s\n", job.JobType, job.ID, row.EntryID)
		}
	}

	fmt.Printf("done; enqueued=%d\n", enqueued)
}

func metadataOf(row *domain.DiaryVector) domain.DiaryMetadata {
	return domain.DiaryMetadata{
		Mood:      row.Mood,
		Topics:    row.Topics.Data(),
		Sentiment: row.Sentiment,
		WordCount: row.WordCount,
		CreatedAt: row.EntryCreatedAt,
	}
}
