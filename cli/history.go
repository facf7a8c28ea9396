package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/chirag127/spokablepdf/storage"
)

// ListHistory prints all recorded jobs, most recent first.
func ListHistory(ctx context.Context, dbPath string) error {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	jobs, err := store.ListJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tPROVIDER\tSTAGE\tBATCHES")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\n",
			job.ID, job.CreatedAt.Format("2006-01-02 15:04"), job.Source,
			job.Provider, job.Stage, job.Succeeded, job.TotalBatches)
	}
	return w.Flush()
}

// ShowJob prints one recorded job's narration and failure report.
func ShowJob(ctx context.Context, dbPath, id string) error {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.LoadJob(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s (%s, %s) %d/%d batches in %s\n",
		record.Source, record.Provider, record.Stage,
		record.Succeeded, record.TotalBatches, record.Duration)
	for _, failure := range record.Failures {
		fmt.Fprintf(os.Stderr, "  batch %d: %s\n", failure.SequenceNumber, failure.Error)
	}
	fmt.Println(record.Narration)
	return nil
}
