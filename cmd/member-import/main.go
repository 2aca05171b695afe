// Command member-import loads the community roster from gzipped registry
// export files. Each line is "id,name,contact". Registry exports overlap:
// a member whose ID appears in two or more exports has a cross-checked
// contact and is imported as verified.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/canteenhq/canteen/internal/domain/member"
	"github.com/canteenhq/canteen/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// rosterLine is one parsed registry export record.
type rosterLine struct {
	id      string
	name    string
	contact string
}

// fileResult holds the records of a single export plus the cross-file
// presence mask per member ID.
type fileResult struct {
	records []rosterLine
	seen    map[string]uint
}

func main() {
	var (
		rosterDir   string
		databaseURL string
	)

	flag.StringVar(&rosterDir, "roster-dir", "rosters", "directory containing roster*.csv.gz export files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, rosterDir, databaseURL); err != nil {
		slog.Error("member import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("member import completed successfully")
}

func run(ctx context.Context, rosterDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(rosterDir, "roster*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "glob roster files")
	}
	if len(files) == 0 {
		return errors.Errorf("no roster*.csv.gz files in %s", rosterDir)
	}

	// Pass 1: build one bloom filter of member IDs per export, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: parse records and mark IDs seen in other exports.
	slog.Info("pass 2: collecting roster records")

	members, err := collectMembers(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "collect roster records")
	}

	slog.Info("roster assembled", slog.Int("members", len(members)))

	if len(members) == 0 {
		slog.Info("no members to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeMembers(ctx, postgres.NewMemberRepository(pool), members); err != nil {
		return errors.Wrap(err, "write members to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per export file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			rec, ok := parseLine(line)
			if !ok {
				return
			}
			filter.AddString(rec.id)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("records", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_records", count),
		)

		filters[idx] = filter
		return nil
	}
}

// collectMembers re-streams each export, parses records, and merges them into
// a deduplicated roster. A member present in 2+ exports is marked verified.
func collectMembers(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]*member.Member, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(collectFromFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge presence masks, first record per ID wins.
	merged := make(map[string]uint)
	byID := make(map[string]rosterLine)
	for _, r := range results {
		for id, mask := range r.seen {
			merged[id] |= mask
		}
		for _, rec := range r.records {
			if _, ok := byID[rec.id]; !ok {
				byID[rec.id] = rec
			}
		}
	}

	now := time.Now()
	members := make([]*member.Member, 0, len(byID))
	for id, rec := range byID {
		members = append(members, &member.Member{
			ID:              id,
			Name:            rec.name,
			Contact:         rec.contact,
			ContactVerified: bits.OnesCount(merged[id]) >= 2,
			JoinedAt:        now,
		})
	}

	return members, nil
}

func collectFromFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		seen := make(map[string]uint)
		var records []rosterLine
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			rec, ok := parseLine(line)
			if !ok {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("records", count),
				)
			}

			records = append(records, rec)
			seen[rec.id] |= fileBit

			// Mark presence in OTHER exports via their bloom filters.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(rec.id) {
					seen[rec.id] |= uint(1) << uint(j)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_records", count),
		)

		results[idx] = fileResult{records: records, seen: seen}
		return nil
	}
}

// parseLine splits "id,name,contact". Malformed lines are skipped.
func parseLine(line string) (rosterLine, bool) {
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return rosterLine{}, false
	}
	rec := rosterLine{
		id:      strings.TrimSpace(parts[0]),
		name:    strings.TrimSpace(parts[1]),
		contact: strings.TrimSpace(parts[2]),
	}
	if rec.id == "" || rec.name == "" {
		return rosterLine{}, false
	}
	return rec, true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeMembers upserts the assembled roster.
func writeMembers(ctx context.Context, repo *postgres.MemberRepository, members []*member.Member) error {
	slog.Info("writing members to database", slog.Int("count", len(members)))

	for i, m := range members {
		if err := repo.Upsert(ctx, m); err != nil {
			return errors.Wrapf(err, "upsert member %s", m.ID)
		}

		if (i+1)%100 == 0 || i+1 == len(members) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(members)))
		}
	}

	return nil
}
