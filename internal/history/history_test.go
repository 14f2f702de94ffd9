package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/leadhunter/internal/compose"
	"github.com/jmylchreest/leadhunter/pkg/lead"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

var params = lead.Params{Niche: "dentist", Location: "Austin", Limit: 3}

func TestRecordRunAndReadBack(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	leads := []lead.Lead{
		{Name: "Elite Wellness", Location: "Austin", Website: "https://elitewell.com", Rating: "3.9", Contact: lead.Found("hello@elitewell.com")},
		{Name: "Corner Clinic", Location: "Austin", Contact: lead.NoWebsite()},
		{Name: "Quiet Dental", Location: "Austin", Website: "https://quiet.example", Contact: lead.Unreachable(errors.New("timeout"))},
	}

	id, err := s.RecordRun(ctx, params, leads, nil)
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if id == "" {
		t.Fatal("empty run ID")
	}

	got, err := s.RunLeads(ctx, id)
	if err != nil {
		t.Fatalf("RunLeads() error = %v", err)
	}
	if !reflect.DeepEqual(got, leads) {
		t.Errorf("RunLeads() =\n%+v\nwant\n%+v", got, leads)
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Leads != 3 || run.Found != 1 || run.Niche != "dentist" || run.Limit != 3 || run.Error != "" {
		t.Errorf("run = %+v", run)
	}
}

func TestRecordFailedRun(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	id, err := s.RecordRun(ctx, params, nil, errors.New("search page navigation failed"))
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	run, _ := s.GetRun(ctx, id)
	if run.Error != "search page navigation failed" || run.Leads != 0 {
		t.Errorf("run = %+v", run)
	}
	leads, err := s.RunLeads(ctx, id)
	if err != nil || len(leads) != 0 {
		t.Errorf("RunLeads() = %v, %v", leads, err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	var ids []string
	for _, niche := range []string{"a", "b", "c"} {
		p := params
		p.Niche = niche
		id, err := s.RecordRun(ctx, p, nil, nil)
		if err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
		ids = append(ids, id)
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("ListRuns(2) = %+v", runs)
	}
	if !runs[0].CreatedAt.After(runs[1].CreatedAt) {
		t.Errorf("timestamps not descending: %v, %v", runs[0].CreatedAt, runs[1].CreatedAt)
	}

	all, _ := s.ListRuns(ctx, 0)
	if len(all) != 3 {
		t.Errorf("ListRuns(0) returned %d runs, want 3", len(all))
	}
}

func TestUnknownRun(t *testing.T) {
	s := openTest(t)
	if _, err := s.RunLeads(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
}

func TestRecordPitch(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	l := lead.Lead{Name: "Elite Wellness", Contact: lead.Found("hello@elitewell.com")}
	id, err := s.RecordRun(ctx, params, []lead.Lead{l}, nil)
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	pitch := compose.Pitch{Subject: "Business Growth Inquiry", Body: "Hi", Provider: "gemini", Model: "gemini-2.0-flash"}
	if err := s.RecordPitch(ctx, id, l, pitch, nil); err != nil {
		t.Fatalf("RecordPitch() error = %v", err)
	}
	if err := s.RecordPitch(ctx, id, l, pitch, errors.New("535 auth failed")); err != nil {
		t.Fatalf("RecordPitch() error = %v", err)
	}

	got, err := s.RunPitches(ctx, id)
	if err != nil {
		t.Fatalf("RunPitches() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d pitches, want 2", len(got))
	}
	if got[0].Recipient != "hello@elitewell.com" || got[0].Error != "" || got[0].Model != "gemini-2.0-flash" {
		t.Errorf("first pitch = %+v", got[0])
	}
	if got[1].Error != "535 auth failed" {
		t.Errorf("second pitch error = %q", got[1].Error)
	}
	if got[0].SentAt.IsZero() {
		t.Error("sent_at not recorded")
	}
}

func TestPitchRequiresRun(t *testing.T) {
	s := openTest(t)
	err := s.RecordPitch(context.Background(), "missing", lead.Lead{Name: "x"}, compose.Pitch{}, nil)
	if err == nil {
		t.Error("expected foreign key violation for unknown run")
	}
}

func TestOpenPathWithURIMetacharacters(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		file string
	}{
		{name: "query mark", dir: "runs?1", file: "history.db"},
		{name: "fragment", dir: "runs#1", file: "history.db"},
		{name: "percent and space", dir: "100% leads", file: "h%20b.db"},
		{name: "file name", dir: "plain", file: "history?mode=ro#x.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.dir, tt.file)
			s, err := Open(path)
			if err != nil {
				t.Fatalf("Open(%q) error = %v", path, err)
			}
			ctx := context.Background()
			id, err := s.RecordRun(ctx, params, nil, nil)
			if err != nil {
				t.Fatalf("RecordRun() error = %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			if _, err := os.Stat(path); err != nil {
				t.Fatalf("database not created at %q: %v", path, err)
			}

			s, err = Open(path)
			if err != nil {
				t.Fatalf("reopen error = %v", err)
			}
			defer s.Close()
			runs, err := s.ListRuns(ctx, 0)
			if err != nil {
				t.Fatalf("ListRuns() error = %v", err)
			}
			if len(runs) != 1 || runs[0].ID != id {
				t.Errorf("ListRuns() = %+v, want run %s", runs, id)
			}
		})
	}
}

func TestDSNEscapesPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/tmp/history.db", want: "file:/tmp/history.db?"},
		{path: "/tmp/a?b/h.db", want: "file:/tmp/a%3Fb/h.db?"},
		{path: "/tmp/a#b/h.db", want: "file:/tmp/a%23b/h.db?"},
		{path: "/tmp/100%/h.db", want: "file:/tmp/100%25/h.db?"},
	}
	for _, tt := range tests {
		got := dsn(tt.path)
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("dsn(%q) = %q, want prefix %q", tt.path, got, tt.want)
		}
		if !strings.HasSuffix(got, "_pragma=foreign_keys(1)") {
			t.Errorf("dsn(%q) = %q, pragmas missing", tt.path, got)
		}
	}
}
