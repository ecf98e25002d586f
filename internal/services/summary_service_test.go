package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/feedback-hub/internal/domain"
	"github.com/tbourn/feedback-hub/internal/llm"
	"github.com/tbourn/feedback-hub/internal/repo"
)

// ----- Fakes -----

type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int32
	system string
	user   string
	// block, when set, is waited on before answering.
	block func(ctx context.Context) error
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.system, f.user = system, user
	f.mu.Unlock()
	if f.block != nil {
		if err := f.block(ctx); err != nil {
			return "", err
		}
	}
	return f.reply, f.err
}

func (f *fakeCompleter) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

// sqlRepo proxies SummaryRepo to the real repo package.
type sqlRepo struct{}

func (sqlRepo) ListCommentsByProject(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Comment, error) {
	return repo.ListCommentsByProject(ctx, db, projectID)
}
func (sqlRepo) CreateSummary(ctx context.Context, db *gorm.DB, projectID, summary, priority string, combined []string) (*domain.Summary, error) {
	return repo.CreateSummary(ctx, db, projectID, summary, priority, combined)
}
func (sqlRepo) ListSummaries(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Summary, error) {
	return repo.ListSummaries(ctx, db, projectID)
}
func (sqlRepo) GetSummary(ctx context.Context, db *gorm.DB, id string) (*domain.Summary, error) {
	return repo.GetSummary(ctx, db, id)
}

// failingRepo lets individual calls fail.
type failingRepo struct {
	sqlRepo
	listErr   error
	createErr error
}

func (r failingRepo) ListCommentsByProject(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Comment, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.sqlRepo.ListCommentsByProject(ctx, db, projectID)
}
func (r failingRepo) CreateSummary(ctx context.Context, db *gorm.DB, projectID, summary, priority string, combined []string) (*domain.Summary, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	return r.sqlRepo.CreateSummary(ctx, db, projectID, summary, priority, combined)
}

// ----- Helpers -----

func newSummaryDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Serialize access; shared-cache in-memory SQLite does not wait on locks.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func seedComments(t *testing.T, db *gorm.DB, projectID string, cs ...domain.Comment) {
	t.Helper()
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&domain.Project{ID: projectID, Name: "Site", Client: "Acme", DeadlineDate: "2025-12-31", CreatedAt: now, UpdatedAt: now}).Error)
	for i := range cs {
		cs[i].ID = fmt.Sprintf("%s-c%02d", projectID, i)
		cs[i].ProjectID = projectID
		cs[i].CreatedAt = now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Create(&cs[i]).Error)
	}
}

func countSummaries(t *testing.T, db *gorm.DB, projectID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.Summary{}).Where("project_id = ?", projectID).Count(&n).Error)
	return n
}

func strp(s string) *string { return &s }

// ----- Tests -----

func TestGenerateSummary_BlankProjectID(t *testing.T) {
	llmc := &fakeCompleter{}
	s := NewSummaryService(nil, sqlRepo{}, llmc, time.Second)

	_, err := s.GenerateSummary(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrProjectIDRequired)
	assert.Zero(t, llmc.Calls())
}

func TestGenerateSummary_NoComments_NoCallNoWrite(t *testing.T) {
	db := newSummaryDB(t)
	llmc := &fakeCompleter{reply: `{"summary":"x","priority":"low"}`}
	s := NewSummaryService(db, sqlRepo{}, llmc, time.Second)

	for _, pid := range []string{"empty-project", "never-existed"} {
		_, err := s.GenerateSummary(context.Background(), pid)
		require.ErrorIs(t, err, ErrNoFeedback)
		assert.Zero(t, countSummaries(t, db, pid))
	}
	assert.Zero(t, llmc.Calls(), "no LLM call for empty feedback")
}

func TestGenerateSummary_StructuredReply_RoundTrip(t *testing.T) {
	const body = `{"summary":"S","priority":"high","combined_comments":["a","b"]}`
	replies := map[string]string{
		"bare":          body,
		"json fence":    "```json\n" + body + "\n```",
		"untagged":      "```\n" + body + "\n```",
		"prose + fence": "Here you go:\n```json " + body + " ```\nThanks!",
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			db := newSummaryDB(t)
			seedComments(t, db, "p1", domain.Comment{Author: "Ann", Comment: "Good work"})
			s := NewSummaryService(db, sqlRepo{}, &fakeCompleter{reply: reply}, time.Second)

			sum, err := s.GenerateSummary(context.Background(), "p1")
			require.NoError(t, err)
			assert.NotEmpty(t, sum.ID)
			assert.False(t, sum.CreatedAt.IsZero())

			stored, err := repo.GetSummary(context.Background(), db, sum.ID)
			require.NoError(t, err)
			assert.Equal(t, "S", stored.Summary)
			assert.Equal(t, "high", stored.Priority)
			assert.Equal(t, []string{"a", "b"}, stored.CombinedComments)
			assert.EqualValues(t, 1, countSummaries(t, db, "p1"))
		})
	}
}

func TestGenerateSummary_PlainText_Fallback(t *testing.T) {
	db := newSummaryDB(t)
	var cs []domain.Comment
	for i := 1; i <= 7; i++ {
		cs = append(cs, domain.Comment{Author: "A", Comment: fmt.Sprintf("comment %d", i)})
	}
	seedComments(t, db, "p1", cs...)
	s := NewSummaryService(db, sqlRepo{}, &fakeCompleter{reply: "Everything looks fine."}, time.Second)

	sum, err := s.GenerateSummary(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Everything looks fine.", sum.Summary)
	assert.Equal(t, "medium", sum.Priority)
	assert.Equal(t, []string{"comment 1", "comment 2", "comment 3", "comment 4", "comment 5"}, sum.CombinedComments)
	assert.EqualValues(t, 1, countSummaries(t, db, "p1"))
}

func TestGenerateSummary_Fallback_FewerThanFiveComments(t *testing.T) {
	db := newSummaryDB(t)
	seedComments(t, db, "p1",
		domain.Comment{Author: "Ann", Comment: "one"},
		domain.Comment{Author: "Bo", Comment: "two"},
	)
	s := NewSummaryService(db, sqlRepo{}, &fakeCompleter{reply: `{"priority":"high"}`}, time.Second)

	sum, err := s.GenerateSummary(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, `{"priority":"high"}`, sum.Summary, "raw reply kept verbatim")
	assert.Equal(t, "medium", sum.Priority)
	assert.Equal(t, []string{"one", "two"}, sum.CombinedComments)
}

func TestGenerateSummary_UpstreamStatusMapping_NoRow(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{429, ErrRateLimited},
		{402, ErrPaymentRequired},
		{500, ErrUpstream},
		{503, ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			db := newSummaryDB(t)
			seedComments(t, db, "p1", domain.Comment{Author: "Ann", Comment: "Good work"})
			llmc := &fakeCompleter{err: &llm.StatusError{StatusCode: tc.status}}
			s := NewSummaryService(db, sqlRepo{}, llmc, time.Second)

			_, err := s.GenerateSummary(context.Background(), "p1")
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, 1, llmc.Calls(), "no retry")
			assert.Zero(t, countSummaries(t, db, "p1"))

			if tc.want == ErrUpstream {
				var ue *UpstreamError
				require.True(t, errors.As(err, &ue))
				assert.Equal(t, tc.status, ue.StatusCode)
			}
		})
	}
}

func TestGenerateSummary_Timeout_FailsClosedAsUpstream(t *testing.T) {
	db := newSummaryDB(t)
	seedComments(t, db, "p1", domain.Comment{Author: "Ann", Comment: "Good work"})
	llmc := &fakeCompleter{
		reply: `{"summary":"late","priority":"low"}`,
		block: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	s := NewSummaryService(db, sqlRepo{}, llmc, 20*time.Millisecond)

	_, err := s.GenerateSummary(context.Background(), "p1")
	require.ErrorIs(t, err, ErrUpstream)
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Zero(t, ue.StatusCode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, countSummaries(t, db, "p1"))
}

func TestGenerateSummary_StorageErrors(t *testing.T) {
	db := newSummaryDB(t)
	seedComments(t, db, "p1", domain.Comment{Author: "Ann", Comment: "Good work"})

	t.Run("read", func(t *testing.T) {
		llmc := &fakeCompleter{}
		s := NewSummaryService(db, failingRepo{listErr: errors.New("disk gone")}, llmc, time.Second)
		_, err := s.GenerateSummary(context.Background(), "p1")
		require.ErrorIs(t, err, ErrStorage)
		assert.Zero(t, llmc.Calls())
	})
	t.Run("write", func(t *testing.T) {
		llmc := &fakeCompleter{reply: `{"summary":"S","priority":"low"}`}
		s := NewSummaryService(db, failingRepo{createErr: errors.New("readonly")}, llmc, time.Second)
		_, err := s.GenerateSummary(context.Background(), "p1")
		require.ErrorIs(t, err, ErrStorage)
		assert.Contains(t, err.Error(), "readonly")
		assert.Equal(t, 1, llmc.Calls())
	})
	assert.Zero(t, countSummaries(t, db, "p1"))
}

func TestGenerateSummary_ConcurrentCalls_TwoRows(t *testing.T) {
	db := newSummaryDB(t)
	seedComments(t, db, "p1", domain.Comment{Author: "Ann", Comment: "Good work"})

	// Both calls must be inside Complete before either answers.
	var arrived sync.WaitGroup
	arrived.Add(2)
	gate := make(chan struct{})
	go func() { arrived.Wait(); close(gate) }()

	llmc := &fakeCompleter{
		reply: `{"summary":"S","priority":"low","combined_comments":[]}`,
		block: func(ctx context.Context) error {
			arrived.Done()
			select {
			case <-gate:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	s := NewSummaryService(db, sqlRepo{}, llmc, 5*time.Second)

	var wg sync.WaitGroup
	ids := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sum, err := s.GenerateSummary(context.Background(), "p1")
			errs[i] = err
			if sum != nil {
				ids[i] = sum.ID
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, ids[0], ids[1])
	assert.EqualValues(t, 2, countSummaries(t, db, "p1"))
}

func TestGenerateSummary_AnnBoScenario(t *testing.T) {
	db := newSummaryDB(t)
	seedComments(t, db, "p1",
		domain.Comment{Author: "Ann", Comment: "Good work", Timestamp: nil},
		domain.Comment{Author: "Bo", Comment: "Too slow", Timestamp: strp("3pm")},
	)
	llmc := &fakeCompleter{reply: "```json\n" +
		`{"summary":"Mixed feedback","priority":"medium","combined_comments":["Good work","Too slow"]}` +
		"\n```"}
	s := NewSummaryService(db, sqlRepo{}, llmc, time.Second)

	sum, err := s.GenerateSummary(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Mixed feedback", sum.Summary)
	assert.Equal(t, "medium", sum.Priority)
	assert.Equal(t, []string{"Good work", "Too slow"}, sum.CombinedComments)

	assert.Equal(t, summarySystemPrompt, llmc.system)
	assert.Equal(t, "Analyze these project feedback comments:\n\nAnn (no timestamp): Good work\n\nBo (3pm): Too slow", llmc.user)
}

func TestGenerateSummary_CommentsNeverMutated(t *testing.T) {
	db := newSummaryDB(t)
	seedComments(t, db, "p1", domain.Comment{Author: "Ann", Comment: "Good work"})
	before, err := repo.ListCommentsByProject(context.Background(), db, "p1")
	require.NoError(t, err)

	s := NewSummaryService(db, sqlRepo{}, &fakeCompleter{reply: "plain"}, time.Second)
	_, err = s.GenerateSummary(context.Background(), "p1")
	require.NoError(t, err)

	after, err := repo.ListCommentsByProject(context.Background(), db, "p1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSummaryService_ListNewestFirst(t *testing.T) {
	db := newSummaryDB(t)
	seedComments(t, db, "p1", domain.Comment{Author: "Ann", Comment: "Good work"})
	llmc := &fakeCompleter{reply: `{"summary":"first","priority":"low"}`}
	s := NewSummaryService(db, sqlRepo{}, llmc, time.Second)

	first, err := s.GenerateSummary(context.Background(), "p1")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	llmc.reply = `{"summary":"second","priority":"urgent"}`
	second, err := s.GenerateSummary(context.Background(), "p1")
	require.NoError(t, err)

	list, err := s.List(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, domain.PriorityOther, list[0].Bucket(), "unrecognised priority is kept and bucketed as other")

	got, err := s.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Summary)
}

func TestUpstreamError_Message(t *testing.T) {
	assert.Equal(t, "ai gateway error: 500", (&UpstreamError{StatusCode: 500}).Error())
	assert.Equal(t, "ai gateway error", (&UpstreamError{}).Error())
	assert.True(t, errors.Is(&UpstreamError{StatusCode: 418}, ErrUpstream))
}
