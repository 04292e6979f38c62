package builder

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/resolve"
)

type lookupMock struct{ mock.Mock }

func idArg(args mock.Arguments) int64 {
	switch v := args.Get(0).(type) {
	case int:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

func (m *lookupMock) ResolveProject(ctx context.Context, name string, fail bool) (int64, error) {
	args := m.Called(ctx, name, fail)
	return idArg(args), args.Error(1)
}

func (m *lookupMock) ResolveMilestone(ctx context.Context, projectID int64, name string, fail bool) (int64, error) {
	args := m.Called(ctx, projectID, name, fail)
	return idArg(args), args.Error(1)
}

func (m *lookupMock) ResolveSuite(ctx context.Context, projectID int64, name string, fail bool) (int64, error) {
	args := m.Called(ctx, projectID, name, fail)
	return idArg(args), args.Error(1)
}

func (m *lookupMock) ResolveSection(ctx context.Context, projectID, suiteID int64, name string, fail bool) (int64, error) {
	args := m.Called(ctx, projectID, suiteID, name, fail)
	return idArg(args), args.Error(1)
}

func (m *lookupMock) ResolveRun(ctx context.Context, projectID int64, name string, fail bool) (int64, error) {
	args := m.Called(ctx, projectID, name, fail)
	return idArg(args), args.Error(1)
}

func (m *lookupMock) ResolvePlan(ctx context.Context, projectID int64, name string, fail bool) (int64, error) {
	args := m.Called(ctx, projectID, name, fail)
	return idArg(args), args.Error(1)
}

func (m *lookupMock) ResolveUser(ctx context.Context, nameOrEmail string, fail bool) (int64, error) {
	args := m.Called(ctx, nameOrEmail, fail)
	return idArg(args), args.Error(1)
}

func (m *lookupMock) ResolveCaseType(ctx context.Context, name string, fail bool) (int64, error) {
	args := m.Called(ctx, name, fail)
	return idArg(args), args.Error(1)
}

func (m *lookupMock) ResolvePath(ctx context.Context, p resolve.Path, f resolve.Flags) (resolve.IDs, error) {
	args := m.Called(ctx, p, f)
	return args.Get(0).(resolve.IDs), args.Error(1)
}

type sentPost struct {
	endpoint string
	body     any
}

// fakeWriter records posts and answers each with reply.
type fakeWriter struct {
	posts []sentPost
	reply any
	err   error
}

func (w *fakeWriter) Post(_ context.Context, endpoint string, body, out any) (int, error) {
	w.posts = append(w.posts, sentPost{endpoint: endpoint, body: body})
	if w.err != nil {
		return 0, w.err
	}
	if out != nil && w.reply != nil {
		data, _ := json.Marshal(w.reply)
		if err := json.Unmarshal(data, out); err != nil {
			return 200, err
		}
	}
	return 200, nil
}

func TestSpecsAreImmutable(t *testing.T) {
	base := Milestone(ByName("P"), "M1")
	described := base.WithDescription("release")

	assert.Equal(t, map[string]any{"name": "M1"}, base.Payload())
	assert.Equal(t, map[string]any{"name": "M1", "description": "release"}, described.Payload())
}

func TestPayloadOmitsUnsetFields(t *testing.T) {
	assert.Equal(t, map[string]any{"name": "M1"}, Milestone(ByName("P"), "M1").Payload())
	assert.Equal(t, map[string]any{"name": "P"}, Project("P").Payload())
	assert.Equal(t, map[string]any{"title": "login works"}, Case(ByName("P"), ByName("S"), "login works").Payload())

	due := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	p := Milestone(ByName("P"), "M1").WithDueOn(due).WithParent(ByID(4)).Payload()
	assert.Equal(t, due.Unix(), p["due_on"])
	assert.Equal(t, int64(4), p["parent_id"])
	assert.NotContains(t, p, "start_on")

	proj := Project("P").WithSuiteMode(trackersdk.SuiteModeMultiple).WithShowAnnouncement(false).Payload()
	assert.Equal(t, trackersdk.SuiteModeMultiple, proj["suite_mode"])
	assert.Equal(t, false, proj["show_announcement"])
	assert.NotContains(t, proj, "announcement")
}

func TestMilestoneMaterializeAndAdd(t *testing.T) {
	ctx := context.Background()
	l := &lookupMock{}
	l.On("ResolveProject", mock.Anything, "P", true).Return(int64(1), nil)
	l.On("ResolveMilestone", mock.Anything, int64(1), "M1", false).Return(int64(0), nil)
	defer l.AssertExpectations(t)

	m, err := Milestone(ByName("P"), "M1").Materialize(ctx, l)
	require.NoError(t, err)
	assert.False(t, m.Exists())
	assert.Equal(t, int64(1), m.ProjectID)

	w := &fakeWriter{reply: trackersdk.Milestone{ID: 7, ProjectID: 1, Name: "M1"}}
	created, err := m.Add(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	require.Len(t, w.posts, 1)
	assert.Equal(t, "add_milestone/1", w.posts[0].endpoint)
	assert.Equal(t, map[string]any{"name": "M1"}, w.posts[0].body)
}

func TestMaterializeQueriesEveryTime(t *testing.T) {
	ctx := context.Background()
	l := &lookupMock{}
	l.On("ResolveProject", mock.Anything, "P", false).Return(int64(3), nil).Times(2)
	defer l.AssertExpectations(t)

	spec := Project("P")
	for i := 0; i < 2; i++ {
		p, err := spec.Materialize(ctx, l)
		require.NoError(t, err)
		assert.True(t, p.Exists())
		assert.Equal(t, int64(3), p.ID)
	}
}

func TestUpdateFalseSkipsLookups(t *testing.T) {
	ctx := context.Background()
	l := &lookupMock{}
	defer l.AssertExpectations(t)

	r, err := Run(ByID(2), "nightly").WithID(9).AssignedTo(ByName("alice")).Update(false).Materialize(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.ProjectID)
	assert.Equal(t, int64(9), r.ID)
	assert.Equal(t, int64(0), r.AssignedToID)
	l.AssertNotCalled(t, "ResolveUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunMaterializeResolvesReferences(t *testing.T) {
	ctx := context.Background()
	l := &lookupMock{}
	l.On("ResolveProject", mock.Anything, "P", true).Return(int64(1), nil)
	l.On("ResolveUser", mock.Anything, "alice@example.com", true).Return(int64(3), nil)
	l.On("ResolveSuite", mock.Anything, int64(1), "Master", true).Return(int64(10), nil)
	l.On("ResolveMilestone", mock.Anything, int64(1), "R1", true).Return(int64(20), nil)
	l.On("ResolveRun", mock.Anything, int64(1), "nightly", false).Return(int64(0), nil)
	defer l.AssertExpectations(t)

	spec := Run(ByName("P"), "nightly").
		InSuite(ByName("Master")).
		WithMilestone(ByName("R1")).
		AssignedTo(ByName("alice@example.com")).
		WithCases(5, 6)
	r, err := spec.Materialize(ctx, l)
	require.NoError(t, err)
	assert.False(t, r.Exists())

	assert.Equal(t, map[string]any{
		"name":          "nightly",
		"suite_id":      int64(10),
		"milestone_id":  int64(20),
		"assignedto_id": int64(3),
		"include_all":   false,
		"case_ids":      []int64{5, 6},
	}, r.Payload())
}

func TestRunMaterializePropagatesNotUnique(t *testing.T) {
	l := &lookupMock{}
	l.On("ResolveProject", mock.Anything, "P", true).Return(int64(0), trackersdk.ErrNotUnique)

	_, err := Run(ByName("P"), "nightly").Materialize(context.Background(), l)
	assert.ErrorIs(t, err, trackersdk.ErrNotUnique)
}

func TestCaseMaterializeUsesPath(t *testing.T) {
	ctx := context.Background()
	l := &lookupMock{}
	l.On("ResolvePath", mock.Anything, resolve.Path{Project: "P", Section: "Login", Case: "login works"},
		resolve.Flags{Project: true, Suite: true, Section: true}).
		Return(resolve.IDs{ProjectID: 1, SuiteID: 10, SectionID: 30}, nil)
	l.On("ResolveCaseType", mock.Anything, "Automated", true).Return(int64(3), nil)
	defer l.AssertExpectations(t)

	c, err := Case(ByName("P"), ByName("Login"), "login works").WithType(ByName("Automated")).Materialize(ctx, l)
	require.NoError(t, err)
	assert.False(t, c.Exists())
	assert.Equal(t, int64(3), c.Payload()["type_id"])

	w := &fakeWriter{reply: trackersdk.Case{ID: 40, SectionID: 30, Title: "login works"}}
	id, err := EnsureCase(ctx, l, w, Case(ByName("P"), ByName("Login"), "login works").WithType(ByName("Automated")))
	require.NoError(t, err)
	assert.Equal(t, int64(40), id)
	require.Len(t, w.posts, 1)
	assert.Equal(t, "add_case/30", w.posts[0].endpoint)
}

func TestEnsureRunSkipsExisting(t *testing.T) {
	ctx := context.Background()
	l := &lookupMock{}
	l.On("ResolveProject", mock.Anything, "P", true).Return(int64(1), nil)
	l.On("ResolveRun", mock.Anything, int64(1), "nightly", false).Return(int64(8), nil)

	w := &fakeWriter{}
	id, err := EnsureRun(ctx, l, w, Run(ByName("P"), "nightly"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	assert.Empty(t, w.posts)
}

func TestResolvedRunClose(t *testing.T) {
	w := &fakeWriter{reply: trackersdk.Run{ID: 9, IsCompleted: true}}
	run, err := ResolvedRun{ID: 9}.Close(context.Background(), w)
	require.NoError(t, err)
	assert.True(t, run.IsCompleted)
	assert.Equal(t, "close_run/9", w.posts[0].endpoint)

	_, err = ResolvedRun{}.Close(context.Background(), w)
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestDeleteRequiresID(t *testing.T) {
	w := &fakeWriter{}
	assert.ErrorIs(t, ResolvedSuite{}.Delete(context.Background(), w), ErrUnresolved)
	assert.Empty(t, w.posts)

	require.NoError(t, ResolvedSuite{ID: 4}.Delete(context.Background(), w))
	assert.Equal(t, "delete_suite/4", w.posts[0].endpoint)
}

func TestResultEntry(t *testing.T) {
	spec := Result(ByID(1), ByID(50), ByID(40), trackersdk.StatusFailed).
		WithComment("boom").
		WithElapsed("2s").
		Update(false)
	r, err := spec.Materialize(context.Background(), &lookupMock{})
	require.NoError(t, err)
	require.True(t, r.Exists())

	e, err := r.Entry()
	require.NoError(t, err)
	assert.Equal(t, trackersdk.ResultEntry{CaseID: 40, StatusID: trackersdk.StatusFailed, Comment: "boom", Elapsed: "2s"}, e)

	_, err = ResolvedResult{Spec: spec, CaseID: 40}.Entry()
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResultMaterializeIsStrict(t *testing.T) {
	l := &lookupMock{}
	l.On("ResolvePath", mock.Anything, mock.Anything, resolve.Strict).
		Return(resolve.IDs{ProjectID: 1}, trackersdk.ErrNotFound)

	_, err := Result(ByName("P"), ByName("nightly"), ByName("ghost"), trackersdk.StatusPassed).
		Materialize(context.Background(), l)
	assert.True(t, errors.Is(err, trackersdk.ErrNotFound))
}

func TestResultAddSendsSingleResult(t *testing.T) {
	ctx := context.Background()
	l := &lookupMock{}
	l.On("ResolvePath", mock.Anything, resolve.Path{Project: "P", Case: "login works"}, resolve.Strict).
		Return(resolve.IDs{ProjectID: 1, SuiteID: 10, CaseID: 40}, nil)
	l.On("ResolveRun", mock.Anything, int64(1), "nightly", true).Return(int64(50), nil)
	defer l.AssertExpectations(t)

	r, err := Result(ByName("P"), ByName("nightly"), ByName("login works"), trackersdk.StatusPassed).Materialize(ctx, l)
	require.NoError(t, err)

	w := &fakeWriter{reply: trackersdk.Result{ID: 1, StatusID: trackersdk.StatusPassed}}
	_, err = r.Add(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, "add_result_for_case/50/40", w.posts[0].endpoint)
	assert.Equal(t, trackersdk.ResultEntry{CaseID: 40, StatusID: trackersdk.StatusPassed}, w.posts[0].body)
}
