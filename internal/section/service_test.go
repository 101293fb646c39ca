package section

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/attachment"
	"github.com/fmuoria/recruitment-scoring/internal/form"
	"github.com/fmuoria/recruitment-scoring/internal/logger"
	"github.com/fmuoria/recruitment-scoring/internal/metadata"
	"github.com/fmuoria/recruitment-scoring/internal/models"
	"github.com/fmuoria/recruitment-scoring/internal/store"
	"github.com/fmuoria/recruitment-scoring/internal/submission"
)

var owner = models.Owner{RegistrationNo: "24000001", ApplicationID: 9}

type flakySaver struct {
	inner   *store.Store
	fail    error
	calls   int
	entered chan struct{}
	proceed chan struct{}
}

func (f *flakySaver) Save(ctx context.Context, req models.SaveRequest) (*models.SaveResponse, error) {
	f.calls++
	if f.entered != nil {
		close(f.entered)
		<-f.proceed
	}
	if f.fail != nil {
		return nil, f.fail
	}
	return f.inner.Save(ctx, req)
}

func newService(t *testing.T) (*Service, *flakySaver) {
	t.Helper()
	return newServiceWithLog(t, logger.Nop())
}

func newServiceWithLog(t *testing.T, log *logger.Logger) (*Service, *flakySaver) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, store.Migrate(db))

	st := store.New(db, attachment.NewFileStore(t.TempDir()), logger.Nop())
	require.NoError(t, st.Seed(context.Background(), &store.SeedData{
		Advertisements: []store.SeedAdvertisement{{ID: 5, Fields: []store.ScoreField{
			{ID: 1, Name: "Education", Marks: 20, CalcMethod: int(models.MethodWeightedMarks)},
			{ID: 10, ParentID: 1, Name: "Matric", DisplayOrder: 1, Marks: 15, Weightage: 1.5},
			{ID: 101, ParentID: 10, Name: "Percentage", DisplayOrder: 1, Mandatory: true, Role: "input", DataType: "numeric", Control: "number"},
			{ID: 102, ParentID: 10, Name: "Remarks", DisplayOrder: 2, DataType: "text", Control: "text", ScreeningInput: true},
		}}},
	}))

	saver := &flakySaver{inner: st}
	loader := metadata.NewLoader(st, st, logger.Nop())
	svc := NewService(loader, st, saver, nil, attachment.NewPathBuilder("recruitment"), log)
	return svc, saver
}

func openReq(mode form.Mode) OpenRequest {
	return OpenRequest{AdvertisementID: 5, HeadingID: 1, Owner: owner, Mode: mode}
}

func percentage() models.ValueKey {
	return models.ValueKey{RecordKey: models.RecordKey{SubheadingID: 10}, ParameterID: 101}
}

func TestSubmit_CreatesThenIsIdempotent(t *testing.T) {
	svc, saver := newService(t)
	ctx := context.Background()

	sess, err := svc.Open(ctx, openReq(form.ModeCandidate))
	require.NoError(t, err)
	require.NoError(t, sess.SetValue(percentage(), "80"))

	out, err := sess.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Created: 1, Score: models.ScoreTriple{Raw: 80, Actual: 12, Calculated: 12}, Applied: true}, out)
	assert.Equal(t, submission.StateSucceeded, sess.SubmissionState())

	view, err := sess.View()
	require.NoError(t, err)
	require.NotNil(t, view.Records[0].ID)

	out, err = sess.Submit(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Created+out.Updated+out.Deleted)
	assert.Equal(t, 1, saver.calls, "unchanged form is not resent")

	require.NoError(t, sess.SetValue(percentage(), "90"))
	out, err = sess.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Updated)
	assert.Zero(t, out.Created)
}

func TestOpen_ScreenerPrefillsFromCandidateWithoutIDs(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cand, err := svc.Open(ctx, openReq(form.ModeCandidate))
	require.NoError(t, err)
	require.NoError(t, cand.SetValue(percentage(), "80"))
	_, err = cand.Submit(ctx)
	require.NoError(t, err)

	scr, err := svc.Open(ctx, openReq(form.ModeScreener))
	require.NoError(t, err)
	view, err := scr.View()
	require.NoError(t, err)
	require.Len(t, view.Records, 1)
	assert.Nil(t, view.Records[0].ID, "candidate ids stay on the candidate track")
	assert.Equal(t, "80", view.Records[0].Fields[0].Value)

	require.NoError(t, scr.SetValue(models.ValueKey{RecordKey: models.RecordKey{SubheadingID: 10}, ParameterID: 102}, "verified"))
	out, err := scr.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created, "screener track gets its own record")

	again, err := svc.Open(ctx, openReq(form.ModeScreener))
	require.NoError(t, err)
	view, err = again.View()
	require.NoError(t, err)
	require.NotNil(t, view.Records[0].ID, "screener rows carry their ids")
	assert.Equal(t, "verified", view.Records[0].Fields[1].Value)

	candView, err := svc.Open(ctx, openReq(form.ModeCandidate))
	require.NoError(t, err)
	v, _ := candView.View()
	assert.Empty(t, v.Records[0].Fields[1].Value, "candidate never reads screener rows")
}

func TestSubmit_FailureKeepsState(t *testing.T) {
	svc, saver := newService(t)
	ctx := context.Background()
	sess, err := svc.Open(ctx, openReq(form.ModeCandidate))
	require.NoError(t, err)
	require.NoError(t, sess.SetValue(percentage(), "80"))

	saver.fail = errors.New("connection reset")
	_, err = sess.Submit(ctx)
	assert.ErrorIs(t, err, apperr.ErrPersistenceFailed)
	assert.Equal(t, submission.StateFailed, sess.SubmissionState())

	view, _ := sess.View()
	assert.Equal(t, "80", view.Records[0].Fields[0].Value)
	assert.Nil(t, view.Records[0].ID)

	saver.fail = nil
	out, err := sess.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created)
}

func TestSubmit_ValidationBlocksSave(t *testing.T) {
	svc, saver := newService(t)
	sess, err := svc.Open(context.Background(), openReq(form.ModeCandidate))
	require.NoError(t, err)

	_, err = sess.Submit(context.Background())
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)
	field, ok := apperr.FieldOf(err)
	require.True(t, ok)
	assert.Equal(t, percentage(), field)
	assert.Zero(t, saver.calls)
}

func TestSubmit_ConcurrentSubmitRejected(t *testing.T) {
	svc, saver := newService(t)
	ctx := context.Background()
	sess, err := svc.Open(ctx, openReq(form.ModeCandidate))
	require.NoError(t, err)
	require.NoError(t, sess.SetValue(percentage(), "80"))

	saver.entered, saver.proceed = make(chan struct{}), make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := sess.Submit(ctx)
		done <- err
	}()
	<-saver.entered

	_, err = sess.Submit(ctx)
	assert.ErrorIs(t, err, apperr.ErrSubmitInFlight)

	close(saver.proceed)
	require.NoError(t, <-done)
}

func TestSubmit_RejectedUntilWriteBack(t *testing.T) {
	// resubmit from the save log line, after the save succeeded but before
	// the result is written back into the session
	var (
		sess     *Session
		inner    error
		resubmit sync.Once
	)
	hook := func(e zapcore.Entry) error {
		if e.Message == "Submission saved" {
			resubmit.Do(func() { _, inner = sess.Submit(context.Background()) })
		}
		return nil
	}
	core, _ := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core, zap.Hooks(hook)).Sugar()}

	svc, saver := newServiceWithLog(t, log)
	ctx := context.Background()
	var err error
	sess, err = svc.Open(ctx, openReq(form.ModeCandidate))
	require.NoError(t, err)
	require.NoError(t, sess.SetValue(percentage(), "80"))

	out, err := sess.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.ErrorIs(t, inner, apperr.ErrSubmitInFlight)

	var rows int64
	require.NoError(t, saver.inner.DB().Model(&store.CandidateDetail{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	out, err = sess.Submit(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Created, "write-back recorded the new id")
}

func TestSubmit_ResultDiscardedAfterClose(t *testing.T) {
	svc, saver := newService(t)
	ctx := context.Background()
	sess, err := svc.Open(ctx, openReq(form.ModeCandidate))
	require.NoError(t, err)
	require.NoError(t, sess.SetValue(percentage(), "80"))

	saver.entered, saver.proceed = make(chan struct{}), make(chan struct{})
	type res struct {
		out Outcome
		err error
	}
	done := make(chan res, 1)
	go func() {
		out, err := sess.Submit(ctx)
		done <- res{out, err}
	}()
	<-saver.entered
	require.NoError(t, svc.Close(sess.ID))
	close(saver.proceed)

	r := <-done
	require.NoError(t, r.err)
	assert.False(t, r.out.Applied)
}

func TestReload_DropsUnsavedEdits(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	sess, err := svc.Open(ctx, openReq(form.ModeCandidate))
	require.NoError(t, err)
	require.NoError(t, sess.SetValue(percentage(), "80"))
	_, err = sess.Submit(ctx)
	require.NoError(t, err)

	require.NoError(t, sess.SetValue(percentage(), "55"))
	applied, err := sess.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, applied)

	view, _ := sess.View()
	assert.Equal(t, "80", view.Records[0].Fields[0].Value)
	assert.NotNil(t, view.Records[0].ID)
}

func TestClose(t *testing.T) {
	svc, _ := newService(t)
	sess, err := svc.Open(context.Background(), openReq(form.ModeCandidate))
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Len())

	got, err := svc.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, svc.Close(sess.ID))
	assert.ErrorIs(t, svc.Close(sess.ID), ErrNotFound)
	_, err = svc.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, sess.SetValue(percentage(), "1"), ErrClosed)
	_, err = sess.Submit(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = sess.Reload(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Errors(t *testing.T) {
	svc, _ := newService(t)

	req := openReq(form.ModeCandidate)
	req.HeadingID = 404
	_, err := svc.Open(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrMetadataIncomplete)

	req = openReq(form.ModeCandidate)
	req.Owner.RegistrationNo = ""
	_, err = svc.Open(context.Background(), req)
	assert.Error(t, err)
	assert.Zero(t, svc.Len())
}

func TestExpire(t *testing.T) {
	svc, _ := newService(t)
	sess, err := svc.Open(context.Background(), openReq(form.ModeCandidate))
	require.NoError(t, err)

	assert.Empty(t, svc.Expire(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, []string{sess.ID}, svc.Expire(time.Millisecond))
	assert.Zero(t, svc.Len())
}
