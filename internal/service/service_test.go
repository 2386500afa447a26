package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"advert-service/internal/domain"
	"advert-service/internal/infrastructure/cache"
	"advert-service/internal/infrastructure/metrics"
	"advert-service/internal/repository"
	"advert-service/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	ID    string
	Title string
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (n *recordingNotifier) PublishConfirmed(_ context.Context, id, title string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, published{ID: id, Title: title})
	return nil
}

func (n *recordingNotifier) sent() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]published(nil), n.msgs...)
}

// faultyRepository fails selected operations of the wrapped store.
type faultyRepository struct {
	repository.AdvertRepository
	getErr, putErr, deleteErr error
}

func (f *faultyRepository) Get(ctx context.Context, id string) (*domain.Advert, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.AdvertRepository.Get(ctx, id)
}

func (f *faultyRepository) GetConsistent(ctx context.Context, id string) (*domain.Advert, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.AdvertRepository.GetConsistent(ctx, id)
}

func (f *faultyRepository) Put(ctx context.Context, advert *domain.Advert) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.AdvertRepository.Put(ctx, advert)
}

func (f *faultyRepository) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.AdvertRepository.Delete(ctx, id)
}

type fixture struct {
	svc      AdvertService
	repo     *faultyRepository
	notifier *recordingNotifier
	metrics  *metrics.ServiceMetrics
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	repo := &faultyRepository{AdvertRepository: repository.NewMemoryAdvertRepository()}
	n := &recordingNotifier{}
	m := metrics.NewServiceMetrics(prometheus.NewRegistry())
	return &fixture{
		svc:      NewAdvertService(repo, n, m, logger.Discard(), opts),
		repo:     repo,
		notifier: n,
		metrics:  m,
	}
}

var carInput = domain.CreateAdvertInput{Title: "Car", Description: "Red hatchback", Price: 1000}

func TestAdd_CreatesPendingAdvert(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	opts := DefaultOptions()
	opts.Now = func() time.Time { return now }
	f := newFixture(t, opts)
	ctx := context.Background()

	id, err := f.svc.Add(ctx, carInput)
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())

	advert, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &domain.Advert{
		ID:               id,
		CreationDateTime: now.UTC(),
		Status:           domain.StatusPending,
		Title:            "Car",
		Description:      "Red hatchback",
		Price:            1000,
	}, advert)
	assert.Empty(t, f.notifier.sent())
}

func TestAdd_IDsNeverCollide(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	const n = 2000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id, err := f.svc.Add(ctx, carInput)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestAdd_StorageFailure(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.repo.putErr = errors.New("ResourceNotFoundException")

	_, err := f.svc.Add(context.Background(), carInput)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.MethodCount.WithLabelValues("Add", "error")))
}

func TestAdd_IDGenerationFailure(t *testing.T) {
	opts := DefaultOptions()
	opts.NewID = func() (string, error) { return "", errors.New("entropy exhausted") }
	f := newFixture(t, opts)

	_, err := f.svc.Add(context.Background(), carInput)
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestConfirm_Activate(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	id, err := f.svc.Add(ctx, carInput)
	require.NoError(t, err)

	require.NoError(t, f.svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: domain.ConfirmActive}))

	advert, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, advert.Status)
	assert.Equal(t, []published{{ID: id, Title: "Car"}}, f.notifier.sent())
}

func TestConfirm_UnknownIDIsNotFound(t *testing.T) {
	for _, outcome := range []domain.ConfirmStatus{domain.ConfirmActive, domain.ConfirmRejected} {
		t.Run(string(outcome), func(t *testing.T) {
			f := newFixture(t, DefaultOptions())

			err := f.svc.Confirm(context.Background(), domain.ConfirmAdvertInput{ID: "does-not-exist", Status: outcome})
			assert.ErrorIs(t, err, ErrAdvertNotFound)
			assert.Empty(t, f.notifier.sent())
			assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.MethodCount.WithLabelValues("Confirm", "not_found")))
		})
	}
}

func TestConfirm_RejectDeletes(t *testing.T) {
	tests := []struct {
		name     string
		activate bool
	}{
		{name: "pending", activate: false},
		{name: "active", activate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultOptions())
			ctx := context.Background()

			id, err := f.svc.Add(ctx, carInput)
			require.NoError(t, err)
			if tt.activate {
				require.NoError(t, f.svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: domain.ConfirmActive}))
			}

			require.NoError(t, f.svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: domain.ConfirmRejected}))

			_, err = f.svc.GetByID(ctx, id)
			assert.ErrorIs(t, err, ErrAdvertNotFound)

			sent := f.notifier.sent()
			require.NotEmpty(t, sent)
			assert.Equal(t, published{ID: id, Title: "Car"}, sent[len(sent)-1])
		})
	}
}

func TestConfirm_RejectWithoutNotification(t *testing.T) {
	opts := DefaultOptions()
	opts.NotifyOnReject = false
	f := newFixture(t, opts)
	ctx := context.Background()

	id, err := f.svc.Add(ctx, carInput)
	require.NoError(t, err)

	require.NoError(t, f.svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: domain.ConfirmRejected}))
	assert.Empty(t, f.notifier.sent())

	_, err = f.svc.GetByID(ctx, id)
	assert.ErrorIs(t, err, ErrAdvertNotFound)
}

func TestConfirm_InvalidInput(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Confirm(ctx, domain.ConfirmAdvertInput{Status: domain.ConfirmActive}), ErrInvalidID)
	assert.ErrorIs(t, f.svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: "x", Status: "Archived"}), ErrInvalidStatus)
}

func TestConfirm_StorageFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *faultyRepository)
		input domain.ConfirmStatus
	}{
		{name: "get", setup: func(r *faultyRepository) { r.getErr = errors.New("unreachable") }, input: domain.ConfirmActive},
		{name: "put", setup: func(r *faultyRepository) { r.putErr = errors.New("throttled") }, input: domain.ConfirmActive},
		{name: "delete", setup: func(r *faultyRepository) { r.deleteErr = errors.New("throttled") }, input: domain.ConfirmRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultOptions())
			ctx := context.Background()

			id, err := f.svc.Add(ctx, carInput)
			require.NoError(t, err)
			tt.setup(f.repo)

			err = f.svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: tt.input})
			assert.ErrorIs(t, err, ErrStorage)
			assert.NotErrorIs(t, err, ErrAdvertNotFound)
			assert.Empty(t, f.notifier.sent())
		})
	}
}

func TestConfirm_NotificationPolicy(t *testing.T) {
	t.Run("fatal", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		ctx := context.Background()
		id, err := f.svc.Add(ctx, carInput)
		require.NoError(t, err)
		f.notifier.err = errors.New("topic not found")

		err = f.svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: domain.ConfirmActive})
		assert.ErrorIs(t, err, ErrNotification)

		// the store write is not rolled back
		advert, err := f.svc.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, advert.Status)
	})

	t.Run("best effort", func(t *testing.T) {
		opts := DefaultOptions()
		opts.NotificationPolicy = PolicyBestEffort
		f := newFixture(t, opts)
		ctx := context.Background()
		id, err := f.svc.Add(ctx, carInput)
		require.NoError(t, err)
		f.notifier.err = errors.New("topic not found")

		assert.NoError(t, f.svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: domain.ConfirmActive}))
	})
}

func TestConfirm_ConcurrentActivations(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	id, err := f.svc.Add(ctx, carInput)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: domain.ConfirmActive})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	advert, err := f.svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, advert.Status)
	assert.Len(t, f.notifier.sent(), 2)
}

func TestGetByID_Errors(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	_, err := f.svc.GetByID(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = f.svc.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrAdvertNotFound)

	f.repo.getErr = errors.New("unreachable")
	_, err = f.svc.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrStorage)
}

func TestConfirm_StaleCacheCannotReviveRejectedAdvert(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := repository.NewMemoryAdvertRepository()
	repo := repository.NewCachedAdvertRepository(store, cache.NewRedisCache(client, 10*time.Minute, 5*time.Second))
	n := &recordingNotifier{}
	svc := NewAdvertService(repo, n, metrics.NewServiceMetrics(prometheus.NewRegistry()), logger.Discard(), DefaultOptions())
	ctx := context.Background()

	id, err := svc.Add(ctx, carInput)
	require.NoError(t, err)
	require.NoError(t, svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: domain.ConfirmRejected}))

	// a reader that fetched the record before the delete lands its copy
	// after the fence has lapsed
	mr.FastForward(time.Minute)
	stale := `{"id":"` + id + `","status":"Pending","title":"Car","description":"Red hatchback","price":1000}`
	require.NoError(t, mr.Set("advert:"+id, stale))

	err = svc.Confirm(ctx, domain.ConfirmAdvertInput{ID: id, Status: domain.ConfirmActive})
	assert.ErrorIs(t, err, ErrAdvertNotFound)

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound, "store must not regain a deleted advert")
	assert.Len(t, n.sent(), 1)
}
