package router

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"peopleflow/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNotificationStore struct {
	rows      []model.Notification
	nextID    int
	insertErr error
}

func (s *fakeNotificationStore) Insert(_ context.Context, n *model.Notification) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.nextID++
	n.ID = s.nextID
	n.CreatedAt = time.Now()
	s.rows = append(s.rows, *n)
	return n.ID, nil
}

func (s *fakeNotificationStore) MarkRead(_ context.Context, id int) error {
	now := time.Now()
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].ReadAt == nil {
			s.rows[i].ReadAt = &now
		}
	}
	return nil
}

func (s *fakeNotificationStore) MarkActed(_ context.Context, id int) error {
	now := time.Now()
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].ActedAt == nil {
			s.rows[i].ActedAt = &now
		}
	}
	return nil
}

func (s *fakeNotificationStore) MarkAllRead(_ context.Context, userID int) (int64, error) {
	now := time.Now()
	var updated int64
	for i := range s.rows {
		if s.rows[i].UserID == userID && s.rows[i].ReadAt == nil {
			s.rows[i].ReadAt = &now
			updated++
		}
	}
	return updated, nil
}

type fakePreferenceStore struct {
	prefs map[int]*model.NotificationPreferences
}

func (s *fakePreferenceStore) Get(_ context.Context, userID int) (*model.NotificationPreferences, error) {
	return s.prefs[userID], nil
}

func (s *fakePreferenceStore) Save(_ context.Context, p *model.NotificationPreferences) error {
	if s.prefs == nil {
		s.prefs = map[int]*model.NotificationPreferences{}
	}
	s.prefs[p.UserID] = p
	return nil
}

type fakePublisher struct {
	published []any
	err       error
}

func (p *fakePublisher) Publish(_ string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, payload)
	return nil
}

func newTestRouter(store *fakeNotificationStore, prefs *fakePreferenceStore, pub *fakePublisher) *Router {
	defaults := model.DefaultPreferences()
	return NewRouter(store, prefs, pub, &defaults, zap.NewNop())
}

func TestCreateNotificationPublishesRoutedChannels(t *testing.T) {
	store := &fakeNotificationStore{}
	pub := &fakePublisher{}
	r := newTestRouter(store, &fakePreferenceStore{}, pub)

	id, err := r.CreateNotification(context.Background(), CreateParams{
		UserID:   5,
		Title:    "Taak toegewezen",
		Message:  "Je hebt een nieuwe taak",
		Type:     model.TypeUpdate,
		Priority: model.PriorityNormal,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	require.Len(t, store.rows, 1)
	require.Len(t, pub.published, 1)
}

func TestCreateNotificationSurvivesPublishFailure(t *testing.T) {
	store := &fakeNotificationStore{}
	pub := &fakePublisher{err: errors.New("broker down")}
	r := newTestRouter(store, &fakePreferenceStore{}, pub)

	_, err := r.CreateNotification(context.Background(), CreateParams{
		UserID:   5,
		Title:    "t",
		Message:  "m",
		Type:     model.TypeUpdate,
		Priority: model.PriorityNormal,
	})
	require.NoError(t, err, "the persisted row is the source of truth")
	assert.Len(t, store.rows, 1)
}

func TestVacationDelegationResolvedPerCall(t *testing.T) {
	store := &fakeNotificationStore{}
	delegate := 9
	prefs := &fakePreferenceStore{prefs: map[int]*model.NotificationPreferences{
		5: {UserID: 5, VacationMode: true, DelegateUserID: &delegate},
	}}
	r := newTestRouter(store, prefs, &fakePublisher{})

	p := CreateParams{UserID: 5, Title: "t", Message: "m", Type: model.TypeUpdate, Priority: model.PriorityNormal}

	_, err := r.CreateNotification(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 9, store.rows[0].UserID, "vacation mode hands the notification to the delegate")

	// Vacation ends mid-flight: the next notification must go to the user.
	prefs.prefs[5].VacationMode = false
	_, err = r.CreateNotification(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 5, store.rows[1].UserID)
}

func TestBatchCreateCombineSimilar(t *testing.T) {
	store := &fakeNotificationStore{}
	r := newTestRouter(store, &fakePreferenceStore{}, &fakePublisher{})

	batch := []CreateParams{
		{UserID: 5, Title: "Herinnering A", Type: model.TypeReminder, Priority: model.PriorityNormal},
		{UserID: 5, Title: "Herinnering B", Type: model.TypeReminder, Priority: model.PriorityNormal},
		{UserID: 5, Title: "Herinnering C", Type: model.TypeReminder, Priority: model.PriorityHigh},
		{UserID: 5, Title: "Wijziging D", Type: model.TypeUpdate, Priority: model.PriorityNormal},
	}

	ids, err := r.BatchCreate(context.Background(), batch, BatchOptions{CombineSimilar: true})
	require.NoError(t, err)
	assert.Len(t, ids, 2, "three reminders collapse into one digest, the update stays")
	require.Len(t, store.rows, 2)

	var digest, singleton *model.Notification
	for i := range store.rows {
		if store.rows[i].IsDigest {
			digest = &store.rows[i]
		} else {
			singleton = &store.rows[i]
		}
	}
	require.NotNil(t, digest, "expected one digest row")
	require.NotNil(t, singleton, "expected one singleton row")

	assert.Equal(t, model.TypeReminder, digest.Type)
	assert.Equal(t, 3, strings.Count(digest.Message, "•"), "digest message bullet-joins the original titles")
	assert.Contains(t, digest.Message, "Herinnering A")
	assert.Equal(t, model.PriorityHigh, digest.Priority, "digest takes the highest member priority")

	assert.Equal(t, model.TypeUpdate, singleton.Type)
	assert.False(t, singleton.IsDigest)
}

func TestBatchCreateGroupingIsDeterministic(t *testing.T) {
	batch := []CreateParams{
		{UserID: 7, Title: "b1", Type: model.TypeUpdate, Priority: model.PriorityNormal},
		{UserID: 5, Title: "a1", Type: model.TypeReminder, Priority: model.PriorityNormal},
		{UserID: 7, Title: "b2", Type: model.TypeUpdate, Priority: model.PriorityNormal},
		{UserID: 5, Title: "a2", Type: model.TypeReminder, Priority: model.PriorityNormal},
	}

	order := func() []int {
		store := &fakeNotificationStore{}
		r := newTestRouter(store, &fakePreferenceStore{}, &fakePublisher{})
		_, err := r.BatchCreate(context.Background(), batch, BatchOptions{CombineSimilar: true})
		require.NoError(t, err)
		users := make([]int, len(store.rows))
		for i, n := range store.rows {
			users[i] = n.UserID
		}
		return users
	}

	first := order()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, order(), "grouping must not depend on map iteration order")
	}
}

func TestBatchCreateWithoutCombine(t *testing.T) {
	store := &fakeNotificationStore{}
	r := newTestRouter(store, &fakePreferenceStore{}, &fakePublisher{})

	batch := []CreateParams{
		{UserID: 5, Title: "a", Type: model.TypeReminder, Priority: model.PriorityNormal},
		{UserID: 5, Title: "b", Type: model.TypeReminder, Priority: model.PriorityNormal},
	}
	ids, err := r.BatchCreate(context.Background(), batch, BatchOptions{})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	for _, n := range store.rows {
		assert.False(t, n.IsDigest)
	}
}

func TestMarkAllAsReadPreservesEarlierReadTime(t *testing.T) {
	store := &fakeNotificationStore{}
	r := newTestRouter(store, &fakePreferenceStore{}, &fakePublisher{})

	p := CreateParams{UserID: 5, Title: "t", Message: "m", Type: model.TypeUpdate, Priority: model.PriorityNormal}
	id1, err := r.CreateNotification(context.Background(), p)
	require.NoError(t, err)
	_, err = r.CreateNotification(context.Background(), p)
	require.NoError(t, err)

	require.NoError(t, r.MarkAsRead(context.Background(), id1))
	firstReadAt := *store.rows[0].ReadAt

	time.Sleep(5 * time.Millisecond)
	updated, err := r.MarkAllAsRead(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated, "only the unread row is touched")
	assert.Equal(t, firstReadAt, *store.rows[0].ReadAt, "earlier read time must survive for audit")
	assert.NotNil(t, store.rows[1].ReadAt)
}

func TestMarkAsReadIdempotent(t *testing.T) {
	store := &fakeNotificationStore{}
	r := newTestRouter(store, &fakePreferenceStore{}, &fakePublisher{})

	id, err := r.CreateNotification(context.Background(), CreateParams{
		UserID: 5, Title: "t", Message: "m", Type: model.TypeUpdate, Priority: model.PriorityNormal,
	})
	require.NoError(t, err)

	require.NoError(t, r.MarkAsRead(context.Background(), id))
	readAt := *store.rows[0].ReadAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, r.MarkAsRead(context.Background(), id), "re-marking is a no-op, not an error")
	assert.Equal(t, readAt, *store.rows[0].ReadAt)
}

func TestUpdatePreferencesMaterializesDefaults(t *testing.T) {
	prefs := &fakePreferenceStore{}
	r := newTestRouter(&fakeNotificationStore{}, prefs, &fakePublisher{})

	weekend := true
	got, err := r.UpdatePreferences(context.Background(), 5, model.PreferencesUpdate{WeekendMode: &weekend})
	require.NoError(t, err)

	assert.True(t, got.WeekendMode)
	assert.Equal(t, "immediate", got.DigestFrequency, "untouched fields come from the defaults")
	assert.NotEmpty(t, got.CategoryChannels)
	require.NotNil(t, prefs.prefs[5], "first write materializes the row")
}
