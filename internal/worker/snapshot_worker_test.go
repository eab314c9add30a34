package worker

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labstock/internal/amqp"
	"labstock/internal/core"
	applog "labstock/internal/log"
	"labstock/internal/storage"
)

type fakeWorkerStore struct {
	records   map[int64]core.PurchaseRecord
	synced    map[int64]bool
	snapshots map[string]storage.MonthTotal
}

func newFakeWorkerStore() *fakeWorkerStore {
	return &fakeWorkerStore{
		records:   map[int64]core.PurchaseRecord{},
		synced:    map[int64]bool{},
		snapshots: map[string]storage.MonthTotal{},
	}
}

func (f *fakeWorkerStore) add(id int64, org string, date core.Date, cents int64) {
	f.records[id] = core.PurchaseRecord{
		ID: id, OrgID: org, Date: date,
		Vendor: "V", ItemName: "I", Currency: "KRW",
		Amount: core.Money{Cents: cents}, Source: core.SourceImport,
	}
}

func (f *fakeWorkerStore) GetPurchasesByIDs(_ context.Context, ids []int64) ([]core.PurchaseRecord, error) {
	var out []core.PurchaseRecord
	for _, id := range ids {
		if rec, ok := f.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeWorkerStore) ListUnsyncedPurchases(_ context.Context, limit int) ([]core.PurchaseRecord, error) {
	var out []core.PurchaseRecord
	for id, rec := range f.records {
		if !f.synced[id] {
			out = append(out, rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeWorkerStore) MarkSheetSynced(_ context.Context, ids []int64) error {
	for _, id := range ids {
		f.synced[id] = true
	}
	return nil
}

func (f *fakeWorkerStore) MonthTotals(_ context.Context, orgID string, months []string) ([]storage.MonthTotal, error) {
	byKey := map[string]*storage.MonthTotal{}
	for _, rec := range f.records {
		if orgID != "" && rec.OrgID != orgID {
			continue
		}
		month := rec.Date.YearMonth()
		if len(months) > 0 && !contains(months, month) {
			continue
		}
		key := rec.OrgID + "/" + month
		t, ok := byKey[key]
		if !ok {
			t = &storage.MonthTotal{OrgID: rec.OrgID, Month: month}
			byKey[key] = t
		}
		t.TotalCents += rec.Amount.Cents
		t.ItemCount++
	}
	var out []storage.MonthTotal
	for _, t := range byKey {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeWorkerStore) UpsertReportSnapshot(_ context.Context, t storage.MonthTotal) error {
	f.snapshots[t.OrgID+"/"+t.Month] = t
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeAppender struct {
	appended [][]core.PurchaseRecord
	err      error
}

func (f *fakeAppender) AppendPurchases(_ context.Context, records []core.PurchaseRecord) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, records)
	return nil
}

func testLogger() *applog.Logger {
	return applog.New(applog.DefaultConfig())
}

func TestHandleImportMessage(t *testing.T) {
	store := newFakeWorkerStore()
	store.add(1, "org-1", core.NewDate(2025, 7, 15), 45000000)
	store.add(2, "org-1", core.NewDate(2025, 7, 20), 5000000)
	appender := &fakeAppender{}
	w := NewSnapshotWorker(store, appender, 50, testLogger())

	err := w.HandleImportMessage(context.Background(), &amqp.PurchaseImportedMessage{
		OrgID:  "org-1",
		IDs:    []int64{1, 2},
		Months: []string{"2025-07"},
	})
	require.NoError(t, err)

	require.Len(t, appender.appended, 1)
	assert.Len(t, appender.appended[0], 2)
	assert.True(t, store.synced[1])
	assert.True(t, store.synced[2])

	snap, ok := store.snapshots["org-1/2025-07"]
	require.True(t, ok)
	assert.Equal(t, int64(50000000), snap.TotalCents)
	assert.Equal(t, 2, snap.ItemCount)
}

func TestHandleImportMessageMirrorFailure(t *testing.T) {
	store := newFakeWorkerStore()
	store.add(1, "org-1", core.NewDate(2025, 7, 15), 100)
	appender := &fakeAppender{err: fmt.Errorf("sheets quota exceeded")}
	w := NewSnapshotWorker(store, appender, 50, testLogger())

	err := w.HandleImportMessage(context.Background(), &amqp.PurchaseImportedMessage{
		OrgID: "org-1", IDs: []int64{1}, Months: []string{"2025-07"},
	})
	require.Error(t, err, "failure must propagate so the message requeues")
	assert.False(t, store.synced[1])
	assert.Empty(t, store.snapshots, "snapshots wait until the mirror succeeds")
}

func TestHandleImportMessageNoAppender(t *testing.T) {
	store := newFakeWorkerStore()
	store.add(1, "org-1", core.NewDate(2025, 7, 15), 100)
	w := NewSnapshotWorker(store, nil, 50, testLogger())

	err := w.HandleImportMessage(context.Background(), &amqp.PurchaseImportedMessage{
		OrgID: "org-1", IDs: []int64{1}, Months: []string{"2025-07"},
	})
	require.NoError(t, err)
	assert.False(t, store.synced[1], "nothing marked synced without a mirror")
	assert.Contains(t, store.snapshots, "org-1/2025-07")
}

func TestRebuildSnapshots(t *testing.T) {
	store := newFakeWorkerStore()
	store.add(1, "org-1", core.NewDate(2025, 6, 30), 100)
	store.add(2, "org-1", core.NewDate(2025, 7, 1), 200)
	store.add(3, "org-2", core.NewDate(2025, 7, 1), 999)
	w := NewSnapshotWorker(store, nil, 50, testLogger())

	require.NoError(t, w.RebuildSnapshots(context.Background()))

	assert.Len(t, store.snapshots, 3)
	assert.Equal(t, int64(999), store.snapshots["org-2/2025-07"].TotalCents)
}

func TestStartupSyncCheck(t *testing.T) {
	store := newFakeWorkerStore()
	for i := int64(1); i <= 5; i++ {
		store.add(i, "org-1", core.NewDate(2025, 7, int(i)), 100)
	}
	store.synced[1] = true
	appender := &fakeAppender{}
	w := NewSnapshotWorker(store, appender, 2, testLogger())

	require.NoError(t, w.StartupSyncCheck(context.Background()))

	for i := int64(1); i <= 5; i++ {
		assert.True(t, store.synced[i], "record %d", i)
	}
}

func TestStartupSyncCheckNoAppender(t *testing.T) {
	store := newFakeWorkerStore()
	store.add(1, "org-1", core.NewDate(2025, 7, 1), 100)
	w := NewSnapshotWorker(store, nil, 50, testLogger())

	require.NoError(t, w.StartupSyncCheck(context.Background()))
	assert.False(t, store.synced[1])
}
