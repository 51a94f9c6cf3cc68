package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus/fuelsim/internal/record"
	"github.com/cyclus/fuelsim/internal/record/memorybackend"
)

func TestRecorderFlushOrdering(t *testing.T) {
	be := memorybackend.New()
	rec := record.NewRecorder(0)
	rec.RegisterBackend(be)

	rec.NewDatum("Transactions").AddVal("TransactionId", int64(1)).Record()
	rec.NewDatum("Transactions").AddVal("TransactionId", int64(2)).Record()
	require.NoError(t, rec.Flush())

	rows, err := be.Query("Transactions", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(1), rows[0]["TransactionId"])
	require.Equal(t, int64(2), rows[1]["TransactionId"])
}

func TestRecorderAutoFlushThreshold(t *testing.T) {
	be := memorybackend.New()
	rec := record.NewRecorder(2)
	rec.RegisterBackend(be)

	rec.NewDatum("X").AddVal("a", 1).Record()
	rows, _ := be.Query("X", nil)
	require.Len(t, rows, 0, "should not flush before threshold")

	rec.NewDatum("X").AddVal("a", 2).Record()
	rows, _ = be.Query("X", nil)
	require.Len(t, rows, 2, "should auto-flush at threshold")
}

func TestQueryConditions(t *testing.T) {
	be := memorybackend.New()
	rec := record.NewRecorder(0)
	rec.RegisterBackend(be)

	rec.NewDatum("Resources").AddVal("Quantity", 1.5).Record()
	rec.NewDatum("Resources").AddVal("Quantity", 2.5).Record()
	require.NoError(t, rec.Flush())

	rows, err := be.Query("Resources", []record.Cond{{Field: "Quantity", Op: record.OpGt, Value: 2.0}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 2.5, rows[0]["Quantity"])
}

func TestCloseFlushesAndClosesBackends(t *testing.T) {
	be := memorybackend.New()
	rec := record.NewRecorder(0)
	rec.RegisterBackend(be)
	rec.NewDatum("Info").AddVal("Duration", 10).Record()
	require.NoError(t, rec.Close())

	rows, err := be.Query("Info", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
