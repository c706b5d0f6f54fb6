package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendAndTrim(t *testing.T) {
	m := NewMemoryStore(2)
	m.Append("s1", Message{Role: RoleUser, Content: "a"})
	m.Append("s1", Message{Role: RoleAssistant, Content: "b"})
	m.Append("s1", Message{Role: RoleUser, Content: "c"})

	got := m.Get("s1")
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Content)
	assert.Empty(t, m.Get("other"))

	got[0].Content = "mutated"
	assert.Equal(t, "b", m.Get("s1")[0].Content)
}

func TestMemoryStoreUnlimitedHistory(t *testing.T) {
	m := NewMemoryStore(0)
	for i := 0; i < 100; i++ {
		m.Append("s", Message{Role: RoleUser, Content: "x"})
	}
	assert.Len(t, m.Get("s"), 100)
}

func TestPendingIntentCopiesAndExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore(0).WithPendingTTL(time.Minute)
	m.now = func() time.Time { return now }

	args := map[string]any{"title": "jeans"}
	m.SetPendingIntent("s", "add_expense", args)
	args["amount"] = 5

	typ, got, ok := m.GetPendingIntent("s")
	require.True(t, ok)
	assert.Equal(t, "add_expense", typ)
	assert.Equal(t, map[string]any{"title": "jeans"}, got)

	got["category"] = "x"
	_, again, _ := m.GetPendingIntent("s")
	assert.NotContains(t, again, "category")

	now = now.Add(2 * time.Minute)
	_, _, ok = m.GetPendingIntent("s")
	assert.False(t, ok)
}

func TestClearPendingIntent(t *testing.T) {
	m := NewMemoryStore(0)
	m.SetPendingIntent("s", "search_expenses", nil)
	m.ClearPendingIntent("s")
	_, _, ok := m.GetPendingIntent("s")
	assert.False(t, ok)
}

func TestLastExpensesCache(t *testing.T) {
	now := time.Now()
	m := NewMemoryStore(0)
	m.now = func() time.Time { return now }
	m.SetLastExpenses("s", []ExpenseRef{{ID: "1", Title: "Coffee"}})

	refs, ok := m.GetLastExpenses("s")
	require.True(t, ok)
	assert.Equal(t, "Coffee", refs[0].Title)

	now = now.Add(defaultPendingTTL + time.Second)
	_, ok = m.GetLastExpenses("s")
	assert.False(t, ok)

	m.SetLastExpenses("s", []ExpenseRef{{ID: "2", Title: "Taxi"}})
	m.ClearLastExpenses("s")
	_, ok = m.GetLastExpenses("s")
	assert.False(t, ok)
}

func TestMemoryStoreHydratesFromBoltArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.bolt")
	archive, err := OpenBoltArchive(path)
	require.NoError(t, err)

	first := NewMemoryStore(0).WithArchive(archive)
	first.Append("s", Message{Role: RoleUser, Content: "I bought jeans"})
	first.Append("s", Message{Role: RoleAssistant, Content: "How much did you spend?"})

	second := NewMemoryStore(0).WithArchive(archive)
	got := second.Get("s")
	require.Len(t, got, 2)
	assert.Equal(t, "How much did you spend?", got[1].Content)

	second.Append("s", Message{Role: RoleUser, Content: "2000"})
	loaded, err := archive.Load("s")
	require.NoError(t, err)
	assert.Len(t, loaded, 3)

	missing, err := archive.Load("nobody")
	require.NoError(t, err)
	assert.Empty(t, missing)
	require.NoError(t, archive.Close())
}
