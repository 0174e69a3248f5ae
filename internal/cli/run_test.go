package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/runner"
)

const kitchenDDL = `
CREATE TABLE RestaurantTable (ID INTEGER PRIMARY KEY, Name TEXT NOT NULL);
CREATE TABLE KitchenTable (
	ID INTEGER PRIMARY KEY, Name TEXT NOT NULL, RoomNumber INTEGER NOT NULL,
	LastCleaningDay TEXT, RestaurantID INTEGER
);
CREATE TABLE CookTable (
	ID INTEGER PRIMARY KEY, FirstName TEXT, Name TEXT, IsStarredCook INTEGER NOT NULL,
	IsFullTimeCook INTEGER NOT NULL, Weight REAL NOT NULL, Salary REAL, Birthday TEXT,
	Type TEXT NOT NULL, KitchenID INTEGER, SubstitutedID INTEGER, AssistedID INTEGER,
	RestaurantID INTEGER, KnifeID INTEGER, KnifeClassID TEXT
);
INSERT INTO RestaurantTable VALUES (1, 'Lux'), (2, 'Corner');
INSERT INTO KitchenTable VALUES (10, 'Main', 3, NULL, 1), (20, 'Side', 4, NULL, 2);
INSERT INTO CookTable (ID, FirstName, Name, IsStarredCook, IsFullTimeCook, Weight, Type, KitchenID)
VALUES
	(1, 'Hugo', 'Huber', 1, 1, 80.5, 'Cook', 10),
	(2, 'Anna', 'Bauer', 0, 1, 60, 'Cook', 20),
	(3, 'Paul', 'Huber', 0, 0, 70, 'Chef', NULL);
`

// kitchenDB creates a populated SQLite database and returns its path.
func kitchenDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kitchen.db")
	r, err := runner.OpenSQLite(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.DB().Exec(kitchenDDL)
	require.NoError(t, err)
	return path
}

func TestRun_Sequence(t *testing.T) {
	db := kitchenDB(t)
	cmd := NewRunCommand(&RootOptions{Format: "text", Mapping: kitchenMapping})

	out, err := execute(t, cmd, query("by_name"), "--db", db)
	require.NoError(t, err)
	assert.Equal(t, []string{`"Hugo"`, `"Paul"`}, strings.Split(strings.TrimSpace(out), "\n"))
}

func TestRun_Scalar(t *testing.T) {
	db := kitchenDB(t)
	cmd := NewRunCommand(&RootOptions{Format: "text", Mapping: kitchenMapping})

	out, err := execute(t, cmd, query("count"), "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(out))
}

func TestRun_ObjectsAsJSON(t *testing.T) {
	db := kitchenDB(t)
	cmd := NewRunCommand(&RootOptions{Format: "json", Mapping: kitchenMapping})

	out, err := execute(t, cmd, query("kitchens"), "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []map[string]any{{"Cook": "Hugo", "Kitchen": "Main"}}, resp.Data)
}

func TestRun_Errors(t *testing.T) {
	t.Run("missing database", func(t *testing.T) {
		cmd := NewRunCommand(&RootOptions{Format: "text", Mapping: kitchenMapping})
		out, err := execute(t, cmd, query("by_name"), "--db", filepath.Join(t.TempDir(), "none.db"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "database not found")
	})

	t.Run("compile error", func(t *testing.T) {
		cmd := NewRunCommand(&RootOptions{Format: "text", Mapping: kitchenMapping})
		out, err := execute(t, cmd, query("reversed"), "--db", kitchenDB(t))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "UNSUPPORTED_OPERATOR")
	})

	t.Run("db flag required", func(t *testing.T) {
		cmd := NewRunCommand(&RootOptions{Format: "text", Mapping: kitchenMapping})
		_, err := execute(t, cmd, query("by_name"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"db" not set`)
	})
}

func TestPlain(t *testing.T) {
	assert.Nil(t, plain(nil))
	assert.Equal(t, "x", plain("x"))
	assert.Equal(t, []any{int64(1), "a"}, plain([]any{int64(1), "a"}))
}
