package migrate

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestClaimChain_V1ToCurrent(t *testing.T) {
	chain, err := NewClaimChain()
	require.NoError(t, err)

	member := uuid.New().String()
	doc, err := Decode([]byte(`{
	  "id": 12,
	  "dimid": 1,
	  "posA": [0, 0, 0],
	  "posB": [15, 0, 15],
	  "is3D": false,
	  "owner": "2535412345678901",
	  "members": ["` + member + `", "legacy-name"],
	  "permissions": {"build": true, "break": false},
	  "name": "old"
	}`))
	require.NoError(t, err)

	require.NoError(t, chain.Migrate(doc, 3))

	v, err := Version(doc)
	require.NoError(t, err)
	require.Equal(t, 3, v)
	require.Equal(t, "", doc["owner"])
	require.Equal(t, "2535412345678901", doc["legacy_owner"])
	require.Equal(t, []any{member}, doc["members"])
	require.NotContains(t, doc, "posA")

	perms := doc["permissions"].(map[string]any)
	require.Equal(t, map[string]any{"member": true, "guest": true}, perms["build"])
	require.Equal(t, map[string]any{"member": true, "guest": false}, perms["break"])

	// The migrated document decodes as a current record.
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	var rec struct {
		Dimension int    `json:"dimension"`
		Max       [3]int `json:"max"`
		ParentID  int64  `json:"parent_id"`
	}
	require.NoError(t, json.Unmarshal(b, &rec))
	require.Equal(t, 1, rec.Dimension)
	require.Equal(t, [3]int{15, 0, 15}, rec.Max)
	require.Equal(t, int64(-1), rec.ParentID)
}

func TestChain_RefusesNewerDocuments(t *testing.T) {
	doc := map[string]any{"version": 9}
	err := NewStoreChain().Migrate(doc, 3)
	require.ErrorIs(t, err, ErrTooNew)
}

func TestChain_SchemaRejectsBrokenRecord(t *testing.T) {
	chain, err := NewClaimChain()
	require.NoError(t, err)

	doc, err := Decode([]byte(`{"version": 3, "id": 1, "dimension": 0, "min": [0,0], "max": [1,1,1],
	  "is_3d": false, "owner": "", "members": [], "permissions": {}, "parent_id": -1, "children": []}`))
	require.NoError(t, err)
	require.Error(t, chain.Migrate(doc, 3))
}

func TestChain_StepsRunInOrder(t *testing.T) {
	var seen []int
	c := NewChain()
	for i := 1; i <= 3; i++ {
		from := i
		c.Register(from, func(doc map[string]any) error {
			seen = append(seen, from)
			return nil
		})
	}
	doc := map[string]any{"version": json.Number("1")}
	require.NoError(t, c.Migrate(doc, 4))
	require.Equal(t, []int{1, 2, 3}, seen)
	require.Equal(t, 4, doc["version"])
}

func TestVersion_Forms(t *testing.T) {
	for _, tc := range []struct {
		raw  any
		want int
	}{
		{nil, 1},
		{2, 2},
		{float64(3), 3},
		{json.Number("4"), 4},
		{" 5 ", 5},
	} {
		got, err := Version(map[string]any{"version": tc.raw})
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}
