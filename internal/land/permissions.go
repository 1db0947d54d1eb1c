package land

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// PermKind enumerates the world interactions a claim can gate.
type PermKind int

const (
	PermBuild PermKind = iota + 1
	PermBreak
	PermInteract
	PermUseContainer
	PermUseDoor
	PermAttackPlayer
	PermAttackAnimal
	PermAttackMonster
	PermPickupItem
	PermDropItem
	PermFireSpread
	PermExplosion
	PermFlow
	PermTeleport
)

var permNames = map[PermKind]string{
	PermBuild:         "build",
	PermBreak:         "break",
	PermInteract:      "interact",
	PermUseContainer:  "use_container",
	PermUseDoor:       "use_door",
	PermAttackPlayer:  "attack_player",
	PermAttackAnimal:  "attack_animal",
	PermAttackMonster: "attack_monster",
	PermPickupItem:    "pickup_item",
	PermDropItem:      "drop_item",
	PermFireSpread:    "fire_spread",
	PermExplosion:     "explosion",
	PermFlow:          "flow",
	PermTeleport:      "teleport",
}

var permByName = func() map[string]PermKind {
	m := make(map[string]PermKind, len(permNames))
	for k, n := range permNames {
		m[n] = k
	}
	return m
}()

func (k PermKind) String() string {
	if n, ok := permNames[k]; ok {
		return n
	}
	return fmt.Sprintf("perm(%d)", int(k))
}

func ParsePermKind(s string) (PermKind, bool) {
	k, ok := permByName[s]
	return k, ok
}

// AllPermKinds lists every kind in declaration order.
func AllPermKinds() []PermKind {
	out := make([]PermKind, 0, len(permNames))
	for k := range permNames {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type PermEntry struct {
	Member bool `json:"member"`
	Guest  bool `json:"guest"`
}

// PermissionTable maps a kind to who may perform it. Missing kinds deny both roles.
type PermissionTable map[PermKind]PermEntry

func DefaultPermissionTable() PermissionTable {
	t := PermissionTable{}
	for _, k := range AllPermKinds() {
		t[k] = PermEntry{Member: true, Guest: false}
	}
	t[PermUseDoor] = PermEntry{Member: true, Guest: true}
	t[PermAttackMonster] = PermEntry{Member: true, Guest: true}
	t[PermTeleport] = PermEntry{Member: true, Guest: true}
	t[PermFireSpread] = PermEntry{}
	t[PermExplosion] = PermEntry{}
	return t
}

func (t PermissionTable) MemberAllowed(k PermKind) bool { return t[k].Member }
func (t PermissionTable) GuestAllowed(k PermKind) bool  { return t[k].Guest }

func (t PermissionTable) Clone() PermissionTable {
	out := make(PermissionTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func (t PermissionTable) MarshalJSON() ([]byte, error) {
	m := make(map[string]PermEntry, len(t))
	for k, v := range t {
		m[k.String()] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON skips unknown kinds so records written by newer builds still load.
func (t *PermissionTable) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*t = PermissionTable{}
		return nil
	}
	var m map[string]PermEntry
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := make(PermissionTable, len(m))
	for n, v := range m {
		if k, ok := ParsePermKind(n); ok {
			out[k] = v
		}
	}
	*t = out
	return nil
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}
