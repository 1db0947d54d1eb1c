package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voxellands.ai/internal/geom"
	"voxellands.ai/internal/hierarchy"
	"voxellands.ai/internal/land"
	"voxellands.ai/internal/persistence/kvstore"
	"voxellands.ai/internal/registry"
)

func newTestDeps(t *testing.T) handlerDeps {
	t.Helper()
	store, err := kvstore.OpenSQLite(t.TempDir() + "/lands.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg, err := registry.Open(registry.Options{Store: store})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	return handlerDeps{
		reg:       reg,
		hier:      hierarchy.New(reg, nil),
		store:     store,
		backupDir: t.TempDir(),
		log:       zap.NewNop(),
		admin:     true,
	}
}

func do(t *testing.T, mux *http.ServeMux, method, target string, loopback bool) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if loopback {
		req.RemoteAddr = "127.0.0.1:40000"
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func addClaim(t *testing.T, reg *registry.Registry, x0, z0, x1, z1 int) *land.Claim {
	t.Helper()
	c := land.New(0, geom.Box(geom.Vec3i{X: x0, Z: z0}, geom.Vec3i{X: x1, Z: z1}), false, uuid.New())
	_, err := reg.AddOrdinaryClaim(c)
	require.NoError(t, err)
	return c
}

func TestMux_HealthAndMetrics(t *testing.T) {
	d := newTestDeps(t)
	addClaim(t, d.reg, 0, 0, 31, 31)
	mux := newMux(d)

	rec, _ := do(t, mux, http.MethodGet, "/healthz", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec, _ = do(t, mux, http.MethodGet, "/metrics", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "lands_claims 1\n")
	require.Contains(t, rec.Body.String(), "lands_dirty_claims 1\n")
}

func TestMux_AdminRequiresLoopback(t *testing.T) {
	mux := newMux(newTestDeps(t))
	rec, _ := do(t, mux, http.MethodGet, "/admin/v1/state", false)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := do(t, mux, http.MethodGet, "/admin/v1/state", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(0), body["claims"])

	rec, _ = do(t, mux, http.MethodGet, "/admin/v1/flush", true)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMux_AdminDisabled(t *testing.T) {
	d := newTestDeps(t)
	d.admin = false
	rec, _ := do(t, newMux(d), http.MethodGet, "/admin/v1/state", true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMux_FlushAndBackup(t *testing.T) {
	d := newTestDeps(t)
	addClaim(t, d.reg, 0, 0, 31, 31)
	mux := newMux(d)

	rec, body := do(t, mux, http.MethodPost, "/admin/v1/flush", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), body["flushed"])
	require.Equal(t, 0, d.reg.Stats().Dirty)

	rec, body = do(t, mux, http.MethodPost, "/admin/v1/backup", true)
	require.Equal(t, http.StatusOK, rec.Code)
	// version record + one claim
	require.Equal(t, float64(2), body["entries"])
	_, err := os.Stat(body["path"].(string))
	require.NoError(t, err)
}

func TestMux_DeleteAndPromote(t *testing.T) {
	d := newTestDeps(t)
	mux := newMux(d)
	plain := addClaim(t, d.reg, 500, 500, 531, 531)
	root := addClaim(t, d.reg, 0, 0, 200, 200)
	child := land.New(0, geom.Box(geom.Vec3i{X: 10, Z: 10}, geom.Vec3i{X: 50, Z: 50}), false, uuid.New())
	_, err := d.hier.AttachSubclaim(root, child)
	require.NoError(t, err)

	rec, _ := do(t, mux, http.MethodPost, "/admin/v1/claims/delete?id=abc", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, mux, http.MethodPost, "/admin/v1/claims/delete?id=999", true)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, mux, http.MethodPost, "/admin/v1/claims/delete?id="+itoa(plain.ID()), true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, d.reg.Lookup(plain.ID()))

	rec, _ = do(t, mux, http.MethodPost, "/admin/v1/claims/promote?id="+itoa(child.ID()), true)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, mux, http.MethodPost, "/admin/v1/claims/promote?id="+itoa(root.ID()), true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, d.reg.Lookup(root.ID()))
	require.Equal(t, land.Ordinary, child.Type())
}

func TestIsLoopbackRemote(t *testing.T) {
	require.True(t, isLoopbackRemote("127.0.0.1:1234"))
	require.True(t, isLoopbackRemote("[::1]:1234"))
	require.False(t, isLoopbackRemote("10.0.0.1:1234"))
	require.False(t, isLoopbackRemote("garbage"))
}

func itoa(id land.ID) string { return strconv.FormatInt(id, 10) }
