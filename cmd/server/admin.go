package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"voxellands.ai/internal/hierarchy"
	"voxellands.ai/internal/land"
	"voxellands.ai/internal/persistence/backup"
	"voxellands.ai/internal/persistence/kvstore"
	"voxellands.ai/internal/registry"
)

type handlerDeps struct {
	reg       *registry.Registry
	hier      *hierarchy.Service
	store     kvstore.Store
	backupDir string
	log       *zap.Logger
	admin     bool
}

func newMux(d handlerDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		st := d.reg.Stats()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP lands_claims Registered claims.\n")
		fmt.Fprintf(rw, "# TYPE lands_claims gauge\n")
		fmt.Fprintf(rw, "lands_claims %d\n", st.Claims)

		fmt.Fprintf(rw, "# HELP lands_dirty_claims Claims waiting for the next flush.\n")
		fmt.Fprintf(rw, "# TYPE lands_dirty_claims gauge\n")
		fmt.Fprintf(rw, "lands_dirty_claims %d\n", st.Dirty)

		fmt.Fprintf(rw, "# HELP lands_dimensions Dimensions holding at least one indexed claim.\n")
		fmt.Fprintf(rw, "# TYPE lands_dimensions gauge\n")
		fmt.Fprintf(rw, "lands_dimensions %d\n", st.Dimensions)

		fmt.Fprintf(rw, "# HELP lands_operators Operators.\n")
		fmt.Fprintf(rw, "# TYPE lands_operators gauge\n")
		fmt.Fprintf(rw, "lands_operators %d\n", st.Operators)

		fmt.Fprintf(rw, "# HELP lands_next_id Next claim id.\n")
		fmt.Fprintf(rw, "# TYPE lands_next_id gauge\n")
		fmt.Fprintf(rw, "lands_next_id %d\n", st.NextID)
	})

	if !d.admin {
		d.log.Info("admin endpoints disabled (LANDS_ENABLE_ADMIN_HTTP=false)")
		return mux
	}

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, d.reg.Stats())
	}))
	mux.HandleFunc("/admin/v1/flush", loopbackOnly(postOnly(func(rw http.ResponseWriter, r *http.Request) {
		n, err := d.reg.Flush()
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "flushed": n})
	})))
	mux.HandleFunc("/admin/v1/backup", loopbackOnly(postOnly(func(rw http.ResponseWriter, r *http.Request) {
		if _, err := d.reg.Flush(); err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		if err := os.MkdirAll(d.backupDir, 0o755); err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		path := filepath.Join(d.backupDir, backup.FileName(registry.StoreVersion, time.Now()))
		h, err := backup.Dump(path, d.store, registry.StoreVersion, "admin")
		if err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		d.log.Info("backup written", zap.String("path", path), zap.Int("entries", h.Entries))
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "path": path, "entries": h.Entries})
	})))
	mux.HandleFunc("/admin/v1/claims/delete", loopbackOnly(postOnly(func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("id")), 10, 64)
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad id"})
			return
		}
		removed, err := deleteClaim(d, id)
		if err != nil {
			writeJSON(rw, statusFor(err), map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "removed": removed})
	})))
	mux.HandleFunc("/admin/v1/claims/promote", loopbackOnly(postOnly(func(rw http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("id")), 10, 64)
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad id"})
			return
		}
		c, ok := d.reg.GetClaim(id)
		if !ok {
			writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": "not found"})
			return
		}
		if c.Type() == land.Mix {
			err = d.hier.TransferChildren(c)
		} else {
			err = d.hier.PromoteChildren(c)
		}
		if err != nil {
			writeJSON(rw, statusFor(err), map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
	})))
	return mux
}

// deleteClaim removes id whatever its role: ordinary claims directly, leaves through
// their parent, and parents with their whole subtree.
func deleteClaim(d handlerDeps, id land.ID) ([]land.ID, error) {
	c, ok := d.reg.GetClaim(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", registry.ErrNotFound, id)
	}
	switch c.Type() {
	case land.Ordinary:
		return []land.ID{id}, d.reg.RemoveOrdinaryClaim(id)
	case land.Sub:
		return []land.ID{id}, d.hier.DeleteSubclaim(c)
	default:
		return d.hier.DeleteRecursive(c)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrTypeMismatch):
		return http.StatusConflict
	case errors.Is(err, registry.ErrStoreFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
