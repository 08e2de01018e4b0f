package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteer-hub/config"
	"volunteer-hub/internal/docstore"
	"volunteer-hub/internal/testutil"
	"volunteer-hub/models"
	"volunteer-hub/services"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env       string
		wantJSON  bool
		wantDebug bool
	}{
		{config.EnvDevelopment, false, true},
		{config.EnvStaging, true, true},
		{config.EnvProduction, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			log := newLogger(tt.env, &buf)

			log.Debug("debug line")
			log.Info("info line")

			out := buf.String()
			assert.Contains(t, out, "info line")
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug line"))
			assert.Equal(t, tt.wantJSON, strings.HasPrefix(out, "{"))
		})
	}
}

func TestProfileFromRecord(t *testing.T) {
	users := core.NewAuthCollection("users")
	users.Fields.Add(
		&core.TextField{Name: "name"},
		&core.SelectField{Name: "role", Values: []string{"admin", "parent"}, MaxSelect: 1},
	)

	r := core.NewRecord(users)
	r.Id = "u1"
	r.Set("name", "Ana")
	r.Set("email", "ana@example.com")
	r.Set("role", "admin")

	p := profileFromRecord(r)
	assert.Equal(t, models.UserProfile{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: "admin"}, p)
}

func TestGuardRole(t *testing.T) {
	users := core.NewAuthCollection("users")
	users.Fields.Add(
		&core.TextField{Name: "name"},
		&core.SelectField{Name: "role", Values: []string{"admin", "parent"}, MaxSelect: 1},
	)
	superuser := core.NewRecord(core.NewAuthCollection(core.CollectionNameSuperusers))
	member := core.NewRecord(users)
	member.Id = "u1"

	stored := func(role string) *core.Record {
		r := core.NewRecord(users)
		r.Id = "u1"
		r.Set("name", "Ana")
		r.Set("role", role)
		require.NoError(t, r.PostScan())
		return r
	}

	tests := []struct {
		name    string
		auth    *core.Record
		record  func() *core.Record
		allowed bool
	}{
		{"signup without role", nil, func() *core.Record {
			return core.NewRecord(users)
		}, true},
		{"signup claiming admin", nil, func() *core.Record {
			r := core.NewRecord(users)
			r.Set("role", "admin")
			return r
		}, false},
		{"self update of name", member, func() *core.Record {
			r := stored("parent")
			r.Set("name", "Ana B")
			return r
		}, true},
		{"self promotion", member, func() *core.Record {
			r := stored("parent")
			r.Set("role", "admin")
			return r
		}, false},
		{"superuser promotion", superuser, func() *core.Record {
			r := stored("parent")
			r.Set("role", "admin")
			return r
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &hook.Hook[*core.RecordRequestEvent]{}
			h.BindFunc(guardRole)

			saved := false
			e := &core.RecordRequestEvent{RequestEvent: &core.RequestEvent{Auth: tt.auth}, Record: tt.record()}
			err := h.Trigger(e, func(*core.RecordRequestEvent) error {
				saved = true
				return nil
			})

			assert.Equal(t, tt.allowed, saved)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			var apiErr *router.ApiError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusForbidden, apiErr.Status)
		})
	}
}

func TestProfileFromRow(t *testing.T) {
	row := dbx.NullStringMap{
		"id":    sql.NullString{String: "u2", Valid: true},
		"name":  sql.NullString{String: "Ben", Valid: true},
		"email": sql.NullString{String: "ben@example.com", Valid: true},
		"role":  sql.NullString{},
	}

	p := profileFromRow(row)
	assert.Equal(t, "u2", p.ID)
	assert.Equal(t, "Ben", p.Name)
	assert.Equal(t, models.Role(""), p.Role)
}

func TestWriteAudit(t *testing.T) {
	var buf bytes.Buffer
	writeAudit(&buf, []services.TaskAudit{
		{EventID: "e1", TaskID: "t1", Title: "Setup", Slots: 2, FilledCount: 1, Signups: 1},
		{EventID: "e1", TaskID: "t2", Title: "Cleanup", Slots: 2, FilledCount: 2, Signups: 1, Drift: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "ok    event=e1 task=t1")
	assert.Contains(t, out, "DRIFT event=e1 task=t2 filled=2 signups=1")
	assert.Contains(t, out, "2 tasks audited, 1 drifted")
}

func TestAuditCmd(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	log := testutil.Logger()
	store := docstore.NewRedisStore(client, docstore.WithLogger(log))
	ctx := context.Background()

	in := models.TaskInput{Title: "Setup", Slots: 2}
	fields := in.Fields("admin1", time.Now())
	fields[models.FieldFilledCount] = "1"
	require.NoError(t, store.Set(ctx, models.TaskPath("e1", "t1"), fields, false))

	roles := services.NewRoleService(store, time.Minute, log)
	ledger := services.NewSignupLedger(store, nil, nil, log)
	events := services.NewEventService(store, roles, log)

	var buf bytes.Buffer
	c := newAuditCmd(ledger, events)
	c.SetOut(&buf)
	c.SetArgs([]string{"e1"})
	require.NoError(t, c.Execute())
	assert.Contains(t, buf.String(), "DRIFT event=e1 task=t1 filled=1 signups=0")

	buf.Reset()
	c = newAuditCmd(ledger, events)
	c.SetOut(&buf)
	c.SetArgs([]string{"--json", "e1"})
	require.NoError(t, c.Execute())
	var report []services.TaskAudit
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.Len(t, report, 1)
	assert.Equal(t, 1, report[0].Drift)
}

func TestNewPublisher_NoopWithoutKeys(t *testing.T) {
	pub := newPublisher(&config.Config{}, testutil.Logger())
	assert.IsType(t, services.NoopPublisher{}, pub)

	pub = newPublisher(&config.Config{PubNubPublishKey: "pub", PubNubSubscribeKey: "sub", PubNubUserID: "test"}, testutil.Logger())
	assert.IsType(t, &services.PubNubPublisher{}, pub)
}

func TestHealthHandler(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	handler := healthHandler(client)

	call := func() (int, map[string]string) {
		rec := httptest.NewRecorder()
		e := &core.RequestEvent{}
		e.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
		e.Response = rec
		require.NoError(t, handler(e))

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	code, body := call()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	mr.Close()
	code, body = call()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}
