package moodle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/simon020286/go-autopilot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMoodle answers site info with the given functions and routes every
// other call to handle.
type fakeMoodle struct {
	*httptest.Server
	calls     atomic.Int32
	functions []string
	handle    func(w http.ResponseWriter, r *http.Request, op string)
}

func newFakeMoodle(t *testing.T, functions []string, handle func(w http.ResponseWriter, r *http.Request, op string)) *fakeMoodle {
	t.Helper()
	fm := &fakeMoodle{functions: functions, handle: handle}
	fm.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fm.calls.Add(1)
		if r.URL.Path == "/pluginfile.php/1/file.txt" {
			if r.URL.Query().Get("token") != "private-key" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write([]byte("file content"))
			return
		}
		if r.URL.Path != ServicePath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		op := r.URL.Query().Get("wsfunction")
		if op == SiteInfoOperation {
			funcs := make([]map[string]string, 0, len(fm.functions))
			for _, f := range fm.functions {
				funcs = append(funcs, map[string]string{"name": f})
			}
			json.NewEncoder(w).Encode(map[string]any{
				"username":             "teacher",
				"userid":               42,
				"fullname":             "Tea Cher",
				"sitename":             "Test Site",
				"userprivateaccesskey": "private-key",
				"functions":            funcs,
			})
			return
		}
		if fm.handle != nil {
			fm.handle(w, r, op)
		}
	}))
	t.Cleanup(fm.Close)
	return fm
}

func connected(t *testing.T, fm *fakeMoodle) *Session {
	t.Helper()
	s, err := New(fm.URL)
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background(), "secret"))
	return s
}

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "moodle.example.edu", "ftp://x", "://bad"} {
		_, err := New(raw)
		var te *models.TransportError
		assert.True(t, errors.As(err, &te), raw)
	}
}

func TestConnect_Discovery(t *testing.T) {
	fm := newFakeMoodle(t, []string{
		"core_course_get_enrolled_courses_by_timeline_classification",
		"mod_assign_save_grade",
	}, nil)

	s := connected(t, fm)

	assert.Equal(t, int32(1), fm.calls.Load())
	assert.Equal(t, models.Identity{Username: "teacher", UserID: 42, FullName: "Tea Cher", SiteName: "Test Site"}, s.User())
	assert.True(t, s.HasOperation("mod_assign_save_grade"))
	assert.False(t, s.HasOperation("mod_assign_get_assignments"))

	op, ok := s.Catalogue().Lookup("core_course", "get", "enrolled_courses")
	require.True(t, ok)
	assert.Equal(t, "core_course_get_enrolled_courses_by_timeline_classification", op.Name)
}

func TestConnect_Twice_RebuildsCatalogue(t *testing.T) {
	fm := newFakeMoodle(t, []string{"mod_assign_save_grade"}, nil)
	s := connected(t, fm)
	require.True(t, s.HasOperation("mod_assign_save_grade"))

	fm.functions = []string{"mod_assign_get_assignments"}
	require.NoError(t, s.Connect(context.Background(), "secret"))

	assert.False(t, s.HasOperation("mod_assign_save_grade"))
	assert.True(t, s.HasOperation("mod_assign_get_assignments"))
}

func TestConnect_MissingToken(t *testing.T) {
	fm := newFakeMoodle(t, nil, nil)
	s, err := New(fm.URL)
	require.NoError(t, err)

	err = s.Connect(context.Background(), "")
	var te *models.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, int32(0), fm.calls.Load())
}

func TestGet_QueryString(t *testing.T) {
	var rawQuery string
	fm := newFakeMoodle(t, []string{"mod_assign_get_assignments"}, func(w http.ResponseWriter, r *http.Request, op string) {
		rawQuery = r.URL.RawQuery
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"courses":[]}`))
	})
	s := connected(t, fm)

	res, err := s.Invoke(context.Background(), "mod_assign", "get", "assignments", map[string]any{"courseids[0]": 7})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"courses": []any{}}, res)
	assert.Equal(t, "moodlewsrestformat=json&wsfunction=mod_assign_get_assignments&wstoken=secret&courseids[0]=7", rawQuery)
}

func TestPost_FormBody(t *testing.T) {
	var body, contentType string
	fm := newFakeMoodle(t, []string{"mod_assign_save_grade"}, func(w http.ResponseWriter, r *http.Request, op string) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "mod_assign_save_grade", op)
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		contentType = r.Header.Get("Content-Type")
		w.Write([]byte("null"))
	})
	s := connected(t, fm)

	res, err := s.Call(context.Background(), "mod_assign_save_grade", map[string]any{
		"assignmentid": 3,
		"grade":        9.5,
	})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, "assignmentid=3&grade=9.5", body)
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
}

func TestPost_EmptyBody_NoRequest(t *testing.T) {
	fm := newFakeMoodle(t, []string{"mod_assign_save_grade"}, func(w http.ResponseWriter, r *http.Request, op string) {
		t.Fatal("no request expected")
	})
	s := connected(t, fm)
	before := fm.calls.Load()

	_, err := s.Call(context.Background(), "mod_assign_save_grade", nil)
	var te *models.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "mod_assign_save_grade", te.Operation)
	assert.Equal(t, before, fm.calls.Load())
}

func TestFault_DomainError(t *testing.T) {
	fm := newFakeMoodle(t, []string{"mod_assign_get_assignments"}, func(w http.ResponseWriter, r *http.Request, op string) {
		w.Write([]byte(`{"exception":"moodle_exception","errorcode":"nopermissions","message":"No permission"}`))
	})
	s := connected(t, fm)

	_, err := s.Call(context.Background(), "mod_assign_get_assignments", map[string]any{"courseids[0]": 1})
	var de *models.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "mod_assign_get_assignments", de.Operation)
	assert.Equal(t, "nopermissions", de.Code)
	assert.Equal(t, "No permission", de.Message)
	assert.Contains(t, de.Path, ServicePath)
	assert.Contains(t, de.Path, "wstoken=REDACTED")
	assert.NotContains(t, de.Path, "secret")
}

func TestFault_ExceptionKeyWithAnyValue(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		fault bool
		code  string
	}{
		{"null exception", `{"exception":null,"errorcode":"nullexc","message":"m"}`, true, "nullexc"},
		{"object exception", `{"exception":{"class":"x"},"errorcode":"objexc"}`, true, "objexc"},
		{"numeric errorcode", `{"exception":"e","errorcode":17}`, true, "17"},
		{"no exception key", `{"errorcode":"ignored","warnings":[]}`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := newFakeMoodle(t, []string{"mod_assign_get_assignments"}, func(w http.ResponseWriter, r *http.Request, op string) {
				w.Write([]byte(tt.body))
			})
			s := connected(t, fm)

			res, err := s.Call(context.Background(), "mod_assign_get_assignments", nil)
			if !tt.fault {
				require.NoError(t, err)
				assert.NotNil(t, res)
				return
			}
			var de *models.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.code, de.Code)
		})
	}
}

func TestFault_ExceptionOnConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"exception":"moodle_exception","errorcode":"invalidtoken","message":"Invalid token"}`))
	}))
	defer srv.Close()

	s, err := New(srv.URL)
	require.NoError(t, err)
	err = s.Connect(context.Background(), "bad")
	var de *models.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "invalidtoken", de.Code)
	assert.False(t, s.Connected())
}

func TestTransport_BadStatusAndBody(t *testing.T) {
	fm := newFakeMoodle(t, []string{"a_b_get_c", "a_b_get_d"}, func(w http.ResponseWriter, r *http.Request, op string) {
		if op == "a_b_get_c" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html>not json</html>"))
	})
	s := connected(t, fm)

	_, err := s.Call(context.Background(), "a_b_get_c", nil)
	var te *models.TransportError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, te.Error(), "unexpected status 500")

	_, err = s.Call(context.Background(), "a_b_get_d", nil)
	require.True(t, errors.As(err, &te))
}

func TestInvoke_Unknown(t *testing.T) {
	fm := newFakeMoodle(t, nil, nil)
	s := connected(t, fm)

	_, err := s.Invoke(context.Background(), "mod_quiz", "get", "attempts", nil)
	var ce *models.CapabilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "mod_quiz_get_attempts", ce.Operation)
}

func TestDownload_UsesPrivateKey(t *testing.T) {
	fm := newFakeMoodle(t, nil, nil)
	s := connected(t, fm)

	var buf bytes.Buffer
	require.NoError(t, s.Download(context.Background(), fm.URL+"/pluginfile.php/1/file.txt", &buf))
	assert.Equal(t, "file content", buf.String())
}

func TestDownload_NotConnected(t *testing.T) {
	s, err := New("https://moodle.example.edu")
	require.NoError(t, err)

	err = s.Download(context.Background(), "https://moodle.example.edu/pluginfile.php/1/f", io.Discard)
	var te *models.TransportError
	assert.True(t, errors.As(err, &te))
}

func TestDownloadFile(t *testing.T) {
	fm := newFakeMoodle(t, nil, nil)
	s := connected(t, fm)

	path := t.TempDir() + "/out.txt"
	require.NoError(t, s.DownloadFile(context.Background(), fm.URL+"/pluginfile.php/1/file.txt", path))

	err := s.DownloadFile(context.Background(), fm.URL+"/pluginfile.php/2/missing.txt", t.TempDir()+"/x")
	assert.Error(t, err)
}
