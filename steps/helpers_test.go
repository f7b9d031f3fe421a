package steps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/models"
	"github.com/simon020286/go-autopilot/moodle"
	"github.com/stretchr/testify/require"
)

// moodleStub is a web service fake. Responses are keyed by operation
// name; every request's form values are recorded per operation.
type moodleStub struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]any
	requests  map[string][]map[string]string
	methods   map[string][]string
	files     map[string]string
	// functions fixes the discovery order; by default every response key
	// is listed in map order
	functions []string
}

func newMoodleStub(t *testing.T, responses map[string]any) *moodleStub {
	t.Helper()
	stub := &moodleStub{
		responses: responses,
		requests:  map[string][]map[string]string{},
		methods:   map[string][]string{},
		files:     map[string]string{},
	}
	stub.Server = httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(stub.Close)
	return stub
}

func (m *moodleStub) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != moodle.ServicePath {
		m.mu.Lock()
		body, ok := m.files[r.URL.Path]
		m.mu.Unlock()
		if !ok || r.URL.Query().Get("token") != "private-key" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
		return
	}

	op := r.URL.Query().Get("wsfunction")
	if op == moodle.SiteInfoOperation {
		names := m.functions
		if names == nil {
			for name := range m.responses {
				names = append(names, name)
			}
		}
		funcs := []map[string]string{}
		for _, name := range names {
			funcs = append(funcs, map[string]string{"name": name})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"username":             "teacher",
			"userid":               2,
			"userprivateaccesskey": "private-key",
			"functions":            funcs,
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	values := map[string]string{}
	for k, v := range r.Form {
		switch k {
		case "wsfunction", "wstoken", "moodlewsrestformat":
			continue
		}
		values[k] = v[0]
	}

	m.mu.Lock()
	m.requests[op] = append(m.requests[op], values)
	m.methods[op] = append(m.methods[op], r.Method)
	res, ok := m.responses[op]
	m.mu.Unlock()

	if !ok {
		json.NewEncoder(w).Encode(map[string]any{
			"exception": "invalid_parameter_exception",
			"errorcode": "invalidrecord",
			"message":   "unexpected call to " + op,
		})
		return
	}
	if res == nil {
		w.Write([]byte("null"))
		return
	}
	json.NewEncoder(w).Encode(res)
}

func (m *moodleStub) serveFile(path, content string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return m.URL + path
}

func (m *moodleStub) calls(op string) []map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[op]
}

func (m *moodleStub) session(t *testing.T) *moodle.Session {
	t.Helper()
	s, err := moodle.New(m.URL)
	require.NoError(t, err)
	require.NoError(t, s.Connect(context.Background(), "secret"))
	return s
}

func newStep(t *testing.T, cfg models.StepConfig) models.Step {
	t.Helper()
	step, err := builder.CreateStep(cfg)
	require.NoError(t, err)
	return step
}

func newStepErr(cfg models.StepConfig) (models.Step, error) {
	return builder.CreateStep(cfg)
}

// execute runs one step through the same lifecycle the engine uses.
func execute(t *testing.T, step models.Step, session models.Session, shared *models.Context) error {
	t.Helper()
	if shared == nil {
		shared = models.NewContext()
	}
	ctx := context.Background()
	if err := step.ResolveContext(shared); err != nil {
		return err
	}
	if err := step.BindSession(session); err != nil {
		return err
	}
	if err := step.Setup(ctx); err != nil {
		return err
	}
	runErr := step.Run(ctx)
	if err := step.Cleanup(ctx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func sharedWith(t *testing.T, outputs map[string]map[string]any) *models.Context {
	t.Helper()
	shared := models.NewContext()
	for id, out := range outputs {
		require.NoError(t, shared.Publish(id, out))
	}
	return shared
}
