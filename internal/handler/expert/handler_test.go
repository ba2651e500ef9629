package expert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/expert"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/catalog"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ingest"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/retrieval"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/storage"
)

type unitEmbedder struct{}

func (unitEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0, 1}
	}
	return out, nil
}

// allowIfHeader stands in for RequireAuth.
func allowIfHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":"missing or invalid token"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newRouter(t *testing.T, embedder embedding.Embedder) http.Handler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := logger.NewNop()
	ing := ingest.NewIngestor(log, embedder, retrieval.NewMemoryIndex(), ingest.Options{})
	svc := catalog.NewService(log, expert.NewMemoryStore(expert.Seed()), storage.NewExpertRepo(db, log), ing)

	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		New(log, svc).RegisterRoutes(api, allowIfHeader)
	})
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string, authed bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authed {
		req.Header.Set("Authorization", "Bearer test")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not JSON: %q", rec.Body.String())
	}
	return rec, env
}

func TestPublicListAndGet(t *testing.T) {
	router := newRouter(t, unitEmbedder{})

	rec, env := do(t, router, http.MethodGet, "/api/experts", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"empire"`) {
		t.Fatalf("list failed: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, router, http.MethodGet, "/api/experts/lyn_alden", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("get failed: %d", rec.Code)
	}

	rec, env = do(t, router, http.MethodGet, "/api/experts/nobody", "", false)
	if rec.Code != http.StatusNotFound || env.Success {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestManagementRequiresAuth(t *testing.T) {
	rec, _ := do(t, newRouter(t, unitEmbedder{}), http.MethodPost, "/api/experts", `{"name":"x"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestExpertAndEpisodeLifecycle(t *testing.T) {
	router := newRouter(t, unitEmbedder{})

	rec, env := do(t, router, http.MethodPost, "/api/experts",
		`{"name":"Macro Hour","episodes":[{"title":"Ep 1","content":"rates and bonds"}]}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Expert   expert.Expert `json:"expert"`
		Episodes []struct {
			ID string `json:"id"`
		} `json:"episodes"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Expert.ID == "" || len(created.Episodes) != 1 {
		t.Fatalf("unexpected create payload %s", env.Data)
	}
	base := "/api/experts/" + created.Expert.ID

	rec, _ = do(t, router, http.MethodPost, base+"/episodes", `{"title":"Ep 2","content":"gold"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add episode failed: %d %s", rec.Code, rec.Body.String())
	}

	rec, env = do(t, router, http.MethodGet, base+"/episodes", "", true)
	if rec.Code != http.StatusOK || strings.Count(string(env.Data), `"title"`) != 2 {
		t.Fatalf("list episodes failed: %d %s", rec.Code, env.Data)
	}

	episodePath := base + "/episodes/" + created.Episodes[0].ID
	rec, _ = do(t, router, http.MethodPut, episodePath, `{"title":"Ep 1b","content":"rates, bonds and credit"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("update episode failed: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, router, http.MethodDelete, episodePath, "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete episode failed: %d", rec.Code)
	}
	rec, _ = do(t, router, http.MethodDelete, episodePath, "", true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted episode, got %d", rec.Code)
	}

	rec, _ = do(t, router, http.MethodDelete, base, "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete expert failed: %d", rec.Code)
	}
	rec, _ = do(t, router, http.MethodGet, base, "", false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected deleted expert to be gone, got %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	router := newRouter(t, unitEmbedder{})

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid body", http.MethodPost, "/api/experts", `{`, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/experts", `{"name":"  "}`, http.StatusBadRequest},
		{"built-in delete", http.MethodDelete, "/api/experts/empire", "", http.StatusBadRequest},
		{"unknown expert episodes", http.MethodGet, "/api/experts/nobody/episodes", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, router, tc.method, tc.path, tc.body, true)
			if rec.Code != tc.want || env.Success || env.Error == "" {
				t.Fatalf("expected %d failure, got %d %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIngestionUnavailable(t *testing.T) {
	router := newRouter(t, nil)
	rec, _ := do(t, router, http.MethodPost, "/api/experts",
		`{"name":"Macro Hour","episodes":[{"title":"Ep 1","content":"rates"}]}`, true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d %s", rec.Code, rec.Body.String())
	}
}
