package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
	"github.com/ZuoMatthew/schemaless/pkg/schemaless"
	"github.com/ZuoMatthew/schemaless/pkg/storage"
)

// TestServer wraps an httptest server over a real in-memory database
type TestServer struct {
	Server  *httptest.Server
	DB      *schemaless.DB
	Handler *Handler
	BaseURL string
}

// NewTestServer creates a test server backed by an in-memory engine
func NewTestServer(t *testing.T) *TestServer {
	db, err := schemaless.Open(storage.WithInMemory())
	require.NoError(t, err)

	handler := NewHandler(db)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	server := httptest.NewServer(router)

	return &TestServer{
		Server:  server,
		DB:      db,
		Handler: handler,
		BaseURL: server.URL,
	}
}

// Close shuts down the test server and the database
func (ts *TestServer) Close(t *testing.T) {
	ts.Server.Close()
	require.NoError(t, ts.DB.Close())
}

// Helper methods for making HTTP requests

func (ts *TestServer) POST(path string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	return http.Post(ts.BaseURL+path, "application/json", bytes.NewBuffer(jsonData))
}

func (ts *TestServer) GET(path string) (*http.Response, error) {
	return http.Get(ts.BaseURL + path)
}

func (ts *TestServer) PATCH(path string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("PATCH", ts.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	return client.Do(req)
}

func (ts *TestServer) DELETE(path string) (*http.Response, error) {
	req, err := http.NewRequest("DELETE", ts.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{}
	return client.Do(req)
}

// ReadResponseBody reads and returns the response body as a string
func ReadResponseBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

func decodeJSON(t *testing.T, resp *http.Response, into interface{}) {
	body, err := ReadResponseBody(resp)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(body), into))
}

// Integration Tests

func TestAPI_Integration_BasicCRUD(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close(t)

	t.Run("Create KeySpace", func(t *testing.T) {
		req := CreateKeySpaceRequest{
			Name: "users",
			Indexes: []domain.IndexDefinition{
				{Column: "profile", Path: "$.status"},
			},
		}

		resp, err := ts.POST("/keyspaces", req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("List KeySpaces", func(t *testing.T) {
		resp, err := ts.GET("/keyspaces")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string][]string
		decodeJSON(t, resp, &result)
		assert.Equal(t, []string{"users"}, result["keyspaces"])
	})

	t.Run("Create Row", func(t *testing.T) {
		columns := map[string]interface{}{
			"profile": map[string]interface{}{"name": "Alice", "status": "active"},
			"prefs":   map[string]interface{}{"theme": "dark"},
		}

		resp, err := ts.POST("/keyspaces/users/rows", columns)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result CreateRowResponse
		decodeJSON(t, resp, &result)
		assert.Equal(t, int64(1), result.RowKey)
		assert.Empty(t, result.HandlerErrors)
	})

	t.Run("Get Row", func(t *testing.T) {
		resp, err := ts.GET("/keyspaces/users/rows/1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var row domain.Row
		decodeJSON(t, resp, &row)
		assert.Equal(t, int64(1), row.Key)
		assert.Len(t, row.Columns, 2)

		profile, ok := row.Columns["profile"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Alice", profile["name"])
	})

	t.Run("Get Column", func(t *testing.T) {
		resp, err := ts.GET("/keyspaces/users/rows/1/columns/prefs")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var prefs map[string]interface{}
		decodeJSON(t, resp, &prefs)
		assert.Equal(t, "dark", prefs["theme"])
	})

	t.Run("Update Row", func(t *testing.T) {
		columns := map[string]interface{}{
			"profile": map[string]interface{}{"name": "Alice", "status": "inactive"},
		}

		resp, err := ts.PATCH("/keyspaces/users/rows/1", columns)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = ts.GET("/keyspaces/users/rows/1")
		require.NoError(t, err)

		var row domain.Row
		decodeJSON(t, resp, &row)
		profile := row.Columns["profile"].(map[string]interface{})
		assert.Equal(t, "inactive", profile["status"])
		// Untouched columns survive the update.
		assert.Contains(t, row.Columns, "prefs")
	})

	t.Run("All Rows", func(t *testing.T) {
		columns := map[string]interface{}{
			"profile": map[string]interface{}{"name": "Bob", "status": "active"},
		}
		resp, err := ts.POST("/keyspaces/users/rows", columns)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, err = ts.GET("/keyspaces/users/rows")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var rows []domain.Row
		decodeJSON(t, resp, &rows)
		assert.Len(t, rows, 2)
	})

	t.Run("Delete Column", func(t *testing.T) {
		resp, err := ts.DELETE("/keyspaces/users/rows/1/columns/prefs")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, err = ts.GET("/keyspaces/users/rows/1/columns/prefs")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Delete Row", func(t *testing.T) {
		resp, err := ts.DELETE("/keyspaces/users/rows/2")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, err = ts.GET("/keyspaces/users/rows/2")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		// Other rows are untouched.
		resp, err = ts.GET("/keyspaces/users/rows/1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestAPI_Integration_IndexQuery(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close(t)

	req := CreateKeySpaceRequest{
		Name: "orders",
		Indexes: []domain.IndexDefinition{
			{Column: "order", Path: "$.state"},
			{Column: "order", Path: "$.total"},
		},
	}
	resp, err := ts.POST("/keyspaces", req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, o := range []map[string]interface{}{
		{"state": "KS", "total": 30},
		{"state": "MO", "total": 45},
		{"state": "KS", "total": 12},
	} {
		resp, err := ts.POST("/keyspaces/orders/rows", map[string]interface{}{"order": o})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	query := func(t *testing.T, column, path, value string) []domain.Row {
		params := url.Values{}
		params.Set("column", column)
		params.Set("path", path)
		params.Set("value", value)

		resp, err := ts.GET("/keyspaces/orders/query?" + params.Encode())
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rows []domain.Row
		decodeJSON(t, resp, &rows)
		return rows
	}

	t.Run("String Value", func(t *testing.T) {
		rows := query(t, "order", "$.state", "KS")
		require.Len(t, rows, 2)
		assert.Equal(t, int64(1), rows[0].Key)
		assert.Equal(t, int64(3), rows[1].Key)
	})

	t.Run("Numeric Value", func(t *testing.T) {
		rows := query(t, "order", "$.total", "45")
		require.Len(t, rows, 1)
		assert.Equal(t, int64(2), rows[0].Key)
	})

	t.Run("Unknown Index Rejected", func(t *testing.T) {
		params := url.Values{}
		params.Set("column", "order")
		params.Set("path", "$.nope")
		params.Set("value", "x")

		resp, err := ts.GET("/keyspaces/orders/query?" + params.Encode())
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("Missing Parameters", func(t *testing.T) {
		resp, err := ts.GET("/keyspaces/orders/query?column=order")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Query Reflects Updates", func(t *testing.T) {
		resp, err := ts.PATCH("/keyspaces/orders/rows/1", map[string]interface{}{
			"order": map[string]interface{}{"state": "MO", "total": 30},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		ks := query(t, "order", "$.state", "KS")
		require.Len(t, ks, 1)
		assert.Equal(t, int64(3), ks[0].Key)

		mo := query(t, "order", "$.state", "MO")
		require.Len(t, mo, 2)
	})
}

func TestAPI_Integration_Errors(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close(t)

	t.Run("Unknown KeySpace", func(t *testing.T) {
		resp, err := ts.GET("/keyspaces/nope/rows/1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Invalid Row Key", func(t *testing.T) {
		req := CreateKeySpaceRequest{Name: "users"}
		resp, err := ts.POST("/keyspaces", req)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, err = ts.GET("/keyspaces/users/rows/abc")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Update Missing Row", func(t *testing.T) {
		resp, err := ts.PATCH("/keyspaces/users/rows/99", map[string]interface{}{
			"profile": map[string]interface{}{"name": "ghost"},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Empty Body Rejected", func(t *testing.T) {
		resp, err := ts.POST("/keyspaces/users/rows", map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("KeySpace Name Required", func(t *testing.T) {
		resp, err := ts.POST("/keyspaces", CreateKeySpaceRequest{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Additional Index Is Backfilled", func(t *testing.T) {
		req := CreateKeySpaceRequest{
			Name:    "users",
			Indexes: []domain.IndexDefinition{{Column: "profile", Path: "$.name"}},
		}
		resp, err := ts.POST("/keyspaces", req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("Dropped Index Rejected", func(t *testing.T) {
		req := CreateKeySpaceRequest{
			Name:    "users",
			Indexes: []domain.IndexDefinition{{Column: "profile", Path: "$.email"}},
		}
		resp, err := ts.POST("/keyspaces", req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestAPI_Integration_HandlerErrors(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close(t)

	ks, err := ts.DB.KeySpace("events")
	require.NoError(t, err)
	ks.Handler(func(rowKey int64, column string, value domain.Document) error {
		return fmt.Errorf("downstream rejected row %d", rowKey)
	})

	resp, err := ts.POST("/keyspaces/events/rows", map[string]interface{}{
		"payload": map[string]interface{}{"kind": "signup"},
	})
	require.NoError(t, err)

	// The row commits even though the handler failed.
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var result CreateRowResponse
	decodeJSON(t, resp, &result)
	assert.Equal(t, int64(1), result.RowKey)
	require.Len(t, result.HandlerErrors, 1)
	assert.Contains(t, result.HandlerErrors[0], "downstream rejected")

	resp, err = ts.GET("/keyspaces/events/rows/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Integration_ExportAndHealth(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close(t)

	resp, err := ts.GET("/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := CreateKeySpaceRequest{Name: "users"}
	resp, err = ts.POST("/keyspaces", req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = ts.POST("/keyspaces/users/rows", map[string]interface{}{
		"profile": map[string]interface{}{"name": "Alice"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = ts.GET("/export")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))

	snapshot, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.NotEmpty(t, snapshot)
	assert.Equal(t, storage.MagicBytes, string(snapshot[:4]))

	// The snapshot restores into a fresh database.
	restored, err := schemaless.Open(storage.WithInMemory())
	require.NoError(t, err)
	defer restored.Close()

	require.NoError(t, restored.Import(bytes.NewReader(snapshot)))
	row, err := restored.GetRow("users", 1)
	require.NoError(t, err)
	profile := row.Columns["profile"].(map[string]interface{})
	assert.Equal(t, "Alice", profile["name"])
}
