package contract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

const page = `<!doctype html>
<html><body>
<section class="todoapp">
  <header class="header"><input class="new-todo"></header>
  <section class="main"><ul class="todo-list"></ul></section>
</section>
</body></html>`

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCheck(t *testing.T) {
	url := serve(t, http.StatusOK, page)

	require.NoError(t, Check(context.Background(), nil, url, DefaultSelectors))
	require.NoError(t, Check(context.Background(), nil, url, []string{"input.new-todo", "ul.todo-list"}))
}

func TestCheck_MissingSelectors(t *testing.T) {
	url := serve(t, http.StatusOK, page)

	err := Check(context.Background(), nil, url, []string{"section.todoapp", "footer.footer", ".todo-count"})
	require.Error(t, err)
	assert.Equal(t, scenario.KindEnvironment, scenario.KindOf(err))
	assert.Contains(t, err.Error(), "footer.footer, .todo-count")
	assert.NotContains(t, err.Error(), "section.todoapp,")
}

func TestCheck_BadStatus(t *testing.T) {
	url := serve(t, http.StatusNotFound, "not found")

	err := Check(context.Background(), nil, url, DefaultSelectors)
	require.Error(t, err)
	assert.Equal(t, scenario.KindEnvironment, scenario.KindOf(err))
	assert.Contains(t, err.Error(), "404")
}

func TestCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := Check(context.Background(), nil, url, DefaultSelectors)
	require.Error(t, err)
	assert.Equal(t, scenario.KindEnvironment, scenario.KindOf(err))
}
