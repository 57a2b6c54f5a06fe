package command

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/previewshare-go/internal/authz"
	"github.com/yndnr/previewshare-go/internal/cache/lru"
	"github.com/yndnr/previewshare-go/internal/cli/config"
	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/core/service"
	"github.com/yndnr/previewshare-go/internal/resource"
	"github.com/yndnr/previewshare-go/internal/server/httpserver"
	"github.com/yndnr/previewshare-go/internal/server/httpserver/handler"
	"github.com/yndnr/previewshare-go/internal/settings"
	"github.com/yndnr/previewshare-go/internal/storage/memory"
	"github.com/yndnr/previewshare-go/pkg/token"
)

const (
	adminKey  = "admin-key-0123456789"
	editorKey = "editor-key-0123456789"
)

// newTestServer starts a full server stack on the memory store.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	hasher, err := token.NewHasher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	st, err := settings.NewStore(domain.DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	reg := resource.NewRegistry()
	az := authz.NewRoleAuthorizer()
	previews := service.NewPreviewService(memory.New(), reg, st, hasher,
		service.WithCache(lru.New(), service.DefaultCacheTTL),
		service.WithAuthorizer(az),
		service.WithLogger(log),
		service.WithBaseURL("http://preview.test"),
	)
	reg.Subscribe(previews.HandleResourceEvent)

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler: handler.Config{
			Previews:   previews,
			Settings:   service.NewSettingsService(st, log),
			Resources:  reg,
			Authorizer: az,
		},
		APIKeys: httpserver.NewAPIKeys(map[string]domain.Principal{
			adminKey:  {ID: "root", Role: domain.RoleAdmin},
			editorKey: {ID: "alice", Role: domain.RoleEditor},
		}),
		Logger: log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// clearEnv keeps the caller's environment out of connection resolution.
func clearEnv(t *testing.T) {
	for _, k := range []string{config.EnvServer, config.EnvAPIKey, config.EnvOutput, config.EnvTimeout} {
		t.Setenv(k, "")
	}
}

// cliRunner runs the app against one config file.
type cliRunner struct {
	t          *testing.T
	configPath string
}

func newRunner(t *testing.T) *cliRunner {
	clearEnv(t)
	return &cliRunner{t: t, configPath: filepath.Join(t.TempDir(), "cli.yaml")}
}

// run executes args after the --config flag and returns stdout.
func (r *cliRunner) run(args ...string) (string, error) {
	r.t.Helper()
	app := App()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{"previewshare-cli", "--config", r.configPath}, args...)
	err := app.RunContext(context.Background(), full)
	return out.String(), err
}

// mustRun is run that fails the test on error.
func (r *cliRunner) mustRun(args ...string) string {
	r.t.Helper()
	out, err := r.run(args...)
	if err != nil {
		r.t.Fatalf("%v: %v\noutput:\n%s", args, err, out)
	}
	return out
}
