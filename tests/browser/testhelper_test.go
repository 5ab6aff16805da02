package browser_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	emailAdapter "coachportal/internal/adapters/email"
	web "coachportal/internal/adapters/http"
	"coachportal/internal/adapters/http/middleware"
	"coachportal/internal/adapters/http/perf"
	"coachportal/internal/adapters/identity"
	"coachportal/internal/adapters/objectstore"
	"coachportal/internal/adapters/storage"
	credentialStore "coachportal/internal/adapters/storage/credential"
	profileStore "coachportal/internal/adapters/storage/profile"
	uploadStore "coachportal/internal/adapters/storage/upload"
	"coachportal/internal/application/orchestrators"
	"coachportal/internal/application/resolve"
)

// Browser tests need Playwright browsers installed; they are skipped
// unless PORTAL_BROWSER_TESTS is set.
func requireBrowser(t *testing.T) {
	t.Helper()
	if os.Getenv("PORTAL_BROWSER_TESTS") == "" {
		t.Skip("set PORTAL_BROWSER_TESTS=1 to run browser tests")
	}
}

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	DB      *sql.DB
	Server  *http.Server
	PW      *playwright.Playwright
	Browser playwright.Browser
}

// newTestApp creates a fully wired portal with a temp SQLite DB and
// starts an HTTP server serving a minimal static front end.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := storage.MigrateDB(db, dbPath); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}

	// Minimal pages so FileServer has something to serve.
	staticDir := filepath.Join(tmpDir, "static")
	if err := os.MkdirAll(staticDir, 0o755); err != nil {
		t.Fatalf("failed to create static dir: %v", err)
	}
	writeStatic(t, staticDir, "index.html", "<html><body>landing</body></html>")
	writeStatic(t, staticDir, "set-password", "<html><body>set password</body></html>")

	profiles := profileStore.NewSQLiteStore(db)
	service := identity.NewService(credentialStore.NewSQLiteStore(db), emailAdapter.NewNoopSender())

	ctx := context.Background()
	bootstrap := orchestrators.BootstrapAdminDeps{ProfileStore: profiles, Gateway: service.NewClient()}
	input := orchestrators.BootstrapAdminInput{Email: "admin@test.com", Password: "TestPass123!"}
	if err := orchestrators.ExecuteBootstrapAdmin(ctx, input, bootstrap); err != nil {
		t.Fatalf("failed to bootstrap admin: %v", err)
	}

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	// Add test port to CSRF trusted origins before creating mux
	middleware.ExtraTrustedOrigins = append(middleware.ExtraTrustedOrigins,
		fmt.Sprintf("127.0.0.1:%d", port),
		fmt.Sprintf("localhost:%d", port),
	)

	deps := &web.Deps{
		ProfileStore:    profiles,
		UploadStore:     uploadStore.NewSQLiteStore(db),
		ObjectStore:     objectstore.NewMemoryStore(),
		Identity:        service,
		Resolver:        resolve.NewResolver(profiles),
		BaseURL:         fmt.Sprintf("http://127.0.0.1:%d", port),
		FailsafeTimeout: 2 * time.Second,
	}
	mux := web.NewMux(staticDir, deps, perf.NewCollector(perf.DefaultRingSize))
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}

	app := &testApp{
		BaseURL: baseURL,
		DB:      db,
		Server:  srv,
		PW:      pw,
		Browser: browser,
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		db.Close()
	})

	return app
}

func writeStatic(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write static file %s: %v", name, err)
	}
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}
