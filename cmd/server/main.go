package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	_ "modernc.org/sqlite"

	emailPkg "coachportal/internal/adapters/email"
	web "coachportal/internal/adapters/http"
	"coachportal/internal/adapters/http/perf"
	"coachportal/internal/adapters/identity"
	"coachportal/internal/adapters/objectstore"
	"coachportal/internal/adapters/storage"
	credentialStore "coachportal/internal/adapters/storage/credential"
	profileStore "coachportal/internal/adapters/storage/profile"
	uploadStore "coachportal/internal/adapters/storage/upload"
	"coachportal/internal/application/orchestrators"
	"coachportal/internal/application/resolve"
	"coachportal/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize database with WAL mode, foreign keys, and busy timeout
	dsn := cfg.DatabasePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}

	if err := storage.MigrateDB(db, cfg.DatabasePath); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector)

	profiles := profileStore.NewSQLiteStore(timedDB)
	creds := credentialStore.NewSQLiteStore(timedDB)
	uploads := uploadStore.NewSQLiteStore(timedDB)

	// Configure email sender
	var sender emailPkg.Sender
	if cfg.Email.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.Email.ResendKey, cfg.Email.From)
		log.Println("Email sender configured (Resend)")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			log.Println("WARNING: PORTAL_EMAIL_RESEND_KEY is not set, email delivery is DISABLED in production")
		} else {
			log.Println("Email sender configured (noop, set PORTAL_EMAIL_RESEND_KEY for real delivery)")
		}
	}

	service := identity.NewService(creds, sender)

	// Guarantee an administrator account before the portal opens
	bootstrapDeps := orchestrators.BootstrapAdminDeps{ProfileStore: profiles, Gateway: service.NewClient()}
	bootstrapInput := orchestrators.BootstrapAdminInput{Email: cfg.Admin.Email, Password: cfg.Admin.Password}
	if err := orchestrators.ExecuteBootstrapAdmin(context.Background(), bootstrapInput, bootstrapDeps); err != nil {
		log.Fatalf("failed to bootstrap admin: %v", err)
	}

	// Demo accounts for the landing-page demo buttons
	demoLogin := !cfg.IsProduction()
	if demoLogin {
		demoDeps := orchestrators.DemoSeedDeps{ProfileStore: profiles, Gateway: service.NewClient()}
		if err := orchestrators.ExecuteSeedDemoAccounts(context.Background(), demoDeps); err != nil {
			log.Fatalf("failed to seed demo accounts: %v", err)
		}
	}

	// Object storage for member uploads; in-memory when no bucket is
	// configured so local development needs no MinIO
	var objects objectstore.Store
	if cfg.Storage.Endpoint != "" {
		client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
			Secure: cfg.Storage.UseSSL,
		})
		if err != nil {
			log.Fatalf("failed to create object storage client: %v", err)
		}
		objects, err = objectstore.NewMinioStore(context.Background(), client, cfg.Storage.Bucket, cfg.Storage.PublicURL)
		if err != nil {
			log.Fatalf("failed to initialize object storage: %v", err)
		}
		log.Printf("Object storage configured (bucket=%s)", cfg.Storage.Bucket)
	} else {
		objects = objectstore.NewMemoryStore()
		log.Println("Object storage configured (in-memory, set PORTAL_MINIO_ENDPOINT for a real bucket)")
	}

	deps := &web.Deps{
		ProfileStore:         profiles,
		UploadStore:          uploads,
		ObjectStore:          objects,
		Identity:             service,
		Resolver:             resolve.NewResolver(profiles),
		BaseURL:              cfg.BaseURL,
		CSRFKeyHex:           cfg.CSRFKey,
		Production:           cfg.IsProduction(),
		DemoLoginEnabled:     demoLogin,
		FailsafeTimeout:      cfg.FailsafeTimeout,
		SlowRequestThreshold: cfg.SlowRequestThreshold,
	}
	mux := web.NewMux(cfg.StaticDir, deps, collector)

	log.Printf("Coach portal %s starting on %s (env=%s, schema=%d)", version, cfg.Addr, cfg.Env, storage.LatestSchemaVersion())
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
