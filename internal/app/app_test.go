package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/guttosm/tradeexport/config"
)

func validConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: "8080"},
		Database: config.DatabaseConfig{
			Driver: config.DriverPostgres, Host: "127.0.0.1", Port: 54329,
			User: "x", Password: "y", DBName: "z", SSLMode: "disable", Table: "TradeHistories",
		},
		Export: config.ExportConfig{OnRowError: "abort", FlushEvery: 10},
	}
}

// TestInitDB_InvalidHost expects ping failure.
func TestInitDB_InvalidHost(t *testing.T) {
	db, err := InitDB(validConfig())
	if err == nil {
		_ = db.Close()
		t.Fatalf("expected error connecting to invalid DB")
	}
}

func TestInitDB_OpenError(t *testing.T) {
	old := sqlOpener
	sqlOpener = func(driverName, dataSourceName string) (*sqlx.DB, error) {
		return nil, errors.New("open failed")
	}
	t.Cleanup(func() { sqlOpener = old })

	if _, err := InitDB(validConfig()); err == nil {
		t.Fatalf("expected error from InitDB when open fails")
	}
}

func TestInitDB_PassesDriverAndDSN(t *testing.T) {
	cases := []struct {
		name   string
		driver string
		dsn    string
		want   string
	}{
		{name: "computed postgres dsn", driver: config.DriverPostgres, want: "postgres://x:y@127.0.0.1:54329/z?sslmode=disable"},
		{name: "explicit dsn wins", driver: config.DriverMySQL, dsn: "u:p@tcp(db:3306)/trading", want: "u:p@tcp(db:3306)/trading"},
		{name: "sqlite file", driver: config.DriverSQLite, want: "z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			if err != nil {
				t.Fatalf("sqlmock new: %v", err)
			}
			mock.ExpectPing()

			var gotDriver, gotDSN string
			old := sqlOpener
			sqlOpener = func(driverName, dataSourceName string) (*sqlx.DB, error) {
				gotDriver, gotDSN = driverName, dataSourceName
				return sqlx.NewDb(db, driverName), nil
			}
			t.Cleanup(func() { sqlOpener = old; _ = db.Close() })

			cfg := validConfig()
			cfg.Database.Driver = tc.driver
			cfg.Database.DSN = tc.dsn
			if _, err := InitDB(cfg); err != nil {
				t.Fatalf("InitDB: %v", err)
			}
			if gotDriver != tc.driver || gotDSN != tc.want {
				t.Fatalf("opened (%q, %q), want (%q, %q)", gotDriver, gotDSN, tc.driver, tc.want)
			}
		})
	}
}

// TestInitializeApp_DBFailure ensures InitializeApp returns error when DB cannot connect.
func TestInitializeApp_DBFailure(t *testing.T) {
	old := config.AppConfig
	t.Cleanup(func() { config.AppConfig = old })
	config.AppConfig = validConfig()

	r, cleanup, err := InitializeApp()
	if err == nil || r != nil || cleanup != nil {
		if cleanup != nil {
			cleanup()
		}
		t.Fatalf("expected error from InitializeApp with invalid DB config")
	}
}

func TestInitializeApp_InvalidTable(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	oldCfg, oldOpener := config.AppConfig, dbOpener
	t.Cleanup(func() { config.AppConfig, dbOpener = oldCfg, oldOpener })
	config.AppConfig = validConfig()
	config.AppConfig.Database.Table = "t; DROP TABLE x"
	dbOpener = func(config.Config) (*sqlx.DB, error) { return sqlx.NewDb(db, "postgres"), nil }

	if _, _, err := InitializeApp(); err == nil {
		t.Fatalf("expected invalid table error")
	}
}

func TestInitializeApp_HappyPath(t *testing.T) {
	// Override opener to return a sqlmock DB that pings successfully
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	mock.ExpectPing()

	oldCfg, oldOpener := config.AppConfig, dbOpener
	config.AppConfig = validConfig()
	dbOpener = func(cfg config.Config) (*sqlx.DB, error) { return sqlx.NewDb(db, "postgres"), nil }
	t.Cleanup(func() {
		config.AppConfig, dbOpener = oldCfg, oldOpener
		_ = db.Close()
	})

	router, cleanup, err := InitializeApp()
	if err != nil || router == nil || cleanup == nil {
		t.Fatalf("InitializeApp failed: err=%v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", w.Code)
	}

	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w2.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w2.Code)
	}

	cleanup()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
