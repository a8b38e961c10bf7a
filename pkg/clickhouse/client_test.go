package clickhouse

import (
	"net/url"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		Database:     "mealsignal",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  30 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	})

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse dsn %q: %v", dsn, err)
	}
	if u.Scheme != "clickhouse" || u.Host != "ch.local:9000" || u.Path != "/mealsignal" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	if pw, _ := u.User.Password(); pw != "p@ss" {
		t.Fatalf("password not preserved: %q", dsn)
	}
	q := u.Query()
	if q.Get("dial_timeout") != "5s" || q.Get("max_execution_time") != "30" {
		t.Fatalf("unexpected params %v", q)
	}
	if q.Get("async_insert") != "1" || q.Get("wait_for_async_insert") != "1" {
		t.Fatalf("async params missing %v", q)
	}
	if q.Has("write_timeout") {
		t.Fatalf("write_timeout must stay client side")
	}
}

func TestBuildDSNHTTP(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "h", Port: 8123, Database: "db", UseHTTP: true})
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("expected http scheme, got %q", u.Scheme)
	}
}

func TestWithPool(t *testing.T) {
	cfg := ClientConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Minute}
	WithPool(4, 8, 0)(&cfg)
	if cfg.MaxOpenConns != 4 || cfg.MaxIdleConns != 5 || cfg.ConnMaxLifetime != time.Minute {
		t.Fatalf("idle above open must be ignored: %+v", cfg)
	}
	WithPool(0, 2, time.Hour)(&cfg)
	if cfg.MaxOpenConns != 4 || cfg.MaxIdleConns != 2 || cfg.ConnMaxLifetime != time.Hour {
		t.Fatalf("unexpected pool %+v", cfg)
	}
}
