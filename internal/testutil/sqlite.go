// Package testutil provides a migrated SQLite database for repository
// and service tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// NewDB opens a fresh SQLite database in a temporary directory, applies
// Schema and registers cleanup with tb.  The pool is capped at one
// connection so transactions never contend with each other.
func NewDB(tb testing.TB) *sql.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "fablab.db")
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			_ = db.Close()
			tb.Fatalf("failed to apply schema: %v", err)
		}
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

// Schema mirrors migrations/0001_init.sql in SQLite syntax.
const Schema = `
CREATE TABLE accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE client_info (
	account_id INTEGER PRIMARY KEY,
	address TEXT NOT NULL DEFAULT '',
	contact_number TEXT NOT NULL DEFAULT '',
	designation TEXT NOT NULL DEFAULT '',
	affiliation TEXT NOT NULL DEFAULT ''
);
CREATE TABLE business_info (
	account_id INTEGER PRIMARY KEY,
	address TEXT NOT NULL DEFAULT '',
	contact_number TEXT NOT NULL DEFAULT '',
	company_name TEXT NOT NULL,
	business_type TEXT NOT NULL DEFAULT '',
	tin TEXT NOT NULL DEFAULT '',
	employee_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE teacher_emails (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	verified INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE TABLE refresh_tokens (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL,
	token_hash TEXT NOT NULL UNIQUE,
	expires_at DATETIME NOT NULL,
	revoked_at DATETIME NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE services (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	rate_cents INTEGER NOT NULL,
	billing_unit TEXT NOT NULL DEFAULT 'hour',
	icon TEXT NULL,
	description TEXT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE machines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NULL,
	is_available INTEGER NOT NULL DEFAULT 1,
	instructions TEXT NULL,
	link TEXT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE machine_services (
	machine_id INTEGER NOT NULL,
	service_id INTEGER NOT NULL,
	PRIMARY KEY (machine_id, service_id)
);
CREATE TABLE blocked_dates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	blocked_on TEXT NOT NULL UNIQUE,
	reason TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE TABLE util_reqs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL,
	status TEXT NOT NULL,
	total_amount_cents INTEGER NOT NULL DEFAULT 0,
	receipt_number TEXT NULL,
	paid_at DATETIME NULL,
	comments TEXT NOT NULL DEFAULT '',
	approved_by TEXT NULL,
	received_by TEXT NULL,
	received_at DATETIME NULL,
	reject_reason TEXT NULL,
	cancel_reason TEXT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE user_services (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	util_req_id INTEGER NOT NULL,
	service_id INTEGER NOT NULL,
	service_name TEXT NOT NULL,
	equipment_name TEXT NOT NULL DEFAULT '',
	machine_quantity INTEGER NOT NULL DEFAULT 1,
	rate_cents INTEGER NOT NULL,
	minutes INTEGER NOT NULL DEFAULT 0,
	cost_cents INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE user_tools (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	util_req_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	quantity INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE time_slots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	util_req_id INTEGER NULL,
	evc_id INTEGER NULL,
	day INTEGER NOT NULL,
	start_time DATETIME NULL,
	end_time DATETIME NULL
);
CREATE TABLE downtime_adjustments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	util_req_id INTEGER NOT NULL,
	user_service_id INTEGER NOT NULL,
	minutes INTEGER NOT NULL,
	deduction_cents INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	recorded_by TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE evc_reservations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL,
	status TEXT NOT NULL,
	rejection_stage TEXT NOT NULL DEFAULT '',
	reject_reason TEXT NULL,
	cancel_reason TEXT NULL,
	teacher_name TEXT NOT NULL DEFAULT '',
	teacher_email TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	topic TEXT NOT NULL DEFAULT '',
	school_level TEXT NOT NULL DEFAULT '',
	class_size INTEGER NOT NULL DEFAULT 0,
	teacher_approved_at DATETIME NULL,
	approved_by TEXT NULL,
	received_by TEXT NULL,
	received_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE evc_students (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	evc_id INTEGER NOT NULL,
	name TEXT NOT NULL
);
CREATE TABLE needed_materials (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	evc_id INTEGER NOT NULL,
	item TEXT NOT NULL,
	quantity INTEGER NOT NULL DEFAULT 1,
	description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE approval_tokens (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	evc_id INTEGER NOT NULL,
	token_hash TEXT NOT NULL UNIQUE,
	teacher_email TEXT NOT NULL,
	expires_at DATETIME NOT NULL,
	consumed_at DATETIME NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE preliminary_surveys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	util_req_id INTEGER NULL UNIQUE,
	evc_id INTEGER NULL UNIQUE,
	client_type TEXT NOT NULL DEFAULT '',
	sex TEXT NOT NULL DEFAULT '',
	age_group TEXT NOT NULL DEFAULT '',
	region TEXT NOT NULL DEFAULT '',
	service_availed TEXT NOT NULL DEFAULT '',
	cc1 TEXT NOT NULL DEFAULT '',
	cc2 TEXT NOT NULL DEFAULT '',
	cc3 TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE TABLE customer_feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	util_req_id INTEGER NULL UNIQUE,
	evc_id INTEGER NULL UNIQUE,
	sqd0 INTEGER NOT NULL, sqd1 INTEGER NOT NULL, sqd2 INTEGER NOT NULL,
	sqd3 INTEGER NOT NULL, sqd4 INTEGER NOT NULL, sqd5 INTEGER NOT NULL,
	sqd6 INTEGER NOT NULL, sqd7 INTEGER NOT NULL, sqd8 INTEGER NOT NULL,
	suggestions TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE TABLE employee_evaluations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	util_req_id INTEGER NULL UNIQUE,
	evc_id INTEGER NULL UNIQUE,
	e1 INTEGER NOT NULL, e2 INTEGER NOT NULL, e3 INTEGER NOT NULL, e4 INTEGER NOT NULL,
	e5 INTEGER NOT NULL, e6 INTEGER NOT NULL, e7 INTEGER NOT NULL, e8 INTEGER NOT NULL,
	e9 INTEGER NOT NULL, e10 INTEGER NOT NULL, e11 INTEGER NOT NULL, e12 INTEGER NOT NULL,
	e13 INTEGER NOT NULL, e14 INTEGER NOT NULL, e15 INTEGER NOT NULL, e16 INTEGER NOT NULL,
	e17 INTEGER NOT NULL,
	comments TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
`
