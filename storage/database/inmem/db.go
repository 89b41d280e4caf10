// Package inmemdb provides in-memory repositories for tests and local hacking.
package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/audit"
	"github.com/trezcool/shule/core/enrollment"
)

var errNotSupported = errors.New("raw SQL is not supported by the in-memory backend")

type DB struct {
	mu sync.RWMutex

	records     map[string]attendance.Record
	entries     []audit.Entry
	students    map[string]enrollment.Student
	classes     map[string]enrollment.Class
	enrollments []enrollment.Enrollment
	activeYear  string
}

var _ core.DB = (*DB)(nil)

func NewDB() *DB {
	db := new(DB)
	db.Reset()
	return db
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.records = make(map[string]attendance.Record)
	db.entries = nil
	db.students = make(map[string]enrollment.Student)
	db.classes = make(map[string]enrollment.Class)
	db.enrollments = nil
	db.activeYear = ""
}

// Seeding helpers

func (db *DB) SetActiveYear(year string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.activeYear = year
}

func (db *DB) AddStudent(st enrollment.Student) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.students[st.ID] = st
}

func (db *DB) AddClass(cls enrollment.Class) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.classes[cls.ID] = cls
}

func (db *DB) Enroll(enr enrollment.Enrollment) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.enrollments = append(db.enrollments, enr)
}

// core.DB implementation
//
// Transactions are no-ops: repositories write straight to the tables. The
// SQL executor surface exists only to satisfy the interface.

type tx struct{ *DB }

func (tx) Commit() error   { return nil }
func (tx) Rollback() error { return nil }

func (db *DB) BeginTx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	return tx{db}, nil
}

func (db *DB) Exec(string, ...interface{}) (sql.Result, error) {
	return nil, errNotSupported
}

func (db *DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNotSupported
}

func (db *DB) Query(string, ...interface{}) (*sql.Rows, error) {
	return nil, errNotSupported
}

func (db *DB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNotSupported
}

func (db *DB) QueryRow(string, ...interface{}) *sql.Row {
	return nil
}

func (db *DB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}
