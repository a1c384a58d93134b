// Package postgres implements the store interfaces on PostgreSQL through
// database/sql and the pgx stdlib driver, and owns the embedded schema
// migrations.
//
// Every store accepts a store.DBTX so the same code runs on a *sql.DB or
// inside a transaction obtained with WithTx.
package postgres
