// Package store defines the persistence interfaces for users, jobs and
// notifications, the shared store errors, and the transaction helpers that
// let a caller bind several stores to one database transaction.
package store
