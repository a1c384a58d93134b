// Package service contains the application use cases. It coordinates the
// stores defined in internal/store to submit jobs, keep credit balances and
// append user notifications, and never depends on a concrete storage
// implementation.
//
// Services that take part in job processing expose WithTx so a caller can
// bind several of them to one transaction and commit their writes together.
package service
