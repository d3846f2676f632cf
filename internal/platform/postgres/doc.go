// Package postgres provides PostgreSQL implementations of the store
// interfaces. All stores accept a store.DBTX so they run equally against
// a *sql.DB or a transaction handed in via WithTx.
package postgres
