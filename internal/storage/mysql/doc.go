// Package mysql persists the invocation audit history, either in MySQL
// with embedded schema migrations or in a local JSON lines file.
package mysql
