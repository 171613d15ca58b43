// Package employee defines the employee record model, the storage contract
// every engine implements, and the Service that validates and instruments
// calls before they reach storage. This package must not import database
// drivers; engines live under internal/storage.
package employee
