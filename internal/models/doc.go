// Package models defines the core domain models for splitledger.
//
// # Models
//
//   - Expense: a shared payment with one payer and a list of debtor shares
//   - DebtorShare: one participant's owed portion of an expense
//   - ExpensePatch: a partial update applied by the ledger reconciler
//
// Participants are identified by opaque strings (phone numbers, chat handles or
// names). The models never normalize them; two identifiers are the same
// participant only when they match exactly.
//
// # Money
//
// All amounts are decimal.Decimal values with two fractional digits. Floats are
// never used for money so that shares always add up to the cent.
//
// # Design Principles
//
// 1. **Plain records**: models carry no behavior beyond small helpers
// 2. **No aliasing**: callers that change an expense work on a Clone
// 3. **IDs over pointers**: relationships are expressed with IDs
package models
