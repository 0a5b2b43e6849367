// Package models defines the core domain models for Cooper.
//
// # Models
//
//   - User: registered account; the actor behind every request
//   - Event: a shared-expense occasion with one admin
//   - Participant: membership of a user in an event (voting and settlement)
//   - Category: grouping of expenses inside an event
//   - Expense: approved spending, always backed by a provider payment intent
//   - Contribution: append-only deposit into an event pool
//   - Vote: approval cast by one participant for another
//   - SpendingRule: per-event limits consulted before spending
//   - Milestone: conditional release checkpoint for an expense's funds
//   - Refund and Wallet: time-locked credit and the balance it matures into
//
// # Conventions
//
// 1. IDs are UUID strings generated by the store.
// 2. Timestamps are Unix seconds.
// 3. Money is decimal.Decimal; never float64.
// 4. Relationships use ID strings rather than pointers.
package models
