// Package billing is the usage-metered billing engine.
//
// It turns raw usage events into two nested charges:
//   - what the platform bills a client under its subscription tier (fee plus overage)
//   - what a client bills its end customers under per-metric rate and free-tier rules
//
// and assembles the result into invoices.
//
// Calculators:
//   - UsagePeriodAggregator: reduces events to per-metric totals over an inclusive window
//   - SubscriptionBillingCalculator: tier fee plus overage charges
//   - ClientBillingCalculator: end-customer line items with free-tier deduction
//   - LimitValidator: tier limit checks without pricing
//   - InvoiceAssembler: deterministic invoice records
//
// Configuration:
//   - TierCatalog: subscription plans (basic, pro, enterprise)
//   - ClientRateCatalog: default and per-client end-customer rules
//
// Everything in this package is pure. Time enters only through explicit
// arguments, and all money is decimal.Decimal.
package billing
