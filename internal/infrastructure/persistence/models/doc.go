// Package models contains GORM persistence models for the billing tables.
// Domain types stay free of ORM tags; each model converts to and from its
// domain counterpart and repositories only ever write models.
package models
